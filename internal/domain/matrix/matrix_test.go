package matrix_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/internal/domain/matrix"
	"github.com/okian/tierlens/internal/domain/model"
)

type ownerOnly struct{ calls int }

func (g *ownerOnly) Reveal(_ context.Context, viewer, owner int64) bool {
	g.calls++
	return viewer == owner || owner == 20
}

func images(category string, ids ...int64) []model.Image {
	out := make([]model.Image, len(ids))
	for i, id := range ids {
		out[i] = model.Image{ID: id, Category: category}
	}
	return out
}

func ranking(id, owner int64, category, payload string) model.Ranking {
	return model.Ranking{ID: id, OwnerID: owner, Name: "list", Category: category, Payload: []byte(payload)}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	Convey("Given two rankings over images 1, 2 and 3", t, func() {
		gate := &ownerOnly{}
		b := matrix.NewBuilder(gate)
		m, err := b.Build(ctx, matrix.Input{
			Category: "Cats",
			Viewer:   10,
			Images:   images("cats", 1, 2, 3),
			Rankings: []model.Ranking{
				ranking(100, 10, "cats", `{"S":["1"],"B":["2"]}`),
				ranking(101, 30, "cats", `{"A":["1"],"S":["3"]}`),
			},
		})

		So(err, ShouldBeNil)
		So(m.Sufficient(), ShouldBeTrue)

		Convey("The values follow the collaborator's image order", func() {
			So(m.Values, ShouldResemble, [][]float64{{5, 3, 0}, {4, 0, 5}})
			rows, cols := m.Dims()
			So(rows, ShouldEqual, 2)
			So(cols, ShouldEqual, 3)
			j, ok := m.Column(3)
			So(ok, ShouldBeTrue)
			So(j, ShouldEqual, 2)
		})

		Convey("Rows are labelled through the gate", func() {
			So(m.Rows[0].SharesGroup, ShouldBeTrue)
			So(m.Rows[1].SharesGroup, ShouldBeFalse)
			So(gate.calls, ShouldEqual, 2)
			So(m.RowsOwnedBy(10), ShouldResemble, []int{0})
		})

		Convey("Rating sets mirror the rows", func() {
			sets := m.RatingSets()
			So(sets, ShouldHaveLength, 2)
			So(sets[1].Ratings, ShouldResemble, map[int64]int{1: 4, 3: 5})
		})
	})

	Convey("Given rankings that reference inaccessible images", t, func() {
		m, err := matrix.NewBuilder(nil).Build(ctx, matrix.Input{
			Category: "dogs",
			Viewer:   1,
			Images:   images("dogs", 5, 6),
			Rankings: []model.Ranking{
				ranking(1, 1, "dogs", `{"S":["5","77"]}`),
				ranking(2, 2, "dogs", `{"A":["6"],"D":["88"]}`),
				ranking(3, 3, "dogs", `{"S":["99"]}`),
				ranking(4, 4, "dogs", `not json`),
			},
		})

		So(err, ShouldBeNil)
		Convey("Out-of-scope ratings are dropped and empty rows removed", func() {
			So(m.Values, ShouldResemble, [][]float64{{5, 0}, {0, 4}})
			So(m.Dropped, ShouldEqual, 2)
			So(m.Rows[0].Ratings, ShouldResemble, map[int64]int{5: 5})
		})
		Convey("Without a gate only the viewer's rows are revealed", func() {
			So(m.Rows[0].SharesGroup, ShouldBeTrue)
			So(m.Rows[1].SharesGroup, ShouldBeFalse)
		})
	})

	Convey("Given a single contributing ranking", t, func() {
		gate := &ownerOnly{}
		m, err := matrix.NewBuilder(gate).Build(ctx, matrix.Input{
			Category: "cats",
			Images:   images("cats", 1, 2, 3, 4, 5, 6, 7, 8),
			Rankings: []model.Ranking{ranking(1, 1, "cats", `{"S":["1","2","3"]}`)},
		})

		So(err, ShouldBeNil)
		So(m.Sufficient(), ShouldBeFalse)
		So(gate.calls, ShouldEqual, 0)
	})

	Convey("Given no images", t, func() {
		m, err := matrix.NewBuilder(nil).Build(ctx, matrix.Input{
			Category: "cats",
			Rankings: []model.Ranking{ranking(1, 1, "cats", `{"S":["1"]}`), ranking(2, 2, "cats", `{"S":["1"]}`)},
		})
		So(err, ShouldBeNil)
		So(m.Sufficient(), ShouldBeFalse)
		So(m.Dropped, ShouldEqual, 2)
	})

	Convey("Given a ranking from another category", t, func() {
		_, err := matrix.NewBuilder(nil).Build(ctx, matrix.Input{
			Category: "cats",
			Images:   images("cats", 1),
			Rankings: []model.Ranking{ranking(1, 1, "dogs", `{"S":["1"]}`)},
		})
		So(errors.Is(err, matrix.ErrCategoryMismatch), ShouldBeTrue)
	})

	Convey("Given an image from another category", t, func() {
		_, err := matrix.NewBuilder(nil).Build(ctx, matrix.Input{
			Category: "cats",
			Images:   images("dogs", 1),
		})
		So(errors.Is(err, matrix.ErrCategoryMismatch), ShouldBeTrue)
	})

	Convey("Given size limits", t, func() {
		in := matrix.Input{
			Category: "cats",
			Images:   images("cats", 1, 2, 3),
			Rankings: []model.Ranking{
				ranking(1, 1, "cats", `{"S":["1"]}`),
				ranking(2, 2, "cats", `{"S":["2"]}`),
				ranking(3, 3, "cats", `{"S":["3"]}`),
			},
		}

		_, err := matrix.NewBuilder(nil, matrix.WithLimits(2, 0)).Build(ctx, in)
		So(errors.Is(err, matrix.ErrTooLarge), ShouldBeTrue)

		_, err = matrix.NewBuilder(nil, matrix.WithLimits(0, 2)).Build(ctx, in)
		So(errors.Is(err, matrix.ErrTooLarge), ShouldBeTrue)

		m, err := matrix.NewBuilder(nil, matrix.WithLimits(3, 3)).Build(ctx, in)
		So(err, ShouldBeNil)
		So(m.Sufficient(), ShouldBeTrue)
	})

	Convey("Duplicate images keep their first column", t, func() {
		m, err := matrix.NewBuilder(nil).Build(ctx, matrix.Input{
			Category: "cats",
			Images:   images("cats", 1, 2, 1),
			Rankings: []model.Ranking{ranking(1, 1, "cats", `{"S":["1"]}`), ranking(2, 2, "cats", `{"D":["2"]}`)},
		})
		So(err, ShouldBeNil)
		So(m.Values, ShouldResemble, [][]float64{{5, 0}, {0, 1}})
	})
}
