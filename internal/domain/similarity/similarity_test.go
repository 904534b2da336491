package similarity_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/internal/domain/similarity"
)

func TestCosine(t *testing.T) {
	Convey("A single row is exactly similar to itself", t, func() {
		So(similarity.Cosine([][]float64{{0.2, 0.8}}), ShouldResemble, [][]float64{{1.0}})
	})

	Convey("Given three taste vectors", t, func() {
		sims := similarity.Cosine([][]float64{
			{1, 0},
			{0, 1},
			{0.5, 0.5},
		})

		Convey("The matrix is symmetric with a unit diagonal", func() {
			for i := range sims {
				So(sims[i][i], ShouldAlmostEqual, 1.0, 1e-12)
				for j := range sims {
					So(sims[i][j], ShouldEqual, sims[j][i])
				}
			}
		})

		Convey("Orthogonal rows score 0 and the blend sits between", func() {
			So(sims[0][1], ShouldEqual, 0)
			So(sims[0][2], ShouldAlmostEqual, 0.7071067811865475, 1e-12)
		})
	})

	Convey("Zero rows are similar to nothing", t, func() {
		sims := similarity.Cosine([][]float64{{0, 0}, {1, 1}})
		So(sims[0][0], ShouldEqual, 0)
		So(sims[0][1], ShouldEqual, 0)
		So(sims[1][1], ShouldAlmostEqual, 1.0, 1e-12)
	})

	Convey("No rows give an empty matrix", t, func() {
		So(similarity.Cosine(nil), ShouldBeEmpty)
	})
}

func TestTopN(t *testing.T) {
	sims := [][]float64{
		{1.0, 0.9, 0.2, 0.9, 0.456},
		{0.9, 1.0, 0.3, 0.1, 0.0},
		{0.2, 0.3, 1.0, 0.5, 0.6},
		{0.9, 0.1, 0.5, 1.0, 0.7},
		{0.456, 0.0, 0.6, 0.7, 1.0},
	}

	Convey("Given a viewer row", t, func() {
		got := similarity.TopN(sims, []int{0}, 3)

		Convey("Self is excluded and ties keep row order", func() {
			So(got[0], ShouldHaveLength, 3)
			So(got[0][0].Row, ShouldEqual, 1)
			So(got[0][1].Row, ShouldEqual, 3)
			So(got[0][2].Row, ShouldEqual, 4)
		})

		Convey("Percentages are rounded", func() {
			So(got[0][0].Percent, ShouldEqual, 90)
			So(got[0][2].Percent, ShouldEqual, 46)
		})
	})

	Convey("Several viewer rows are answered independently", t, func() {
		got := similarity.TopN(sims, []int{2, 4, 9}, 2)
		So(got, ShouldHaveLength, 2)
		So(got[2][0].Row, ShouldEqual, 4)
		So(got[4][0].Row, ShouldEqual, 3)
		So(got[4][0].Query, ShouldEqual, 4)
	})

	Convey("Fewer candidates than requested return what exists", t, func() {
		got := similarity.TopN([][]float64{{1, 0.4}, {0.4, 1}}, []int{0}, 3)
		So(got[0], ShouldHaveLength, 1)
		So(got[0][0].Percent, ShouldEqual, 40)

		So(similarity.TopN([][]float64{{1}}, []int{0}, 3)[0], ShouldBeEmpty)
		So(similarity.TopN(sims, []int{0}, 0), ShouldBeEmpty)
	})
}
