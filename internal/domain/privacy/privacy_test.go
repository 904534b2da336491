package privacy_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/internal/domain/model"
	"github.com/okian/tierlens/internal/domain/privacy"
	"github.com/okian/tierlens/pkg/logger"
)

type groups map[[2]int64]bool

func (g groups) SharesGroup(_ context.Context, a, b int64) (bool, error) {
	if a == 99 || b == 99 {
		return true, errors.New("membership backend down")
	}
	return g[[2]int64{a, b}] || g[[2]int64{b, a}], nil
}

type directory map[int64]model.User

func (d directory) User(_ context.Context, id int64) (model.User, error) {
	u, ok := d[id]
	if !ok {
		return model.User{}, errors.New("no such user")
	}
	return u, nil
}

func TestGate(t *testing.T) {
	ctx := context.Background()
	_ = logger.Init()

	Convey("Given a gate where users 1 and 2 share a group", t, func() {
		dir := directory{
			1: {ID: 1, DisplayName: "ada", AvatarURL: "https://img/ada.png"},
			2: {ID: 2, DisplayName: "bob"},
			3: {ID: 3, DisplayName: "cy"},
		}
		gate := privacy.NewGate(groups{{1, 2}: true}, privacy.WithDirectory(dir))

		Convey("Owners always see their own identity", func() {
			So(gate.Reveal(ctx, 3, 3), ShouldBeTrue)
			So(gate.Reveal(ctx, 99, 99), ShouldBeTrue)
		})

		Convey("Group peers are revealed in both directions", func() {
			So(gate.Reveal(ctx, 1, 2), ShouldBeTrue)
			So(gate.Reveal(ctx, 2, 1), ShouldBeTrue)
		})

		Convey("Strangers are hidden", func() {
			So(gate.Reveal(ctx, 1, 3), ShouldBeFalse)
		})

		Convey("A failing membership lookup hides the owner", func() {
			So(gate.Reveal(ctx, 1, 99), ShouldBeFalse)
		})

		Convey("Present resolves revealed owners through the directory", func() {
			id := gate.Present(ctx, 2, 1)
			So(id.DisplayName, ShouldEqual, "ada")
			So(id.AvatarURL, ShouldEqual, "https://img/ada.png")
			So(id.Revealed, ShouldBeTrue)

			So(gate.Present(ctx, 1, 2).AvatarURL, ShouldEqual, privacy.DefaultAvatar)
		})

		Convey("Present hides strangers without exposing their id", func() {
			id := gate.Present(ctx, 1, 3)
			So(id, ShouldResemble, privacy.Anonymous())
			So(id.UserID, ShouldEqual, 0)
			So(privacy.Label(id, "Best cats"), ShouldEqual, "Anonymous - Best cats")
		})

		Convey("Unresolvable owners fall back to Unknown", func() {
			id := gate.Present(ctx, 42, 42)
			So(id.DisplayName, ShouldEqual, privacy.UnknownName)
			So(id.AvatarURL, ShouldEqual, privacy.DefaultAvatar)
			So(id.Revealed, ShouldBeTrue)
		})
	})

	Convey("Given a gate without collaborators", t, func() {
		gate := privacy.NewGate(nil)
		So(gate.Reveal(ctx, 1, 1), ShouldBeTrue)
		So(gate.Reveal(ctx, 1, 2), ShouldBeFalse)
		So(gate.Resolve(ctx, 1).DisplayName, ShouldEqual, privacy.UnknownName)
	})
}
