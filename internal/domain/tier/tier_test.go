package tier_test

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/internal/domain/tier"
)

func TestExtract(t *testing.T) {
	Convey("Given a tier assignment", t, func() {
		Convey("S and B entries map to 5 and 3", func() {
			got := tier.Extract(tier.Assignment{"S": {"1"}, "B": {"2"}})
			So(got, ShouldResemble, map[int64]int{1: 5, 2: 3})
		})

		Convey("Every canonical tier has its rating", func() {
			got := tier.Extract(tier.Assignment{"S": {"1"}, "A": {"2"}, "B": {"3"}, "C": {"4"}, "D": {"5"}})
			So(got, ShouldResemble, map[int64]int{1: 5, 2: 4, 3: 3, 4: 2, 5: 1})
		})

		Convey("Unknown tiers are ignored without error", func() {
			got := tier.Extract(tier.Assignment{"S": {"1"}, "F": {"2"}, "unranked": {"3"}})
			So(got, ShouldResemble, map[int64]int{1: 5})
		})

		Convey("Uninterpretable ids are skipped", func() {
			got := tier.Extract(tier.Assignment{"A": {"7", "abc", "", "1.5", " 8 "}})
			So(got, ShouldResemble, map[int64]int{7: 4, 8: 4})
		})

		Convey("An image listed twice keeps the higher tier", func() {
			got := tier.Extract(tier.Assignment{"D": {"4"}, "A": {"4"}})
			So(got, ShouldResemble, map[int64]int{4: 4})
		})

		Convey("An empty assignment has no ratings", func() {
			So(tier.Extract(nil), ShouldBeEmpty)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Given stored payloads", t, func() {
		Convey("String and numeric ids decode alike", func() {
			a, err := tier.Decode([]byte(`{"S":["1", 2], "C":[3.0], "D":[]}`))
			So(err, ShouldBeNil)
			So(tier.Extract(a), ShouldResemble, map[int64]int{1: 5, 2: 5, 3: 2})
		})

		Convey("Non-id values are skipped at extraction", func() {
			got := tier.ExtractPayload([]byte(`{"A":[null, true, {"id":1}, "9"]}`))
			So(got, ShouldResemble, map[int64]int{9: 4})
		})

		Convey("Non-list values under extra keys or tiers do not sink the payload", func() {
			got := tier.ExtractPayload([]byte(`{"S":["1"],"B":["2"],"meta":{"v":1}}`))
			So(got, ShouldResemble, map[int64]int{1: 5, 2: 3})

			a, err := tier.Decode([]byte(`{"A":"7","C":["4"],"version":3}`))
			So(err, ShouldBeNil)
			So(a, ShouldNotContainKey, "A")
			So(a, ShouldNotContainKey, "version")
			So(tier.Extract(a), ShouldResemble, map[int64]int{4: 2})
		})

		Convey("A malformed payload reports an error and extracts nothing", func() {
			_, err := tier.Decode([]byte(`["S"]`))
			So(errors.Is(err, tier.ErrMalformedPayload), ShouldBeTrue)
			So(tier.ExtractPayload([]byte(`{`)), ShouldBeEmpty)
		})

		Convey("An empty payload is an empty assignment", func() {
			a, err := tier.Decode(nil)
			So(err, ShouldBeNil)
			So(a, ShouldBeEmpty)
		})

		Convey("Encode round-trips through Extract", func() {
			payload, err := tier.Encode(tier.Assignment{"B": {"11"}})
			So(err, ShouldBeNil)
			So(tier.ExtractPayload(payload), ShouldResemble, map[int64]int{11: 3})
		})
	})
}

func TestLabels(t *testing.T) {
	Convey("Ratings and labels are inverse", t, func() {
		for _, l := range tier.Order {
			r, ok := l.Rating()
			So(ok, ShouldBeTrue)
			back, ok := tier.LabelFor(r)
			So(ok, ShouldBeTrue)
			So(back, ShouldEqual, l)
		}
		_, ok := tier.LabelFor(0)
		So(ok, ShouldBeFalse)
		_, ok = tier.Label("X").Rating()
		So(ok, ShouldBeFalse)
	})
}
