package types_test

import (
	"testing"

	"github.com/okian/ladder/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTimeframe(t *testing.T) {
	Convey("Given timeframe names", t, func() {
		Convey("When the name is empty", func() {
			tf, err := types.ParseTimeframe("")
			So(err, ShouldBeNil)
			So(tf, ShouldEqual, types.AllTime)
		})

		Convey("When the name uses mixed case", func() {
			tf, err := types.ParseTimeframe(" Weekly ")
			So(err, ShouldBeNil)
			So(tf, ShouldEqual, types.Weekly)
			So(tf.Valid(), ShouldBeTrue)
		})

		Convey("When the name is unknown", func() {
			_, err := types.ParseTimeframe("yearly")
			So(err, ShouldNotBeNil)
			So(types.Timeframe("yearly").Valid(), ShouldBeFalse)
		})
	})
}
