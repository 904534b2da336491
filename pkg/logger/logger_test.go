package logger_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tierlens/pkg/logger"
)

func TestLogger(t *testing.T) {
	ctx := context.Background()

	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf)), ShouldBeNil)

		Convey("Info lines carry the message, fields and source", func() {
			logger.Get().Info(ctx, "analysis finished", logger.String("category", "cats"), logger.Int("rows", 4))
			out := buf.String()
			So(out, ShouldContainSubstring, "analysis finished")
			So(out, ShouldContainSubstring, "category=cats")
			So(out, ShouldContainSubstring, "rows=4")
			So(out, ShouldContainSubstring, "logger_test.go")
		})

		Convey("Named loggers tag the component", func() {
			logger.Named("insight").Warn(ctx, "lookup failed", logger.Error(errors.New("boom")))
			So(buf.String(), ShouldContainSubstring, "component=insight")
			So(buf.String(), ShouldContainSubstring, "boom")
		})

		Convey("Debug is dropped at info level and emitted after lowering it", func() {
			logger.Get().Debug(ctx, "hidden")
			So(buf.String(), ShouldNotContainSubstring, "hidden")

			So(logger.SetLevelString("debug"), ShouldBeNil)
			logger.Get().Debug(ctx, "visible", logger.Duration("took", time.Second))
			So(buf.String(), ShouldContainSubstring, "visible")
			So(logger.SetLevelString("info"), ShouldBeNil)
		})
	})

	Convey("Given a JSON logger", t, func() {
		var buf bytes.Buffer
		So(logger.Init(logger.WithWriter(&buf), logger.WithFormat("json")), ShouldBeNil)
		logger.Get().Error(ctx, "factorization failed", logger.Bool("async", true), logger.Int64("job", 7))

		var line map[string]interface{}
		So(json.Unmarshal(buf.Bytes(), &line), ShouldBeNil)
		So(line["msg"], ShouldEqual, "factorization failed")
		So(line["async"], ShouldEqual, true)
		So(line["level"], ShouldEqual, "ERROR")
	})

	Convey("Invalid options are rejected", t, func() {
		So(logger.Init(logger.WithFormat("xml")), ShouldNotBeNil)
		So(logger.Init(logger.WithLevel("loud")), ShouldNotBeNil)
		So(logger.SetLevelString("trace"), ShouldNotBeNil)
		So(logger.Init(), ShouldBeNil)
		So(logger.Sync(), ShouldBeNil)
	})
}
