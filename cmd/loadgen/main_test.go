package main

import (
	"bytes"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap/zapcore"

	"github.com/okian/ladder/pkg/logger"
)

func TestApp(t *testing.T) {
	logger.InitWithCore(zapcore.NewNopCore())

	convey.Convey("Given the loadgen app", t, func() {
		app := newApp()
		var out bytes.Buffer
		app.Writer = &out

		convey.Convey("When it runs without a secret", func() {
			t.Setenv("LADDER_JWT_SECRET", "")
			err := app.Run([]string{"loadgen", "--url", "http://127.0.0.1:1", "--players", "1"})

			convey.Convey("Then it fails before touching the service", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "secret")
				convey.So(out.String(), convey.ShouldContainSubstring, "submitted=0")
			})
		})

		convey.Convey("When the service is unreachable", func() {
			err := app.Run([]string{"loadgen", "--url", "http://127.0.0.1:1", "--secret", "s", "--timeout", "200ms"})

			convey.Convey("Then the health check fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "health check")
			})
		})

		convey.Convey("When asked for help", func() {
			err := app.Run([]string{"loadgen", "--help"})

			convey.Convey("Then the flags are listed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "--players")
				convey.So(out.String(), convey.ShouldContainSubstring, "--db-dsn")
			})
		})
	})
}
