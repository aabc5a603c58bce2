package main

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRootCmdFlags(t *testing.T) {
	Convey("Given the sample-events command", t, func() {
		cmd := newRootCmd()

		Convey("Then defaults point at a local service", func() {
			flags := cmd.Flags()
			url, err := flags.GetString("url")
			So(err, ShouldBeNil)
			So(url, ShouldEqual, "http://localhost:9080")

			events, err := flags.GetInt("events")
			So(err, ShouldBeNil)
			So(events, ShouldEqual, defaultNumEvents)

			wait, err := flags.GetDuration("wait")
			So(err, ShouldBeNil)
			So(wait, ShouldEqual, time.Minute)
		})

		Convey("When flags are parsed", func() {
			So(cmd.ParseFlags([]string{"--events", "25", "--org", "acme", "--verbose"}), ShouldBeNil)

			Convey("Then they override the defaults", func() {
				events, _ := cmd.Flags().GetInt("events")
				org, _ := cmd.Flags().GetString("org")
				verbose, _ := cmd.Flags().GetBool("verbose")
				So(events, ShouldEqual, 25)
				So(org, ShouldEqual, "acme")
				So(verbose, ShouldBeTrue)
			})
		})
	})
}
