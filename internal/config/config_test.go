package config_test

import (
	"testing"

	config "github.com/okian/dispatch/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given default configuration", t, func() {
		cfg := config.New()

		Convey("Then it should carry the expected defaults", func() {
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.Addr, ShouldEqual, ":9080")
			So(cfg.StoreDriver, ShouldEqual, config.StoreMemory)
			So(cfg.PostgresDSN, ShouldEqual, "")
			So(cfg.AssignMaxAttempts, ShouldEqual, 3)
			So(cfg.LeadMaxAttempts, ShouldEqual, 3)
		})
	})
}
