package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	config "github.com/okian/dispatch/internal/config"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given a clean environment", t, func() {
		ctx := context.Background()
		// GoConvey re-runs this closure for each leaf, but t.Setenv only
		// restores values when the test ends, so overrides set in one
		// branch would leak into its siblings. Clear them up front.
		for _, key := range []string{
			"DISPATCH_CONFIG",
			"DISPATCH_ADDR",
			"DISPATCH_LOG_LEVEL",
			"DISPATCH_STORE_DRIVER",
			"DISPATCH_POSTGRES_DSN",
		} {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}

		Convey("When loading without overrides", func() {
			cfg, err := config.Load(ctx)

			Convey("Then the defaults should apply", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.StoreDriver, ShouldEqual, config.StoreMemory)
			})
		})

		Convey("When environment variables override defaults", func() {
			t.Setenv("DISPATCH_ADDR", ":8081")
			t.Setenv("DISPATCH_LOG_LEVEL", "debug")

			cfg, err := config.Load(ctx)

			Convey("Then the overrides should win", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":8081")
				So(cfg.LogLevel, ShouldEqual, "debug")
			})
		})

		Convey("When a YAML file supplies values", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			content := []byte("addr: \":7070\"\nassign_max_attempts: 5\n")
			So(os.WriteFile(path, content, 0600), ShouldBeNil)
			t.Setenv("DISPATCH_CONFIG", path)

			cfg, err := config.Load(ctx)

			Convey("Then file values should override defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.AssignMaxAttempts, ShouldEqual, 5)
			})

			Convey("And env values should override the file", func() {
				t.Setenv("DISPATCH_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
			})
		})

		Convey("When the config file does not exist", func() {
			t.Setenv("DISPATCH_CONFIG", "/nonexistent/config.yaml")

			_, err := config.Load(ctx)

			Convey("Then the load error should be reported", func() {
				So(errors.Is(err, config.ErrLoadConfig), ShouldBeTrue)
			})
		})

		Convey("When the store driver is unknown", func() {
			t.Setenv("DISPATCH_STORE_DRIVER", "cassandra")

			_, err := config.Load(ctx)

			Convey("Then validation should fail", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When postgres is selected without a DSN", func() {
			t.Setenv("DISPATCH_STORE_DRIVER", config.StorePostgres)

			_, err := config.Load(ctx)

			Convey("Then validation should fail", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When postgres is selected with a DSN", func() {
			t.Setenv("DISPATCH_STORE_DRIVER", config.StorePostgres)
			t.Setenv("DISPATCH_POSTGRES_DSN", "postgres://localhost:5432/dispatch")

			cfg, err := config.Load(ctx)

			Convey("Then the configuration should be accepted", func() {
				So(err, ShouldBeNil)
				So(cfg.StoreDriver, ShouldEqual, config.StorePostgres)
				So(cfg.PostgresDSN, ShouldEqual, "postgres://localhost:5432/dispatch")
			})
		})
	})
}
