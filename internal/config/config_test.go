package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/allot/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.HoursPerWeek, convey.ShouldEqual, 40.0)
			convey.So(cfg.RecommendationLimit, convey.ShouldEqual, 10)
			convey.So(cfg.SolverMode, convey.ShouldEqual, config.SolverAuto)
			convey.So(cfg.SolverTimeout(), convey.ShouldEqual, 2*time.Second)
			convey.So(cfg.SolveWorkers, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.RepositoryDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with invalid fields", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
			want   string
		}{
			{"empty addr", func(c *config.Config) { c.Addr = " " }, "addr must not be empty"},
			{"zero week", func(c *config.Config) { c.HoursPerWeek = 0 }, "hours_per_week"},
			{"zero limit", func(c *config.Config) { c.RecommendationLimit = 0 }, "recommendation_limit"},
			{"unknown solver", func(c *config.Config) { c.SolverMode = "magic" }, "solver_mode"},
			{"zero timeout", func(c *config.Config) { c.SolverTimeoutMS = 0 }, "solver_timeout_ms"},
			{"zero nodes", func(c *config.Config) { c.SolverMaxNodes = 0 }, "solver_max_nodes"},
			{"zero queue", func(c *config.Config) { c.SolveQueueSize = 0 }, "solve_queue_size"},
			{"zero workers", func(c *config.Config) { c.SolveWorkers = 0 }, "solve_workers"},
			{"unknown driver", func(c *config.Config) { c.RepositoryDriver = "mongo" }, "repository_driver"},
			{"sqlite without path", func(c *config.Config) { c.RepositoryDriver = config.DriverSQLite; c.SQLitePath = "" }, "sqlite_path"},
			{"redis without addr", func(c *config.Config) { c.RepositoryDriver = config.DriverRedis; c.RedisAddr = "" }, "redis_addr"},
			{"unknown log format", func(c *config.Config) { c.LogFormat = "xml" }, "log_format"},
		}
		for _, tc := range cases {
			convey.Convey("When "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, tc.want)
			})
		}

		convey.Convey("When several fields are wrong", func() {
			cfg := config.New()
			cfg.Addr = ""
			cfg.SolveWorkers = 0
			err := cfg.Validate()

			convey.Convey("Then every problem is reported", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr")
				convey.So(err.Error(), convey.ShouldContainSubstring, "solve_workers")
			})
		})
	})
}
