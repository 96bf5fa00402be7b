package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/allot/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"ALLOT_CONFIG", "ALLOT_ADDR", "ALLOT_SOLVE_QUEUE_SIZE", "ALLOT_SOLVE_WORKERS",
	"ALLOT_SOLVER_MODE", "ALLOT_HOURS_PER_WEEK", "ALLOT_REPOSITORY_DRIVER",
	"ALLOT_SQLITE_PATH", "ALLOT_LOG_LEVEL",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "allot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.SolveQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.RepositoryDriver, convey.ShouldEqual, config.DriverMemory)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("ALLOT_ADDR", ":8080")
			_ = os.Setenv("ALLOT_SOLVE_QUEUE_SIZE", "128")
			_ = os.Setenv("ALLOT_SOLVE_WORKERS", "3")
			_ = os.Setenv("ALLOT_SOLVER_MODE", "heuristic")
			_ = os.Setenv("ALLOT_HOURS_PER_WEEK", "37.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SolveQueueSize, convey.ShouldEqual, 128)
				convey.So(cfg.SolveWorkers, convey.ShouldEqual, 3)
				convey.So(cfg.SolverMode, convey.ShouldEqual, config.SolverHeuristic)
				convey.So(cfg.HoursPerWeek, convey.ShouldEqual, 37.5)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, `
addr: ":9090"
solve_queue_size: 256
repository_driver: sqlite
sqlite_path: /var/lib/allot/allot.db
solver_timeout_ms: 500
`)
			_ = os.Setenv("ALLOT_CONFIG", path)
			_ = os.Setenv("ALLOT_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SolveQueueSize, convey.ShouldEqual, 256)
				convey.So(cfg.RepositoryDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.SQLitePath, convey.ShouldEqual, "/var/lib/allot/allot.db")
				convey.So(cfg.SolverTimeoutMS, convey.ShouldEqual, 500)
				convey.So(cfg.RecommendationLimit, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("ALLOT_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("ALLOT_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the merged config is invalid", func() {
			_ = os.Setenv("ALLOT_REPOSITORY_DRIVER", "mongo")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "repository_driver")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}
