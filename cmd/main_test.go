package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	app "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const team = `
employees:
  - id: e1
    name: Ada
    performance: 4
    skills:
      - {id: go, name: Go}
projects:
  - id: p1
    name: Atlas
    hours_needed: 20
    requirements:
      - {skill_id: go, employees_requested: 1}
`

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("ALLOT_ADDR", ":8080")
			_ = os.Setenv("ALLOT_SOLVE_QUEUE_SIZE", "1000")
			_ = os.Setenv("ALLOT_SOLVE_WORKERS", "4")
			defer func() {
				_ = os.Unsetenv("ALLOT_ADDR")
				_ = os.Unsetenv("ALLOT_SOLVE_QUEUE_SIZE")
				_ = os.Unsetenv("ALLOT_SOLVE_WORKERS")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SolveQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.SolveWorkers, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When testing metrics initialization", func() {
			convey.Convey("Then a manager on a private registry should be creatable", func() {
				manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMux(t *testing.T) {
	convey.Convey("Given a started service seeded from a working set", t, func() {
		path := filepath.Join(t.TempDir(), "team.yaml")
		convey.So(os.WriteFile(path, []byte(team), 0o600), convey.ShouldBeNil)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := app.New(app.WithFixture(path), app.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(newMux(ctx, svc))
		defer srv.Close()

		convey.Convey("Then the API and the OpenAPI document are served", func() {
			for _, path := range []string{"/healthz", "/openapi.yaml", "/metrics", "/stats", "/employees/e1/capacity"} {
				resp, err := http.Get(srv.URL + path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
				_ = resp.Body.Close()
			}
		})

		convey.Convey("Then a recommendation can be requested", func() {
			resp, err := http.Post(srv.URL+"/recommendations", "application/json", strings.NewReader(`{"project_id":"p1"}`))
			convey.So(err, convey.ShouldBeNil)
			defer resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a valid configuration", t, func() {
		cfg := config.New()
		cfg.Addr = "127.0.0.1:0"
		cfg.SolveWorkers = 1

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- run(ctx, cfg) }()
			time.Sleep(50 * time.Millisecond)
			cancel()

			convey.Convey("Then run returns cleanly", func() {
				select {
				case err := <-done:
					convey.So(err, convey.ShouldBeNil)
				case <-time.After(5 * time.Second):
					convey.So("run did not return", convey.ShouldBeEmpty)
				}
			})
		})
	})

	convey.Convey("Given an unusable repository driver", t, func() {
		cfg := config.New()
		cfg.RepositoryDriver = "etcd"

		convey.Convey("Then run fails before serving", func() {
			convey.So(run(context.Background(), cfg), convey.ShouldNotBeNil)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the background updaters", t, func() {
		svc := app.New()

		convey.Convey("Then they return when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			convey.So(func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
			}, convey.ShouldNotPanic)
		})

		convey.Convey("Then single updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})
	})
}
