package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	service "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should use the in-memory driver", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["driver"], ShouldEqual, config.DriverMemory)
			So(stats["solverMode"], ShouldEqual, "auto")
		})
	})

	Convey("Given options derived from configuration", t, func() {
		cfg := config.New()
		cfg.SolveWorkers = 3
		cfg.SolveQueueSize = 8
		cfg.SolverMode = config.SolverHeuristic
		svc := service.New(service.OptionsFromConfig(cfg)...)

		Convey("Then they are applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 3)
			So(stats["queueSize"], ShouldEqual, 8)
			So(stats["solverMode"], ShouldEqual, config.SolverHeuristic)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["queueLength"], ShouldEqual, 0)
				So(stats["trackedEmployees"], ShouldEqual, 0)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given an unknown repository driver", t, func() {
		svc := service.New(service.WithRepositoryDriver("etcd"))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(errors.Is(err, service.ErrUnknownDriver), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a fixture that does not exist", t, func() {
		svc := service.New(service.WithFixture("/nonexistent/team.yaml"))

		Convey("Then Start fails", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithWorkerCount(1))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And operations are refused", func() {
				_, err := svc.Recommend(ctx, "p1")
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})

			Convey("And stopping again is a no-op", func() {
				So(func() { svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

func TestService_NotStarted(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New()
		ctx := context.Background()

		Convey("Then every operation reports ErrNotStarted", func() {
			_, err := svc.Recommend(ctx, "p1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Optimize(ctx, nil, false)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.AllocateBatch(ctx, "p1", nil)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Remove(ctx, "e1", "p1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Confirm(ctx, "e1", "p1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.CompleteProject(ctx, "p1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.SetProjectStatus(ctx, "p1", "active")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Capacity(ctx, "e1")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}
