package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	service "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/planning"
	. "github.com/smartystreets/goconvey/convey"
)

const team = `
hours_per_week: 40
employees:
  - id: e1
    name: Ada
    performance: 4
    skills:
      - {id: go, name: Go}
      - {id: sql, name: SQL}
  - id: e2
    name: Ben
    performance: 3
    skills:
      - {id: go, name: Go}
projects:
  - id: p1
    name: Atlas
    hours_needed: 40
    requirements:
      - {skill_id: go, employees_requested: 1}
  - id: p2
    name: Borealis
    hours_needed: 20
    requirements:
      - {skill_id: sql, employees_requested: 1}
`

func writeTeam(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "team.yaml")
	if err := os.WriteFile(path, []byte(team), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServiceIntegration(t *testing.T) {
	fixturePath := writeTeam(t)
	mr := miniredis.RunT(t)

	drivers := []struct {
		name string
		opts func() []service.Option
	}{
		{config.DriverMemory, func() []service.Option { return nil }},
		{config.DriverSQLite, func() []service.Option {
			return []service.Option{service.WithSQLitePath(filepath.Join(t.TempDir(), "allot.db"))}
		}},
		{config.DriverRedis, func() []service.Option {
			mr.FlushAll()
			return []service.Option{service.WithRedis(mr.Addr(), "it")}
		}},
	}

	for _, d := range drivers {
		Convey("Given a service seeded from a working set on the "+d.name+" driver", t, func() {
			opts := append([]service.Option{
				service.WithRepositoryDriver(d.name),
				service.WithFixture(fixturePath),
				service.WithWorkerCount(2),
				service.WithQueueSize(16),
				service.WithSolver(config.SolverAuto, time.Second, 0),
			}, d.opts()...)
			svc := service.New(opts...)
			defer svc.Stop()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)

			Convey("When recommending for a project", func() {
				out, err := svc.Recommend(ctx, "p1")
				So(err, ShouldBeNil)

				Convey("Then the stronger candidate ranks first", func() {
					So(out.Status, ShouldEqual, planning.StatusSuccess)
					So(out.Recommendations, ShouldHaveLength, 2)
					So(out.Recommendations[0].EmployeeID, ShouldEqual, "e1")
				})

				Convey("And the solve went through the worker pool", func() {
					So(svc.GetStats()["solvesProcessed"], ShouldEqual, 1)
				})
			})

			Convey("When optimizing and applying the plan", func() {
				plan, err := svc.Optimize(ctx, nil, true)
				So(err, ShouldBeNil)
				So(plan.Assignments, ShouldNotBeEmpty)
				So(plan.Proposals, ShouldHaveLength, len(plan.Assignments))
				for _, p := range plan.Proposals {
					So(p.Err, ShouldBeNil)
					So(p.Allocation.Status, ShouldEqual, model.AllocationProposed)
				}

				Convey("Then proposals hold capacity and can be confirmed", func() {
					first := plan.Proposals[0].Assignment
					held := model.Percent(0)
					for _, a := range plan.Assignments {
						if a.EmployeeID == first.EmployeeID {
							held += a.Percentage
						}
					}
					capacity, err := svc.Capacity(ctx, first.EmployeeID)
					So(err, ShouldBeNil)
					So(capacity.Remaining, ShouldEqual, model.Full-held)

					al, err := svc.Confirm(ctx, first.EmployeeID, first.ProjectID)
					So(err, ShouldBeNil)
					So(al.Status, ShouldEqual, model.AllocationConfirmed)

					stats := svc.GetStats()
					So(stats["activeAllocations"], ShouldEqual, len(plan.Proposals))
				})

				Convey("Then completing the projects frees everyone", func() {
					for _, id := range []string{"p1", "p2"} {
						_, err := svc.CompleteProject(ctx, id)
						So(err, ShouldBeNil)
					}
					for _, id := range []string{"e1", "e2"} {
						capacity, err := svc.Capacity(ctx, id)
						So(err, ShouldBeNil)
						So(capacity.Remaining, ShouldEqual, model.Full)
					}
				})
			})

			Convey("When allocating and removing directly", func() {
				_, err := svc.AllocateBatch(ctx, "p2", []lifecycle.AllocateRequest{
					{EmployeeID: "e1", Percentage: model.PercentFromFloat(50), SkillName: "SQL"},
				})
				So(err, ShouldBeNil)

				p, err := svc.SetProjectStatus(ctx, "p2", model.ProjectOnHold)
				So(err, ShouldBeNil)
				So(p.Status, ShouldEqual, model.ProjectOnHold)

				removed, err := svc.Remove(ctx, "e1", "p2")
				So(err, ShouldBeNil)
				So(removed.Percentage, ShouldEqual, model.PercentFromFloat(50))

				capacity, err := svc.Capacity(ctx, "e1")
				So(err, ShouldBeNil)
				So(capacity.Remaining, ShouldEqual, model.Full)
			})
		})
	}
}
