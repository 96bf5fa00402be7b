package fixture_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/fixture"
	. "github.com/smartystreets/goconvey/convey"
)

const sample = `
hours_per_week: 40
employees:
  - id: e1
    name: Ada
    performance: 4
    skills:
      - {id: go, name: Go, proficiency: 5}
      - {id: sql, name: SQL}
  - id: e2
    name: Ben
    performance: 3
    active: false
    skills:
      - {id: go, name: Go}
projects:
  - id: p1
    name: Atlas
    hours_needed: 40
    priority: 3
    requirements:
      - {skill_id: go, employees_requested: 1}
  - id: p2
    name: Borealis
    hours_needed: 20
    status: active
    requirements: []
allocations:
  - {id: a1, employee_id: e1, project_id: p2, percentage: 37.5}
  - {id: a2, employee_id: e1, project_id: p1, percentage: 50, status: completed}
`

func TestParse(t *testing.T) {
	Convey("Given a working set document", t, func() {
		ws, err := fixture.Parse([]byte(sample))
		So(err, ShouldBeNil)

		Convey("Then employees, projects and allocations are read", func() {
			So(ws.Employees, ShouldHaveLength, 2)
			So(ws.Employees[0].Skills[0].Proficiency, ShouldEqual, 5.0)
			So(*ws.Employees[1].Active, ShouldBeFalse)
			So(ws.Projects[0].Requirements, ShouldHaveLength, 1)
			So(ws.Allocations, ShouldHaveLength, 2)
		})

		Convey("When seeding a repository", func() {
			ctx := context.Background()
			repo := repository.NewMemoryStore()
			created := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
			So(ws.Seed(ctx, repo, created), ShouldBeNil)

			Convey("Then capacity follows the active allocations", func() {
				e1, err := repo.Employee(ctx, "e1")
				So(err, ShouldBeNil)
				So(e1.CapacityRemaining, ShouldEqual, model.PercentFromFloat(62.5))
				So(e1.Role, ShouldEqual, model.RoleEmployee)
				So(e1.Active, ShouldBeTrue)

				e2, err := repo.Employee(ctx, "e2")
				So(err, ShouldBeNil)
				So(e2.Active, ShouldBeFalse)
				So(e2.CapacityRemaining, ShouldEqual, model.Full)
			})

			Convey("Then projects default to planning", func() {
				p1, err := repo.Project(ctx, "p1")
				So(err, ShouldBeNil)
				So(p1.Status, ShouldEqual, model.ProjectPlanning)
				reqs, err := repo.SkillRequirements(ctx, "p1")
				So(err, ShouldBeNil)
				So(reqs, ShouldResemble, []model.SkillRequirement{{ProjectID: "p1", SkillID: "go", EmployeesRequested: 1}})
			})

			Convey("Then only the active allocation is active", func() {
				active, err := repo.ActiveAllocations(ctx, repository.AllocationFilter{EmployeeID: "e1"})
				So(err, ShouldBeNil)
				So(active, ShouldHaveLength, 1)
				So(active[0].ID, ShouldEqual, "a1")
				So(active[0].HoursAllocated, ShouldEqual, 15.0)
				So(active[0].CreatedAt, ShouldEqual, created)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given broken working sets", t, func() {
		cases := map[string]string{
			"unknown field":      "employees: []\nprojects: []\nbogus: 1\n",
			"duplicate employee": "employees: [{id: e1}, {id: e1}]\nprojects: []\n",
			"bad performance":    "employees: [{id: e1, performance: 9}]\nprojects: []\n",
			"bad status":         "employees: []\nprojects: [{id: p1, status: archived}]\n",
			"dangling employee":  "employees: []\nprojects: [{id: p1}]\nallocations: [{id: a1, employee_id: x, project_id: p1, percentage: 10}]\n",
			"over allocated": `employees: [{id: e1}]
projects: [{id: p1}, {id: p2}]
allocations:
  - {id: a1, employee_id: e1, project_id: p1, percentage: 60}
  - {id: a2, employee_id: e1, project_id: p2, percentage: 50}
`,
			"duplicate pair": `employees: [{id: e1}]
projects: [{id: p1}]
allocations:
  - {id: a1, employee_id: e1, project_id: p1, percentage: 10}
  - {id: a2, employee_id: e1, project_id: p1, percentage: 10}
`,
			"missing allocation id": "employees: [{id: e1}]\nprojects: [{id: p1}]\nallocations: [{employee_id: e1, project_id: p1, percentage: 10}]\n",
		}
		for name, doc := range cases {
			Convey("When the set has "+name, func() {
				_, err := fixture.Parse([]byte(doc))
				So(errors.Is(err, fixture.ErrInvalidFixture), ShouldBeTrue)
			})
		}
	})
}

func TestLoadAndMarshal(t *testing.T) {
	Convey("Given a generated working set", t, func() {
		ws, err := fixture.Generate(fixture.GenerateOptions{Employees: 12, Projects: 5, MaxSkills: 3, Seed: 7})
		So(err, ShouldBeNil)

		Convey("Then it is reproducible for a seed", func() {
			again, err := fixture.Generate(fixture.GenerateOptions{Employees: 12, Projects: 5, MaxSkills: 3, Seed: 7})
			So(err, ShouldBeNil)
			So(again, ShouldResemble, ws)

			other, err := fixture.Generate(fixture.GenerateOptions{Employees: 12, Projects: 5, MaxSkills: 3, Seed: 8})
			So(err, ShouldBeNil)
			So(other.Employees[0].ID, ShouldNotEqual, ws.Employees[0].ID)
		})

		Convey("Then every entity is well formed", func() {
			So(ws.Employees, ShouldHaveLength, 12)
			So(ws.Projects, ShouldHaveLength, 5)
			for _, e := range ws.Employees {
				So(len(e.Skills), ShouldBeBetweenOrEqual, 1, 3)
				So(e.Performance, ShouldBeBetweenOrEqual, 1.0, 5.0)
			}
			for _, p := range ws.Projects {
				So(len(p.Requirements), ShouldBeBetweenOrEqual, 1, 3)
				So(p.HoursNeeded, ShouldBeGreaterThan, 0)
			}
			So(ws.Validate(), ShouldBeNil)
		})

		Convey("When written to disk and loaded back", func() {
			data, err := fixture.Marshal(ws)
			So(err, ShouldBeNil)
			path := filepath.Join(t.TempDir(), "set.yaml")
			So(os.WriteFile(path, data, 0o600), ShouldBeNil)

			back, err := fixture.Load(path)

			Convey("Then the same set comes back", func() {
				So(err, ShouldBeNil)
				So(back, ShouldResemble, ws)
			})
		})

		Convey("When the file is missing", func() {
			_, err := fixture.Load(filepath.Join(t.TempDir(), "missing.yaml"))
			So(err, ShouldNotBeNil)
		})

		Convey("When sizes are negative", func() {
			_, err := fixture.Generate(fixture.GenerateOptions{Employees: -1})
			So(errors.Is(err, fixture.ErrInvalidFixture), ShouldBeTrue)
		})
	})
}
