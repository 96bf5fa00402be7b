// Package repotest holds the behaviour every repository adapter must share.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty repository for one subtest.
type Factory func(t *testing.T) repository.Repository

// Run exercises repo against the Repository contract.
func Run(t *testing.T, open Factory) {
	t.Helper()

	t.Run("employees round trip with skills", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		alice := model.Employee{
			ID: "e1", Name: "Alice", Performance: 4.5, CapacityRemaining: model.PercentFromFloat(62.5),
			Active: true, Role: model.RoleEmployee,
			Skills: []model.Skill{{ID: "go", Name: "Go", Proficiency: 4}, {ID: "sql", Name: "SQL"}},
		}
		bob := model.Employee{ID: "e2", Name: "Bob", Active: false, Role: model.RoleEmployee, CapacityRemaining: model.Full}
		mgr := model.Employee{ID: "m1", Name: "Mia", Active: true, Role: model.RoleManager, CapacityRemaining: model.Full}
		for _, e := range []model.Employee{bob, alice, mgr} {
			require.NoError(t, repo.SaveEmployee(ctx, e))
		}

		got, err := repo.Employee(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, alice.Name, got.Name)
		assert.Equal(t, alice.CapacityRemaining, got.CapacityRemaining)
		assert.InDelta(t, alice.Performance, got.Performance, 1e-9)
		assert.ElementsMatch(t, alice.Skills, got.Skills)

		all, err := repo.Employees(ctx, repository.EmployeeFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "e1", all[0].ID)

		active, err := repo.Employees(ctx, repository.EmployeeFilter{ActiveOnly: true, Role: model.RoleEmployee})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "e1", active[0].ID)

		byID, err := repo.Employees(ctx, repository.EmployeeFilter{IDs: []string{"e2", "m1"}})
		require.NoError(t, err)
		assert.Len(t, byID, 2)

		alice.CapacityRemaining = model.Full
		alice.Skills = alice.Skills[:1]
		require.NoError(t, repo.SaveEmployee(ctx, alice))
		got, err = repo.Employee(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, model.Full, got.CapacityRemaining)
		assert.Len(t, got.Skills, 1)

		_, err = repo.Employee(ctx, "nobody")
		assert.True(t, errors.Is(err, fault.ErrNotFound))
	})

	t.Run("projects and ordered requirements", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()

		p1 := model.Project{ID: "p1", Name: "Atlas", HoursNeeded: 40, Priority: 2, Status: model.ProjectPlanning, ManagerID: "m1"}
		p2 := model.Project{ID: "p2", Name: "Borealis", HoursNeeded: 12.5, Priority: 5, Status: model.ProjectActive}
		require.NoError(t, repo.SaveProject(ctx, p1))
		require.NoError(t, repo.SaveProject(ctx, p2))

		got, err := repo.Project(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, p1, got)

		planning, err := repo.Projects(ctx, repository.ProjectFilter{Statuses: []model.ProjectStatus{model.ProjectPlanning}})
		require.NoError(t, err)
		require.Len(t, planning, 1)
		assert.Equal(t, "p1", planning[0].ID)

		p1.Status = model.ProjectActive
		require.NoError(t, repo.SaveProject(ctx, p1))
		got, err = repo.Project(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, model.ProjectActive, got.Status)

		reqs := []model.SkillRequirement{
			{SkillID: "sql", EmployeesRequested: 1},
			{SkillID: "go", EmployeesRequested: 2},
		}
		require.NoError(t, repo.SaveSkillRequirements(ctx, "p1", reqs))
		gotReqs, err := repo.SkillRequirements(ctx, "p1")
		require.NoError(t, err)
		require.Len(t, gotReqs, 2)
		assert.Equal(t, "sql", gotReqs[0].SkillID)
		assert.Equal(t, "go", gotReqs[1].SkillID)
		assert.Equal(t, "p1", gotReqs[1].ProjectID)
		assert.Equal(t, 2, gotReqs[1].EmployeesRequested)

		require.NoError(t, repo.SaveSkillRequirements(ctx, "p1", reqs[1:]))
		gotReqs, err = repo.SkillRequirements(ctx, "p1")
		require.NoError(t, err)
		assert.Len(t, gotReqs, 1)

		none, err := repo.SkillRequirements(ctx, "p2")
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = repo.Project(ctx, "p9")
		assert.True(t, errors.Is(err, fault.ErrNotFound))

		assert.True(t, errors.Is(repo.SaveProject(ctx, model.Project{ID: "bad", Status: "archived"}), repository.ErrInvalidRecord))
	})

	t.Run("allocations filter active records", func(t *testing.T) {
		repo := open(t)
		ctx := context.Background()
		conf := 0.87
		created := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

		allocs := []model.Allocation{
			{ID: "a1", EmployeeID: "e1", ProjectID: "p1", Percentage: model.PercentFromFloat(60), HoursAllocated: 24,
				Status: model.AllocationConfirmed, CreatedAt: created},
			{ID: "a2", EmployeeID: "e1", ProjectID: "p2", Percentage: model.PercentFromFloat(20), HoursAllocated: 8,
				Status: model.AllocationProposed, Recommended: true, Confidence: &conf, CreatedAt: created},
			{ID: "a3", EmployeeID: "e2", ProjectID: "p1", Percentage: model.PercentFromFloat(50), HoursAllocated: 20,
				Status: model.AllocationCompleted, CreatedAt: created},
		}
		for _, a := range allocs {
			require.NoError(t, repo.SaveAllocation(ctx, a))
		}

		byEmployee, err := repo.ActiveAllocations(ctx, repository.AllocationFilter{EmployeeID: "e1"})
		require.NoError(t, err)
		require.Len(t, byEmployee, 2)
		assert.Equal(t, "a1", byEmployee[0].ID)
		assert.Equal(t, allocs[0].Percentage, byEmployee[0].Percentage)
		assert.True(t, byEmployee[0].CreatedAt.Equal(created))
		require.NotNil(t, byEmployee[1].Confidence)
		assert.InDelta(t, conf, *byEmployee[1].Confidence, 1e-9)
		assert.True(t, byEmployee[1].Recommended)
		assert.Nil(t, byEmployee[0].Confidence)

		byProject, err := repo.ActiveAllocations(ctx, repository.AllocationFilter{ProjectID: "p1"})
		require.NoError(t, err)
		require.Len(t, byProject, 1)
		assert.Equal(t, "a1", byProject[0].ID)

		allocs[0].Status = model.AllocationCompleted
		require.NoError(t, repo.SaveAllocation(ctx, allocs[0]))
		byProject, err = repo.ActiveAllocations(ctx, repository.AllocationFilter{ProjectID: "p1"})
		require.NoError(t, err)
		assert.Empty(t, byProject)

		require.NoError(t, repo.DeleteAllocation(ctx, "a2"))
		assert.True(t, errors.Is(repo.DeleteAllocation(ctx, "a2"), fault.ErrNotFound))
		all, err := repo.ActiveAllocations(ctx, repository.AllocationFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)

		bad := allocs[1]
		bad.ID = "a9"
		bad.Percentage = 0
		assert.True(t, errors.Is(repo.SaveAllocation(ctx, bad), repository.ErrInvalidRecord))
	})

	t.Run("cancelled context is honoured", func(t *testing.T) {
		repo := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := repo.Employees(ctx, repository.EmployeeFilter{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
