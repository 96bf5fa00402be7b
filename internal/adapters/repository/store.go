// Package repository defines the persistence contract of the allocation engine
// and its in-memory implementation. Durable adapters live in sub-packages.
package repository

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/okian/allot/internal/domain/model"
)

// EmployeeFilter narrows Employees. The zero value matches everyone.
type EmployeeFilter struct {
	IDs        []string
	ActiveOnly bool
	Role       string
}

// Match reports whether e passes the filter.
func (f EmployeeFilter) Match(e model.Employee) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if f.ActiveOnly && !e.Active {
		return false
	}
	return f.Role == "" || f.Role == e.Role
}

// ProjectFilter narrows Projects. The zero value matches every project.
type ProjectFilter struct {
	IDs      []string
	Statuses []model.ProjectStatus
}

// Match reports whether p passes the filter.
func (f ProjectFilter) Match(p model.Project) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, p.ID) {
		return false
	}
	return len(f.Statuses) == 0 || slices.Contains(f.Statuses, p.Status)
}

// AllocationFilter narrows ActiveAllocations by employee and/or project.
type AllocationFilter struct {
	EmployeeID string
	ProjectID  string
}

// Match reports whether a is active and passes the filter.
func (f AllocationFilter) Match(a model.Allocation) bool {
	if !a.Status.Active() {
		return false
	}
	if f.EmployeeID != "" && a.EmployeeID != f.EmployeeID {
		return false
	}
	return f.ProjectID == "" || a.ProjectID == f.ProjectID
}

// Repository is everything the engine reads from and writes to storage.
type Repository interface {
	Employees(ctx context.Context, f EmployeeFilter) ([]model.Employee, error)
	// Employee returns ErrNotFound for unknown ids.
	Employee(ctx context.Context, id string) (model.Employee, error)
	// Project returns ErrNotFound for unknown ids.
	Project(ctx context.Context, id string) (model.Project, error)
	Projects(ctx context.Context, f ProjectFilter) ([]model.Project, error)
	// SkillRequirements returns a project's requirements in their stored order.
	SkillRequirements(ctx context.Context, projectID string) ([]model.SkillRequirement, error)
	// ActiveAllocations returns proposed and confirmed allocations.
	ActiveAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, error)

	SaveEmployee(ctx context.Context, e model.Employee) error
	SaveProject(ctx context.Context, p model.Project) error
	SaveSkillRequirements(ctx context.Context, projectID string, reqs []model.SkillRequirement) error
	SaveAllocation(ctx context.Context, a model.Allocation) error
	// DeleteAllocation returns ErrNotFound for unknown ids.
	DeleteAllocation(ctx context.Context, id string) error

	Close() error
}

// ValidateEmployee checks the fields every adapter requires.
func ValidateEmployee(e model.Employee) error {
	if strings.TrimSpace(e.ID) == "" {
		return invalid("employee id is required")
	}
	if e.CapacityRemaining < 0 || e.CapacityRemaining > model.Full {
		return invalid("employee %s capacity %s out of range", e.ID, e.CapacityRemaining)
	}
	return nil
}

// ValidateProject checks the fields every adapter requires.
func ValidateProject(p model.Project) error {
	if strings.TrimSpace(p.ID) == "" {
		return invalid("project id is required")
	}
	if _, ok := model.ParseProjectStatus(string(p.Status)); !ok {
		return invalid("project %s has unknown status %q", p.ID, p.Status)
	}
	return nil
}

// ValidateAllocation checks the fields every adapter requires.
func ValidateAllocation(a model.Allocation) error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return invalid("allocation id is required")
	case a.EmployeeID == "" || a.ProjectID == "":
		return invalid("allocation %s needs employee and project", a.ID)
	case !a.Percentage.ValidAllocation():
		return invalid("allocation %s percentage %s out of range", a.ID, a.Percentage)
	}
	switch a.Status {
	case model.AllocationProposed, model.AllocationConfirmed, model.AllocationCompleted:
		return nil
	default:
		return invalid("allocation %s has unknown status %q", a.ID, a.Status)
	}
}

// SortEmployees orders by id.
func SortEmployees(es []model.Employee) {
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
}

// SortProjects orders by id.
func SortProjects(ps []model.Project) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}

// SortAllocations orders by employee, then project, then id.
func SortAllocations(as []model.Allocation) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].EmployeeID != as[j].EmployeeID {
			return as[i].EmployeeID < as[j].EmployeeID
		}
		if as[i].ProjectID != as[j].ProjectID {
			return as[i].ProjectID < as[j].ProjectID
		}
		return as[i].ID < as[j].ID
	})
}
