// Package fixture reads, writes and generates YAML working sets: employees,
// projects with their skill requirements, and existing allocations.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Employee is the file form of an employee. Remaining capacity is not
// stored; it follows from the allocations in the same file.
type Employee struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Skills      []model.Skill `yaml:"skills"`
	Performance float64       `yaml:"performance"`
	Active      *bool         `yaml:"active,omitempty"`
	Role        string        `yaml:"role,omitempty"`
}

// Requirement is the file form of a skill requirement.
type Requirement struct {
	SkillID   string `yaml:"skill_id"`
	Headcount int    `yaml:"employees_requested"`
}

// Project is the file form of a project with its requirements inline.
type Project struct {
	ID           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	HoursNeeded  float64       `yaml:"hours_needed"`
	Priority     int           `yaml:"priority,omitempty"`
	Status       string        `yaml:"status,omitempty"`
	ManagerID    string        `yaml:"manager_id,omitempty"`
	Requirements []Requirement `yaml:"requirements"`
}

// Allocation is the file form of an existing allocation.
type Allocation struct {
	ID         string  `yaml:"id"`
	EmployeeID string  `yaml:"employee_id"`
	ProjectID  string  `yaml:"project_id"`
	Percentage float64 `yaml:"percentage"`
	Status     string  `yaml:"status,omitempty"`
}

// WorkingSet is one YAML document.
type WorkingSet struct {
	HoursPerWeek float64      `yaml:"hours_per_week,omitempty"`
	Employees    []Employee   `yaml:"employees"`
	Projects     []Project    `yaml:"projects"`
	Allocations  []Allocation `yaml:"allocations,omitempty"`
}

// Load reads and validates a working set file.
func Load(path string) (*WorkingSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	ws, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ws, nil
}

// Parse decodes and validates a working set.
func Parse(data []byte) (*WorkingSet, error) {
	var ws WorkingSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ws); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFixture, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Marshal encodes ws as YAML.
func Marshal(ws *WorkingSet) ([]byte, error) {
	data, err := yaml.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encode fixture: %w", err)
	}
	return data, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFixture, fmt.Sprintf(format, args...))
}

// Validate checks references, statuses and that no employee is over-allocated.
func (ws *WorkingSet) Validate() error {
	var errs []error
	employees := make(map[string]bool, len(ws.Employees))
	for _, e := range ws.Employees {
		switch {
		case strings.TrimSpace(e.ID) == "":
			errs = append(errs, invalid("employee without id"))
		case employees[e.ID]:
			errs = append(errs, invalid("duplicate employee %s", e.ID))
		}
		if e.Performance < 0 || e.Performance > 5 {
			errs = append(errs, invalid("employee %s performance %v outside [0, 5]", e.ID, e.Performance))
		}
		employees[e.ID] = true
	}
	projects := make(map[string]bool, len(ws.Projects))
	for _, p := range ws.Projects {
		switch {
		case strings.TrimSpace(p.ID) == "":
			errs = append(errs, invalid("project without id"))
		case projects[p.ID]:
			errs = append(errs, invalid("duplicate project %s", p.ID))
		}
		if p.Status != "" {
			if _, ok := model.ParseProjectStatus(p.Status); !ok {
				errs = append(errs, invalid("project %s has unknown status %q", p.ID, p.Status))
			}
		}
		if p.HoursNeeded < 0 {
			errs = append(errs, invalid("project %s needs negative hours", p.ID))
		}
		projects[p.ID] = true
	}

	used := make(map[string]model.Percent)
	pairs := make(map[[2]string]bool)
	for _, a := range ws.Allocations {
		if strings.TrimSpace(a.ID) == "" {
			errs = append(errs, invalid("allocation of %s to %s without id", a.EmployeeID, a.ProjectID))
		}
		if !employees[a.EmployeeID] {
			errs = append(errs, invalid("allocation %s references unknown employee %q", a.ID, a.EmployeeID))
		}
		if !projects[a.ProjectID] {
			errs = append(errs, invalid("allocation %s references unknown project %q", a.ID, a.ProjectID))
		}
		pct := model.PercentFromFloat(a.Percentage)
		if !pct.ValidAllocation() {
			errs = append(errs, invalid("allocation %s percentage %v outside (0, 100]", a.ID, a.Percentage))
		}
		status := allocationStatus(a.Status)
		switch status {
		case model.AllocationProposed, model.AllocationConfirmed, model.AllocationCompleted:
		default:
			errs = append(errs, invalid("allocation %s has unknown status %q", a.ID, a.Status))
		}
		if !status.Active() {
			continue
		}
		key := [2]string{a.EmployeeID, a.ProjectID}
		if pairs[key] {
			errs = append(errs, invalid("employee %s allocated twice to %s", a.EmployeeID, a.ProjectID))
		}
		pairs[key] = true
		used[a.EmployeeID] += pct
	}
	for id, u := range used {
		if u > model.Full {
			errs = append(errs, invalid("employee %s allocated %s", id, u))
		}
	}
	return errors.Join(errs...)
}

func allocationStatus(s string) model.AllocationStatus {
	if s == "" {
		return model.AllocationConfirmed
	}
	return model.AllocationStatus(s)
}

func (e Employee) toModel(remaining model.Percent) model.Employee {
	active := e.Active == nil || *e.Active
	role := e.Role
	if role == "" {
		role = model.RoleEmployee
	}
	return model.Employee{
		ID:                e.ID,
		Name:              e.Name,
		Skills:            append([]model.Skill(nil), e.Skills...),
		Performance:       e.Performance,
		CapacityRemaining: remaining,
		Active:            active,
		Role:              role,
	}
}

func (p Project) toModel() model.Project {
	status := model.ProjectPlanning
	if st, ok := model.ParseProjectStatus(p.Status); ok {
		status = st
	}
	return model.Project{
		ID:          p.ID,
		Name:        p.Name,
		HoursNeeded: p.HoursNeeded,
		Priority:    p.Priority,
		Status:      status,
		ManagerID:   p.ManagerID,
	}
}

func (p Project) requirements() []model.SkillRequirement {
	out := make([]model.SkillRequirement, len(p.Requirements))
	for i, r := range p.Requirements {
		out[i] = model.SkillRequirement{ProjectID: p.ID, SkillID: r.SkillID, EmployeesRequested: r.Headcount}
	}
	return out
}

// Seed writes the working set into repo. Employee capacity is derived from
// the active allocations of the set.
func (ws *WorkingSet) Seed(ctx context.Context, repo repository.Repository, createdAt time.Time) error {
	hours := ws.HoursPerWeek
	if hours <= 0 {
		hours = 40
	}
	used := make(map[string]model.Percent)
	for _, a := range ws.Allocations {
		status := allocationStatus(a.Status)
		pct := model.PercentFromFloat(a.Percentage)
		if status.Active() {
			used[a.EmployeeID] += pct
		}
	}
	for _, e := range ws.Employees {
		if err := repo.SaveEmployee(ctx, e.toModel(model.Full-used[e.ID])); err != nil {
			return fmt.Errorf("seed employee %s: %w", e.ID, err)
		}
	}
	for _, p := range ws.Projects {
		if err := repo.SaveProject(ctx, p.toModel()); err != nil {
			return fmt.Errorf("seed project %s: %w", p.ID, err)
		}
		if err := repo.SaveSkillRequirements(ctx, p.ID, p.requirements()); err != nil {
			return fmt.Errorf("seed requirements of %s: %w", p.ID, err)
		}
	}
	for _, a := range ws.Allocations {
		pct := model.PercentFromFloat(a.Percentage)
		al := model.Allocation{
			ID:             a.ID,
			EmployeeID:     a.EmployeeID,
			ProjectID:      a.ProjectID,
			Percentage:     pct,
			HoursAllocated: pct.Hours(hours),
			Status:         allocationStatus(a.Status),
			CreatedAt:      createdAt,
		}
		if err := repo.SaveAllocation(ctx, al); err != nil {
			return fmt.Errorf("seed allocation %s: %w", a.ID, err)
		}
	}
	return nil
}
