package lifecycle

import (
	"context"
	"fmt"

	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/pkg/logger"
)

// Proposal is the outcome of committing one optimizer assignment.
type Proposal struct {
	Assignment optimizer.Assignment
	Allocation model.Allocation
	Err        error
}

// Propose commits optimizer output as proposed, system-recommended
// allocations. Each assignment is re-validated against current skills and
// capacity and committed on its own; one failure does not undo the others.
func (m *Manager) Propose(ctx context.Context, assignments []optimizer.Assignment) []Proposal {
	out := make([]Proposal, len(assignments))
	reqs := make(map[string][]model.SkillRequirement)
	for i, a := range assignments {
		out[i] = Proposal{Assignment: a}
		out[i].Allocation, out[i].Err = m.proposeOne(ctx, reqs, a)
	}
	return out
}

func (m *Manager) proposeOne(ctx context.Context, reqs map[string][]model.SkillRequirement, a optimizer.Assignment) (_ model.Allocation, err error) {
	ctx, done := m.begin(ctx, OpPropose, map[string]any{"employee.id": a.EmployeeID, "project.id": a.ProjectID})
	defer func() { done(err) }()

	if !a.Percentage.ValidAllocation() {
		return model.Allocation{}, fault.New(OpPropose, fault.ErrValidation,
			"allocation percentage %s outside (0%%, 100%%]", a.Percentage).WithEmployee(a.EmployeeID).WithProject(a.ProjectID)
	}
	unlockProject := m.projects.lock(a.ProjectID)
	defer unlockProject()
	unlock := m.employees.lock(a.EmployeeID)
	defer unlock()

	if _, err := m.openProject(ctx, OpPropose, a.ProjectID); err != nil {
		return model.Allocation{}, err
	}
	projectReqs, ok := reqs[a.ProjectID]
	if !ok {
		projectReqs, err = m.repo.SkillRequirements(ctx, a.ProjectID)
		if err != nil {
			return model.Allocation{}, fmt.Errorf("%s: load requirements: %w", OpPropose, err)
		}
		reqs[a.ProjectID] = projectReqs
	}

	e, err := m.loadEmployee(ctx, OpPropose, a.EmployeeID)
	if err != nil {
		return model.Allocation{}, err
	}
	if err := m.Hydrate(ctx, e.ID); err != nil {
		return model.Allocation{}, err
	}
	if _, ok := m.ledger.Find(e.ID, a.ProjectID); ok {
		return model.Allocation{}, fault.New(OpPropose, fault.ErrDuplicateAllocation,
			"employee already has an active allocation on this project").WithEmployee(e.ID).WithProject(a.ProjectID)
	}

	current := e.Clone()
	if remaining, err := m.ledger.Remaining(e.ID); err == nil {
		current.CapacityRemaining = remaining
	}
	entry, ok := m.scorer.Score(current, projectReqs)
	if !ok || entry.Score <= 0 {
		return model.Allocation{}, fault.New(OpPropose, fault.ErrSkillMismatch,
			"employee no longer matches the project's skills").WithEmployee(e.ID).WithProject(a.ProjectID)
	}

	rb := &rollback{}
	al := m.newAllocation(e.ID, a.ProjectID, a.Percentage, model.AllocationProposed)
	al.Recommended = true
	confidence := entry.Score
	al.Confidence = &confidence

	if err := m.reserveAndCommit(rb, al); err != nil {
		return model.Allocation{}, err
	}
	if err := m.saveNew(ctx, rb, al); err != nil {
		return model.Allocation{}, rb.abort(ctx, err)
	}
	if err := m.syncCapacity(ctx, rb, e); err != nil {
		return model.Allocation{}, rb.abort(ctx, err)
	}

	m.logger.Info(ctx, "allocation proposed",
		logger.String("allocation", al.ID),
		logger.String("employee", al.EmployeeID),
		logger.String("project", al.ProjectID),
		logger.Float64("confidence", confidence),
	)
	return al, nil
}

// Confirm turns a proposed allocation into a confirmed one. A planning
// project becomes active.
func (m *Manager) Confirm(ctx context.Context, employeeID, projectID string) (_ model.Allocation, err error) {
	ctx, done := m.begin(ctx, OpConfirm, map[string]any{"employee.id": employeeID, "project.id": projectID})
	defer func() { done(err) }()

	unlockProject := m.projects.lock(projectID)
	defer unlockProject()
	unlock := m.employees.lock(employeeID)
	defer unlock()

	project, err := m.openProject(ctx, OpConfirm, projectID)
	if err != nil {
		return model.Allocation{}, err
	}

	if _, err := m.loadEmployee(ctx, OpConfirm, employeeID); err != nil {
		return model.Allocation{}, err
	}
	if err := m.Hydrate(ctx, employeeID); err != nil {
		return model.Allocation{}, err
	}
	current, ok := m.ledger.Find(employeeID, projectID)
	if !ok {
		return model.Allocation{}, fault.New(OpConfirm, fault.ErrNotFound, "no active allocation").
			WithEmployee(employeeID).WithProject(projectID)
	}
	if current.Status != model.AllocationProposed {
		return model.Allocation{}, fault.New(OpConfirm, fault.ErrInvalidTransition, "allocation is already %s", current.Status).
			WithEmployee(employeeID).WithProject(projectID)
	}

	rb := &rollback{}
	al, undo, err := m.ledger.Transition(current.ID, model.AllocationConfirmed)
	if err != nil {
		return model.Allocation{}, err
	}
	rb.undo(undo)

	if err := m.repo.SaveAllocation(ctx, al); err != nil {
		return model.Allocation{}, rb.abort(ctx, fmt.Errorf("save allocation %s: %w", al.ID, err))
	}
	rb.add(func(ctx context.Context) error { return m.repo.SaveAllocation(ctx, current) })

	if err := m.activate(ctx, rb, project); err != nil {
		return model.Allocation{}, rb.abort(ctx, err)
	}
	return al, nil
}
