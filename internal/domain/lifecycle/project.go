package lifecycle

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/pkg/logger"
)

// CompleteProject completes every active allocation of the project, returns
// their capacity and marks the project completed. Completing a completed
// project is a no-op.
func (m *Manager) CompleteProject(ctx context.Context, projectID string) (_ []model.Allocation, err error) {
	ctx, done := m.begin(ctx, OpComplete, map[string]any{"project.id": projectID})
	defer func() { done(err) }()

	unlockProject := m.projects.lock(projectID)
	defer unlockProject()

	project, err := m.loadProject(ctx, OpComplete, projectID)
	if err != nil {
		return nil, err
	}
	if project.Status == model.ProjectCompleted {
		return nil, nil
	}

	stored, err := m.repo.ActiveAllocations(ctx, repository.AllocationFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("%s: load allocations: %w", OpComplete, err)
	}
	ids := make([]string, 0, len(stored))
	for _, al := range stored {
		ids = append(ids, al.EmployeeID)
	}
	unlock := m.employees.lock(ids...)
	defer unlock()

	rb := &rollback{}
	var completed []model.Allocation
	for _, id := range uniqueSorted(ids) {
		al, err := m.completeFor(ctx, rb, id, projectID)
		if err != nil {
			return nil, rb.abort(ctx, err)
		}
		if al != nil {
			completed = append(completed, *al)
		}
	}

	updated := project
	updated.Status = model.ProjectCompleted
	if err := m.repo.SaveProject(ctx, updated); err != nil {
		return nil, rb.abort(ctx, fmt.Errorf("%s: save project: %w", OpComplete, err))
	}

	m.audit.Info(ctx, "project completed",
		logger.String("project", projectID),
		logger.String("from", string(project.Status)),
		logger.Int("allocations_completed", len(completed)),
	)
	return completed, nil
}

// completeFor completes the employee's allocation on the project, if any.
func (m *Manager) completeFor(ctx context.Context, rb *rollback, employeeID, projectID string) (*model.Allocation, error) {
	if err := m.Hydrate(ctx, employeeID); err != nil {
		return nil, err
	}
	current, ok := m.ledger.Find(employeeID, projectID)
	if !ok {
		return nil, nil
	}
	e, err := m.loadEmployee(ctx, OpComplete, employeeID)
	if err != nil {
		return nil, err
	}

	al, undo, err := m.ledger.Transition(current.ID, model.AllocationCompleted)
	if err != nil {
		return nil, err
	}
	rb.undo(undo)

	if err := m.repo.SaveAllocation(ctx, al); err != nil {
		return nil, fmt.Errorf("save allocation %s: %w", al.ID, err)
	}
	rb.add(func(ctx context.Context) error { return m.repo.SaveAllocation(ctx, current) })

	if err := m.syncCapacity(ctx, rb, e); err != nil {
		return nil, err
	}
	return &al, nil
}

// ReactivateProject moves a completed project back to a non-completed status.
// Allocations completed with the project stay completed.
func (m *Manager) ReactivateProject(ctx context.Context, projectID string, to model.ProjectStatus) (_ model.Project, err error) {
	ctx, done := m.begin(ctx, OpReactivate, map[string]any{"project.id": projectID, "project.status": string(to)})
	defer func() { done(err) }()

	unlock := m.projects.lock(projectID)
	defer unlock()

	if _, ok := model.ParseProjectStatus(string(to)); !ok || to == model.ProjectCompleted {
		return model.Project{}, fault.New(OpReactivate, fault.ErrValidation,
			"cannot reactivate to status %q", to).WithProject(projectID)
	}
	project, err := m.loadProject(ctx, OpReactivate, projectID)
	if err != nil {
		return model.Project{}, err
	}
	if project.Status != model.ProjectCompleted {
		return model.Project{}, fault.New(OpReactivate, fault.ErrInvalidTransition,
			"project is %s, not completed", project.Status).WithProject(projectID)
	}

	updated := project
	updated.Status = to
	if err := m.repo.SaveProject(ctx, updated); err != nil {
		return model.Project{}, fmt.Errorf("%s: save project: %w", OpReactivate, err)
	}
	m.audit.Warn(ctx, "project reactivated; allocations not restored",
		logger.String("project", projectID),
		logger.String("from", string(project.Status)),
		logger.String("to", string(to)),
	)
	return updated, nil
}

// SetProjectStatus changes a project's status with the side effects of the
// target: completion completes allocations, leaving completed reactivates.
func (m *Manager) SetProjectStatus(ctx context.Context, projectID string, to model.ProjectStatus) (model.Project, error) {
	if _, ok := model.ParseProjectStatus(string(to)); !ok {
		return model.Project{}, fault.New(OpSetStatus, fault.ErrValidation, "unknown status %q", to).WithProject(projectID)
	}

	project, err := m.loadProject(ctx, OpSetStatus, projectID)
	if err != nil {
		return model.Project{}, err
	}
	switch {
	case to == model.ProjectCompleted:
		if _, err := m.CompleteProject(ctx, projectID); err != nil {
			return model.Project{}, err
		}
		project.Status = model.ProjectCompleted
		return project, nil
	case project.Status == model.ProjectCompleted:
		return m.ReactivateProject(ctx, projectID, to)
	}
	return m.updateStatus(ctx, projectID, to)
}

func (m *Manager) updateStatus(ctx context.Context, projectID string, to model.ProjectStatus) (_ model.Project, err error) {
	ctx, done := m.begin(ctx, OpSetStatus, map[string]any{"project.id": projectID, "project.status": string(to)})
	defer func() { done(err) }()

	unlock := m.projects.lock(projectID)
	defer unlock()

	project, err := m.loadProject(ctx, OpSetStatus, projectID)
	if err != nil {
		return model.Project{}, err
	}
	if project.Status == model.ProjectCompleted {
		return model.Project{}, fault.New(OpSetStatus, fault.ErrInvalidTransition,
			"project was completed concurrently").WithProject(projectID)
	}
	if project.Status == to {
		return project, nil
	}
	from := project.Status
	project.Status = to
	if err := m.repo.SaveProject(ctx, project); err != nil {
		return model.Project{}, fmt.Errorf("%s: save project: %w", OpSetStatus, err)
	}
	m.audit.Info(ctx, "project status changed",
		logger.String("project", projectID),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
	)
	return project, nil
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
