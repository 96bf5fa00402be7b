// Package lifecycle applies allocation and project state changes atomically
// across the capacity ledger and the repository.
//
// Every compound operation holds the lifecycle lock of each employee it
// touches, in sorted id order, for its whole duration. Operations on a
// project take its lock first, then the employee locks. Ledger changes are
// made first; repository writes follow; any failure runs the collected
// compensations so readers never see a partial result.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/ledger"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/scoring"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/okian/allot/pkg/tracing"
)

// Operation names used in errors, metrics and spans.
const (
	OpAllocate   = "allocate"
	OpRemove     = "remove"
	OpComplete   = "complete_project"
	OpReactivate = "reactivate_project"
	OpSetStatus  = "set_project_status"
	OpPropose    = "propose"
	OpConfirm    = "confirm"
)

// AllocateRequest asks for a confirmed allocation of one employee.
type AllocateRequest struct {
	EmployeeID string
	ProjectID  string
	Percentage model.Percent
	SkillName  string
}

// Capacity is an employee's ledger view.
type Capacity struct {
	EmployeeID string
	Remaining  model.Percent
	Active     []model.Allocation
}

// Manager implements the allocation lifecycle.
type Manager struct {
	repo   repository.Repository
	ledger *ledger.Ledger
	scorer *scoring.Scorer

	hoursPerWeek float64
	newID        func() string
	now          func() time.Time

	employees *locker
	projects  *locker

	logger logger.Logger
	audit  logger.Logger
}

// New creates a Manager over repo and l.
func New(repo repository.Repository, l *ledger.Ledger, opts ...Option) *Manager {
	m := &Manager{
		repo:         repo,
		ledger:       l,
		scorer:       scoring.New(),
		hoursPerWeek: optimizer.DefaultHoursPerWeek,
		newID:        uuid.NewString,
		now:          time.Now,
		employees:    newLocker(),
		projects:     newLocker(),
		logger:       logger.Get().Named("lifecycle"),
		audit:        logger.Get().Named("audit"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ledger returns the ledger the manager mutates.
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// HoursPerWeek returns the hours that make up 100% capacity.
func (m *Manager) HoursPerWeek() float64 { return m.hoursPerWeek }

// begin opens a span for op; the returned func records metrics and closes it.
func (m *Manager) begin(ctx context.Context, op string, attrs map[string]any) (context.Context, func(error)) {
	ctx, span := tracing.StartSpan(ctx, "lifecycle."+op, tracing.KindInternal)
	span.SetAttributes(attrs)
	return ctx, func(err error) {
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = fault.KindName(err)
			metrics.RecordError("lifecycle", outcome)
		}
		metrics.RecordLifecycleOperation(op, outcome)
		t := m.ledger.Totals()
		metrics.UpdateLedgerTotals(t.Employees, t.ActiveAllocations, t.Allocated.Float64())
		tracing.EndSpan(span, err)
	}
}

// Hydrate loads the active allocations of employees the ledger has not seen yet.
func (m *Manager) Hydrate(ctx context.Context, employeeIDs ...string) error {
	for _, id := range employeeIDs {
		if m.ledger.Has(id) {
			continue
		}
		allocs, err := m.repo.ActiveAllocations(ctx, repository.AllocationFilter{EmployeeID: id})
		if err != nil {
			return fmt.Errorf("load allocations of %s: %w", id, err)
		}
		if err := m.ledger.Adopt(id, allocs); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) loadEmployee(ctx context.Context, op, id string) (model.Employee, error) {
	e, err := m.repo.Employee(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return model.Employee{}, fault.New(op, fault.ErrNotFound, "employee %s does not exist", id).WithEmployee(id)
	}
	if err != nil {
		return model.Employee{}, fmt.Errorf("%s: load employee %s: %w", op, id, err)
	}
	return e, nil
}

func (m *Manager) loadProject(ctx context.Context, op, id string) (model.Project, error) {
	p, err := m.repo.Project(ctx, id)
	if errors.Is(err, fault.ErrNotFound) {
		return model.Project{}, fault.New(op, fault.ErrNotFound, "project %s does not exist", id).WithProject(id)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("%s: load project %s: %w", op, id, err)
	}
	return p, nil
}

// syncCapacity writes the ledger's remaining capacity onto the employee record
// and registers the restore of the previous record.
func (m *Manager) syncCapacity(ctx context.Context, rb *rollback, e model.Employee) error {
	remaining, err := m.ledger.Remaining(e.ID)
	if err != nil {
		return err
	}
	if remaining == e.CapacityRemaining {
		return nil
	}
	updated := e.Clone()
	updated.CapacityRemaining = remaining
	if err := m.repo.SaveEmployee(ctx, updated); err != nil {
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	rb.add(func(ctx context.Context) error { return m.repo.SaveEmployee(ctx, e) })
	return nil
}

// openProject loads a project that can still take allocations. Callers hold
// the project lock so the status cannot change before they commit.
func (m *Manager) openProject(ctx context.Context, op, projectID string) (model.Project, error) {
	project, err := m.loadProject(ctx, op, projectID)
	if err != nil {
		return model.Project{}, err
	}
	if project.Status == model.ProjectCompleted {
		return model.Project{}, fault.New(op, fault.ErrInvalidTransition, "project is completed").WithProject(projectID)
	}
	return project, nil
}

// activate moves a planning project to active and registers the restore.
func (m *Manager) activate(ctx context.Context, rb *rollback, p model.Project) error {
	if p.Status != model.ProjectPlanning {
		return nil
	}
	updated := p
	updated.Status = model.ProjectActive
	if err := m.repo.SaveProject(ctx, updated); err != nil {
		return fmt.Errorf("activate project %s: %w", p.ID, err)
	}
	rb.add(func(ctx context.Context) error { return m.repo.SaveProject(ctx, p) })
	return nil
}

// saveNew persists a freshly committed allocation and registers its deletion.
func (m *Manager) saveNew(ctx context.Context, rb *rollback, al model.Allocation) error {
	if err := m.repo.SaveAllocation(ctx, al); err != nil {
		return fmt.Errorf("save allocation %s: %w", al.ID, err)
	}
	rb.add(func(ctx context.Context) error { return m.repo.DeleteAllocation(ctx, al.ID) })
	return nil
}

// reserveAndCommit holds capacity and records the allocation in the ledger.
// The ledger entry is removed again if rb runs.
func (m *Manager) reserveAndCommit(rb *rollback, al model.Allocation) error {
	res, err := m.ledger.Reserve(al.EmployeeID, al.ProjectID, al.Percentage)
	if err != nil {
		return err
	}
	if err := m.ledger.Commit(res, al); err != nil {
		_ = m.ledger.Release(res)
		return err
	}
	rb.undo(func() {
		if _, _, err := m.ledger.Delete(al.ID); err != nil {
			m.logger.Error(context.Background(), "ledger rollback failed",
				logger.String("allocation", al.ID), logger.Error(err))
		}
	})
	return nil
}

func (m *Manager) newAllocation(employeeID, projectID string, pct model.Percent, status model.AllocationStatus) model.Allocation {
	return model.Allocation{
		ID:             m.newID(),
		EmployeeID:     employeeID,
		ProjectID:      projectID,
		Percentage:     pct,
		HoursAllocated: pct.Hours(m.hoursPerWeek),
		Status:         status,
		CreatedAt:      m.now().UTC(),
	}
}

// Allocate creates a confirmed allocation. A planning project becomes active.
func (m *Manager) Allocate(ctx context.Context, req AllocateRequest) (model.Allocation, error) {
	out, err := m.AllocateBatch(ctx, req.ProjectID, []AllocateRequest{req})
	if err != nil {
		return model.Allocation{}, err
	}
	return out[0], nil
}

// AllocateBatch allocates several employees to one project; either all
// allocations are created or none are.
func (m *Manager) AllocateBatch(ctx context.Context, projectID string, reqs []AllocateRequest) (_ []model.Allocation, err error) {
	ctx, done := m.begin(ctx, OpAllocate, map[string]any{"project.id": projectID, "allocation.count": len(reqs)})
	defer func() { done(err) }()

	if len(reqs) == 0 {
		return nil, fault.New(OpAllocate, fault.ErrValidation, "no allocations requested").WithProject(projectID)
	}
	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.ProjectID != "" && r.ProjectID != projectID {
			return nil, fault.New(OpAllocate, fault.ErrValidation,
				"request for project %s in a batch for %s", r.ProjectID, projectID).WithEmployee(r.EmployeeID)
		}
		if !r.Percentage.ValidAllocation() {
			return nil, fault.New(OpAllocate, fault.ErrValidation,
				"allocation percentage %s outside (0%%, 100%%]", r.Percentage).WithEmployee(r.EmployeeID).WithProject(projectID)
		}
		ids[i] = r.EmployeeID
	}

	unlockProject := m.projects.lock(projectID)
	defer unlockProject()
	unlock := m.employees.lock(ids...)
	defer unlock()

	project, err := m.openProject(ctx, OpAllocate, projectID)
	if err != nil {
		return nil, err
	}

	rb := &rollback{}
	created := make([]model.Allocation, 0, len(reqs))
	for _, r := range reqs {
		al, err := m.allocateOne(ctx, rb, projectID, r)
		if err != nil {
			return nil, rb.abort(ctx, err)
		}
		created = append(created, al)
	}
	if err := m.activate(ctx, rb, project); err != nil {
		return nil, rb.abort(ctx, err)
	}

	for _, al := range created {
		m.logger.Info(ctx, "allocation created",
			logger.String("allocation", al.ID),
			logger.String("employee", al.EmployeeID),
			logger.String("project", al.ProjectID),
			logger.String("percentage", al.Percentage.String()),
		)
	}
	return created, nil
}

func (m *Manager) allocateOne(ctx context.Context, rb *rollback, projectID string, r AllocateRequest) (model.Allocation, error) {
	e, err := m.loadEmployee(ctx, OpAllocate, r.EmployeeID)
	if err != nil {
		return model.Allocation{}, err
	}
	if err := m.Hydrate(ctx, e.ID); err != nil {
		return model.Allocation{}, err
	}
	if _, ok := m.ledger.Find(e.ID, projectID); ok {
		return model.Allocation{}, fault.New(OpAllocate, fault.ErrDuplicateAllocation,
			"employee already has an active allocation on this project").WithEmployee(e.ID).WithProject(projectID)
	}
	if !e.HasSkillNamed(r.SkillName) {
		return model.Allocation{}, fault.New(OpAllocate, fault.ErrSkillMismatch,
			"employee does not have the required skill %q", r.SkillName).WithEmployee(e.ID).WithProject(projectID)
	}

	al := m.newAllocation(e.ID, projectID, r.Percentage, model.AllocationConfirmed)
	if err := m.reserveAndCommit(rb, al); err != nil {
		return model.Allocation{}, err
	}
	if err := m.saveNew(ctx, rb, al); err != nil {
		return model.Allocation{}, err
	}
	if err := m.syncCapacity(ctx, rb, e); err != nil {
		return model.Allocation{}, err
	}
	return al, nil
}

// Remove deletes the active allocation of a pair and returns its capacity.
func (m *Manager) Remove(ctx context.Context, employeeID, projectID string) (_ model.Allocation, err error) {
	ctx, done := m.begin(ctx, OpRemove, map[string]any{"employee.id": employeeID, "project.id": projectID})
	defer func() { done(err) }()

	unlock := m.employees.lock(employeeID)
	defer unlock()

	e, err := m.loadEmployee(ctx, OpRemove, employeeID)
	if err != nil {
		return model.Allocation{}, err
	}
	if err := m.Hydrate(ctx, employeeID); err != nil {
		return model.Allocation{}, err
	}

	rb := &rollback{}
	al, undo, err := m.ledger.Remove(employeeID, projectID)
	if err != nil {
		return model.Allocation{}, err
	}
	rb.undo(undo)

	if err := m.repo.DeleteAllocation(ctx, al.ID); err != nil {
		if !errors.Is(err, fault.ErrNotFound) {
			return model.Allocation{}, rb.abort(ctx, fmt.Errorf("delete allocation %s: %w", al.ID, err))
		}
		m.logger.Warn(ctx, "allocation missing from repository", logger.String("allocation", al.ID))
	} else {
		rb.add(func(ctx context.Context) error { return m.repo.SaveAllocation(ctx, al) })
	}
	if err := m.syncCapacity(ctx, rb, e); err != nil {
		return model.Allocation{}, rb.abort(ctx, err)
	}

	m.logger.Info(ctx, "allocation removed",
		logger.String("allocation", al.ID),
		logger.String("employee", employeeID),
		logger.String("project", projectID),
	)
	return al, nil
}

// Capacity returns the employee's remaining capacity and active allocations.
func (m *Manager) Capacity(ctx context.Context, employeeID string) (Capacity, error) {
	if _, err := m.loadEmployee(ctx, "capacity", employeeID); err != nil {
		return Capacity{}, err
	}
	if err := m.Hydrate(ctx, employeeID); err != nil {
		return Capacity{}, err
	}
	remaining, err := m.ledger.Remaining(employeeID)
	if err != nil {
		return Capacity{}, err
	}
	return Capacity{EmployeeID: employeeID, Remaining: remaining, Active: m.ledger.Active(employeeID)}, nil
}
