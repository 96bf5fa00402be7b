// Package ledger is the authoritative record of employee capacity and allocations.
//
// Each employee has an account guarded by its own mutex; the ledger-wide lock only
// protects the account map and the allocation index, so work on disjoint employees
// never contends. At rest every account satisfies
//
//	remaining + Σ active allocations + Σ holds == model.Full
//
// with integer arithmetic. Capacity is only ever returned through account.release,
// which is the one place that clamps.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
)

// Reservation is a hold on capacity that has not yet become an allocation.
type Reservation struct {
	Token      string
	EmployeeID string
	ProjectID  string
	Percentage model.Percent
}

// Undo reverses a single ledger mutation. The caller must still serialize the
// employee when running it.
type Undo func()

// Totals aggregates the ledger for metrics.
type Totals struct {
	Employees         int
	ActiveAllocations int
	Allocated         model.Percent
}

type hold struct {
	projectID string
	pct       model.Percent
}

type account struct {
	mu        sync.Mutex
	id        string
	remaining model.Percent
	allocs    map[string]*model.Allocation
	holds     map[string]hold
}

func newAccount(id string) *account {
	return &account{
		id:        id,
		remaining: model.Full,
		allocs:    make(map[string]*model.Allocation),
		holds:     make(map[string]hold),
	}
}

// used is Σ active + Σ holds, computed from the allocation set rather than remaining.
func (a *account) used() model.Percent {
	var sum model.Percent
	for _, al := range a.allocs {
		if al.Status.Active() {
			sum += al.Percentage
		}
	}
	for _, h := range a.holds {
		sum += h.pct
	}
	return sum
}

func (a *account) activeFor(projectID string) *model.Allocation {
	for _, al := range a.allocs {
		if al.ProjectID == projectID && al.Status.Active() {
			return al
		}
	}
	return nil
}

func (a *account) heldFor(projectID string) bool {
	for _, h := range a.holds {
		if h.projectID == projectID {
			return true
		}
	}
	return false
}

func (a *account) take(pct model.Percent) {
	a.remaining -= pct
}

func (a *account) release(pct model.Percent) {
	a.remaining += pct
	switch {
	case a.remaining > model.Full:
		a.remaining = model.Full
	case a.remaining < 0:
		a.remaining = 0
	}
}

func (a *account) verify() error {
	if got := a.remaining + a.used(); got != model.Full {
		return fmt.Errorf("%w: employee %s remaining %s + used %s = %s",
			ErrInvariantViolated, a.id, a.remaining, a.used(), got)
	}
	return nil
}

// Ledger tracks capacity and allocations for all employees it has seen.
type Ledger struct {
	mu       sync.RWMutex
	accounts map[string]*account
	index    map[string]string // allocation id -> employee id

	newToken func() string
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[string]*account),
		index:    make(map[string]string),
		newToken: defaultToken,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lookup(employeeID string) (*account, bool) {
	l.mu.RLock()
	a, ok := l.accounts[employeeID]
	l.mu.RUnlock()
	return a, ok
}

func (l *Ledger) open(employeeID string) *account {
	if a, ok := l.lookup(employeeID); ok {
		return a
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[employeeID]; ok {
		return a
	}
	a := newAccount(employeeID)
	l.accounts[employeeID] = a
	return a
}

// Has reports whether the employee's account has been opened or adopted.
func (l *Ledger) Has(employeeID string) bool {
	_, ok := l.lookup(employeeID)
	return ok
}

// Adopt hydrates an employee's account from stored allocations. Completed
// allocations are kept as history. An account that already exists is left
// untouched and Adopt returns nil.
func (l *Ledger) Adopt(employeeID string, allocs []model.Allocation) error {
	a := newAccount(employeeID)
	for i := range allocs {
		al := allocs[i]
		if al.EmployeeID != employeeID {
			return fault.New("ledger.adopt", fault.ErrValidation,
				"allocation %s belongs to employee %s", al.ID, al.EmployeeID).WithEmployee(employeeID)
		}
		if al.Status.Active() {
			if a.activeFor(al.ProjectID) != nil {
				return fault.New("ledger.adopt", fault.ErrDuplicateAllocation,
					"stored allocations repeat the pair").WithEmployee(employeeID).WithProject(al.ProjectID)
			}
			if a.used()+al.Percentage > model.Full {
				return fault.New("ledger.adopt", fault.ErrInsufficientCapacity,
					"stored allocations exceed full capacity").WithEmployee(employeeID)
			}
			a.take(al.Percentage)
		}
		a.allocs[al.ID] = &al
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[employeeID]; ok {
		return nil
	}
	l.accounts[employeeID] = a
	for id := range a.allocs {
		l.index[id] = employeeID
	}
	return nil
}

// Reserve holds pct of the employee's capacity for a project.
func (l *Ledger) Reserve(employeeID, projectID string, pct model.Percent) (Reservation, error) {
	const op = "ledger.reserve"
	if !pct.ValidAllocation() {
		return Reservation{}, fault.New(op, fault.ErrValidation,
			"percentage %s outside (0%%, 100%%]", pct).WithEmployee(employeeID).WithProject(projectID)
	}

	a := l.open(employeeID)
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.activeFor(projectID) != nil || a.heldFor(projectID) {
		return Reservation{}, fault.New(op, fault.ErrDuplicateAllocation,
			"an active allocation already exists").WithEmployee(employeeID).WithProject(projectID)
	}
	if used := a.used(); used+pct > model.Full {
		return Reservation{}, fault.New(op, fault.ErrInsufficientCapacity,
			"allocated %s + requested %s exceeds 100%%", used, pct).WithEmployee(employeeID).WithProject(projectID)
	}

	res := Reservation{Token: l.newToken(), EmployeeID: employeeID, ProjectID: projectID, Percentage: pct}
	a.holds[res.Token] = hold{projectID: projectID, pct: pct}
	a.take(pct)
	return res, nil
}

// Release returns a held reservation's capacity.
func (l *Ledger) Release(res Reservation) error {
	a, ok := l.lookup(res.EmployeeID)
	if !ok {
		return fault.New("ledger.release", fault.ErrNotFound, "unknown reservation %s", res.Token).WithEmployee(res.EmployeeID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	h, ok := a.holds[res.Token]
	if !ok {
		return fault.New("ledger.release", fault.ErrNotFound, "unknown reservation %s", res.Token).WithEmployee(res.EmployeeID)
	}
	delete(a.holds, res.Token)
	a.release(h.pct)
	return nil
}

// Commit turns a hold into an allocation. Capacity does not move.
func (l *Ledger) Commit(res Reservation, al model.Allocation) error {
	const op = "ledger.commit"
	if al.EmployeeID != res.EmployeeID || al.ProjectID != res.ProjectID || al.Percentage != res.Percentage {
		return fmt.Errorf("%s: %w", op, ErrReservationMismatch)
	}
	if !al.Status.Active() {
		return fault.New(op, fault.ErrInvalidTransition, "cannot commit a %s allocation", al.Status).
			WithEmployee(al.EmployeeID).WithProject(al.ProjectID)
	}
	a, ok := l.lookup(res.EmployeeID)
	if !ok {
		return fault.New(op, fault.ErrNotFound, "unknown reservation %s", res.Token).WithEmployee(res.EmployeeID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.holds[res.Token]; !ok {
		return fault.New(op, fault.ErrNotFound, "unknown reservation %s", res.Token).WithEmployee(res.EmployeeID)
	}
	delete(a.holds, res.Token)
	a.allocs[al.ID] = &al
	l.index[al.ID] = a.id
	return nil
}

// Transition moves an allocation through proposed → confirmed → completed.
// Completion accepts both active states, so a project can complete proposed
// allocations too. Completion returns the allocation's capacity. Completed is terminal.
func (l *Ledger) Transition(allocationID string, to model.AllocationStatus) (model.Allocation, Undo, error) {
	const op = "ledger.transition"
	a, al, err := l.locate(op, allocationID)
	if err != nil {
		return model.Allocation{}, nil, err
	}
	defer a.mu.Unlock()

	from := al.Status
	if !allowed(from, to) {
		return model.Allocation{}, nil, fault.New(op, fault.ErrInvalidTransition, "%s -> %s", from, to).
			WithEmployee(al.EmployeeID).WithProject(al.ProjectID)
	}
	al.Status = to
	if to == model.AllocationCompleted {
		a.release(al.Percentage)
	}
	out := *al

	undo := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		al.Status = from
		if to == model.AllocationCompleted {
			a.take(al.Percentage)
		}
	}
	return out, undo, nil
}

func allowed(from, to model.AllocationStatus) bool {
	switch from {
	case model.AllocationProposed:
		return to == model.AllocationConfirmed || to == model.AllocationCompleted
	case model.AllocationConfirmed:
		return to == model.AllocationCompleted
	default:
		return false
	}
}

// Remove deletes the employee's active allocation on a project and returns its capacity.
func (l *Ledger) Remove(employeeID, projectID string) (model.Allocation, Undo, error) {
	const op = "ledger.remove"
	a, ok := l.lookup(employeeID)
	if !ok {
		return model.Allocation{}, nil, fault.New(op, fault.ErrNotFound, "no active allocation").
			WithEmployee(employeeID).WithProject(projectID)
	}
	a.mu.Lock()
	al := a.activeFor(projectID)
	if al == nil {
		a.mu.Unlock()
		return model.Allocation{}, nil, fault.New(op, fault.ErrNotFound, "no active allocation").
			WithEmployee(employeeID).WithProject(projectID)
	}
	id := al.ID
	a.mu.Unlock()
	return l.Delete(id)
}

// Delete removes an allocation by id. Completed allocations cannot be removed.
func (l *Ledger) Delete(allocationID string) (model.Allocation, Undo, error) {
	const op = "ledger.delete"
	l.mu.Lock()
	defer l.mu.Unlock()

	employeeID, ok := l.index[allocationID]
	if !ok {
		return model.Allocation{}, nil, fault.New(op, fault.ErrNotFound, "allocation %s", allocationID)
	}
	a := l.accounts[employeeID]
	a.mu.Lock()
	defer a.mu.Unlock()

	al := a.allocs[allocationID]
	if !al.Status.Active() {
		return model.Allocation{}, nil, fault.New(op, fault.ErrInvalidTransition, "allocation is %s", al.Status).
			WithEmployee(al.EmployeeID).WithProject(al.ProjectID)
	}
	delete(a.allocs, allocationID)
	delete(l.index, allocationID)
	a.release(al.Percentage)
	out := *al

	undo := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		a.mu.Lock()
		defer a.mu.Unlock()
		a.allocs[al.ID] = al
		l.index[al.ID] = a.id
		a.take(al.Percentage)
	}
	return out, undo, nil
}

// locate returns the allocation's account locked.
func (l *Ledger) locate(op, allocationID string) (*account, *model.Allocation, error) {
	l.mu.RLock()
	employeeID, ok := l.index[allocationID]
	a := l.accounts[employeeID]
	l.mu.RUnlock()
	if !ok {
		return nil, nil, fault.New(op, fault.ErrNotFound, "allocation %s", allocationID)
	}
	a.mu.Lock()
	al, ok := a.allocs[allocationID]
	if !ok {
		a.mu.Unlock()
		return nil, nil, fault.New(op, fault.ErrNotFound, "allocation %s", allocationID)
	}
	return a, al, nil
}

// Remaining returns the employee's unallocated capacity.
func (l *Ledger) Remaining(employeeID string) (model.Percent, error) {
	a, ok := l.lookup(employeeID)
	if !ok {
		return 0, fault.New("ledger.remaining", fault.ErrNotFound, "no account").WithEmployee(employeeID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining, nil
}

// Snapshot returns the remaining capacity of every known employee in ids,
// read while all of their accounts are locked.
func (l *Ledger) Snapshot(ids []string) map[string]model.Percent {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	l.mu.RLock()
	defer l.mu.RUnlock()

	locked := make([]*account, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		if a, ok := l.accounts[id]; ok {
			a.mu.Lock()
			locked = append(locked, a)
		}
	}
	out := make(map[string]model.Percent, len(locked))
	for _, a := range locked {
		out[a.id] = a.remaining
		a.mu.Unlock()
	}
	return out
}

// Find returns the active allocation of a pair.
func (l *Ledger) Find(employeeID, projectID string) (model.Allocation, bool) {
	a, ok := l.lookup(employeeID)
	if !ok {
		return model.Allocation{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if al := a.activeFor(projectID); al != nil {
		return *al, true
	}
	return model.Allocation{}, false
}

// Allocation returns an allocation by id in any status.
func (l *Ledger) Allocation(allocationID string) (model.Allocation, error) {
	a, al, err := l.locate("ledger.allocation", allocationID)
	if err != nil {
		return model.Allocation{}, err
	}
	defer a.mu.Unlock()
	return *al, nil
}

// Active returns the employee's proposed and confirmed allocations ordered by project id.
func (l *Ledger) Active(employeeID string) []model.Allocation {
	a, ok := l.lookup(employeeID)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Allocation, 0, len(a.allocs))
	for _, al := range a.allocs {
		if al.Status.Active() {
			out = append(out, *al)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// ActiveForProject returns every active allocation on a project ordered by employee id.
func (l *Ledger) ActiveForProject(projectID string) []model.Allocation {
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	var out []model.Allocation
	for _, a := range accounts {
		a.mu.Lock()
		if al := a.activeFor(projectID); al != nil {
			out = append(out, *al)
		}
		a.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}

// Verify checks the capacity invariant for one employee.
func (l *Ledger) Verify(employeeID string) error {
	a, ok := l.lookup(employeeID)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.verify()
}

// VerifyAll checks the capacity invariant for every account.
func (l *Ledger) VerifyAll() error {
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	var errs []error
	for _, a := range accounts {
		a.mu.Lock()
		if err := a.verify(); err != nil {
			errs = append(errs, err)
		}
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Totals summarizes the ledger.
func (l *Ledger) Totals() Totals {
	l.mu.RLock()
	accounts := make([]*account, 0, len(l.accounts))
	for _, a := range l.accounts {
		accounts = append(accounts, a)
	}
	l.mu.RUnlock()

	t := Totals{Employees: len(accounts)}
	for _, a := range accounts {
		a.mu.Lock()
		for _, al := range a.allocs {
			if al.Status.Active() {
				t.ActiveAllocations++
				t.Allocated += al.Percentage
			}
		}
		a.mu.Unlock()
	}
	return t
}
