package repository

import (
	"context"
	"sync"

	"github.com/okian/allot/internal/domain/model"
)

// MemoryStore implements Repository with maps guarded by one RWMutex.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu           sync.RWMutex
	employees    map[string]model.Employee
	projects     map[string]model.Project
	requirements map[string][]model.SkillRequirement
	allocations  map[string]model.Allocation
	closed       bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		employees:    make(map[string]model.Employee),
		projects:     make(map[string]model.Project),
		requirements: make(map[string][]model.SkillRequirement),
		allocations:  make(map[string]model.Allocation),
	}
}

func (s *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Employees implements Repository.
func (s *MemoryStore) Employees(ctx context.Context, f EmployeeFilter) ([]model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		if f.Match(e) {
			out = append(out, e.Clone())
		}
	}
	SortEmployees(out)
	return out, nil
}

// Employee implements Repository.
func (s *MemoryStore) Employee(ctx context.Context, id string) (model.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Employee{}, err
	}
	e, ok := s.employees[id]
	if !ok {
		return model.Employee{}, ErrNotFound
	}
	return e.Clone(), nil
}

// Project implements Repository.
func (s *MemoryStore) Project(ctx context.Context, id string) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return model.Project{}, err
	}
	p, ok := s.projects[id]
	if !ok {
		return model.Project{}, ErrNotFound
	}
	return p, nil
}

// Projects implements Repository.
func (s *MemoryStore) Projects(ctx context.Context, f ProjectFilter) ([]model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(s.projects))
	for _, p := range s.projects {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	SortProjects(out)
	return out, nil
}

// SkillRequirements implements Repository.
func (s *MemoryStore) SkillRequirements(ctx context.Context, projectID string) ([]model.SkillRequirement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return append([]model.SkillRequirement(nil), s.requirements[projectID]...), nil
}

// ActiveAllocations implements Repository.
func (s *MemoryStore) ActiveAllocations(ctx context.Context, f AllocationFilter) ([]model.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []model.Allocation
	for _, a := range s.allocations {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	SortAllocations(out)
	return out, nil
}

// SaveEmployee implements Repository.
func (s *MemoryStore) SaveEmployee(ctx context.Context, e model.Employee) error {
	if err := ValidateEmployee(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.employees[e.ID] = e.Clone()
	return nil
}

// SaveProject implements Repository.
func (s *MemoryStore) SaveProject(ctx context.Context, p model.Project) error {
	if err := ValidateProject(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.projects[p.ID] = p
	return nil
}

// SaveSkillRequirements implements Repository. It replaces the project's list.
func (s *MemoryStore) SaveSkillRequirements(ctx context.Context, projectID string, reqs []model.SkillRequirement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	out := make([]model.SkillRequirement, 0, len(reqs))
	for _, r := range reqs {
		r.ProjectID = projectID
		out = append(out, r)
	}
	s.requirements[projectID] = out
	return nil
}

// SaveAllocation implements Repository.
func (s *MemoryStore) SaveAllocation(ctx context.Context, a model.Allocation) error {
	if err := ValidateAllocation(a); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	s.allocations[a.ID] = a
	return nil
}

// DeleteAllocation implements Repository.
func (s *MemoryStore) DeleteAllocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.allocations[id]; !ok {
		return ErrNotFound
	}
	delete(s.allocations, id)
	return nil
}

// Close implements Repository.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
