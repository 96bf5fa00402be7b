// Package redisstore keeps engine state in Redis as JSON documents with set
// indexes, so several engine processes can share one working set.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces keys when no prefix is configured.
const DefaultPrefix = "allot"

// Store implements repository.Repository on Redis.
type Store struct {
	rdb  *redis.Client
	keys keys
}

var _ repository.Repository = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts *redis.Options, prefix string) (*Store, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options are required")
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	s := &Store{rdb: redis.NewClient(opts), keys: keys{prefix: prefix}}
	if err := s.Ping(ctx); err != nil {
		_ = s.rdb.Close()
		return nil, err
	}
	return s, nil
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) put(ctx context.Context, pipe redis.Pipeliner, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return pipe.Set(ctx, key, data, 0).Err()
}

// loadMany fetches JSON documents with one MGET, skipping keys that vanished.
func loadMany[T any](ctx context.Context, rdb *redis.Client, docKeys []string) ([]T, error) {
	if len(docKeys) == 0 {
		return nil, nil
	}
	vals, err := rdb.MGet(ctx, docKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	out := make([]T, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", docKeys[i], err)
		}
		out = append(out, doc)
	}
	return out, nil
}

func loadOne[T any](ctx context.Context, rdb *redis.Client, key string) (T, error) {
	var doc T
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return doc, repository.ErrNotFound
	}
	if err != nil {
		return doc, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (s *Store) ids(ctx context.Context, explicit []string, set string) ([]string, error) {
	if len(explicit) > 0 {
		return explicit, nil
	}
	ids, err := s.rdb.SMembers(ctx, set).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", set, err)
	}
	return ids, nil
}

// Employees implements repository.Repository.
func (s *Store) Employees(ctx context.Context, f repository.EmployeeFilter) ([]model.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.ids(ctx, f.IDs, s.keys.employees())
	if err != nil {
		return nil, err
	}
	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.employee(id)
	}
	docs, err := loadMany[model.Employee](ctx, s.rdb, docKeys)
	if err != nil {
		return nil, err
	}
	out := make([]model.Employee, 0, len(docs))
	for _, e := range docs {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	repository.SortEmployees(out)
	return out, nil
}

// Employee implements repository.Repository.
func (s *Store) Employee(ctx context.Context, id string) (model.Employee, error) {
	if err := ctx.Err(); err != nil {
		return model.Employee{}, err
	}
	return loadOne[model.Employee](ctx, s.rdb, s.keys.employee(id))
}

// SaveEmployee implements repository.Repository.
func (s *Store) SaveEmployee(ctx context.Context, e model.Employee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateEmployee(e); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.put(ctx, pipe, s.keys.employee(e.ID), e); err != nil {
			return err
		}
		return pipe.SAdd(ctx, s.keys.employees(), e.ID).Err()
	})
	if err != nil {
		return fmt.Errorf("save employee %s: %w", e.ID, err)
	}
	return nil
}

// Project implements repository.Repository.
func (s *Store) Project(ctx context.Context, id string) (model.Project, error) {
	if err := ctx.Err(); err != nil {
		return model.Project{}, err
	}
	return loadOne[model.Project](ctx, s.rdb, s.keys.project(id))
}

// Projects implements repository.Repository.
func (s *Store) Projects(ctx context.Context, f repository.ProjectFilter) ([]model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.ids(ctx, f.IDs, s.keys.projects())
	if err != nil {
		return nil, err
	}
	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.project(id)
	}
	docs, err := loadMany[model.Project](ctx, s.rdb, docKeys)
	if err != nil {
		return nil, err
	}
	out := make([]model.Project, 0, len(docs))
	for _, p := range docs {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	repository.SortProjects(out)
	return out, nil
}

// SaveProject implements repository.Repository.
func (s *Store) SaveProject(ctx context.Context, p model.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateProject(p); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.put(ctx, pipe, s.keys.project(p.ID), p); err != nil {
			return err
		}
		return pipe.SAdd(ctx, s.keys.projects(), p.ID).Err()
	})
	if err != nil {
		return fmt.Errorf("save project %s: %w", p.ID, err)
	}
	return nil
}

// SkillRequirements implements repository.Repository.
func (s *Store) SkillRequirements(ctx context.Context, projectID string) ([]model.SkillRequirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reqs, err := loadOne[[]model.SkillRequirement](ctx, s.rdb, s.keys.requirements(projectID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return reqs, err
}

// SaveSkillRequirements implements repository.Repository. The list is replaced.
func (s *Store) SaveSkillRequirements(ctx context.Context, projectID string, reqs []model.SkillRequirement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := make([]model.SkillRequirement, len(reqs))
	for i, r := range reqs {
		r.ProjectID = projectID
		stored[i] = r
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}
	if err := s.rdb.Set(ctx, s.keys.requirements(projectID), data, 0).Err(); err != nil {
		return fmt.Errorf("save requirements %s: %w", projectID, err)
	}
	return nil
}

// ActiveAllocations implements repository.Repository.
func (s *Store) ActiveAllocations(ctx context.Context, f repository.AllocationFilter) ([]model.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set := s.keys.activeAllocations()
	switch {
	case f.EmployeeID != "":
		set = s.keys.employeeAllocations(f.EmployeeID)
	case f.ProjectID != "":
		set = s.keys.projectAllocations(f.ProjectID)
	}
	ids, err := s.ids(ctx, nil, set)
	if err != nil {
		return nil, err
	}
	docKeys := make([]string, len(ids))
	for i, id := range ids {
		docKeys[i] = s.keys.allocation(id)
	}
	docs, err := loadMany[model.Allocation](ctx, s.rdb, docKeys)
	if err != nil {
		return nil, err
	}
	out := make([]model.Allocation, 0, len(docs))
	for _, a := range docs {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	repository.SortAllocations(out)
	return out, nil
}

// SaveAllocation implements repository.Repository. Completed allocations
// leave the active indexes but keep their document.
func (s *Store) SaveAllocation(ctx context.Context, a model.Allocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateAllocation(a); err != nil {
		return err
	}
	indexes := []string{
		s.keys.activeAllocations(),
		s.keys.employeeAllocations(a.EmployeeID),
		s.keys.projectAllocations(a.ProjectID),
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if err := s.put(ctx, pipe, s.keys.allocation(a.ID), a); err != nil {
			return err
		}
		for _, idx := range indexes {
			if a.Status.Active() {
				pipe.SAdd(ctx, idx, a.ID)
			} else {
				pipe.SRem(ctx, idx, a.ID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save allocation %s: %w", a.ID, err)
	}
	return nil
}

// DeleteAllocation implements repository.Repository.
func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a, err := loadOne[model.Allocation](ctx, s.rdb, s.keys.allocation(id))
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.keys.allocation(id))
		pipe.SRem(ctx, s.keys.activeAllocations(), id)
		pipe.SRem(ctx, s.keys.employeeAllocations(a.EmployeeID), id)
		pipe.SRem(ctx, s.keys.projectAllocations(a.ProjectID), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete allocation %s: %w", id, err)
	}
	return nil
}
