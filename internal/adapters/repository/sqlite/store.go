// Package sqlite provides a SQLite-backed repository for the allocation engine.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/allot/internal/domain/model"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store persists engine state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ repository.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Open opens a SQLite store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// placeholders returns "?, ?, ?" for n values and the values as []any.
func placeholders[T ~string](values []T) (string, []any) {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = string(v)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "), args
}

// Employees implements repository.Repository.
func (s *Store) Employees(ctx context.Context, f repository.EmployeeFilter) ([]model.Employee, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if len(f.IDs) > 0 {
		ph, a := placeholders(f.IDs)
		where = append(where, "id IN ("+ph+")")
		args = append(args, a...)
	}
	if f.ActiveOnly {
		where = append(where, "active = 1")
	}
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	query := "SELECT id, name, performance, capacity_remaining, active, role FROM employees"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var (
		out   []model.Employee
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			e      model.Employee
			active int
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Performance, &e.CapacityRemaining, &active, &e.Role); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Active = active == 1
		index[e.ID] = len(out)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := s.attachSkills(ctx, out, index); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachSkills(ctx context.Context, employees []model.Employee, index map[string]int) error {
	ids := make([]string, 0, len(employees))
	for _, e := range employees {
		ids = append(ids, e.ID)
	}
	ph, args := placeholders(ids)
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT employee_id, skill_id, skill_name, proficiency FROM employee_skills WHERE employee_id IN ("+ph+") ORDER BY employee_id, skill_id",
		args...,
	)
	if err != nil {
		return fmt.Errorf("list employee skills: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			employeeID string
			sk         model.Skill
		)
		if err := rows.Scan(&employeeID, &sk.ID, &sk.Name, &sk.Proficiency); err != nil {
			return fmt.Errorf("scan employee skill: %w", err)
		}
		if i, ok := index[employeeID]; ok {
			employees[i].Skills = append(employees[i].Skills, sk)
		}
	}
	return rows.Err()
}

// Employee implements repository.Repository.
func (s *Store) Employee(ctx context.Context, id string) (model.Employee, error) {
	es, err := s.Employees(ctx, repository.EmployeeFilter{IDs: []string{id}})
	if err != nil {
		return model.Employee{}, err
	}
	if len(es) == 0 {
		return model.Employee{}, repository.ErrNotFound
	}
	return es[0], nil
}

// SaveEmployee implements repository.Repository. Skills are replaced.
func (s *Store) SaveEmployee(ctx context.Context, e model.Employee) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateEmployee(e); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO employees (id, name, performance, capacity_remaining, active, role)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   performance = excluded.performance,
			   capacity_remaining = excluded.capacity_remaining,
			   active = excluded.active,
			   role = excluded.role`,
			e.ID, e.Name, e.Performance, int64(e.CapacityRemaining), boolInt(e.Active), e.Role,
		); err != nil {
			return fmt.Errorf("upsert employee: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM employee_skills WHERE employee_id = ?", e.ID); err != nil {
			return fmt.Errorf("clear employee skills: %w", err)
		}
		for _, sk := range e.Skills {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO employee_skills (employee_id, skill_id, skill_name, proficiency) VALUES (?, ?, ?, ?)",
				e.ID, sk.ID, sk.Name, sk.Proficiency,
			); err != nil {
				return fmt.Errorf("insert employee skill: %w", err)
			}
		}
		return nil
	})
}

// Project implements repository.Repository.
func (s *Store) Project(ctx context.Context, id string) (model.Project, error) {
	if err := ctx.Err(); err != nil {
		return model.Project{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, name, hours_needed, priority, status, manager_id FROM projects WHERE id = ?", id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (model.Project, error) {
	var (
		p      model.Project
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.HoursNeeded, &p.Priority, &status, &p.ManagerID); err != nil {
		return model.Project{}, err
	}
	p.Status = model.ProjectStatus(status)
	return p, nil
}

// Projects implements repository.Repository.
func (s *Store) Projects(ctx context.Context, f repository.ProjectFilter) ([]model.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if len(f.IDs) > 0 {
		ph, a := placeholders(f.IDs)
		where = append(where, "id IN ("+ph+")")
		args = append(args, a...)
	}
	if len(f.Statuses) > 0 {
		ph, a := placeholders(f.Statuses)
		where = append(where, "status IN ("+ph+")")
		args = append(args, a...)
	}
	query := "SELECT id, name, hours_needed, priority, status, manager_id FROM projects"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProject implements repository.Repository.
func (s *Store) SaveProject(ctx context.Context, p model.Project) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateProject(p); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO projects (id, name, hours_needed, priority, status, manager_id)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   hours_needed = excluded.hours_needed,
		   priority = excluded.priority,
		   status = excluded.status,
		   manager_id = excluded.manager_id`,
		p.ID, p.Name, p.HoursNeeded, p.Priority, string(p.Status), p.ManagerID,
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// SkillRequirements implements repository.Repository.
func (s *Store) SkillRequirements(ctx context.Context, projectID string) ([]model.SkillRequirement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT project_id, skill_id, employees_requested FROM skill_requirements WHERE project_id = ? ORDER BY position",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list skill requirements: %w", err)
	}
	defer rows.Close()
	var out []model.SkillRequirement
	for rows.Next() {
		var r model.SkillRequirement
		if err := rows.Scan(&r.ProjectID, &r.SkillID, &r.EmployeesRequested); err != nil {
			return nil, fmt.Errorf("scan skill requirement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveSkillRequirements implements repository.Repository. The list is replaced.
func (s *Store) SaveSkillRequirements(ctx context.Context, projectID string, reqs []model.SkillRequirement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM skill_requirements WHERE project_id = ?", projectID); err != nil {
			return fmt.Errorf("clear skill requirements: %w", err)
		}
		for i, r := range reqs {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR REPLACE INTO skill_requirements (project_id, skill_id, employees_requested, position) VALUES (?, ?, ?, ?)",
				projectID, r.SkillID, r.EmployeesRequested, i,
			); err != nil {
				return fmt.Errorf("insert skill requirement: %w", err)
			}
		}
		return nil
	})
}

// ActiveAllocations implements repository.Repository.
func (s *Store) ActiveAllocations(ctx context.Context, f repository.AllocationFilter) ([]model.Allocation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	where := []string{"status IN (?, ?)"}
	args := []any{string(model.AllocationProposed), string(model.AllocationConfirmed)}
	if f.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, f.EmployeeID)
	}
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, employee_id, project_id, percentage, hours_allocated, status, is_recommended, confidence, created_at
		 FROM allocations WHERE `+strings.Join(where, " AND ")+` ORDER BY employee_id, project_id, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var out []model.Allocation
	for rows.Next() {
		var (
			a           model.Allocation
			status      string
			recommended int
			confidence  sql.NullFloat64
			createdAt   int64
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ProjectID, &a.Percentage, &a.HoursAllocated,
			&status, &recommended, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan allocation: %w", err)
		}
		a.Status = model.AllocationStatus(status)
		a.Recommended = recommended == 1
		if confidence.Valid {
			c := confidence.Float64
			a.Confidence = &c
		}
		a.CreatedAt = fromMillis(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveAllocation implements repository.Repository.
func (s *Store) SaveAllocation(ctx context.Context, a model.Allocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := repository.ValidateAllocation(a); err != nil {
		return err
	}
	var confidence sql.NullFloat64
	if a.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *a.Confidence, Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO allocations (id, employee_id, project_id, percentage, hours_allocated, status, is_recommended, confidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   percentage = excluded.percentage,
		   hours_allocated = excluded.hours_allocated,
		   status = excluded.status,
		   is_recommended = excluded.is_recommended,
		   confidence = excluded.confidence`,
		a.ID, a.EmployeeID, a.ProjectID, int64(a.Percentage), a.HoursAllocated, string(a.Status),
		boolInt(a.Recommended), confidence, toMillis(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert allocation: %w", err)
	}
	return nil
}

// DeleteAllocation implements repository.Repository.
func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete allocation: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
