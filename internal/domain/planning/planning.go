// Package planning turns repository state into optimizer problems and
// optimizer results into recommendations or proposed allocations.
package planning

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/allot/internal/adapters/repository"
	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/lifecycle"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/ranking"
	"github.com/okian/allot/internal/domain/scoring"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
	"github.com/okian/allot/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Default planner configuration constants.
const (
	DefaultLimit       = 10
	defaultConcurrency = 8
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// Envelope messages.
const (
	MsgRecommended    = "Recommendations generated successfully"
	MsgNoRequirements = "No skill requirements found for this project"
	MsgNoEmployees    = "No available employees found"
	MsgInfeasible     = "No assignment satisfies the project's capacity and demand constraints"
)

// Recommendation is one ranked candidate for a project.
type Recommendation struct {
	EmployeeID     string               `json:"employee_id"`
	EmployeeName   string               `json:"employee_name"`
	MatchScore     float64              `json:"match_score"`
	AvailableHours float64              `json:"available_hours"`
	Explanation    string               `json:"explanation"`
	Selected       bool                 `json:"selected"`
	Breakdown      model.ScoreBreakdown `json:"breakdown"`
}

// Recommendations is the recommendation envelope.
type Recommendations struct {
	ProjectID       string           `json:"project_id"`
	Status          string           `json:"status"`
	Message         string           `json:"message"`
	Recommendations []Recommendation `json:"recommendations"`
	Mode            string           `json:"mode,omitempty"`
	ObjectiveValue  int64            `json:"objective_value"`
}

// Plan is the optimize envelope.
type Plan struct {
	Assignments    []optimizer.Assignment `json:"assignments"`
	Mode           string                 `json:"mode"`
	Status         string                 `json:"status"`
	ObjectiveValue int64                  `json:"objective_value"`
	Nodes          int64                  `json:"nodes"`
	ElapsedMs      float64                `json:"elapsed_ms"`
	TimedOut       bool                   `json:"timed_out"`
	Unmet          map[string]float64     `json:"unmet_hours,omitempty"`
	Skipped        []string               `json:"skipped_projects,omitempty"`
	Proposals      []lifecycle.Proposal   `json:"-"`
}

// Planner builds and solves allocation problems from a consistent snapshot.
type Planner struct {
	repo      repository.Repository
	lifecycle *lifecycle.Manager
	solver    optimizer.Solver
	fallback  optimizer.Solver
	scorer    *scoring.Scorer

	limit       int
	concurrency int

	logger logger.Logger
}

// New creates a Planner. solver is usually a worker client in front of the
// solve pool; it must honour ctx cancellation.
func New(repo repository.Repository, lc *lifecycle.Manager, solver optimizer.Solver, opts ...Option) *Planner {
	p := &Planner{
		repo:        repo,
		lifecycle:   lc,
		solver:      solver,
		scorer:      scoring.New(),
		limit:       DefaultLimit,
		concurrency: defaultConcurrency,
		logger:      logger.Get().Named("planner"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fallback == nil {
		p.fallback = optimizer.New(optimizer.WithMode(optimizer.ModeHeuristic), optimizer.WithLogger(p.logger))
	}
	return p
}

// snapshot loads assignable employees and overlays the ledger's remaining
// capacity. Employees without spare capacity are dropped.
func (p *Planner) snapshot(ctx context.Context) ([]model.Employee, error) {
	employees, err := p.repo.Employees(ctx, repository.EmployeeFilter{ActiveOnly: true, Role: model.RoleEmployee})
	if err != nil {
		return nil, fmt.Errorf("load employees: %w", err)
	}
	ids := make([]string, len(employees))
	for i, e := range employees {
		ids[i] = e.ID
	}
	if err := p.lifecycle.Hydrate(ctx, ids...); err != nil {
		return nil, fmt.Errorf("hydrate ledger: %w", err)
	}
	remaining := p.lifecycle.Ledger().Snapshot(ids)

	out := employees[:0]
	for _, e := range employees {
		r, ok := remaining[e.ID]
		if !ok || r <= 0 {
			continue
		}
		e.CapacityRemaining = r
		out = append(out, e)
	}
	return out, nil
}

func (p *Planner) problem(employees []model.Employee, projects []model.Project, reqs map[string][]model.SkillRequirement, entries []model.ScoreEntry) optimizer.Problem {
	hpw := p.lifecycle.HoursPerWeek()
	prob := optimizer.Problem{HoursPerWeek: hpw}
	for _, e := range employees {
		prob.Employees = append(prob.Employees, optimizer.Employee{
			ID:             e.ID,
			AvailableHours: e.CapacityRemaining.Hours(hpw),
		})
	}
	for _, pr := range projects {
		prob.Projects = append(prob.Projects, optimizer.Project{
			ID:          pr.ID,
			HoursNeeded: pr.HoursNeeded,
			Headcount:   model.Headcount(reqs[pr.ID]),
		})
	}
	for _, s := range entries {
		prob.Candidates = append(prob.Candidates, optimizer.Candidate{EmployeeID: s.EmployeeID, ProjectID: s.ProjectID, Score: s.Score})
	}
	return prob
}

// solve runs the primary solver and falls back to the heuristic on timeout.
func (p *Planner) solve(ctx context.Context, prob optimizer.Problem) (optimizer.Result, error) {
	res, err := p.solver.Solve(ctx, prob)
	if err == nil || !errors.Is(err, fault.ErrSolverTimeout) || ctx.Err() != nil {
		return res, err
	}
	p.logger.Warn(ctx, "solver timed out, using heuristic", logger.Error(err))
	res, err = p.fallback.Solve(ctx, prob)
	res.TimedOut = true
	return res, err
}

// Recommend ranks candidates for one project and marks those the optimizer selects.
func (p *Planner) Recommend(ctx context.Context, projectID string) (_ Recommendations, err error) {
	ctx, span := tracing.StartSpan(ctx, "planning.recommend", tracing.KindInternal)
	span.SetAttributes(map[string]any{"project.id": projectID})
	out := Recommendations{ProjectID: projectID, Recommendations: []Recommendation{}}
	defer func() {
		if err == nil {
			metrics.RecordRecommendation(out.Status)
			span.SetAttributes(map[string]any{"recommend.status": out.Status, "recommend.count": len(out.Recommendations)})
		} else {
			metrics.RecordError("planner", fault.KindName(err))
		}
		tracing.EndSpan(span, err)
	}()

	project, err := p.repo.Project(ctx, projectID)
	if errors.Is(err, fault.ErrNotFound) {
		return out, fault.New("recommend", fault.ErrNotFound, "project %s does not exist", projectID).WithProject(projectID)
	}
	if err != nil {
		return out, fmt.Errorf("recommend: load project: %w", err)
	}
	reqs, err := p.repo.SkillRequirements(ctx, projectID)
	if err != nil {
		return out, fmt.Errorf("recommend: load requirements: %w", err)
	}
	if len(model.RequiredSkillIDs(reqs)) == 0 {
		return warn(out, MsgNoRequirements), nil
	}
	for i := range reqs {
		reqs[i].ProjectID = projectID
	}

	employees, err := p.snapshot(ctx)
	if err != nil {
		return out, fmt.Errorf("recommend: %w", err)
	}
	if len(employees) == 0 {
		return warn(out, MsgNoEmployees), nil
	}

	byProject := map[string][]model.SkillRequirement{projectID: reqs}
	entries := p.scorer.Matrix(employees, byProject)
	if len(entries) == 0 {
		return warn(out, MsgNoEmployees), nil
	}

	res, err := p.solve(ctx, p.problem(employees, []model.Project{project}, byProject, entries))
	if err != nil {
		return out, fmt.Errorf("recommend: %w", err)
	}
	out.Mode = res.Mode
	out.ObjectiveValue = res.ObjectiveValue
	if res.Status == optimizer.StatusInfeasible || res.Status == optimizer.StatusEmpty {
		return warn(out, MsgInfeasible), nil
	}

	selected := make(map[string]bool, len(res.Assignments))
	for _, a := range res.Assignments {
		selected[a.EmployeeID] = true
	}
	names := make(map[string]model.Employee, len(employees))
	for _, e := range employees {
		names[e.ID] = e
	}
	entryByID := make(map[string]model.ScoreEntry, len(entries))
	board := ranking.New()
	for _, s := range entries {
		entryByID[s.EmployeeID] = s
		board.Upsert(s.EmployeeID, round(s.Score, 2))
	}

	hpw := p.lifecycle.HoursPerWeek()
	for _, ranked := range board.TopN(p.limit) {
		s := entryByID[ranked.ID]
		e := names[ranked.ID]
		out.Recommendations = append(out.Recommendations, Recommendation{
			EmployeeID:     e.ID,
			EmployeeName:   e.Name,
			MatchScore:     ranked.Score,
			AvailableHours: round(e.CapacityRemaining.Hours(hpw), 1),
			Explanation:    s.Breakdown.Text,
			Selected:       selected[e.ID],
			Breakdown:      s.Breakdown,
		})
	}
	out.Status = StatusSuccess
	out.Message = MsgRecommended
	return out, nil
}

func warn(r Recommendations, msg string) Recommendations {
	r.Status = StatusWarning
	r.Message = msg
	r.Recommendations = []Recommendation{}
	return r
}

// Optimize solves several projects together. With no ids every planning
// project is included. With apply set the assignments are committed as
// proposed allocations.
func (p *Planner) Optimize(ctx context.Context, projectIDs []string, apply bool) (_ Plan, err error) {
	ctx, span := tracing.StartSpan(ctx, "planning.optimize", tracing.KindInternal)
	span.SetAttributes(map[string]any{"optimize.projects": projectIDs, "optimize.apply": apply})
	defer func() {
		if err != nil {
			metrics.RecordError("planner", fault.KindName(err))
		}
		tracing.EndSpan(span, err)
	}()

	projects, err := p.projects(ctx, projectIDs)
	if err != nil {
		return Plan{}, err
	}
	reqs, err := p.requirements(ctx, projects)
	if err != nil {
		return Plan{}, err
	}
	employees, err := p.snapshot(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("optimize: %w", err)
	}

	entries := p.scorer.Matrix(employees, reqs)
	hasCandidate := make(map[string]bool)
	for _, s := range entries {
		hasCandidate[s.ProjectID] = true
	}
	var (
		solvable []model.Project
		skipped  []string
	)
	for _, pr := range projects {
		if hasCandidate[pr.ID] && pr.HoursNeeded > 0 {
			solvable = append(solvable, pr)
			continue
		}
		skipped = append(skipped, pr.ID)
	}

	res, err := p.solve(ctx, p.problem(employees, solvable, reqs, entries))
	if err != nil {
		return Plan{}, fmt.Errorf("optimize: %w", err)
	}
	plan := Plan{
		Assignments:    res.Assignments,
		Mode:           res.Mode,
		Status:         string(res.Status),
		ObjectiveValue: res.ObjectiveValue,
		Nodes:          res.Nodes,
		ElapsedMs:      float64(res.Elapsed.Microseconds()) / 1000,
		TimedOut:       res.TimedOut,
		Unmet:          res.Unmet,
		Skipped:        skipped,
	}
	if plan.Assignments == nil {
		plan.Assignments = []optimizer.Assignment{}
	}
	span.SetAttributes(map[string]any{"optimize.status": plan.Status, "optimize.objective": plan.ObjectiveValue})

	if apply && len(res.Assignments) > 0 {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		plan.Proposals = p.lifecycle.Propose(ctx, res.Assignments)
	}
	p.logger.Info(ctx, "optimization finished",
		logger.Int("projects", len(solvable)),
		logger.Strings("skipped", skipped),
		logger.String("mode", plan.Mode),
		logger.String("status", plan.Status),
		logger.Int64("objective", plan.ObjectiveValue),
		logger.Int64("nodes", plan.Nodes),
	)
	return plan, nil
}

func (p *Planner) projects(ctx context.Context, ids []string) ([]model.Project, error) {
	if len(ids) == 0 {
		ps, err := p.repo.Projects(ctx, repository.ProjectFilter{Statuses: []model.ProjectStatus{model.ProjectPlanning}})
		if err != nil {
			return nil, fmt.Errorf("optimize: load projects: %w", err)
		}
		return ps, nil
	}
	ps, err := p.repo.Projects(ctx, repository.ProjectFilter{IDs: ids})
	if err != nil {
		return nil, fmt.Errorf("optimize: load projects: %w", err)
	}
	found := make(map[string]bool, len(ps))
	for _, pr := range ps {
		found[pr.ID] = true
		if pr.Status == model.ProjectCompleted {
			return nil, fault.New("optimize", fault.ErrValidation, "project is completed").WithProject(pr.ID)
		}
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fault.New("optimize", fault.ErrNotFound, "project %s does not exist", id).WithProject(id)
		}
	}
	return ps, nil
}

// requirements loads every project's requirements concurrently.
func (p *Planner) requirements(ctx context.Context, projects []model.Project) (map[string][]model.SkillRequirement, error) {
	lists := make([][]model.SkillRequirement, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, pr := range projects {
		g.Go(func() error {
			reqs, err := p.repo.SkillRequirements(gctx, pr.ID)
			if err != nil {
				return fmt.Errorf("optimize: load requirements of %s: %w", pr.ID, err)
			}
			for j := range reqs {
				reqs[j].ProjectID = pr.ID
			}
			lists[i] = reqs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string][]model.SkillRequirement, len(projects))
	for i, pr := range projects {
		if len(lists[i]) > 0 {
			out[pr.ID] = lists[i]
		}
	}
	return out, nil
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
