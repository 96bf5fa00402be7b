// Package optimizer selects employee–project assignments that maximize total
// match score under capacity, demand and headcount constraints.
//
// For a candidate pair x[e,p] with per-assignee load(p) = hours(p)/headcount(p):
//
//	Σ_p x[e,p]·load(p)            ≤ available(e)   capacity
//	Σ_e x[e,p]·eff(e)·load(p)     ≥ hours(p)       demand
//	Σ_e x[e,p]                    ≤ headcount(p)   headcount
//	maximize Σ x[e,p]·round(score·100)
//
// The exact solver is a depth-first branch and bound. The greedy heuristic is
// computed independently and used when the exact search is disabled or runs
// out of time or nodes.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/allot/internal/domain/fault"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/internal/domain/scoring"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
)

// Default optimizer configuration constants.
const (
	DefaultHoursPerWeek = 40.0
	defaultTimeout      = 2 * time.Second
	defaultMaxNodes     = 5_000_000
	defaultEfficiency   = 1.0
	epsilon             = 1e-9
)

// Mode selects how Solve searches.
type Mode string

// Solve modes.
const (
	ModeAuto      Mode = "auto"      // exact, heuristic on timeout
	ModeExact     Mode = "exact"     // exact, ErrSolverTimeout on timeout
	ModeHeuristic Mode = "heuristic" // greedy only
)

// Method values reported in Result.Mode.
const (
	MethodOptimal   = "optimal"
	MethodHeuristic = "heuristic"
)

// Status describes the outcome of a solve.
type Status string

// Solve statuses.
const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusPartial    Status = "partial"
	StatusInfeasible Status = "infeasible"
	StatusEmpty      Status = "empty"
)

// Employee is the optimizer's view of an employee at snapshot time.
type Employee struct {
	ID             string
	AvailableHours float64
	Efficiency     float64
}

// Project is the optimizer's view of a project's demand.
type Project struct {
	ID          string
	HoursNeeded float64
	Headcount   int
}

// Candidate is a scored pair eligible for assignment.
type Candidate struct {
	EmployeeID string
	ProjectID  string
	Score      float64
}

// Problem is one snapshot to solve.
type Problem struct {
	Employees    []Employee
	Projects     []Project
	Candidates   []Candidate
	HoursPerWeek float64
}

// Assignment is one selected pair.
type Assignment struct {
	EmployeeID string        `json:"employee_id"`
	ProjectID  string        `json:"project_id"`
	Percentage model.Percent `json:"percentage"`
	Hours      float64       `json:"hours"`
	Score      float64       `json:"score"`
}

// Result is the solve envelope.
type Result struct {
	Assignments    []Assignment
	Mode           string
	Status         Status
	ObjectiveValue int64
	Nodes          int64
	Elapsed        time.Duration
	TimedOut       bool
	Unmet          map[string]float64
}

// Solver solves a Problem.
type Solver interface {
	Solve(ctx context.Context, p Problem) (Result, error)
}

// Optimizer implements Solver.
type Optimizer struct {
	mode     Mode
	timeout  time.Duration
	maxNodes int64
	logger   logger.Logger
}

// New creates an Optimizer.
func New(opts ...Option) *Optimizer {
	o := &Optimizer{
		mode:     ModeAuto,
		timeout:  defaultTimeout,
		maxNodes: defaultMaxNodes,
		logger:   logger.Get().Named("optimizer"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Mode returns the configured mode.
func (o *Optimizer) Mode() Mode { return o.mode }

// Solve returns an assignment set for p. Infeasible and empty problems are
// reported through Result.Status, not as errors. A cancelled ctx returns ctx.Err().
func (o *Optimizer) Solve(ctx context.Context, p Problem) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := time.Now()
	inst := compile(p)

	var (
		res Result
		err error
	)
	switch {
	case len(inst.cands) == 0:
		res = Result{Mode: o.method(), Status: StatusEmpty}
	case o.mode == ModeHeuristic:
		res = inst.greedy()
	default:
		res, err = o.exact(ctx, inst)
	}
	if err != nil {
		return Result{}, err
	}
	res.Elapsed = time.Since(start)
	metrics.RecordOptimization(res.Mode, string(res.Status), float64(res.Elapsed.Microseconds())/1000)
	return res, nil
}

func (o *Optimizer) method() string {
	if o.mode == ModeHeuristic {
		return MethodHeuristic
	}
	return MethodOptimal
}

func (o *Optimizer) exact(ctx context.Context, inst *instance) (Result, error) {
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	res, err := inst.branchAndBound(sctx, o.maxNodes)
	metrics.RecordSolverNodes(res.Nodes)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if !errors.Is(err, fault.ErrSolverTimeout) {
		return Result{}, err
	}

	metrics.RecordSolverTimeout()
	if o.mode == ModeExact {
		return Result{}, fmt.Errorf("optimizer: %w", err)
	}
	o.logger.Warn(ctx, "exact search abandoned, using heuristic",
		logger.Int64("nodes", res.Nodes),
		logger.Duration("timeout", o.timeout),
		logger.Error(err),
	)
	h := inst.greedy()
	h.Nodes = res.Nodes
	h.TimedOut = true
	return h, nil
}

// instance is a normalized, index-based form of a Problem.
type instance struct {
	hoursPerWeek float64
	employees    []Employee
	projects     []Project
	load         []float64 // per project
	cands        []cand    // sorted by points desc, employee id, project id
}

type cand struct {
	e, p   int
	score  float64
	points int64
}

func compile(p Problem) *instance {
	inst := &instance{hoursPerWeek: p.HoursPerWeek}
	if inst.hoursPerWeek <= 0 {
		inst.hoursPerWeek = DefaultHoursPerWeek
	}

	empIdx := make(map[string]int, len(p.Employees))
	for _, e := range p.Employees {
		if _, dup := empIdx[e.ID]; dup || e.AvailableHours <= 0 {
			continue
		}
		if e.Efficiency <= 0 {
			e.Efficiency = defaultEfficiency
		}
		empIdx[e.ID] = len(inst.employees)
		inst.employees = append(inst.employees, e)
	}

	projIdx := make(map[string]int, len(p.Projects))
	for _, pr := range p.Projects {
		if _, dup := projIdx[pr.ID]; dup || pr.HoursNeeded <= 0 {
			continue
		}
		if pr.Headcount < 1 {
			pr.Headcount = 1
		}
		projIdx[pr.ID] = len(inst.projects)
		inst.projects = append(inst.projects, pr)
		inst.load = append(inst.load, pr.HoursNeeded/float64(pr.Headcount))
	}

	seen := make(map[[2]int]struct{}, len(p.Candidates))
	for _, c := range p.Candidates {
		ei, ok := empIdx[c.EmployeeID]
		if !ok {
			continue
		}
		pi, ok := projIdx[c.ProjectID]
		if !ok || c.Score <= 0 {
			continue
		}
		key := [2]int{ei, pi}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		inst.cands = append(inst.cands, cand{e: ei, p: pi, score: c.Score, points: scoring.Points(c.Score)})
	}

	sort.Slice(inst.cands, func(i, j int) bool {
		a, b := inst.cands[i], inst.cands[j]
		if a.points != b.points {
			return a.points > b.points
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if ea, eb := inst.employees[a.e].ID, inst.employees[b.e].ID; ea != eb {
			return ea < eb
		}
		return inst.projects[a.p].ID < inst.projects[b.p].ID
	})
	return inst
}

func (inst *instance) assignment(c cand) Assignment {
	load := inst.load[c.p]
	return Assignment{
		EmployeeID: inst.employees[c.e].ID,
		ProjectID:  inst.projects[c.p].ID,
		Percentage: model.PercentOfHours(load, inst.hoursPerWeek),
		Hours:      load,
		Score:      c.score,
	}
}

func sortAssignments(as []Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].ProjectID != as[j].ProjectID {
			return as[i].ProjectID < as[j].ProjectID
		}
		if as[i].Score != as[j].Score {
			return as[i].Score > as[j].Score
		}
		return as[i].EmployeeID < as[j].EmployeeID
	})
}
