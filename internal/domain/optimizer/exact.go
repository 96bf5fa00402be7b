package optimizer

import (
	"context"
	"math"

	"github.com/okian/allot/internal/domain/fault"
)

const ctxCheckInterval = 1024

type search struct {
	inst     *instance
	ctx      context.Context //nolint:containedctx // scoped to one search
	maxNodes int64
	nodes    int64
	err      error

	used      []float64 // hours per employee
	count     []int     // assignees per project
	covered   []float64 // effective hours per project
	potential []float64 // effective hours still obtainable from undecided candidates
	maxEff    []float64 // best efficiency among a project's candidates
	suffix    []int64   // Σ points of cands[i:]

	chosen  []bool
	best    int64
	bestSet []bool
	found   bool
}

func (inst *instance) branchAndBound(ctx context.Context, maxNodes int64) (Result, error) {
	n := len(inst.cands)
	s := &search{
		inst:      inst,
		ctx:       ctx,
		maxNodes:  maxNodes,
		used:      make([]float64, len(inst.employees)),
		count:     make([]int, len(inst.projects)),
		covered:   make([]float64, len(inst.projects)),
		potential: make([]float64, len(inst.projects)),
		maxEff:    make([]float64, len(inst.projects)),
		suffix:    make([]int64, n+1),
		chosen:    make([]bool, n),
		bestSet:   make([]bool, n),
	}
	for i := n - 1; i >= 0; i-- {
		c := inst.cands[i]
		s.suffix[i] = s.suffix[i+1] + c.points
		eff := inst.employees[c.e].Efficiency
		s.potential[c.p] += eff * inst.load[c.p]
		s.maxEff[c.p] = math.Max(s.maxEff[c.p], eff)
	}

	feasible := true
	for p := range inst.projects {
		if !s.viable(p) {
			feasible = false
			break
		}
	}
	if feasible {
		s.visit(0, 0)
	}

	res := Result{Mode: MethodOptimal, Nodes: s.nodes}
	if s.err != nil {
		return res, s.err
	}
	if !s.found {
		res.Status = StatusInfeasible
		return res, nil
	}

	res.Status = StatusOptimal
	res.ObjectiveValue = s.best
	for i, ok := range s.bestSet {
		if ok {
			res.Assignments = append(res.Assignments, inst.assignment(inst.cands[i]))
		}
	}
	sortAssignments(res.Assignments)
	return res, nil
}

// viable reports whether project p can still meet its demand.
func (s *search) viable(p int) bool {
	pr := s.inst.projects[p]
	slots := float64(pr.Headcount - s.count[p])
	reach := math.Min(s.potential[p], slots*s.maxEff[p]*s.inst.load[p])
	return s.covered[p]+reach >= pr.HoursNeeded-epsilon
}

func (s *search) demandMet() bool {
	for p, pr := range s.inst.projects {
		if s.covered[p] < pr.HoursNeeded-epsilon {
			return false
		}
	}
	return true
}

func (s *search) visit(i int, cur int64) {
	if s.err != nil {
		return
	}
	s.nodes++
	if s.nodes > s.maxNodes {
		s.err = fault.New("optimizer.exact", fault.ErrSolverTimeout, "node budget %d exhausted", s.maxNodes)
		return
	}
	if s.nodes%ctxCheckInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = fault.Wrap("optimizer.exact", fault.ErrSolverTimeout, err)
			return
		}
	}
	if s.found && cur+s.suffix[i] <= s.best {
		return
	}
	if i == len(s.inst.cands) {
		if s.demandMet() {
			s.best = cur
			copy(s.bestSet, s.chosen)
			s.found = true
		}
		return
	}

	c := s.inst.cands[i]
	load := s.inst.load[c.p]
	gain := s.inst.employees[c.e].Efficiency * load
	s.potential[c.p] -= gain

	if s.count[c.p] < s.inst.projects[c.p].Headcount &&
		s.used[c.e]+load <= s.inst.employees[c.e].AvailableHours+epsilon {
		s.used[c.e] += load
		s.count[c.p]++
		s.covered[c.p] += gain
		s.chosen[i] = true
		if s.viable(c.p) {
			s.visit(i+1, cur+c.points)
		}
		s.chosen[i] = false
		s.covered[c.p] -= gain
		s.count[c.p]--
		s.used[c.e] -= load
	}

	if s.viable(c.p) {
		s.visit(i+1, cur)
	}
	s.potential[c.p] += gain
}
