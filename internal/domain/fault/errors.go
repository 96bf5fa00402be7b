// Package fault defines the error kinds shared by the allocation engine.
package fault

import "errors"

// Sentinel kinds. Match them with errors.Is.
var (
	ErrInsufficientCapacity   = errors.New("insufficient capacity")
	ErrDuplicateAllocation    = errors.New("duplicate allocation")
	ErrSkillMismatch          = errors.New("skill mismatch")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInfeasibleOptimization = errors.New("infeasible optimization")
	ErrSolverTimeout          = errors.New("solver timeout")
	ErrValidation             = errors.New("validation failed")
	ErrBackpressure           = errors.New("backpressure")
)

var kindNames = []struct {
	kind error
	name string
}{
	{ErrInsufficientCapacity, "insufficient_capacity"},
	{ErrDuplicateAllocation, "duplicate_allocation"},
	{ErrSkillMismatch, "skill_mismatch"},
	{ErrNotFound, "not_found"},
	{ErrInvalidTransition, "invalid_transition"},
	{ErrInfeasibleOptimization, "infeasible_optimization"},
	{ErrSolverTimeout, "solver_timeout"},
	{ErrValidation, "validation"},
	{ErrBackpressure, "backpressure"},
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.kind
		}
	}
	return nil
}

// KindName returns the wire name of err's kind, "internal" when unknown.
func KindName(err error) string {
	kind := KindOf(err)
	for _, k := range kindNames {
		if k.kind == kind {
			return k.name
		}
	}
	return "internal"
}
