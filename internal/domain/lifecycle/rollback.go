package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// rollback collects compensating steps and runs them newest first.
type rollback struct {
	steps []func(ctx context.Context) error
}

func (r *rollback) add(step func(ctx context.Context) error) {
	r.steps = append(r.steps, step)
}

// undo adds a ledger undo, which cannot fail.
func (r *rollback) undo(fn func()) {
	r.add(func(context.Context) error {
		fn()
		return nil
	})
}

// run executes the steps even if ctx is already cancelled. The returned error
// joins every failed compensation.
func (r *rollback) run(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(r.steps) - 1; i >= 0; i-- {
		if err := r.steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	r.steps = nil
	if len(errs) > 0 {
		return fmt.Errorf("rollback: %w", errors.Join(errs...))
	}
	return nil
}

// abort rolls back and returns cause, joined with any rollback failure.
func (r *rollback) abort(ctx context.Context, cause error) error {
	if err := r.run(ctx); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
