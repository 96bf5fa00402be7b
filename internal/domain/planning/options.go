package planning

import (
	"github.com/okian/allot/internal/domain/optimizer"
	"github.com/okian/allot/internal/domain/scoring"
	"github.com/okian/allot/pkg/logger"
)

// Option applies a configuration option to the Planner.
type Option func(*Planner)

// WithLimit caps the number of recommendations returned.
func WithLimit(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithScorer sets the scorer used to build the candidate matrix.
func WithScorer(s *scoring.Scorer) Option {
	return func(p *Planner) {
		if s != nil {
			p.scorer = s
		}
	}
}

// WithFallback sets the solver used when the primary solver times out.
func WithFallback(s optimizer.Solver) Option {
	return func(p *Planner) {
		if s != nil {
			p.fallback = s
		}
	}
}

// WithConcurrency bounds concurrent repository reads.
func WithConcurrency(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the planner logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.logger = l
		}
	}
}
