package optimizer

import (
	"time"

	"github.com/okian/allot/pkg/logger"
)

// Option applies a configuration option to the Optimizer.
type Option func(*Optimizer)

// WithMode selects auto, exact or heuristic solving. Unknown modes are ignored.
func WithMode(mode Mode) Option {
	return func(o *Optimizer) {
		switch mode {
		case ModeAuto, ModeExact, ModeHeuristic:
			o.mode = mode
		}
	}
}

// WithTimeout bounds the exact search.
func WithTimeout(d time.Duration) Option {
	return func(o *Optimizer) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxNodes bounds the number of search nodes of the exact search.
func WithMaxNodes(n int64) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxNodes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}
