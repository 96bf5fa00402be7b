package lifecycle

import (
	"time"

	"github.com/okian/allot/internal/domain/scoring"
	"github.com/okian/allot/pkg/logger"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithHoursPerWeek sets the hours that make up 100% capacity.
func WithHoursPerWeek(hours float64) Option {
	return func(m *Manager) {
		if hours > 0 {
			m.hoursPerWeek = hours
		}
	}
}

// WithScorer sets the scorer used to re-validate proposals.
func WithScorer(s *scoring.Scorer) Option {
	return func(m *Manager) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithIDGenerator replaces the allocation id source.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithClock replaces time.Now for allocation timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the operational logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithAuditLogger sets the logger that records project status changes.
func WithAuditLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.audit = l
		}
	}
}
