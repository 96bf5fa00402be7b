package ledger

import "github.com/google/uuid"

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithTokenGenerator replaces the reservation token source.
func WithTokenGenerator(gen func() string) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newToken = gen
		}
	}
}

func defaultToken() string { return uuid.NewString() }
