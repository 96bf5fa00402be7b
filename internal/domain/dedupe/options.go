package dedupe

import "time"

const (
	defaultMaxSize = 50_000
	defaultTTL     = 24 * time.Hour
)

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*InMemoryDeduper)

// WithMaxSize bounds the number of remembered keys. Zero or less is unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *InMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL sets how long a key is remembered. Zero or less keeps keys until evicted.
func WithTTL(ttl time.Duration) Option {
	return func(d *InMemoryDeduper) {
		d.ttl = ttl
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *InMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
