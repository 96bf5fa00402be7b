// Package dedupe remembers idempotency keys so a retried mutation is
// applied at most once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Deduper records seen keys.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets key so the same request can be retried after it
	// failed without changing anything.
	Unrecord(ctx context.Context, key string)

	// Size returns the number of keys currently remembered.
	Size() int
}

type entry struct {
	key  string
	seen time.Time
}

// InMemoryDeduper keeps keys in insertion order. When full, the oldest key
// is forgotten first; keys older than the TTL are forgotten on access.
type InMemoryDeduper struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	order   *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a bounded deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) *InMemoryDeduper {
	d := &InMemoryDeduper{
		keys:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *InMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)
	if _, ok := d.keys[key]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.drop(d.order.Front())
	}
	d.keys[key] = d.order.PushBack(entry{key: key, seen: now})
	return false
}

// Unrecord implements Deduper.
func (d *InMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.keys[key]; ok {
		d.drop(el)
	}
}

// Size implements Deduper.
func (d *InMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}

// expire drops keys older than the TTL. Must be called with d.mu held.
func (d *InMemoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Front(); el != nil; el = d.order.Front() {
		if now.Sub(el.Value.(entry).seen) < d.ttl {
			return
		}
		d.drop(el)
	}
}

func (d *InMemoryDeduper) drop(el *list.Element) {
	if el == nil {
		return
	}
	delete(d.keys, el.Value.(entry).key)
	d.order.Remove(el)
}
