package lifecycle

import (
	"slices"
	"sync"
)

// locker hands out one mutex per key. Mutexes are kept for the life of the
// process; the key space is the set of employees and projects.
type locker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocker() *locker {
	return &locker{locks: make(map[string]*sync.Mutex)}
}

func (l *locker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// lock acquires every key in sorted order and returns the release func.
func (l *locker) lock(keys ...string) func() {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		m := l.get(k)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
