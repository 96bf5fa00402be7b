// Package ranking keeps ids ordered by score desc, then id asc.
//
// It is a size-augmented treap, so Upsert, Remove and Rank are O(log n)
// expected and TopN is O(log n + k).
package ranking

import (
	"hash/fnv"
	"math"
	"sync"
)

// scoreScale controls fixed-point scaling from float64. Scores are compared
// as integers so equal displayed scores tie deterministically on id.
const scoreScale = 1_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	switch {
	case math.IsNaN(x):
		return 0
	case x*scoreScale >= math.MaxInt64:
		return math.MaxInt64
	case x*scoreScale <= math.MinInt64:
		return math.MinInt64
	}
	return scoreFP(math.Round(x * scoreScale))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// Entry is one ranked id.
type Entry struct {
	Rank  int
	ID    string
	Score float64
}

type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks before (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func priority(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: priority(id), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func remove(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = remove(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = remove(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = remove(n.left, id, score)
	default:
		n.right = remove(n.right, id, score)
	}
	fix(n)
	return n
}

// countBefore returns how many entries rank strictly before (score, id).
func countBefore(n *node, id string, score scoreFP) int {
	count := 0
	for n != nil {
		if less(n.score, n.id, score, id) {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Rank: len(*out) + 1, ID: n.id, Score: toFloat(n.score)})
	}
	collectTopN(n.right, limit, out)
}

// Board is a concurrency-safe ranking.
type Board struct {
	mu   sync.RWMutex
	root *node
	byID map[string]scoreFP
}

// New creates an empty Board.
func New() *Board {
	return &Board{byID: make(map[string]scoreFP)}
}

// Upsert sets id's score, replacing any previous one.
func (b *Board) Upsert(id string, score float64) {
	fp := toFixedPoint(score)
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.byID[id]; ok {
		if old == fp {
			return
		}
		b.root = remove(b.root, id, old)
	}
	b.root = insert(b.root, id, fp)
	b.byID[id] = fp
}

// Remove deletes id and reports whether it was present.
func (b *Board) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	old, ok := b.byID[id]
	if !ok {
		return false
	}
	b.root = remove(b.root, id, old)
	delete(b.byID, id)
	return true
}

// Rank returns id's 1-based position.
func (b *Board) Rank(id string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fp, ok := b.byID[id]
	if !ok {
		return Entry{}, false
	}
	return Entry{Rank: countBefore(b.root, id, fp) + 1, ID: id, Score: toFloat(fp)}, true
}

// TopN returns up to n entries in rank order.
func (b *Board) TopN(n int) []Entry {
	if n <= 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, min(n, len(b.byID)))
	collectTopN(b.root, n, &out)
	return out
}

// Len returns the number of ranked ids.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
