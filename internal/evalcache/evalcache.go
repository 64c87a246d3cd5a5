// Package evalcache memoizes network evaluations by history-aware hash
// (spec.md §4.9).
package evalcache

import (
	"sync"
	"sync/atomic"
)

// Entry is a cached network evaluation.
type Entry struct {
	Value  float32
	Policy [1858]float32
}

// defaultCapacity is the soft capacity C from spec.md §4.9.
const defaultCapacity = 100_000

// evictFraction is the portion of entries dropped once the cache grows
// past capacity; the exact victims are unspecified by spec.md, so a
// cheap sync.Map walk that stops once enough entries are removed is
// acceptable.
const evictFraction = 0.25

// Cache is a concurrent, soft-capacity-bounded map from history-aware
// hash to network evaluation, grounded on the teacher's
// TranspositionTable hit/probe bookkeeping (internal/engine/transposition.go)
// but backed by sync.Map since entries are larger and inserts/evicts are
// not on the search's hot path the way TT probes are.
type Cache struct {
	capacity int64
	m        sync.Map
	count    int64

	hits   int64
	probes int64
}

// New returns a cache with the default soft capacity.
func New() *Cache {
	return NewWithCapacity(defaultCapacity)
}

// NewWithCapacity returns a cache with an explicit soft capacity.
func NewWithCapacity(capacity int) *Cache {
	return &Cache{capacity: int64(capacity)}
}

// SetCapacity updates the soft capacity (UCI setoption Hash), taking
// effect on the next insert past the new limit.
func (c *Cache) SetCapacity(capacity int) {
	if capacity > 0 {
		atomic.StoreInt64(&c.capacity, int64(capacity))
	}
}

// Get looks up key, reporting whether it was present.
func (c *Cache) Get(key uint64) (Entry, bool) {
	atomic.AddInt64(&c.probes, 1)
	v, ok := c.m.Load(key)
	if !ok {
		return Entry{}, false
	}
	atomic.AddInt64(&c.hits, 1)
	return v.(Entry), true
}

// Put inserts or overwrites the entry for key. Idempotent: inserting the
// same key twice just overwrites the value, never double-counts.
func (c *Cache) Put(key uint64, entry Entry) {
	_, existed := c.m.Load(key)
	c.m.Store(key, entry)
	if !existed {
		n := atomic.AddInt64(&c.count, 1)
		if n > atomic.LoadInt64(&c.capacity) {
			c.evict()
		}
	}
}

// evict drops roughly evictFraction of the current entries. Victim
// selection is arbitrary (map iteration order), matching spec.md's
// "exact eviction policy is not observable" note.
func (c *Cache) evict() {
	target := int(float64(atomic.LoadInt64(&c.count)) * evictFraction)
	if target <= 0 {
		return
	}
	removed := 0
	c.m.Range(func(k, _ any) bool {
		if removed >= target {
			return false
		}
		c.m.Delete(k)
		removed++
		return true
	})
	atomic.AddInt64(&c.count, -int64(removed))
}

// Clear empties the cache, used on ucinewgame.
func (c *Cache) Clear() {
	c.m.Range(func(k, _ any) bool {
		c.m.Delete(k)
		return true
	})
	atomic.StoreInt64(&c.count, 0)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.probes, 0)
}

// Len reports the approximate number of entries currently cached.
func (c *Cache) Len() int {
	return int(atomic.LoadInt64(&c.count))
}

// Range calls fn for each cached (key, entry) pair, stopping early if fn
// returns false. Used to persist the cache to disk (internal/storage).
func (c *Cache) Range(fn func(key uint64, entry Entry) bool) {
	c.m.Range(func(k, v any) bool {
		return fn(k.(uint64), v.(Entry))
	})
}

// HitRate returns the cache hit rate as a percentage.
func (c *Cache) HitRate() float64 {
	probes := atomic.LoadInt64(&c.probes)
	if probes == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&c.hits)) / float64(probes) * 100
}
