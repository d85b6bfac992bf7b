// Package policycache is a bounded LRU for policy decisions, keyed by a
// caller-built string. A published snapshot never changes, so entries stay
// valid until the owner purges the cache on the next publish.
package policycache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores decisions of type V with hit, miss and eviction counters.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Put(key string, v V)
	Len() int
	Purge()
	Stats() Stats
}

// Stats is a best-effort snapshot of the counters.
type Stats struct {
	Capacity  int
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

type decisionCache[V any] struct {
	lru       *lru.Cache[string, V]
	capacity  int
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache holding up to size entries. If size <= 0 a disabled
// cache is returned that always misses.
func New[V any](size int) (Cache[V], error) {
	if size <= 0 {
		return disabledCache[V]{}, nil
	}
	dc := &decisionCache[V]{capacity: size}
	cache, err := lru.NewWithEvict(size, func(string, V) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache[V]) Get(key string) (V, bool) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	var zero V
	return zero, false
}

func (c *decisionCache[V]) Put(key string, v V) { c.lru.Add(key, v) }

func (c *decisionCache[V]) Len() int { return c.lru.Len() }

// Purge drops every entry; each one counts as an eviction.
func (c *decisionCache[V]) Purge() { c.lru.Purge() }

func (c *decisionCache[V]) Stats() Stats {
	return Stats{
		Capacity:  c.capacity,
		Size:      c.lru.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

type disabledCache[V any] struct{}

func (disabledCache[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (disabledCache[V]) Put(string, V) {}
func (disabledCache[V]) Len() int      { return 0 }
func (disabledCache[V]) Purge()        {}
func (disabledCache[V]) Stats() Stats  { return Stats{} }

var _ Cache[int] = (*decisionCache[int])(nil)
var _ Cache[int] = disabledCache[int]{}
