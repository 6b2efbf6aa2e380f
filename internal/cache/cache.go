package cache

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Stats reports cache activity.
type Stats struct {
	Size         int    `json:"size"`
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Shared       int64  `json:"shared"`
	Computations int64  `json:"computations"`
	Generation   uint64 `json:"generation"`
}

// Cache memoizes values by key for the life of the process. Concurrent
// first requests for a key share a single computation. Entries leave only
// through Invalidate or Reset; there is no TTL.
type Cache[V any] struct {
	mu         sync.RWMutex
	items      map[string]V
	epochs     map[string]uint64
	generation uint64
	group      singleflight.Group

	hits         int64
	misses       int64
	shared       int64
	computations int64
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		items:  make(map[string]V),
		epochs: make(map[string]uint64),
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.items[key]
	return v, ok
}

// GetOrCompute returns the cached value or runs compute once for all
// concurrent callers of the same key. hit is false only for the caller
// whose compute ran; callers served by another caller's computation count
// as shared. Errors are returned to every waiter and never cached.
func (c *Cache[V]) GetOrCompute(key string, compute func() (V, error)) (v V, hit bool, err error) {
	if v, ok := c.Get(key); ok {
		atomic.AddInt64(&c.hits, 1)
		return v, true, nil
	}

	c.mu.RLock()
	gen, epoch := c.generation, c.epochs[key]
	c.mu.RUnlock()

	ran := false
	flight := fmt.Sprintf("%d:%d:%s", gen, epoch, key)
	out, err, _ := c.group.Do(flight, func() (interface{}, error) {
		// A previous flight may have stored the value after our miss.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		ran = true
		atomic.AddInt64(&c.computations, 1)
		v, err := compute()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		// Skip the store if the key or the whole cache was reset meanwhile.
		if c.generation == gen && c.epochs[key] == epoch {
			c.items[key] = v
		}
		c.mu.Unlock()
		return v, nil
	})
	if ran {
		atomic.AddInt64(&c.misses, 1)
	} else {
		atomic.AddInt64(&c.shared, 1)
	}
	if err != nil {
		var zero V
		return zero, false, err
	}
	return out.(V), !ran, nil
}

// Invalidate drops one key. A computation for it already in flight will
// not repopulate the entry.
func (c *Cache[V]) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	delete(c.items, key)
	c.epochs[key]++
	return ok
}

// Reset drops every entry.
func (c *Cache[V]) Reset() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	c.items = make(map[string]V)
	c.epochs = make(map[string]uint64)
	c.generation++
	return n
}

// Size returns the number of entries.
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns counters and the current size.
func (c *Cache[V]) Stats() Stats {
	c.mu.RLock()
	size, gen := len(c.items), c.generation
	c.mu.RUnlock()

	return Stats{
		Size:         size,
		Hits:         atomic.LoadInt64(&c.hits),
		Misses:       atomic.LoadInt64(&c.misses),
		Shared:       atomic.LoadInt64(&c.shared),
		Computations: atomic.LoadInt64(&c.computations),
		Generation:   gen,
	}
}
