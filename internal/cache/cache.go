package cache

import (
	"sync"
	"time"
)

// Cache is a read-through cache with a fixed TTL. Writers must call
// Invalidate for any entity they mutate before returning.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Invalidate(key string)
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

type ttlCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

// New returns a Cache whose entries expire ttl after being set. A
// non-positive ttl disables caching.
func New[V any](ttl time.Duration) Cache[V] {
	return &ttlCache[V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetchedAt) > c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) Set(key string, value V) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictExpired()
	c.entries[key] = entry[V]{value: value, fetchedAt: c.now()}
}

func (c *ttlCache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// evictExpired must be called with mu held.
func (c *ttlCache[V]) evictExpired() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.fetchedAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}
