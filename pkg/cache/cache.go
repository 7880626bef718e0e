// Package cache is a small in-memory TTL cache.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
	createdAt time.Time
}

// Cache is a thread-safe map whose entries expire after a TTL. When maxEntries
// is reached the oldest entry is evicted.
type Cache[K comparable, V any] struct {
	mu         sync.Mutex
	items      map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	hits   uint64
	misses uint64
}

func New[K comparable, V any](ttl time.Duration, maxEntries int) *Cache[K, V] {
	return &Cache[K, V]{
		items:      make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok && c.now().Before(e.expiresAt) {
		c.hits++
		return e.value, true
	}
	if ok {
		delete(c.items, key)
	}
	c.misses++
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.items[key]; !exists && c.maxEntries > 0 && len(c.items) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.items[key] = entry[V]{value: value, expiresAt: now.Add(c.ttl), createdAt: now}
}

// evictLocked drops expired entries, or the oldest one if none expired.
func (c *Cache[K, V]) evictLocked(now time.Time) {
	var oldestKey K
	var oldest time.Time
	found := false
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			continue
		}
		if !found || e.createdAt.Before(oldest) {
			oldestKey, oldest, found = k, e.createdAt, true
		}
	}
	if len(c.items) >= c.maxEntries && found {
		delete(c.items, oldestKey)
	}
}

func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]entry[V])
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors are not cached.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Stats returns cache statistics
type Stats struct {
	Size   int
	Hits   uint64
	Misses uint64
}

func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Size: len(c.items), Hits: c.hits, Misses: c.misses}
}
