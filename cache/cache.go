// Package cache implements the price cache: a TTL'd key/value store
// over a durable MongoDB backend with an explicit bounded in-memory
// fallback, plus the quote, history and alert operations built on it.
package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// Mode names for the cache's current backing store
const (
	ModeDurable  = "durable"
	ModeFallback = "fallback"
)

// Cache is a key/value store with per-entry TTL. When the durable
// backend's health check fails the cache flips to a bounded in-memory
// fallback and flips back on recovery; the mode is queryable so
// degraded operation stays diagnosable. Read and write failures
// degrade to empty results rather than propagating, so callers treat
// a broken backend as "nothing cached".
type Cache struct {
	mu       sync.RWMutex
	durable  Backend // nil when no durable backend is configured
	fallback *MemoryBackend
	degraded bool
	now      func() time.Time
}

// New creates a cache over the given durable backend. Pass nil to run
// purely on the in-memory fallback (local development, tests).
func New(durable Backend) *Cache {
	c := &Cache{
		durable:  durable,
		fallback: NewMemoryBackend(DefaultMemoryEntries, nil),
		now:      time.Now,
	}
	if durable == nil {
		c.degraded = true
		log.Println("No durable cache backend configured, running on in-memory fallback")
	}
	return c
}

// NewWithClock creates a fallback-only cache with an injectable clock,
// used by TTL tests
func NewWithClock(now func() time.Time) *Cache {
	return &Cache{
		fallback: NewMemoryBackend(DefaultMemoryEntries, now),
		degraded: true,
		now:      now,
	}
}

// Mode reports which backend currently serves requests
func (c *Cache) Mode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.degraded {
		return ModeFallback
	}
	return ModeDurable
}

// backend returns the store serving the current mode
func (c *Cache) backend() Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.degraded {
		return c.fallback
	}
	return c.durable
}

// CheckHealth pings the durable backend and switches mode accordingly.
// Returns the mode in effect after the check.
func (c *Cache) CheckHealth(ctx context.Context) string {
	c.mu.RLock()
	durable := c.durable
	c.mu.RUnlock()
	if durable == nil {
		return ModeFallback
	}

	err := durable.Ping(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case err != nil && !c.degraded:
		c.degraded = true
		log.Printf("Cache backend unreachable, switching to in-memory fallback: %v", err)
	case err == nil && c.degraded:
		c.degraded = false
		log.Println("Cache backend recovered, switching back to durable mode")
	}
	if c.degraded {
		return ModeFallback
	}
	return ModeDurable
}

// RunHealthChecks pings the durable backend on the given interval until
// ctx is cancelled
func (c *Cache) RunHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckHealth(ctx)
		}
	}
}

// Get returns the value for key, or absent when missing or expired
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, ok, err := c.backend().Get(ctx, key)
	if err != nil {
		log.Printf("Cache get %s failed: %v", key, err)
		return nil, false
	}
	return value, ok
}

// Set stores value under key with the given TTL (0 means no expiry)
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.backend().Set(ctx, key, value, ttl); err != nil {
		log.Printf("Cache set %s failed: %v", key, err)
	}
}

// Del removes key, reporting whether an entry was removed
func (c *Cache) Del(ctx context.Context, key string) bool {
	ok, err := c.backend().Del(ctx, key)
	if err != nil {
		log.Printf("Cache del %s failed: %v", key, err)
		return false
	}
	return ok
}

// Exists reports whether key holds an unexpired entry
func (c *Cache) Exists(ctx context.Context, key string) bool {
	ok, err := c.backend().Exists(ctx, key)
	if err != nil {
		log.Printf("Cache exists %s failed: %v", key, err)
		return false
	}
	return ok
}

// Keys lists unexpired keys matching a '*' glob pattern
func (c *Cache) Keys(ctx context.Context, pattern string) []string {
	keys, err := c.backend().Keys(ctx, pattern)
	if err != nil {
		log.Printf("Cache keys %s failed: %v", pattern, err)
		return nil
	}
	return keys
}

// GetOrSet returns the cached value for key, or computes it with
// fetcher and stores it under the given TTL. Fetcher errors propagate;
// storage errors do not.
func (c *Cache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fetcher func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}
	value, err := fetcher(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, value, ttl)
	return value, nil
}

// set operations used by the alert indexes

func (c *Cache) SetAdd(ctx context.Context, key, member string) {
	if err := c.backend().SetAdd(ctx, key, member); err != nil {
		log.Printf("Cache set-add %s failed: %v", key, err)
	}
}

func (c *Cache) SetRemove(ctx context.Context, key, member string) {
	if err := c.backend().SetRemove(ctx, key, member); err != nil {
		log.Printf("Cache set-remove %s failed: %v", key, err)
	}
}

func (c *Cache) SetMembers(ctx context.Context, key string) []string {
	members, err := c.backend().SetMembers(ctx, key)
	if err != nil {
		log.Printf("Cache set-members %s failed: %v", key, err)
		return nil
	}
	return members
}
