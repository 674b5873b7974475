package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	ids       []string
	expiresAt time.Time
}

// MemoryCache is a process-local TTL cache. Expired entries are dropped by a janitor goroutine.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates a cache whose entries live for ttl; a non-positive ttl means DefaultTTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	ttl = ttlOrDefault(ttl)
	c := &MemoryCache{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.janitor(ttl)
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]string, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	ids := make([]string, len(e.ids))
	copy(ids, e.ids)
	return ids, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, ids []string) error {
	stored := make([]string, len(ids))
	copy(stored, ids)

	c.mu.Lock()
	c.entries[key] = memEntry{ids: stored, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) evictExpired() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
