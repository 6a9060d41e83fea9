package cache

import (
	"context"
	"route-optimization-service/internal/domain"
	"route-optimization-service/internal/ports"
	"sync"
	"time"
)

type memoryEntry struct {
	m       *domain.DistanceMatrix
	expires time.Time
}

// MemoryMatrixCache is a process-local matrix cache with a TTL and a size bound.
// Entries are shared, so callers must treat returned matrices as read-only.
type MemoryMatrixCache struct {
	mu         sync.Mutex
	entries    map[ports.MatrixKey]memoryEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryMatrixCache(ttl time.Duration, maxEntries int) *MemoryMatrixCache {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	return &MemoryMatrixCache{
		entries:    make(map[ports.MatrixKey]memoryEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryMatrixCache) Get(_ context.Context, key ports.MatrixKey) (*domain.DistanceMatrix, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, nil
	}
	return e.m, nil
}

func (c *MemoryMatrixCache) Put(_ context.Context, key ports.MatrixKey, m *domain.DistanceMatrix) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}
	c.entries[key] = memoryEntry{m: m, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryMatrixCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired entries, then the entry closest to expiry.
func (c *MemoryMatrixCache) evictLocked() {
	now := c.now()
	var oldest ports.MatrixKey
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if c.ttl > 0 && now.After(e.expires) {
			delete(c.entries, k)
			continue
		}
		if first || e.expires.Before(oldestAt) {
			oldest, oldestAt, first = k, e.expires, false
		}
	}
	if len(c.entries) >= c.maxEntries && !first {
		delete(c.entries, oldest)
	}
}
