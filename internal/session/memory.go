package session

import (
	"context"
	"sync"
)

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func (c *MemoryCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

// MemoryBackend keeps one MemoryCache per session id for the life of the
// process.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]*MemoryCache
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*MemoryCache)}
}

func (b *MemoryBackend) ForSession(sessionID string) (Cache, error) {
	if sessionID == "" {
		return nil, errEmptySession
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.sessions[sessionID]
	if !ok {
		c = NewMemoryCache()
		b.sessions[sessionID] = c
	}
	return c, nil
}
