package resolve

import (
	"context"
	"strings"
	"sync"
)

// Cache is a read-through natural-key to surrogate-id cache. It is an
// optimization only: a failing or cold cache degrades to a storage lookup,
// never to a wrong answer. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (int64, bool, error)
	Set(ctx context.Context, key string, id int64) error
}

// cacheKey builds the canonical cache key. The natural-key portion is
// lowercased so the cache agrees with the storage layer's case folding.
func cacheKey(entity, scope, natural string) string {
	return "resolve:" + entity + ":" + scope + ":" + strings.ToLower(strings.TrimSpace(natural))
}

// MemoryCache is a process-local Cache for single-process runs and tests.
type MemoryCache struct {
	mu  sync.RWMutex
	ids map[string]int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{ids: make(map[string]int64)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.ids[key]
	return id, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[key] = id
	return nil
}
