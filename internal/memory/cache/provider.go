package cache

import (
	"context"

	"github.com/kiosk404/reinsmem/internal/memory/embedding"
)

// CachingProvider decorates an embedding.Provider with an LRU lookup in
// front of EmbedQuery, the call path the vector retriever (C10) drives on
// every search. Grounded on the teacher's manager.go embedding-cache check
// (memory-core/manager/manager.go's "Check embedding cache" step), adapted
// from a DB-backed cache keyed by content hash to an in-process LRU.
type CachingProvider struct {
	embedding.Provider
	cache *Cache
}

// Wrap returns p decorated with cache. A nil cache makes Wrap a no-op.
func Wrap(p embedding.Provider, cache *Cache) embedding.Provider {
	if cache == nil {
		return p
	}
	return &CachingProvider{Provider: p, cache: cache}
}

// EmbedQuery checks the cache before delegating to the wrapped provider,
// and populates the cache on a miss.
func (c *CachingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := Key(c.Provider, text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.Provider.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Put(key, vec)
	return vec, nil
}
