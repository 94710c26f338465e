// Package cache provides an in-process LRU tier in front of the embedding
// provider, keyed by (provider, model, text), so repeated queries against
// the same content skip a redundant embed call.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

// Cache is a bounded LRU of embedding vectors.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// New constructs a Cache with the given maximum entry count. A non-positive
// size disables caching: every lookup misses.
func New(cfg entity.CacheConfig) (*Cache, error) {
	size := cfg.MaxEntries
	if size <= 0 {
		return &Cache{}, nil
	}
	l, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, entity.Wrap(entity.KindIO, "cache.New", err)
	}
	return &Cache{lru: l}, nil
}

// Key builds the cache key for one (provider, text) lookup.
func Key(p embedding.Provider, text string) string {
	return embedding.Key(p) + "|" + text
}

// Get returns the cached vector for key, if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// Put stores vec under key, evicting the least recently used entry if the
// cache is full.
func (c *Cache) Put(key string, vec []float32) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, vec)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
