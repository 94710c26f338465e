package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

type countingProvider struct {
	embedding.Provider
	calls int
}

func (c *countingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Provider.EmbedQuery(ctx, text)
}

func TestCacheGetPutRoundTrip(t *testing.T) {
	c, err := New(entity.CacheConfig{Enabled: true, MaxEntries: 10})
	require.NoError(t, err)

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Put("key", []float32{1, 2, 3})
	vec, ok := c.Get("key")
	require.True(t, ok)
	require.Equal(t, []float32{1, 2, 3}, vec)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(entity.CacheConfig{MaxEntries: 2})
	require.NoError(t, err)

	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("c", []float32{3})

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestCachingProviderAvoidsRedundantEmbedCalls(t *testing.T) {
	c, err := New(entity.CacheConfig{MaxEntries: 10})
	require.NoError(t, err)

	inner := &countingProvider{Provider: embedding.NewLocal("")}
	wrapped := Wrap(inner, c)

	v1, err := wrapped.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	v2, err := wrapped.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)

	require.Equal(t, v1, v2)
	require.Equal(t, 1, inner.calls)
}

func TestWrapNilCacheIsNoOp(t *testing.T) {
	inner := embedding.NewLocal("")
	wrapped := Wrap(inner, nil)
	require.Equal(t, inner, wrapped)
}
