package embedding

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

func TestLocalProviderIsDeterministic(t *testing.T) {
	p := NewLocal("")
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "dark mode preference")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "dark mode preference")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, p.Dimension())
}

func TestLocalProviderDiffersByInput(t *testing.T) {
	p := NewLocal("")
	ctx := context.Background()

	a, err := p.EmbedQuery(ctx, "alpha")
	require.NoError(t, err)
	b, err := p.EmbedQuery(ctx, "beta")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestLocalProviderBatchMatchesQuery(t *testing.T) {
	p := NewLocal("")
	ctx := context.Background()

	single, err := p.EmbedQuery(ctx, "hello")
	require.NoError(t, err)
	batch, err := p.EmbedBatch(ctx, []string{"hello"})
	require.NoError(t, err)
	require.Equal(t, single, batch[0])
}

func TestHTTPProviderEmbedsViaRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	p := NewHTTP(HTTPOptions{BaseURL: srv.URL, APIKey: "test-key", Model: "test-model"})
	vec, err := p.EmbedQuery(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestHTTPProviderSurfacesNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	p := NewHTTP(HTTPOptions{BaseURL: srv.URL})
	_, err := p.EmbedQuery(context.Background(), "hi")
	require.Error(t, err)
}

func TestFactoryDefaultsToLocal(t *testing.T) {
	result, err := NewProvider(entity.EmbeddingConfig{Provider: "local", Model: "local-hash-v1"})
	require.NoError(t, err)
	require.Equal(t, "local", result.Provider.ID())
	require.Empty(t, result.FallbackFrom)
}

func TestFactoryFallsBackWhenRequestedUnavailable(t *testing.T) {
	result, err := NewProvider(entity.EmbeddingConfig{Provider: "http", Fallback: "local"})
	require.NoError(t, err)
	require.Equal(t, "local", result.Provider.ID())
	require.Equal(t, "http", result.FallbackFrom)
}

func TestFactoryErrorsWithNoFallback(t *testing.T) {
	_, err := NewProvider(entity.EmbeddingConfig{Provider: "http"})
	require.Error(t, err)
}
