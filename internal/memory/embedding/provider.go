// Package embedding provides the Provider interface the vector retriever
// (C10) and the service façade embed text against, a deterministic offline
// provider used by default and in tests, an HTTP provider for remote
// embedding APIs, and a factory that wires configuration to a concrete
// provider with fallback.
package embedding

import "context"

// Provider is the interface every embedding backend implements, grounded
// on the teacher's own embedding.Provider shape.
type Provider interface {
	// ID identifies the backend ("local", "http").
	ID() string
	// Model names the embedding model in use.
	Model() string
	// Dimension reports the fixed vector length this provider produces.
	Dimension() int
	// EmbedQuery embeds a single text into a vector.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch embeds multiple texts into vectors.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result wraps the provider a factory call selected, recording whether a
// fallback occurred and why.
type Result struct {
	Provider         Provider
	RequestedBackend string
	FallbackFrom     string
	FallbackReason   string
}

// Key returns a stable identifier for (provider, model), used by the
// embedding cache's lookup key.
func Key(p Provider) string {
	return p.ID() + ":" + p.Model()
}
