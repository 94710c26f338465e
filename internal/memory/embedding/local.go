package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

const localDimension = 32

// localProvider is a deterministic, offline embedding backend: it hashes
// text into a fixed-length unit vector. It produces no real semantic
// relationships, but it is stable across runs and needs no network access,
// which makes it the engine's zero-config default and its test fixture.
// Grounded on the teacher's own internal.HashText (memory-core/internal/hash.go).
type localProvider struct {
	model string
}

// NewLocal constructs the deterministic hash-based provider.
func NewLocal(model string) Provider {
	if model == "" {
		model = "local-hash-v1"
	}
	return &localProvider{model: model}
}

func (p *localProvider) ID() string      { return "local" }
func (p *localProvider) Model() string   { return p.model }
func (p *localProvider) Dimension() int  { return localDimension }

func (p *localProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed(text), nil
}

func (p *localProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashEmbed(t)
	}
	return out, nil
}

// hashEmbed spreads SHA-256(text) across localDimension float32 buckets and
// L2-normalizes the result, so cosine similarity behaves sensibly even
// though the vector carries no learned semantics.
func hashEmbed(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, localDimension)
	for i := 0; i < localDimension; i++ {
		b := sum[i%len(sum)]
		// Spread byte value into [-1, 1] and fold in position to reduce
		// collisions between buckets sharing the same source byte.
		shifted := float32(b) + float32(i)*37
		vec[i] = (float32(int(shifted)%256) / 127.5) - 1.0
	}
	normalize(vec)
	return vec
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	mag := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
}
