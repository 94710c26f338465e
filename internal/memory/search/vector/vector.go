// Package vector implements the vector retriever (C10): embed the query,
// score candidate vectors by cosine similarity (or delegate to the
// optional vec0 ANN extension), and return the top-K.
package vector

import (
	"context"
	"math"
	"sort"

	"github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/store"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("vector")

// Hit is one similarity-scored candidate, joined back to the memory
// attributes spec.md §4.9 requires alongside the similarity score.
type Hit struct {
	MemoryID string
	// Similarity is in [-1, 1] for the brute-force cosine path, or
	// 1/(1+distance) in (0, 1] for the vec0 KNN path — both "higher is
	// better" and comparable within a single Search call's results.
	Similarity float64
	Content    string
	Type       entity.MemoryType
	Layer      entity.Layer
	Importance float64
}

// Options narrows a Search call.
type Options struct {
	Limit int
}

// Retriever scores stored embeddings against a query embedding.
type Retriever struct {
	st       *store.Store
	provider embedding.Provider
}

// New constructs a Retriever bound to st, embedding queries via provider.
func New(st *store.Store, provider embedding.Provider) *Retriever {
	return &Retriever{st: st, provider: provider}
}

// Search embeds query and scores candidates against it (spec.md §4.9). When
// the store has the vec0 ANN backend available (store.VecAvailable()) and
// its configured dimension matches the query embedding, the KNN index is
// tried first; a failed or empty KNN pass falls back to the brute-force
// cosine scan over every stored vector for the provider+model pair the
// configured provider reports. A provider failure is returned as a typed
// error; it never corrupts the index.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	queryVec, err := r.provider.EmbedQuery(ctx, query)
	if err != nil {
		return nil, entity.Wrap(entity.KindProviderRequest, "vector.Search", err)
	}

	if r.st.VecAvailable() && r.st.VecDimension() == len(queryVec) {
		hits, err := r.searchVec(ctx, queryVec, limit)
		if err != nil {
			log.Warn("vec0 KNN query failed, falling back to brute-force cosine scan: %v", err)
		} else if len(hits) > 0 {
			return hits, nil
		}
	}

	return r.searchBruteForce(ctx, queryVec, limit)
}

// searchVec queries the vec0 ANN index (memory_vec), converting sqlite-vec's
// L2 distance to a 0-1 "higher is better" score the same way the teacher's
// search.SearchVectorVec does.
func (r *Retriever) searchVec(ctx context.Context, queryVec []float32, limit int) ([]Hit, error) {
	rows, err := store.SearchVec(ctx, r.st.DB(), queryVec, limit)
	if err != nil {
		return nil, entity.Wrap(entity.KindDB, "vector.searchVec", err)
	}
	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, Hit{
			MemoryID:   row.MemoryID,
			Similarity: 1 / (1 + row.Distance),
			Content:    row.Content,
			Type:       entity.MemoryType(row.Type),
			Layer:      entity.Layer(row.Layer),
			Importance: row.Importance,
		})
	}
	return hits, nil
}

func (r *Retriever) searchBruteForce(ctx context.Context, queryVec []float32, limit int) ([]Hit, error) {
	rows, err := store.ListEmbeddingsWithAttrs(ctx, r.st.DB(), r.provider.ID(), r.provider.Model())
	if err != nil {
		return nil, entity.Wrap(entity.KindDB, "vector.Search", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		if len(row.Vector) != len(queryVec) {
			continue
		}
		sim := cosineSimilarity(queryVec, row.Vector)
		hits = append(hits, Hit{
			MemoryID: row.MemoryID, Similarity: sim,
			Content: row.Content, Type: entity.MemoryType(row.Type),
			Layer: entity.Layer(row.Layer), Importance: row.Importance,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].MemoryID < hits[j].MemoryID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// cosineSimilarity computes cos(theta) between two equal-length vectors.
// A zero-magnitude vector yields similarity 0 rather than NaN.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
