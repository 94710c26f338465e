// Package hybrid implements the fusion stage (C11): union BM25 and vector
// results by memory id, score them via a pluggable ranking policy, and
// return a deterministic, minScore-filtered, limit-truncated list.
package hybrid

import (
	"context"
	"sort"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/search/bm25"
	"github.com/kiosk404/reinsmem/internal/memory/search/vector"
)

// Policy names a ranking policy (spec.md §4.10 "Policies").
type Policy string

const (
	PolicyWeightedSum Policy = "weighted_sum"
	PolicyRRF         Policy = "rrf"
)

// Options configures one Search call.
type Options struct {
	Limit           int
	MinScore        float64
	BM25Weight      float64
	VectorWeight    float64
	ImportanceBoost float64
	RRFK            int
	Policy          Policy
	Types           []string
	Layers          []string
}

// candidate is the union-merge working record for one memory id.
type candidate struct {
	id          string
	content     string
	memType     entity.MemoryType
	layer       entity.Layer
	importance  float64
	snippet     string
	bm25Score   float64
	vectorScore float64
	bm25Rank    int // 1-based, 0 = absent
	vectorRank  int // 1-based, 0 = absent
}

// Searcher fuses a BM25 retriever and a vector retriever behind one query.
type Searcher struct {
	bm *bm25.Retriever
	vc *vector.Retriever
}

// New constructs a Searcher over the two retrievers.
func New(bm *bm25.Retriever, vc *vector.Retriever) *Searcher {
	return &Searcher{bm: bm, vc: vc}
}

// Search runs both retrievers, merges their results, and ranks the union.
// Per spec.md §4.10 "Degradation": a single retriever failure falls back
// to the other retriever's results; both failing surfaces a combined error.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]entity.MemorySearchResult, error) {
	bmHits, bmErr := s.bm.Search(ctx, query, bm25.Options{Types: opts.Types, Layers: opts.Layers, Limit: candidateLimit(opts.Limit)})
	vecHits, vecErr := s.vc.Search(ctx, query, vector.Options{Limit: candidateLimit(opts.Limit)})

	if bmErr != nil && vecErr != nil {
		return nil, entity.Wrap(entity.KindDB, "hybrid.Search", combinedError(bmErr, vecErr))
	}
	if bmErr != nil {
		bmHits = nil
	}
	if vecErr != nil {
		vecHits = nil
	}

	merged := merge(bmHits, vecHits)
	scored := rank(merged, opts)

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].MemoryID < scored[j].MemoryID
	})

	var out []entity.MemorySearchResult
	for _, r := range scored {
		if r.Score < opts.MinScore {
			continue
		}
		out = append(out, r)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func candidateLimit(limit int) int {
	if limit <= 0 {
		limit = 50
	}
	return limit * 3
}

func combinedError(a, b error) error {
	return entity.New(entity.KindDB, "hybrid.Search", "bm25: "+a.Error()+"; vector: "+b.Error())
}

func merge(bmHits []bm25.Hit, vecHits []vector.Hit) map[string]*candidate {
	byID := map[string]*candidate{}

	for i, h := range bmHits {
		c := &candidate{
			id: h.MemoryID, content: h.Content, memType: h.Type, layer: h.Layer,
			importance: h.Importance, snippet: h.Snippet, bm25Score: h.Score, bm25Rank: i + 1,
		}
		byID[h.MemoryID] = c
	}

	for i, h := range vecHits {
		if c, ok := byID[h.MemoryID]; ok {
			c.vectorScore = h.Similarity
			c.vectorRank = i + 1
			continue
		}
		byID[h.MemoryID] = &candidate{
			id: h.MemoryID, content: h.Content, memType: h.Type, layer: h.Layer,
			importance: h.Importance, vectorScore: h.Similarity, vectorRank: i + 1,
		}
	}

	return byID
}

func rank(byID map[string]*candidate, opts Options) []entity.MemorySearchResult {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyWeightedSum
	}
	k := opts.RRFK
	if k <= 0 {
		k = 60
	}
	bm25Weight := opts.BM25Weight
	vectorWeight := opts.VectorWeight
	if bm25Weight == 0 && vectorWeight == 0 {
		bm25Weight, vectorWeight = 0.3, 0.7
	}

	out := make([]entity.MemorySearchResult, 0, len(byID))
	for _, c := range byID {
		var fused float64
		switch policy {
		case PolicyRRF:
			fused = rrfScore(c, k, opts.ImportanceBoost)
		default:
			fused = clamp01(c.bm25Score*bm25Weight + c.vectorScore*vectorWeight + c.importance*opts.ImportanceBoost)
		}
		out = append(out, entity.MemorySearchResult{
			MemoryID: c.id, Content: c.content, Type: c.memType, Layer: c.layer,
			Importance: c.importance, Snippet: c.snippet, Score: fused,
			BM25Score: c.bm25Score, VectorScore: c.vectorScore,
			BM25Rank: c.bm25Rank, VectorRank: c.vectorRank,
		})
	}
	return out
}

func rrfScore(c *candidate, k int, importanceBoost float64) float64 {
	var bmTerm, vecTerm float64
	if c.bm25Rank > 0 {
		bmTerm = 1.0 / float64(k+c.bm25Rank)
	}
	if c.vectorRank > 0 {
		vecTerm = 1.0 / float64(k+c.vectorRank)
	}
	denom := 2.0 / float64(k+1)
	fused := (bmTerm+vecTerm)/denom + c.importance*importanceBoost
	return clamp01(fused)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
