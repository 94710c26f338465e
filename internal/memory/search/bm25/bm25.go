// Package bm25 implements the full-text retriever (C9): an FTS5 query
// sanitizer and a batch-relative score normalizer over SQLite's bm25() rank.
package bm25

import (
	"context"
	"regexp"
	"strings"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/store"
)

// Hit is one normalized BM25 result.
type Hit struct {
	MemoryID   string
	Content    string
	Type       entity.MemoryType
	Layer      entity.Layer
	Importance float64
	Snippet    string
	Score      float64 // normalized to [0, 1]
}

// Options narrows a Search call.
type Options struct {
	Types    []string
	Layers   []string
	Limit    int
	MinScore float64
}

// Retriever runs FTS5 MATCH queries against the store.
type Retriever struct {
	st *store.Store
}

// New constructs a Retriever bound to st.
func New(st *store.Store) *Retriever {
	return &Retriever{st: st}
}

var unpairedStar = regexp.MustCompile(`\*`)
var operatorWord = regexp.MustCompile(`(?i)\b(AND|OR|NOT|NEAR)\b`)
var columnPrefix = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*):`)
var bracketChars = regexp.MustCompile(`[{}()\[\]]`)
var quotedPhrase = regexp.MustCompile(`"[^"]*"`)
var prefixToken = regexp.MustCompile(`\b[A-Za-z0-9_]+\*`)

// Sanitize strips FTS5 operator syntax a raw user query must not be able to
// inject, while preserving quoted phrases and trailing prefix tokens
// (spec.md §4.8 "Query sanitizer").
func Sanitize(raw string) string {
	placeholders := map[string]string{}
	n := 0
	protect := func(re *regexp.Regexp, s string) string {
		return re.ReplaceAllStringFunc(s, func(m string) string {
			key := "\x00" + itoa(n) + "\x00"
			placeholders[key] = m
			n++
			return key
		})
	}

	s := raw
	s = protect(quotedPhrase, s)
	s = protect(prefixToken, s)

	s = operatorWord.ReplaceAllString(s, " ")
	s = columnPrefix.ReplaceAllString(s, "$1 ")
	s = bracketChars.ReplaceAllString(s, " ")
	s = unpairedStar.ReplaceAllString(s, " ")

	for key, original := range placeholders {
		s = strings.Replace(s, key, original, 1)
	}

	return strings.TrimSpace(collapseSpace(s))
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Search sanitizes query, runs the FTS5 MATCH, and returns batch-normalized
// hits (spec.md §4.8 "Normalization"). An empty post-sanitization query
// returns no results without touching SQLite.
func (r *Retriever) Search(ctx context.Context, query string, opts Options) ([]Hit, error) {
	clean := Sanitize(query)
	if clean == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	raw, err := store.SearchFTS(ctx, r.st.DB(), clean, opts.Types, opts.Layers, limit)
	if err != nil {
		return nil, entity.Wrap(entity.KindDB, "bm25.Search", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	scores := normalize(raw)
	hits := make([]Hit, 0, len(raw))
	for i, h := range raw {
		if scores[i] < opts.MinScore {
			continue
		}
		hits = append(hits, Hit{
			MemoryID:   h.ID,
			Content:    h.Content,
			Type:       entity.MemoryType(h.Type),
			Layer:      entity.Layer(h.Layer),
			Importance: h.Importance,
			Snippet:    h.Snippet,
			Score:      scores[i],
		})
	}
	return hits, nil
}

// normalize min-max scales raw (negative, unbounded) BM25 ranks to [0, 1]:
// the most-negative raw score maps to 1.0, least-negative to 0.0. A single
// row always normalizes to 1.0.
func normalize(hits []store.FTSHit) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	if len(hits) == 1 {
		out[0] = 1.0
		return out
	}

	min, max := hits[0].RawRank, hits[0].RawRank
	for _, h := range hits[1:] {
		if h.RawRank < min {
			min = h.RawRank
		}
		if h.RawRank > max {
			max = h.RawRank
		}
	}

	spread := max - min
	for i, h := range hits {
		if spread == 0 {
			out[i] = 1.0
			continue
		}
		// more negative (smaller) rank => more relevant => closer to 1.0
		out[i] = (max - h.RawRank) / spread
	}
	return out
}
