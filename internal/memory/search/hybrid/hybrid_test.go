package hybrid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/search/bm25"
	"github.com/kiosk404/reinsmem/internal/memory/search/vector"
)

var (
	errBM  = errors.New("bm25 down")
	errVec = errors.New("vector down")
)

func TestMergeUnionsByID(t *testing.T) {
	bmHits := []bm25.Hit{{MemoryID: "a", Score: 0.8}, {MemoryID: "b", Score: 0.5}}
	vecHits := []vector.Hit{{MemoryID: "a", Similarity: 0.6}, {MemoryID: "c", Similarity: 0.9}}

	byID := merge(bmHits, vecHits)
	require.Len(t, byID, 3)
	require.Equal(t, 0.8, byID["a"].bm25Score)
	require.Equal(t, 0.6, byID["a"].vectorScore)
	require.Equal(t, 1, byID["a"].bm25Rank)
	require.Equal(t, 1, byID["a"].vectorRank)
	require.Equal(t, 0.0, byID["b"].vectorScore)
	require.Equal(t, 0, byID["c"].bm25Rank)
}

func TestRankWeightedSumDefault(t *testing.T) {
	byID := merge(
		[]bm25.Hit{{MemoryID: "x", Score: 1.0}},
		[]vector.Hit{{MemoryID: "x", Similarity: 1.0}},
	)
	results := rank(byID, Options{})
	require.Len(t, results, 1)
	require.InDelta(t, 0.3*1.0+0.7*1.0, results[0].Score, 1e-9)
}

func TestRankRRFAbsentRankContributesZero(t *testing.T) {
	byID := merge(
		[]bm25.Hit{{MemoryID: "only-bm25", Score: 1.0}},
		nil,
	)
	results := rank(byID, Options{Policy: PolicyRRF, RRFK: 60})
	require.Len(t, results, 1)
	k := 60.0
	expected := (1.0 / (k + 1)) / (2.0 / (k + 1))
	require.InDelta(t, expected, results[0].Score, 1e-9)
}

func TestClamp01Bounds(t *testing.T) {
	require.Equal(t, 0.0, clamp01(-5))
	require.Equal(t, 1.0, clamp01(5))
	require.Equal(t, 0.5, clamp01(0.5))
}

func TestCombinedErrorMentionsBothRetrievers(t *testing.T) {
	err := combinedError(errBM, errVec)
	require.ErrorContains(t, err, "bm25 down")
	require.ErrorContains(t, err, "vector down")
}
