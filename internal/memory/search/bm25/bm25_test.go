package bm25

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/store"
)

func TestSanitizeStripsOperatorsAndColumnPrefixes(t *testing.T) {
	require.Equal(t, "dark mode", Sanitize("dark AND mode"))
	require.Equal(t, "foo bar", Sanitize("foo:bar"))
}

func TestSanitizeStripsBrackets(t *testing.T) {
	require.Equal(t, "a b c", Sanitize("{a} (b) [c]"))
}

func TestSanitizePreservesQuotedPhrasesAndPrefixTokens(t *testing.T) {
	require.Equal(t, `"dark mode" pref*`, Sanitize(`"dark mode" pref*`))
}

func TestSanitizeStripsUnpairedStar(t *testing.T) {
	got := Sanitize("just * a star")
	require.NotContains(t, got, "*")
}

func TestSanitizeEmptyAfterCleanup(t *testing.T) {
	require.Equal(t, "", Sanitize("AND OR NOT"))
}

func TestNormalizeSingleHitIsOne(t *testing.T) {
	scores := normalize([]store.FTSHit{{RawRank: -5.0}})
	require.Equal(t, []float64{1.0}, scores)
}

func TestNormalizeMinMaxSpread(t *testing.T) {
	hits := []store.FTSHit{{RawRank: -10.0}, {RawRank: -5.0}, {RawRank: -1.0}}
	scores := normalize(hits)
	require.InDelta(t, 1.0, scores[0], 1e-9)
	require.InDelta(t, 0.0, scores[2], 1e-9)
	require.Greater(t, scores[0], scores[1])
	require.Greater(t, scores[1], scores[2])
}

func TestNormalizeIdenticalScoresAllOne(t *testing.T) {
	hits := []store.FTSHit{{RawRank: -3.0}, {RawRank: -3.0}}
	scores := normalize(hits)
	require.Equal(t, []float64{1.0, 1.0}, scores)
}

func TestNormalizeEmptyBatch(t *testing.T) {
	require.Empty(t, normalize(nil))
}
