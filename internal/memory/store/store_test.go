package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	// Side-effect import: registers the vec0 module with mattn/go-sqlite3
	// process-wide (internal/memory/embedding/vec_init.go), the way
	// cmd/reinsmemctl's main does in production.
	_ "github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/store"
)

func newRecord(id, content string) *entity.MemoryRecord {
	now := time.Now().UTC()
	return &entity.MemoryRecord{
		ID: id, Content: content, Type: entity.TypeFact, Layer: entity.LayerLTM,
		Importance: 0.5, Confidence: 1.0, Source: entity.Source{Type: entity.SourceExplicit},
		CreatedAt: now, UpdatedAt: now, AccessedAt: now,
	}
}

// TestOpenMigrationReplayIsIdempotent reopens the same database file, which
// skips the migrations already recorded in schema_version and re-runs
// recreateFTSTriggers; the reopen must leave already-applied state intact.
func TestOpenMigrationReplayIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memories.db")

	st1, err := store.Open(entity.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, store.InsertMemory(context.Background(), st1.DB(), newRecord("a", "first")))
	require.NoError(t, st1.Close())

	st2, err := store.Open(entity.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	defer st2.Close()

	rec, err := store.GetByID(context.Background(), st2.DB(), "a")
	require.NoError(t, err)
	require.Equal(t, "first", rec.Content)

	require.NoError(t, store.InsertMemory(context.Background(), st2.DB(), newRecord("b", "second")))
	n, err := store.Count(context.Background(), st2.DB(), store.ListFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

// TestFTSTriggersSurviveReplay confirms the FTS5 sync triggers recreated on
// every ensureSchema call still fire correctly after a second Open.
func TestFTSTriggersSurviveReplay(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memories.db")

	st1, err := store.Open(entity.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	require.NoError(t, st1.Close())

	st2, err := store.Open(entity.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	defer st2.Close()

	require.NoError(t, store.InsertMemory(context.Background(), st2.DB(), newRecord("hit", "a unique searchable phrase")))
	hits, err := store.SearchFTS(context.Background(), st2.DB(), "unique searchable", nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "hit", hits[0].ID)

	require.NoError(t, store.DeleteMemory(context.Background(), st2.DB(), "hit"))
	hits, err = store.SearchFTS(context.Background(), st2.DB(), "unique searchable", nil, nil, 10)
	require.NoError(t, err)
	require.Empty(t, hits)
}

// TestVecEnabledMirrorsAndSearches exercises the optional vec0 ANN path
// end to end: UpsertEmbedding mirrors into memory_vec, and SearchVec finds
// the nearest neighbor.
func TestVecEnabledMirrorsAndSearches(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memories.db")
	st, err := store.Open(entity.StoreConfig{
		Path:   dbPath,
		Vector: entity.VectorConfig{Enabled: true, Dimension: 3},
	})
	require.NoError(t, err)
	defer st.Close()

	if !st.VecAvailable() {
		t.Skip("sqlite-vec extension unavailable in this build")
	}
	require.Equal(t, 3, st.VecDimension())

	ctx := context.Background()
	require.NoError(t, store.InsertMemory(ctx, st.DB(), newRecord("near", "close vector")))
	require.NoError(t, store.InsertMemory(ctx, st.DB(), newRecord("far", "distant vector")))

	require.NoError(t, store.UpsertEmbedding(ctx, st.DB(), &entity.EmbeddingRow{
		ID: "near-emb", MemoryID: "near", Provider: "local", Model: "m", Dimension: 3,
		Version: 1, Vector: []float32{1, 0, 0}, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.UpsertEmbedding(ctx, st.DB(), &entity.EmbeddingRow{
		ID: "far-emb", MemoryID: "far", Provider: "local", Model: "m", Dimension: 3,
		Version: 1, Vector: []float32{0, 0, 1}, CreatedAt: time.Now().UTC(),
	}))

	hits, err := store.SearchVec(ctx, st.DB(), []float32{0.9, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "near", hits[0].MemoryID)

	// Re-upserting the same memory's embedding replaces rather than
	// duplicates the memory_vec row (vec0 has no ON CONFLICT support).
	require.NoError(t, store.UpsertEmbedding(ctx, st.DB(), &entity.EmbeddingRow{
		ID: "near-emb", MemoryID: "near", Provider: "local", Model: "m", Dimension: 3,
		Version: 2, Vector: []float32{1, 0.1, 0}, CreatedAt: time.Now().UTC(),
	}))
	hits, err = store.SearchVec(ctx, st.DB(), []float32{0.9, 0, 0}, 10)
	require.NoError(t, err)
	count := 0
	for _, h := range hits {
		if h.MemoryID == "near" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

// TestVecDisabledLeavesMirrorAsNoOp confirms UpsertEmbedding still succeeds
// against a store opened without the ANN backend: the memory_vec mirror
// write is a silent no-op rather than an error.
func TestVecDisabledLeavesMirrorAsNoOp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memories.db")
	st, err := store.Open(entity.StoreConfig{Path: dbPath})
	require.NoError(t, err)
	defer st.Close()

	require.False(t, st.VecAvailable())

	ctx := context.Background()
	require.NoError(t, store.InsertMemory(ctx, st.DB(), newRecord("only", "content")))
	require.NoError(t, store.UpsertEmbedding(ctx, st.DB(), &entity.EmbeddingRow{
		ID: "emb", MemoryID: "only", Provider: "local", Model: "m", Dimension: 3,
		Version: 1, Vector: []float32{1, 0, 0}, CreatedAt: time.Now().UTC(),
	}))
}
