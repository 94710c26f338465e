package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/codec"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/ingest"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/internal/memory/store"
)

func newTestWatcher(t *testing.T, debounce time.Duration, onDeletion DeletionHandler) (*Watcher, *repository.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(entity.StoreConfig{Path: filepath.Join(dir, "memories.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	dataDir := filepath.Join(dir, "memories")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	repo := repository.New(st, dataDir)
	ing := ingest.New(repo)
	w := New(dataDir, debounce, ing, onDeletion)
	t.Cleanup(w.Stop)
	return w, repo, dataDir
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func TestIsTrackedFiltersNonMarkdownAndTransientNames(t *testing.T) {
	require.True(t, isTracked("note.md"))
	require.False(t, isTracked("note.txt"))
	require.False(t, isTracked(".hidden.md"))
	require.False(t, isTracked("~backup.md"))
	require.False(t, isTracked("#scratch.md"))
	require.False(t, isTracked("note.md.tmp"))
	require.False(t, isTracked("note.md.swp"))
	require.False(t, isTracked("note.md.bak"))
	require.False(t, isTracked("note.md.crswap"))
}

func TestWatcherIngestsNewFile(t *testing.T) {
	w, repo, dataDir := newTestWatcher(t, 50*time.Millisecond, nil)
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))

	rec := &entity.MemoryFileRecord{
		ID: "watched-1", Version: 1, Type: entity.TypeFact, Layer: entity.LayerLTM,
		Importance: 0.6, Confidence: 1.0, Tags: []string{}, Entities: []string{},
		Source: entity.Source{Type: entity.SourceExplicit},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(), AccessedAt: time.Now().UTC(),
		Content: "watcher-created content",
	}
	data, err := codec.Serialize(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "watched.md"), data, 0o644))

	waitFor(t, 2*time.Second, func() bool {
		_, err := repo.GetByID(ctx, "watched-1")
		return err == nil
	})
}

func TestWatcherReportsDeletion(t *testing.T) {
	deleted := make(chan string, 1)
	w, repo, dataDir := newTestWatcher(t, 50*time.Millisecond, func(path string) {
		select {
		case deleted <- path:
		default:
		}
	})
	ctx := context.Background()
	require.NoError(t, w.Start(ctx))

	rec := &entity.MemoryFileRecord{
		ID: "watched-2", Version: 1, Type: entity.TypeFact, Layer: entity.LayerLTM,
		Importance: 0.6, Confidence: 1.0, Tags: []string{}, Entities: []string{},
		Source: entity.Source{Type: entity.SourceExplicit},
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(), AccessedAt: time.Now().UTC(),
		Content: "will be deleted out from under the watcher",
	}
	data, err := codec.Serialize(rec)
	require.NoError(t, err)
	path := filepath.Join(dataDir, "will-delete.md")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	waitFor(t, 2*time.Second, func() bool {
		_, err := repo.GetByID(ctx, "watched-2")
		return err == nil
	})

	require.NoError(t, os.Remove(path))

	select {
	case <-deleted:
	case <-time.After(2 * time.Second):
		require.Fail(t, "deletion handler was never invoked")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	w, _, _ := newTestWatcher(t, 50*time.Millisecond, nil)
	ctx := context.Background()

	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))
	w.Stop()
	w.Stop()
}

func TestStartMissingDirectoryErrors(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(entity.StoreConfig{Path: filepath.Join(dir, "memories.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	repo := repository.New(st, filepath.Join(dir, "does-not-exist"))
	ing := ingest.New(repo)
	w := New(filepath.Join(dir, "does-not-exist"), 50*time.Millisecond, ing, nil)

	err = w.Start(context.Background())
	require.Error(t, err)
}
