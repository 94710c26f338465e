package filesync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/codec"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/internal/memory/store"
)

func newTestSyncer(t *testing.T, cfg entity.SyncConfig) (*Syncer, *repository.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(entity.StoreConfig{Path: filepath.Join(dir, "memories.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	dataDir := filepath.Join(dir, "memories")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	repo := repository.New(st, dataDir)
	s := New(repo, cfg)
	t.Cleanup(s.Stop)
	return s, repo, dataDir
}

func writeFixture(t *testing.T, path, id string) {
	t.Helper()
	ts := time.Now().UTC()
	rec := &entity.MemoryFileRecord{
		ID: id, Version: 1, Type: entity.TypeFact, Layer: entity.LayerLTM,
		Importance: 0.6, Confidence: 1.0, Tags: []string{}, Entities: []string{},
		Source: entity.Source{Type: entity.SourceExplicit},
		CreatedAt: ts, UpdatedAt: ts, AccessedAt: ts, Content: "synced content " + id,
	}
	data, err := codec.Serialize(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestStartPerformsInitialScanWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(entity.StoreConfig{Path: filepath.Join(dir, "memories.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	dataDir := filepath.Join(dir, "memories")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	repo := repository.New(st, dataDir)

	writeFixture(t, filepath.Join(dataDir, "pre-existing.md"), "pre-existing")

	s := New(repo, entity.SyncConfig{Watch: false, OnSessionStart: true})
	t.Cleanup(s.Stop)

	report, err := s.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.TotalFiles)
	require.Equal(t, 1, report.Ingested)

	_, err = repo.GetByID(context.Background(), "pre-existing")
	require.NoError(t, err)
}

func TestStartWithoutWatchNeverLaunchesWatcher(t *testing.T) {
	s, _, dataDir := newTestSyncer(t, entity.SyncConfig{Watch: false})
	_, err := s.Start(context.Background())
	require.NoError(t, err)
	require.DirExists(t, dataDir)
}

func TestStartWithWatchIngestsLiveChanges(t *testing.T) {
	s, repo, dataDir := newTestSyncer(t, entity.SyncConfig{Watch: true, WatchDebounceMS: 50})
	ctx := context.Background()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	writeFixture(t, filepath.Join(dataDir, "live.md"), "live-1")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := repo.GetByID(ctx, "live-1"); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Fail(t, "live file was never ingested")
}

func TestRescanDelegatesToWatcher(t *testing.T) {
	s, _, dataDir := newTestSyncer(t, entity.SyncConfig{Watch: false})
	writeFixture(t, filepath.Join(dataDir, "rescan.md"), "rescan-1")

	report := s.Rescan(context.Background())
	require.Equal(t, 1, report.Ingested)
}
