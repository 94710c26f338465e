// Package filesync binds the Watcher and Ingestor into one lifecycle (C12):
// an optional initial scan on session start, followed by live debounced
// watching, torn down together on Stop.
package filesync

import (
	"context"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/ingest"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/internal/memory/watch"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("filesync")

// Syncer owns the watcher/ingestor pair for one repository's data directory.
type Syncer struct {
	repo *repository.Repository
	ing  *ingest.Ingestor
	w    *watch.Watcher
	cfg  entity.SyncConfig
}

// New constructs a Syncer. The watcher is created but not started.
func New(repo *repository.Repository, cfg entity.SyncConfig) *Syncer {
	ing := ingest.New(repo)
	debounce := time.Duration(cfg.WatchDebounceMS) * time.Millisecond
	w := watch.New(repo.DataDir(), debounce, ing, func(path string) {
		log.Info("watched file removed: %s (record left in place, see spec.md §4.4 deletion handling)", path)
	})
	return &Syncer{repo: repo, ing: ing, w: w, cfg: cfg}
}

// Start performs the optional initial scan (spec.md §4.5 "on session
// start") and then, if cfg.Watch is set, begins live watching.
func (s *Syncer) Start(ctx context.Context) (ingest.ScanReport, error) {
	var report ingest.ScanReport
	if s.cfg.OnSessionStart {
		report = s.ing.ScanDirectory(ctx, s.repo.DataDir())
		log.Info("initial scan: %d files, %d created, %d updated, %d skipped, %d quarantined",
			report.TotalFiles, report.Ingested, report.Updated, report.Skipped, report.Quarantined)
	}
	if !s.cfg.Watch {
		return report, nil
	}
	if err := s.w.Start(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// Stop tears down the live watcher. Safe to call even if Start never ran.
func (s *Syncer) Stop() {
	s.w.Stop()
}

// Rescan runs an on-demand directory scan independent of live watching.
func (s *Syncer) Rescan(ctx context.Context) ingest.ScanReport {
	return s.w.Rescan(ctx)
}
