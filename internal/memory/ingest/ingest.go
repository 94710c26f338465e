// Package ingest implements the Ingestor (C5): parse one Markdown file into
// a record, upsert/skip/quarantine it, and aggregate a directory scan
// report (spec.md §4.4).
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/codec"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("ingest")

// Action is the terminal state of one file's ingest (the state machine's
// Created/Updated/Skipped/Quarantined outcomes from spec.md §4 "State
// machines").
type Action string

const (
	ActionCreated     Action = "created"
	ActionUpdated     Action = "updated"
	ActionSkipped     Action = "skipped"
	ActionQuarantined Action = "quarantined"
)

// Result is the outcome of ingesting one file.
type Result struct {
	Action   Action
	MemoryID string
	Reason   string
}

// ScanReport aggregates a directory scan (spec.md §4.4 "Scan directory").
type ScanReport struct {
	TotalFiles  int
	Ingested    int
	Updated     int
	Skipped     int
	Quarantined int
	Errors      []string
}

// Ingestor parses files under a repository's data directory into memory
// records.
type Ingestor struct {
	repo *repository.Repository
}

// New constructs an Ingestor bound to repo.
func New(repo *repository.Repository) *Ingestor {
	return &Ingestor{repo: repo}
}

// IngestFile ingests one file by its absolute path.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, entity.WrapFile(entity.KindIO, "ingest.IngestFile", path, err)
	}

	rec, err := codec.Parse(data)
	if err != nil {
		reason := err.Error()
		if qerr := in.quarantine(path, data, reason); qerr != nil {
			log.Error("failed to quarantine %s: %v", path, qerr)
			return Result{}, qerr
		}
		log.Warn("quarantined %s: %s", filepath.Base(path), reason)
		return Result{Action: ActionQuarantined, Reason: reason}, nil
	}

	candidate := rec.ToMemoryRecord()
	existing, err := in.repo.GetByID(ctx, candidate.ID)
	if err != nil {
		if kind, ok := entity.KindOf(err); !ok || kind != entity.KindNotFound {
			return Result{}, err
		}
		created, err := in.repo.Create(ctx, candidate)
		if err != nil {
			return Result{}, err
		}
		return Result{Action: ActionCreated, MemoryID: created.ID}, nil
	}

	if recordsEqual(existing, candidate) {
		return Result{Action: ActionSkipped, MemoryID: existing.ID}, nil
	}

	candidate.CreatedAt = existing.CreatedAt
	updated, err := in.repo.Update(ctx, candidate)
	if err != nil {
		return Result{}, err
	}
	return Result{Action: ActionUpdated, MemoryID: updated.ID}, nil
}

// ScanDirectory ingests every .md file directly under dir (non-recursive,
// matching the Markdown data directory's flat layout), skipping the
// quarantine subdirectory and non-regular files. A non-existent directory
// returns an empty report rather than an error (spec.md §4.4).
func (in *Ingestor) ScanDirectory(ctx context.Context, dir string) ScanReport {
	var report ScanReport

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if name == ".quarantine" || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		report.TotalFiles++
		result, err := in.IngestFile(ctx, path)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		switch result.Action {
		case ActionCreated:
			report.Ingested++
		case ActionUpdated:
			report.Updated++
		case ActionSkipped:
			report.Skipped++
		case ActionQuarantined:
			report.Quarantined++
		}
	}

	return report
}

// quarantine moves a malformed file into <dataDir>/.quarantine/<name> and
// writes a sibling <name>.error diagnostic (spec.md §4.4 step 2).
func (in *Ingestor) quarantine(path string, data []byte, reason string) error {
	qDir := filepath.Join(in.repo.DataDir(), ".quarantine")
	if err := os.MkdirAll(qDir, 0o755); err != nil {
		return entity.WrapFile(entity.KindIO, "ingest.quarantine", path, err)
	}
	name := filepath.Base(path)
	dest := filepath.Join(qDir, name)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return entity.WrapFile(entity.KindIO, "ingest.quarantine", path, err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return entity.WrapFile(entity.KindIO, "ingest.quarantine", path, err)
	}
	errMsg := fmt.Sprintf("%s\nquarantined_at: %s\n", reason, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(dest+".error", []byte(errMsg), 0o644); err != nil {
		return entity.WrapFile(entity.KindIO, "ingest.quarantine", path, err)
	}
	return nil
}

// recordsEqual compares the fields spec.md §4.4 step 4 names: content,
// importance, confidence, and order-insensitive tags/entities.
func recordsEqual(a, b *entity.MemoryRecord) bool {
	if a.Content != b.Content || a.Importance != b.Importance || a.Confidence != b.Confidence {
		return false
	}
	return sameSet(a.Tags, b.Tags) && sameSet(a.Entities, b.Entities)
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	ac := append([]string(nil), a...)
	bc := append([]string(nil), b...)
	sort.Strings(ac)
	sort.Strings(bc)
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}
