// Package repository implements the dual-write repository (C4): every
// mutation keeps a SQLite row and a Markdown file in lockstep, with a
// compensating DELETE of the row when the file half of the write fails
// (spec.md §4.3, §9 "Dual-write atomicity without XA").
package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"github.com/kiosk404/reinsmem/internal/memory/codec"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/store"
	"github.com/kiosk404/reinsmem/pkg/jsonutil"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("repository")

var sanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeID derives the deterministic filename stem for a memory id
// (spec.md §4.3 "File naming"): non [A-Za-z0-9_-] bytes become "_".
func SanitizeID(id string) string {
	return sanitizeRe.ReplaceAllString(id, "_")
}

// Repository binds the SQLite store and the Markdown data directory into
// the single owner of each memory's (row, file) pair.
type Repository struct {
	st      *store.Store
	dataDir string
}

// New constructs a Repository rooted at dataDir. New does not create
// dataDir; the CLI creates it on startup, and each file write creates it
// if it is missing.
func New(st *store.Store, dataDir string) *Repository {
	return &Repository{st: st, dataDir: dataDir}
}

// DataDir returns the Markdown data directory this repository writes into.
func (r *Repository) DataDir() string { return r.dataDir }

// FilePath returns the on-disk path a memory id resolves to.
func (r *Repository) FilePath(id string) string {
	return filepath.Join(r.dataDir, SanitizeID(id)+".md")
}

// SaveEmbedding persists a memory's vector and mirrors it into the optional
// vec0 ANN index. It is a plain store write, not a dual-write: embeddings
// have no Markdown representation.
func (r *Repository) SaveEmbedding(ctx context.Context, e *entity.EmbeddingRow) error {
	return store.UpsertEmbedding(ctx, r.st.DB(), e)
}

// Create assigns an id (if unset) and timestamps, validates, writes the
// row and a `created` provenance entry inside one transaction, then writes
// the Markdown file. On file-write failure the row is deleted and the
// original error is returned (spec.md §4.3 Create / Design Notes).
func (r *Repository) Create(ctx context.Context, rec *entity.MemoryRecord) (*entity.MemoryRecord, error) {
	out := cloneRecord(rec)
	if out.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, entity.Wrap(entity.KindIO, "repository.Create", err)
		}
		out.ID = id.String()
	}
	now := time.Now().UTC()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now
	out.AccessedAt = now
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Entities == nil {
		out.Entities = []string{}
	}

	if err := codec.Validate(out); err != nil {
		return nil, err
	}
	if err := r.checkSupersedesCycle(ctx, out.ID, out.Supersedes); err != nil {
		return nil, err
	}

	file := out.ToFileRecord(1)
	data, err := codec.Serialize(file)
	if err != nil {
		return nil, entity.WrapID(entity.KindFormat, "repository.Create", out.ID, err)
	}

	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Create", out.ID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := store.InsertMemory(ctx, tx, out); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Create", out.ID, err)
	}
	prov := &entity.ProvenanceRow{
		ID: uuidString(), MemoryID: out.ID, Event: entity.EventCreated,
		Details: map[string]any{"fileName": filepath.Base(r.FilePath(out.ID))}, CreatedAt: now,
	}
	if err := store.InsertProvenance(ctx, tx, prov); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Create", out.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Create", out.ID, err)
	}
	committed = true

	if err := r.writeFile(out.ID, data); err != nil {
		log.Warn("file write failed for %s, compensating row delete: %v", out.ID, err)
		if delErr := store.DeleteMemory(ctx, r.st.DB(), out.ID); delErr != nil {
			log.Error("compensating delete failed for %s: %v", out.ID, delErr)
		}
		return nil, entity.WrapID(entity.KindIO, "repository.Create", out.ID, err)
	}

	return out, nil
}

// Update reads the existing row (rejecting if missing), applies the new
// field values, bumps updatedAt/accessedAt, appends an `updated`
// provenance row carrying a content checksum, and overwrites the file.
func (r *Repository) Update(ctx context.Context, rec *entity.MemoryRecord) (*entity.MemoryRecord, error) {
	existing, err := store.GetByID(ctx, r.st.DB(), rec.ID)
	if err != nil {
		return nil, err
	}

	out := cloneRecord(rec)
	out.CreatedAt = existing.CreatedAt
	now := time.Now().UTC()
	out.UpdatedAt = now
	out.AccessedAt = now
	if out.Tags == nil {
		out.Tags = []string{}
	}
	if out.Entities == nil {
		out.Entities = []string{}
	}

	if err := codec.Validate(out); err != nil {
		return nil, err
	}
	if err := r.checkSupersedesCycle(ctx, out.ID, out.Supersedes); err != nil {
		return nil, err
	}

	file := out.ToFileRecord(1)
	data, err := codec.Serialize(file)
	if err != nil {
		return nil, entity.WrapID(entity.KindFormat, "repository.Update", out.ID, err)
	}

	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Update", out.ID, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := store.UpdateMemory(ctx, tx, out); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Update", out.ID, err)
	}
	checksum, err := jsonutil.Marshal(map[string]string{"checksum": codec.Checksum(out.Content)})
	if err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Update", out.ID, err)
	}
	var details map[string]any
	_ = jsonutil.Unmarshal(checksum, &details)
	prov := &entity.ProvenanceRow{ID: uuidString(), MemoryID: out.ID, Event: entity.EventUpdated, Details: details, CreatedAt: now}
	if err := store.InsertProvenance(ctx, tx, prov); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Update", out.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, entity.WrapID(entity.KindDB, "repository.Update", out.ID, err)
	}
	committed = true

	if err := r.writeFile(out.ID, data); err != nil {
		log.Warn("file write failed updating %s, reverting row to previous content: %v", out.ID, err)
		if uerr := store.UpdateMemory(ctx, r.st.DB(), existing); uerr != nil {
			log.Error("revert after failed update file write also failed for %s: %v", out.ID, uerr)
		}
		return nil, entity.WrapID(entity.KindIO, "repository.Update", out.ID, err)
	}

	return out, nil
}

// Delete resolves the file path for id, deletes the row (cascading its
// embeddings), appends a `deleted` provenance row, then unlinks the file.
// A missing file is tolerated (spec.md §4.3 Delete).
func (r *Repository) Delete(ctx context.Context, id string) error {
	if _, err := store.GetByID(ctx, r.st.DB(), id); err != nil {
		return err
	}
	path := r.FilePath(id)

	tx, err := r.st.DB().BeginTx(ctx, nil)
	if err != nil {
		return entity.WrapID(entity.KindDB, "repository.Delete", id, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := store.DeleteMemory(ctx, tx, id); err != nil {
		return entity.WrapID(entity.KindDB, "repository.Delete", id, err)
	}
	prov := &entity.ProvenanceRow{ID: uuidString(), MemoryID: id, Event: entity.EventDeleted, Details: map[string]any{}, CreatedAt: time.Now().UTC()}
	if err := store.InsertProvenance(ctx, tx, prov); err != nil {
		return entity.WrapID(entity.KindDB, "repository.Delete", id, err)
	}
	if err := tx.Commit(); err != nil {
		return entity.WrapID(entity.KindDB, "repository.Delete", id, err)
	}
	committed = true

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return entity.WrapID(entity.KindIO, "repository.Delete", id, err)
	}
	return nil
}

// DeleteByConversation resolves every memory whose provenance references
// conversationID and deletes each through the normal dual-write delete
// path, per DESIGN.md's Open Question decision.
func (r *Repository) DeleteByConversation(ctx context.Context, conversationID string) (int, []error) {
	rows, err := r.st.DB().QueryContext(ctx, `SELECT id FROM memories WHERE source_conversation_id = ?`, conversationID)
	if err != nil {
		return 0, []error{entity.Wrap(entity.KindDB, "repository.DeleteByConversation", err)}
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	var errs []error
	n := 0
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

// GetByID delegates to the store.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.MemoryRecord, error) {
	return store.GetByID(ctx, r.st.DB(), id)
}

// List delegates to the store.
func (r *Repository) List(ctx context.Context, f store.ListFilter) ([]*entity.MemoryRecord, error) {
	return store.List(ctx, r.st.DB(), f)
}

// Count delegates to the store.
func (r *Repository) Count(ctx context.Context, f store.ListFilter) (int, error) {
	return store.Count(ctx, r.st.DB(), f)
}

// ReconcileReport is the read-only divergence report from spec.md §4.3.
type ReconcileReport struct {
	OrphanedFiles     []string
	MissingFiles      []string
	ContentMismatches []string
	IsConsistent      bool
}

// Reconcile scans every row and every .md file under the data directory
// and reports divergences. It never repairs anything (spec.md §4.3).
func (r *Repository) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	rows, err := r.st.DB().QueryContext(ctx, `SELECT id, content FROM memories`)
	if err != nil {
		return nil, entity.Wrap(entity.KindDB, "repository.Reconcile", err)
	}
	rowContent := map[string]string{}
	for rows.Next() {
		var id, content string
		if err := rows.Scan(&id, &content); err != nil {
			rows.Close()
			return nil, entity.Wrap(entity.KindDB, "repository.Reconcile", err)
		}
		rowContent[id] = content
	}
	rows.Close()

	entries, err := os.ReadDir(r.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			for id := range rowContent {
				report.MissingFiles = append(report.MissingFiles, id)
			}
			report.IsConsistent = len(report.MissingFiles) == 0
			return report, nil
		}
		return nil, entity.Wrap(entity.KindIO, "repository.Reconcile", err)
	}

	seen := map[string]bool{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(r.dataDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fr, err := codec.Parse(data)
		if err != nil {
			report.OrphanedFiles = append(report.OrphanedFiles, e.Name())
			continue
		}
		content, ok := rowContent[fr.ID]
		if !ok {
			report.OrphanedFiles = append(report.OrphanedFiles, e.Name())
			continue
		}
		seen[fr.ID] = true
		if content != fr.Content {
			report.ContentMismatches = append(report.ContentMismatches, fr.ID)
		}
	}

	for id := range rowContent {
		if !seen[id] {
			report.MissingFiles = append(report.MissingFiles, id)
		}
	}

	report.IsConsistent = len(report.OrphanedFiles) == 0 && len(report.MissingFiles) == 0 && len(report.ContentMismatches) == 0
	return report, nil
}

// checkSupersedesCycle rejects a write if the candidate's supersedes edge
// would close a cycle back to the candidate's own id (DESIGN.md's Open
// Question decision for spec.md §9's "cyclic supersession" note).
func (r *Repository) checkSupersedesCycle(ctx context.Context, id string, supersedes *string) error {
	if supersedes == nil {
		return nil
	}
	visited := map[string]bool{id: true}
	cursor := *supersedes
	for depth := 0; depth < 1000; depth++ {
		if visited[cursor] {
			return entity.WrapID(entity.KindValidation, "repository.checkSupersedesCycle", id,
				errors.New("supersedes edge would close a cycle"))
		}
		visited[cursor] = true
		next, err := store.GetByID(ctx, r.st.DB(), cursor)
		if err != nil {
			return nil // unknown/unreachable target; enforcement only covers known chains
		}
		if next.Supersedes == nil {
			return nil
		}
		cursor = *next.Supersedes
	}
	return nil
}

// writeFile writes the Markdown file atomically (write-then-rename via
// natefinch/atomic), the file-write primitive used under the top-level
// compensating-DELETE dual-write pattern (spec.md §9 Design Notes).
func (r *Repository) writeFile(id string, data []byte) error {
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return err
	}
	return atomic.WriteFile(r.FilePath(id), strings.NewReader(string(data)))
}

func cloneRecord(r *entity.MemoryRecord) *entity.MemoryRecord {
	cp := *r
	cp.Tags = append([]string(nil), r.Tags...)
	cp.Entities = append([]string(nil), r.Entities...)
	if r.Supersedes != nil {
		s := *r.Supersedes
		cp.Supersedes = &s
	}
	if r.SupersededBy != nil {
		s := *r.SupersededBy
		cp.SupersededBy = &s
	}
	return &cp
}

func uuidString() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
