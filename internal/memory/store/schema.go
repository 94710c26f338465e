package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

// migration is one schema_version-tracked step, run in its own transaction.
// Replay is idempotent: every statement uses IF NOT EXISTS / OR REPLACE so
// re-running an already-applied migration is a no-op.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER PRIMARY KEY,
				applied_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS memories (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				type TEXT NOT NULL,
				layer TEXT NOT NULL DEFAULT 'stm',
				importance REAL NOT NULL DEFAULT 0.5,
				confidence REAL NOT NULL DEFAULT 1.0,
				tags TEXT NOT NULL DEFAULT '[]',
				entities TEXT NOT NULL DEFAULT '[]',
				source_type TEXT NOT NULL,
				source_conversation_id TEXT,
				source_message_id TEXT,
				supersedes_id TEXT,
				superseded_by_id TEXT,
				access_count INTEGER NOT NULL DEFAULT 0,
				reinforcement_count INTEGER NOT NULL DEFAULT 0,
				last_accessed_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(type)`,
			`CREATE INDEX IF NOT EXISTS idx_memories_layer ON memories(layer)`,
			// memory_provenance.memory_id carries no foreign key: provenance
			// rows, including the "deleted" entry, outlive their memory.
			`CREATE TABLE IF NOT EXISTS memory_provenance (
				id TEXT PRIMARY KEY,
				memory_id TEXT NOT NULL,
				event_type TEXT NOT NULL,
				source_details TEXT NOT NULL DEFAULT '{}',
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_provenance_memory ON memory_provenance(memory_id)`,
			`CREATE TABLE IF NOT EXISTS memory_embeddings (
				id TEXT PRIMARY KEY,
				memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
				provider TEXT NOT NULL,
				model TEXT NOT NULL,
				dimension INTEGER NOT NULL,
				version INTEGER NOT NULL DEFAULT 1,
				vector BLOB NOT NULL,
				created_at TEXT NOT NULL,
				UNIQUE(memory_id, provider, model)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_embeddings_memory ON memory_embeddings(memory_id)`,
		},
	},
	{
		// v2: orthogonal tables (spec.md §4.2: "specified only to the
		// extent they must coexist") plus the FTS5 index + sync triggers.
		version: 2,
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS consolidation_runs (
				id TEXT PRIMARY KEY,
				started_at TEXT NOT NULL,
				completed_at TEXT,
				summary TEXT
			)`,
			`CREATE TABLE IF NOT EXISTS document_sources (
				id TEXT PRIMARY KEY,
				path TEXT NOT NULL,
				hash TEXT NOT NULL,
				indexed_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS document_chunks (
				id TEXT PRIMARY KEY,
				document_id TEXT NOT NULL REFERENCES document_sources(id) ON DELETE CASCADE,
				chunk_index INTEGER NOT NULL,
				content TEXT NOT NULL,
				start_line INTEGER,
				end_line INTEGER
			)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
				content, content='memories', content_rowid='rowid'
			)`,
		},
	},
}

// ensureSchema applies outstanding migrations in order inside their own
// transactions and (re)creates the FTS sync triggers unconditionally, the
// way the teacher's store.EnsureSchema does for its own chunks_fts table.
func (s *Store) ensureSchema() error {
	applied, err := s.appliedVersions()
	if err != nil {
		return entity.Wrap(entity.KindDB, "store.ensureSchema", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := s.applyMigration(m); err != nil {
			return entity.Wrap(entity.KindDB, "store.ensureSchema", err)
		}
	}
	if err := s.recreateFTSTriggers(); err != nil {
		return entity.Wrap(entity.KindDB, "store.ensureSchema", err)
	}
	return nil
}

func (s *Store) appliedVersions() (map[int]bool, error) {
	out := map[int]bool{}
	row, err := s.db.Query(`SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'`)
	if err != nil {
		return out, err
	}
	hasTable := row.Next()
	row.Close()
	if !hasTable {
		return out, nil
	}
	rows, err := s.db.Query(`SELECT version FROM schema_version`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return out, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

func (s *Store) applyMigration(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO schema_version(version, applied_at) VALUES(?, ?)`,
		m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

// recreateFTSTriggers drops and recreates the FTS sync triggers on every
// init so a trigger definition change ships without a data migration.
func (s *Store) recreateFTSTriggers() error {
	stmts := []string{
		`DROP TRIGGER IF EXISTS memories_fts_insert`,
		`DROP TRIGGER IF EXISTS memories_fts_update`,
		`DROP TRIGGER IF EXISTS memories_fts_delete`,
		`CREATE TRIGGER memories_fts_insert AFTER INSERT ON memories BEGIN
			INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER memories_fts_update AFTER UPDATE OF content ON memories BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content) VALUES('delete', old.rowid, old.content);
			INSERT INTO memory_fts(rowid, content) VALUES (new.rowid, new.content);
		END`,
		`CREATE TRIGGER memories_fts_delete AFTER DELETE ON memories BEGIN
			INSERT INTO memory_fts(memory_fts, rowid, content) VALUES('delete', old.rowid, old.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// tryEnableVec checks that the sqlite-vec module is available for the optional ANN
// vector backend (C10's pluggable index) and creates memory_vec, a
// memory_id-keyed vec0 table mirroring memory_embeddings, grounded on the
// teacher's store.EnsureSchema vec0 table (memory-core/store/schema.go).
// Failure here is non-fatal; the caller falls back to brute-force cosine
// scan.
func (s *Store) tryEnableVec(extensionPath string, dimension int) error {
	if dimension <= 0 {
		dimension = 1536
	}
	if _, err := s.db.Exec(`SELECT 1`); err != nil {
		return err
	}
	// sqlite_vec.Auto() (called once from the embedding package's init, see
	// embedding/vec_init.go) registers the vec0 module process-wide before
	// any sql.Open call; here we just verify the module loaded correctly.
	var module sql.NullString
	row := s.db.QueryRow(`SELECT name FROM pragma_module_list WHERE name = 'vec0'`)
	if err := row.Scan(&module); err != nil {
		return fmt.Errorf("vec0 module not registered: %w", err)
	}
	_, err := s.db.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS memory_vec USING vec0(
		memory_id TEXT PRIMARY KEY,
		embedding float[%d]
	)`, dimension))
	if err != nil {
		return err
	}
	s.vecDim = dimension
	return nil
}
