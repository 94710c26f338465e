// Package store implements the SQLite persistence layer (C3): schema,
// migrations, FTS5 virtual table + triggers, and prepared queries.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("store")

// Store wraps the process-singleton SQLite connection (spec.md §5:
// "The SQLite connection is process-singleton; WAL enables concurrent
// readers").
type Store struct {
	db         *sql.DB
	vecEnabled bool
	vecDim     int
}

// Open opens (creating if necessary) the SQLite database at cfg.Path with
// WAL journaling and foreign keys on, then ensures the schema is current.
func Open(cfg entity.StoreConfig) (*Store, error) {
	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 1000
	}
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=%d&_synchronous=NORMAL", cfg.Path, busy)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, entity.Wrap(entity.KindDB, "store.Open", err)
	}
	db.SetMaxOpenConns(1) // single-writer process per spec.md §5

	s := &Store{db: db, vecEnabled: cfg.Vector.Enabled}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if cfg.Vector.Enabled {
		if err := s.tryEnableVec(cfg.Vector.ExtensionPath, cfg.Vector.Dimension); err != nil {
			log.Warn("vec0 extension unavailable, falling back to brute-force cosine scan: %v", err)
			s.vecEnabled = false
		}
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers (retrievers) that need to
// run ad hoc queries beyond the prepared ones in queries.go.
func (s *Store) DB() *sql.DB { return s.db }

// VecAvailable reports whether the sqlite-vec ANN backend is active.
func (s *Store) VecAvailable() bool { return s.vecEnabled }

// VecDimension reports the fixed vector length memory_vec was created with,
// or 0 if the ANN backend is unavailable.
func (s *Store) VecDimension() int { return s.vecDim }
