package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/pkg/jsonutil"
)

// Execer is satisfied by both *sql.DB and *sql.Tx, so every query function
// here runs the same whether called standalone or inside the repository's
// create/update transaction.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const timeFmt = time.RFC3339Nano

func encodeStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	b, _ := jsonutil.Marshal(ss)
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	_ = jsonutil.Unmarshal([]byte(s), &out)
	return out
}

// InsertMemory inserts a new row. Callers run this inside a transaction
// together with InsertProvenance (spec.md §4.3 Create).
func InsertMemory(ctx context.Context, ex Execer, r *entity.MemoryRecord) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO memories (
			id, content, type, layer, importance, confidence, tags, entities,
			source_type, source_conversation_id, source_message_id,
			supersedes_id, superseded_by_id, last_accessed_at, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Content, string(r.Type), string(r.Layer), r.Importance, r.Confidence,
		encodeStrings(r.Tags), encodeStrings(r.Entities),
		string(r.Source.Type), nullIfEmpty(r.Source.ConversationID), nullIfEmpty(r.Source.MessageID),
		derefOrNil(r.Supersedes), derefOrNil(r.SupersededBy),
		r.AccessedAt.Format(timeFmt), r.CreatedAt.Format(timeFmt), r.UpdatedAt.Format(timeFmt),
	)
	return err
}

// UpdateMemory overwrites an existing row in place.
func UpdateMemory(ctx context.Context, ex Execer, r *entity.MemoryRecord) error {
	res, err := ex.ExecContext(ctx, `
		UPDATE memories SET
			content=?, type=?, layer=?, importance=?, confidence=?, tags=?, entities=?,
			source_type=?, source_conversation_id=?, source_message_id=?,
			supersedes_id=?, superseded_by_id=?, last_accessed_at=?, updated_at=?
		WHERE id=?`,
		r.Content, string(r.Type), string(r.Layer), r.Importance, r.Confidence,
		encodeStrings(r.Tags), encodeStrings(r.Entities),
		string(r.Source.Type), nullIfEmpty(r.Source.ConversationID), nullIfEmpty(r.Source.MessageID),
		derefOrNil(r.Supersedes), derefOrNil(r.SupersededBy),
		r.AccessedAt.Format(timeFmt), r.UpdatedAt.Format(timeFmt), r.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entity.WrapID(entity.KindNotFound, "store.UpdateMemory", r.ID, sql.ErrNoRows)
	}
	return nil
}

// DeleteMemory removes the row; ON DELETE CASCADE drops its embeddings.
func DeleteMemory(ctx context.Context, ex Execer, id string) error {
	_, err := ex.ExecContext(ctx, `DELETE FROM memories WHERE id=?`, id)
	return err
}

// GetByID fetches one memory row, or a NotFound error.
func GetByID(ctx context.Context, ex Execer, id string) (*entity.MemoryRecord, error) {
	row := ex.QueryRowContext(ctx, `
		SELECT id, content, type, layer, importance, confidence, tags, entities,
			source_type, source_conversation_id, source_message_id,
			supersedes_id, superseded_by_id, last_accessed_at, created_at, updated_at
		FROM memories WHERE id=?`, id)
	r, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, entity.WrapID(entity.KindNotFound, "store.GetByID", id, err)
	}
	return r, err
}

// ListFilter narrows List/Find queries.
type ListFilter struct {
	Type   string
	Layer  string
	Limit  int
	Offset int
}

// List returns memories matching the optional type/layer filter, newest
// updated first.
func List(ctx context.Context, ex Execer, f ListFilter) ([]*entity.MemoryRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if f.Layer != "" {
		where = append(where, "layer=?")
		args = append(args, f.Layer)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit, f.Offset)

	rows, err := ex.QueryContext(ctx, `
		SELECT id, content, type, layer, importance, confidence, tags, entities,
			source_type, source_conversation_id, source_message_id,
			supersedes_id, superseded_by_id, last_accessed_at, created_at, updated_at
		FROM memories `+clause+`
		ORDER BY updated_at DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// Count returns the number of memory rows, optionally filtered.
func Count(ctx context.Context, ex Execer, f ListFilter) (int, error) {
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "type=?")
		args = append(args, f.Type)
	}
	if f.Layer != "" {
		where = append(where, "layer=?")
		args = append(args, f.Layer)
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	var n int
	err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories `+clause, args...).Scan(&n)
	return n, err
}

// InsertProvenance appends an audit-trail row.
func InsertProvenance(ctx context.Context, ex Execer, p *entity.ProvenanceRow) error {
	details, err := jsonutil.Marshal(p.Details)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO memory_provenance (id, memory_id, event_type, source_details, created_at)
		VALUES (?,?,?,?,?)`,
		p.ID, p.MemoryID, string(p.Event), string(details), p.CreatedAt.Format(timeFmt))
	return err
}

// UpsertEmbedding inserts or replaces the (memory, provider, model) vector,
// then mirrors it into the optional vec0 ANN index (memory_vec) so the
// vector retriever's KNN path has something to query. The mirror is
// best-effort: a store opened without Vector.Enabled has no memory_vec
// table, and that absence is not an error.
func UpsertEmbedding(ctx context.Context, ex Execer, e *entity.EmbeddingRow) error {
	raw, err := jsonutil.Marshal(e.Vector)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO memory_embeddings (id, memory_id, provider, model, dimension, version, vector, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(memory_id, provider, model) DO UPDATE SET
			dimension=excluded.dimension, version=excluded.version,
			vector=excluded.vector, created_at=excluded.created_at`,
		e.ID, e.MemoryID, e.Provider, e.Model, e.Dimension, e.Version, raw, e.CreatedAt.Format(timeFmt))
	if err != nil {
		return err
	}
	return UpsertVecEmbedding(ctx, ex, e.MemoryID, e.Vector)
}

// UpsertVecEmbedding mirrors one memory's embedding into memory_vec, keyed
// by memory id, grounded on the teacher's store.InsertVecChunk
// (memory-core/store/schema.go). vec0 doesn't support ON CONFLICT, so a
// replace is a delete followed by an insert.
func UpsertVecEmbedding(ctx context.Context, ex Execer, memoryID string, vector []float32) error {
	vecJSON, err := jsonutil.Marshal(vector)
	if err != nil {
		return err
	}
	if _, err := ex.ExecContext(ctx, `DELETE FROM memory_vec WHERE memory_id = ?`, memoryID); err != nil {
		if isNoSuchVecTable(err) {
			return nil
		}
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO memory_vec (memory_id, embedding) VALUES (?, ?)`, memoryID, string(vecJSON))
	return err
}

func isNoSuchVecTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table: memory_vec")
}

// EmbeddingCandidate is one vector row joined back to its memory's
// searchable attributes — the shape the vector retriever (C10) needs to
// populate a MemorySearchResult without a second round-trip per hit.
type EmbeddingCandidate struct {
	MemoryID   string
	Vector     []float32
	Content    string
	Type       string
	Layer      string
	Importance float64
}

// ListEmbeddingsWithAttrs is ListEmbeddings joined to memories, so the
// vector retriever can return "similarity alongside the associated memory
// attributes" per spec.md §4.9 without a join per candidate.
func ListEmbeddingsWithAttrs(ctx context.Context, ex Execer, provider, model string) ([]*EmbeddingCandidate, error) {
	rows, err := ex.QueryContext(ctx, `
		SELECT e.memory_id, e.vector, m.content, m.type, m.layer, m.importance
		FROM memory_embeddings e
		JOIN memories m ON m.id = e.memory_id
		WHERE e.provider=? AND e.model=?`, provider, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*EmbeddingCandidate
	for rows.Next() {
		var c EmbeddingCandidate
		var raw []byte
		if err := rows.Scan(&c.MemoryID, &raw, &c.Content, &c.Type, &c.Layer, &c.Importance); err != nil {
			return nil, err
		}
		if err := jsonutil.Unmarshal(raw, &c.Vector); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// CountEmbeddings returns the total row count in memory_embeddings.
func CountEmbeddings(ctx context.Context, ex Execer) (int, error) {
	var n int
	err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_embeddings`).Scan(&n)
	return n, err
}

// VecHit is one KNN result from the memory_vec ANN index, joined back to
// its memory's attributes.
type VecHit struct {
	MemoryID   string
	Content    string
	Type       string
	Layer      string
	Importance float64
	Distance   float64
}

// SearchVec runs a KNN query against memory_vec and joins each hit back to
// its memory row, grounded on the teacher's store.SearchVec +
// search.SearchVectorVec two-step (KNN query, then a per-hit metadata
// lookup) in memory-core/store/schema.go and memory-core/internal/search.
// Returns (nil, nil) if the table is empty or unpopulated.
func SearchVec(ctx context.Context, ex Execer, queryVector []float32, limit int) ([]VecHit, error) {
	if len(queryVector) == 0 || limit <= 0 {
		return nil, nil
	}
	vecJSON, err := jsonutil.Marshal(queryVector)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx,
		`SELECT memory_id, distance FROM memory_vec WHERE embedding MATCH ? ORDER BY distance LIMIT ?`,
		string(vecJSON), limit)
	if err != nil {
		return nil, err
	}
	type knn struct {
		id       string
		distance float64
	}
	var neighbors []knn
	for rows.Next() {
		var k knn
		if err := rows.Scan(&k.id, &k.distance); err != nil {
			rows.Close()
			return nil, err
		}
		neighbors = append(neighbors, k)
	}
	closeErr := rows.Err()
	rows.Close()
	if closeErr != nil {
		return nil, closeErr
	}

	out := make([]VecHit, 0, len(neighbors))
	for _, n := range neighbors {
		row := ex.QueryRowContext(ctx, `SELECT content, type, layer, importance FROM memories WHERE id = ?`, n.id)
		var h VecHit
		h.MemoryID, h.Distance = n.id, n.distance
		if err := row.Scan(&h.Content, &h.Type, &h.Layer, &h.Importance); err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// FTSHit is one raw row returned by SearchFTS, before normalization.
type FTSHit struct {
	ID         string
	Content    string
	Type       string
	Layer      string
	Importance float64
	RawRank    float64
	Snippet    string
}

// SearchFTS runs the prepared FTS5 MATCH query joined back to memories,
// with optional type and layer filters (there is no source_type filter),
// ordered by raw BM25 rank
// (more negative = more relevant, per SQLite's convention).
func SearchFTS(ctx context.Context, ex Execer, matchQuery string, types, layers []string, limit int) ([]FTSHit, error) {
	if matchQuery == "" {
		return nil, nil
	}
	var extra []string
	args := []any{matchQuery}
	if len(types) > 0 {
		extra = append(extra, "m.type IN ("+placeholders(len(types))+")")
		for _, t := range types {
			args = append(args, t)
		}
	}
	if len(layers) > 0 {
		extra = append(extra, "m.layer IN ("+placeholders(len(layers))+")")
		for _, l := range layers {
			args = append(args, l)
		}
	}
	clause := ""
	if len(extra) > 0 {
		clause = " AND " + strings.Join(extra, " AND ")
	}
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := ex.QueryContext(ctx, `
		SELECT m.id, m.content, m.type, m.layer, m.importance,
			bm25(memory_fts) AS rank,
			snippet(memory_fts, 0, '[', ']', '...', 10) AS snippet
		FROM memory_fts
		JOIN memories m ON m.rowid = memory_fts.rowid
		WHERE memory_fts MATCH ?`+clause+`
		ORDER BY rank ASC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []FTSHit
	for rows.Next() {
		var h FTSHit
		if err := rows.Scan(&h.ID, &h.Content, &h.Type, &h.Layer, &h.Importance, &h.RawRank, &h.Snippet); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanMemory(row *sql.Row) (*entity.MemoryRecord, error) {
	var r entity.MemoryRecord
	var tags, entities string
	var sourceType string
	var convID, msgID, supersedes, supersededBy sql.NullString
	var lastAccessed, createdAt, updatedAt string

	err := row.Scan(&r.ID, &r.Content, &r.Type, &r.Layer, &r.Importance, &r.Confidence,
		&tags, &entities, &sourceType, &convID, &msgID, &supersedes, &supersededBy,
		&lastAccessed, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	return finishScan(&r, tags, entities, sourceType, convID, msgID, supersedes, supersededBy,
		lastAccessed, createdAt, updatedAt), nil
}

func scanMemories(rows *sql.Rows) ([]*entity.MemoryRecord, error) {
	var out []*entity.MemoryRecord
	for rows.Next() {
		var r entity.MemoryRecord
		var tags, entities string
		var sourceType string
		var convID, msgID, supersedes, supersededBy sql.NullString
		var lastAccessed, createdAt, updatedAt string

		err := rows.Scan(&r.ID, &r.Content, &r.Type, &r.Layer, &r.Importance, &r.Confidence,
			&tags, &entities, &sourceType, &convID, &msgID, &supersedes, &supersededBy,
			&lastAccessed, &createdAt, &updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, finishScan(&r, tags, entities, sourceType, convID, msgID, supersedes, supersededBy,
			lastAccessed, createdAt, updatedAt))
	}
	return out, rows.Err()
}

func finishScan(r *entity.MemoryRecord, tags, entities, sourceType string,
	convID, msgID, supersedes, supersededBy sql.NullString,
	lastAccessed, createdAt, updatedAt string) *entity.MemoryRecord {
	r.Tags = decodeStrings(tags)
	r.Entities = decodeStrings(entities)
	r.Source = entity.Source{Type: entity.SourceType(sourceType), ConversationID: convID.String, MessageID: msgID.String}
	if supersedes.Valid {
		s := supersedes.String
		r.Supersedes = &s
	}
	if supersededBy.Valid {
		s := supersededBy.String
		r.SupersededBy = &s
	}
	r.AccessedAt, _ = time.Parse(timeFmt, lastAccessed)
	r.CreatedAt, _ = time.Parse(timeFmt, createdAt)
	r.UpdatedAt, _ = time.Parse(timeFmt, updatedAt)
	return r
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
