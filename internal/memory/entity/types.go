// Package entity defines the memory engine's data model: the canonical
// in-memory record, its on-disk counterpart, the provenance/embedding rows
// that live in the SQLite store, and the error taxonomy every component
// reports through.
package entity

import "time"

// MemoryType is the closed set of record kinds a memory can hold.
type MemoryType string

const (
	TypeFact          MemoryType = "fact"
	TypePreference    MemoryType = "preference"
	TypeDecision      MemoryType = "decision"
	TypeEpisode       MemoryType = "episode"
	TypeSkill         MemoryType = "skill"
	TypeEntity        MemoryType = "entity"
	TypeDocumentChunk MemoryType = "document_chunk"
)

// Layer is the persistence tier. "working" exists at the type level for
// callers building a record but is never persisted (invariant 6).
type Layer string

const (
	LayerWorking Layer = "working"
	LayerSTM     Layer = "stm"
	LayerLTM     Layer = "ltm"
)

// SourceType is the closed set of provenance origins.
type SourceType string

const (
	SourceExplicit      SourceType = "explicit"
	SourceImplicit      SourceType = "implicit"
	SourceCompaction    SourceType = "compaction"
	SourceConsolidation SourceType = "consolidation"
	SourceDocument      SourceType = "document"
)

// Source describes where a memory came from.
type Source struct {
	Type           SourceType `json:"sourceType"`
	ConversationID string     `json:"conversationId,omitempty"`
	MessageID      string     `json:"messageId,omitempty"`
}

// EmbeddingMeta describes the vector associated with a record without
// carrying the vector itself (that lives in EmbeddingRow / memory_embeddings).
type EmbeddingMeta struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
	Version   int    `json:"version"`
}

// MemoryRecord is the canonical in-memory form (spec.md §3).
type MemoryRecord struct {
	ID           string
	Content      string
	Type         MemoryType
	Layer        Layer
	Importance   float64
	Confidence   float64
	Tags         []string
	Entities     []string
	Source       Source
	Supersedes   *string
	SupersededBy *string
	Embedding    *EmbeddingMeta
	CreatedAt    time.Time
	UpdatedAt    time.Time
	AccessedAt   time.Time
}

// MemoryFileRecord is the on-disk form: MemoryRecord plus a file-format
// version, kept as a distinct type so the file schema can version
// independently of the runtime representation.
type MemoryFileRecord struct {
	ID           string
	Version      int
	Type         MemoryType
	Layer        Layer
	Importance   float64
	Confidence   float64
	Tags         []string
	Entities     []string
	Source       Source
	Supersedes   *string
	SupersededBy *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	AccessedAt   time.Time
	Content      string
}

// ToFileRecord projects a MemoryRecord into its on-disk shape.
func (r *MemoryRecord) ToFileRecord(version int) *MemoryFileRecord {
	return &MemoryFileRecord{
		ID:           r.ID,
		Version:      version,
		Type:         r.Type,
		Layer:        r.Layer,
		Importance:   r.Importance,
		Confidence:   r.Confidence,
		Tags:         append([]string(nil), r.Tags...),
		Entities:     append([]string(nil), r.Entities...),
		Source:       r.Source,
		Supersedes:   r.Supersedes,
		SupersededBy: r.SupersededBy,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		AccessedAt:   r.AccessedAt,
		Content:      r.Content,
	}
}

// ToMemoryRecord projects an on-disk record back into the runtime shape.
func (f *MemoryFileRecord) ToMemoryRecord() *MemoryRecord {
	return &MemoryRecord{
		ID:           f.ID,
		Content:      f.Content,
		Type:         f.Type,
		Layer:        f.Layer,
		Importance:   f.Importance,
		Confidence:   f.Confidence,
		Tags:         append([]string(nil), f.Tags...),
		Entities:     append([]string(nil), f.Entities...),
		Source:       f.Source,
		Supersedes:   f.Supersedes,
		SupersededBy: f.SupersededBy,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
		AccessedAt:   f.AccessedAt,
	}
}

// EmbeddingRow is one (memory, provider, model) vector (spec.md §3).
type EmbeddingRow struct {
	ID        string
	MemoryID  string
	Provider  string
	Model     string
	Dimension int
	Version   int
	Vector    []float32
	CreatedAt time.Time
}

// ProvenanceEvent is the closed set of audit-trail event kinds.
type ProvenanceEvent string

const (
	EventCreated      ProvenanceEvent = "created"
	EventUpdated      ProvenanceEvent = "updated"
	EventDeleted      ProvenanceEvent = "deleted"
	EventConsolidated ProvenanceEvent = "consolidated"
)

// ProvenanceRow is an append-only audit entry per (memory, event).
type ProvenanceRow struct {
	ID        string
	MemoryID  string
	Event     ProvenanceEvent
	Details   map[string]any
	CreatedAt time.Time
}

// SchemaVersion tracks an applied migration.
type SchemaVersion struct {
	Version   int
	AppliedAt time.Time
}

// MemorySearchResult is one ranked hit returned by a retriever or by hybrid
// fusion.
type MemorySearchResult struct {
	MemoryID     string
	Content      string
	Type         MemoryType
	Layer        Layer
	Importance   float64
	Snippet      string
	Score        float64
	BM25Score    float64
	VectorScore  float64
	BM25Rank     int
	VectorRank   int
}
