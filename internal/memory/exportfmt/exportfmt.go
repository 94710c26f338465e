// Package exportfmt implements the v1.0 export/import JSON document
// (spec.md §6 "Export file format"): a versioned envelope around a flat
// list of exported records, independent of the frontmatter Markdown format.
package exportfmt

import (
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/pkg/jsonutil"
)

// FormatVersion is the only export format version this package produces
// or accepts.
const FormatVersion = "1.0"

// Provenance is the export-format's slimmer view of a record's source.
type Provenance struct {
	SourceType     entity.SourceType `json:"sourceType"`
	ConversationID string            `json:"conversationId,omitempty"`
}

// Record is one exported memory.
type Record struct {
	ID           string            `json:"id"`
	Content      string            `json:"content"`
	Type         entity.MemoryType `json:"type"`
	Layer        entity.Layer      `json:"layer"`
	Importance   float64           `json:"importance"`
	Confidence   float64           `json:"confidence"`
	Tags         []string          `json:"tags"`
	Entities     []string          `json:"entities"`
	Provenance   Provenance        `json:"provenance"`
	Supersedes   *string           `json:"supersedes,omitempty"`
	SupersededBy *string           `json:"supersededBy,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	AccessedAt   time.Time         `json:"accessedAt"`
}

// Document is the full export envelope.
type Document struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Memories   []Record  `json:"memories"`
}

// FromMemoryRecord converts the canonical record into its export shape.
func FromMemoryRecord(r *entity.MemoryRecord) Record {
	return Record{
		ID: r.ID, Content: r.Content, Type: r.Type, Layer: r.Layer,
		Importance: r.Importance, Confidence: r.Confidence,
		Tags: append([]string{}, r.Tags...), Entities: append([]string{}, r.Entities...),
		Provenance:   Provenance{SourceType: r.Source.Type, ConversationID: r.Source.ConversationID},
		Supersedes:   r.Supersedes,
		SupersededBy: r.SupersededBy,
		CreatedAt:    r.CreatedAt, UpdatedAt: r.UpdatedAt, AccessedAt: r.AccessedAt,
	}
}

// ToMemoryRecord converts an imported Record back to the canonical shape.
// Unknown layer/sourceType values default to stm/explicit per spec.md §6.
func (rec Record) ToMemoryRecord() *entity.MemoryRecord {
	layer := rec.Layer
	if !isKnownLayer(layer) {
		layer = entity.LayerSTM
	}
	sourceType := rec.Provenance.SourceType
	if !isKnownSourceType(sourceType) {
		sourceType = entity.SourceExplicit
	}
	return &entity.MemoryRecord{
		ID: rec.ID, Content: rec.Content, Type: rec.Type, Layer: layer,
		Importance: rec.Importance, Confidence: rec.Confidence,
		Tags: rec.Tags, Entities: rec.Entities,
		Source:       entity.Source{Type: sourceType, ConversationID: rec.Provenance.ConversationID},
		Supersedes:   rec.Supersedes,
		SupersededBy: rec.SupersededBy,
		CreatedAt:    rec.CreatedAt, UpdatedAt: rec.UpdatedAt, AccessedAt: rec.AccessedAt,
	}
}

func isKnownLayer(l entity.Layer) bool {
	switch l {
	case entity.LayerWorking, entity.LayerSTM, entity.LayerLTM:
		return true
	default:
		return false
	}
}

func isKnownSourceType(s entity.SourceType) bool {
	switch s {
	case entity.SourceExplicit, entity.SourceImplicit, entity.SourceCompaction, entity.SourceConsolidation, entity.SourceDocument:
		return true
	default:
		return false
	}
}

// Export builds a Document from records, stamped with now.
func Export(records []*entity.MemoryRecord, now time.Time) Document {
	doc := Document{Version: FormatVersion, ExportedAt: now, Memories: make([]Record, 0, len(records))}
	for _, r := range records {
		doc.Memories = append(doc.Memories, FromMemoryRecord(r))
	}
	return doc
}

// Marshal serializes doc to indented JSON.
func Marshal(doc Document) ([]byte, error) {
	data, err := jsonutil.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, entity.Wrap(entity.KindFormat, "exportfmt.Marshal", err)
	}
	return data, nil
}

// Parse decodes an export document and validates its version.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := jsonutil.Unmarshal(data, &doc); err != nil {
		return Document{}, entity.Wrap(entity.KindFormat, "exportfmt.Parse", err)
	}
	if doc.Version != FormatVersion {
		return Document{}, entity.New(entity.KindFormat, "exportfmt.Parse", "unsupported export format version: "+doc.Version)
	}
	return doc, nil
}
