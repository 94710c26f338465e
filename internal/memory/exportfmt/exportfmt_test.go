package exportfmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

func sampleRecord() *entity.MemoryRecord {
	now := time.Date(2026, 2, 13, 19, 0, 0, 0, time.UTC)
	return &entity.MemoryRecord{
		ID: "mem-1", Content: "User prefers dark mode.", Type: entity.TypePreference, Layer: entity.LayerLTM,
		Importance: 0.8, Confidence: 0.9, Tags: []string{"ui"}, Entities: []string{},
		Source:    entity.Source{Type: entity.SourceExplicit, ConversationID: "conv-1"},
		CreatedAt: now, UpdatedAt: now, AccessedAt: now,
	}
}

func TestExportThenParseRoundTrips(t *testing.T) {
	doc := Export([]*entity.MemoryRecord{sampleRecord()}, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	data, err := Marshal(doc)
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, FormatVersion, parsed.Version)
	require.Len(t, parsed.Memories, 1)
	require.Equal(t, "mem-1", parsed.Memories[0].ID)

	back := parsed.Memories[0].ToMemoryRecord()
	require.Equal(t, sampleRecord().Content, back.Content)
	require.Equal(t, entity.SourceExplicit, back.Source.Type)
	require.Equal(t, "conv-1", back.Source.ConversationID)
}

func TestParseRejectsUnknownVersion(t *testing.T) {
	_, err := Parse([]byte(`{"version":"2.0","exportedAt":"2026-01-01T00:00:00Z","memories":[]}`))
	require.Error(t, err)
}

func TestImportDefaultsUnknownLayerAndSourceType(t *testing.T) {
	rec := Record{
		ID: "x", Content: "content", Layer: entity.Layer("unknown-layer"),
		Provenance: Provenance{SourceType: entity.SourceType("unknown-source")},
	}
	back := rec.ToMemoryRecord()
	require.Equal(t, entity.LayerSTM, back.Layer)
	require.Equal(t, entity.SourceExplicit, back.Source.Type)
}

func TestImportPreservesKnownLayerAndSourceType(t *testing.T) {
	rec := Record{
		ID: "x", Content: "content", Layer: entity.LayerWorking,
		Provenance: Provenance{SourceType: entity.SourceImplicit},
	}
	back := rec.ToMemoryRecord()
	require.Equal(t, entity.LayerWorking, back.Layer)
	require.Equal(t, entity.SourceImplicit, back.Source.Type)
}
