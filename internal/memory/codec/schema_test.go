package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

func validMemoryRecord() *entity.MemoryRecord {
	now := time.Date(2026, 2, 13, 19, 0, 0, 0, time.UTC)
	return &entity.MemoryRecord{
		ID:         "01JKMP3QR7XYZABC1234567890",
		Content:    "valid content",
		Type:       entity.TypeFact,
		Layer:      entity.LayerLTM,
		Importance: 0.5,
		Confidence: 1.0,
		Source:     entity.Source{Type: entity.SourceExplicit},
		CreatedAt:  now,
		UpdatedAt:  now,
		AccessedAt: now,
	}
}

func TestValidateAcceptsKnownType(t *testing.T) {
	r := validMemoryRecord()
	require.NoError(t, Validate(r))
}

// spec.md §3 invariant 3: type is drawn from its closed enumeration.
func TestValidateRejectsUnknownType(t *testing.T) {
	r := validMemoryRecord()
	r.Type = entity.MemoryType("bogus")
	err := Validate(r)
	require.Error(t, err)
	require.ErrorContains(t, err, "type")
}

func TestValidateAcceptsEveryKnownType(t *testing.T) {
	for _, ty := range []entity.MemoryType{
		entity.TypeFact, entity.TypePreference, entity.TypeDecision,
		entity.TypeEpisode, entity.TypeSkill, entity.TypeEntity, entity.TypeDocumentChunk,
	} {
		r := validMemoryRecord()
		r.Type = ty
		require.NoErrorf(t, Validate(r), "type %q should be accepted", ty)
	}
}

func TestValidateRejectsUnknownSourceType(t *testing.T) {
	r := validMemoryRecord()
	r.Source.Type = entity.SourceType("bogus")
	err := Validate(r)
	require.Error(t, err)
	require.ErrorContains(t, err, "source.type")
}

func TestValidateRejectsWorkingLayer(t *testing.T) {
	r := validMemoryRecord()
	r.Layer = entity.LayerWorking
	err := Validate(r)
	require.Error(t, err)
	require.ErrorContains(t, err, "working")
}
