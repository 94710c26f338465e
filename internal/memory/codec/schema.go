package codec

import (
	"fmt"
	"strings"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

// Validate checks a MemoryRecord against the closed enumerations and score
// ranges spec.md §3 invariant 3 requires, independent of parsing — used by
// the repository and the write-policy pipeline on records built in memory
// rather than read from disk.
func Validate(r *entity.MemoryRecord) error {
	var violations []string

	if strings.TrimSpace(r.Content) == "" {
		violations = append(violations, "content: must not be empty")
	}
	if len(r.Content) > 10000 {
		violations = append(violations, "content: exceeds 10000 bytes")
	}
	if r.Importance < 0 || r.Importance > 1 {
		violations = append(violations, fmt.Sprintf("importance: %v out of range [0,1]", r.Importance))
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		violations = append(violations, fmt.Sprintf("confidence: %v out of range [0,1]", r.Confidence))
	}
	if r.Layer == entity.LayerWorking {
		violations = append(violations, "layer: \"working\" must never be persisted")
	}
	if r.Layer != entity.LayerSTM && r.Layer != entity.LayerLTM {
		violations = append(violations, fmt.Sprintf("layer: %q is not one of stm, ltm", r.Layer))
	}
	if !isKnownType(string(r.Type)) {
		violations = append(violations, fmt.Sprintf("type: %q is not a known memory type", r.Type))
	}
	switch r.Source.Type {
	case entity.SourceExplicit, entity.SourceImplicit, entity.SourceCompaction,
		entity.SourceConsolidation, entity.SourceDocument:
	default:
		violations = append(violations, fmt.Sprintf("source.type: %q is not a known source type", r.Source.Type))
	}
	if !r.CreatedAt.IsZero() && !r.UpdatedAt.IsZero() && r.CreatedAt.After(r.UpdatedAt) {
		violations = append(violations, "createdAt must be <= updatedAt")
	}

	if len(violations) > 0 {
		return entity.New(entity.KindValidation, "codec.Validate", strings.Join(violations, "; "))
	}
	return nil
}
