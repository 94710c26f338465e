package policy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

func explicitRecord(content string) *entity.MemoryRecord {
	return &entity.MemoryRecord{
		Content:    content,
		Confidence: 1.0,
		Source:     entity.Source{Type: entity.SourceExplicit},
	}
}

func implicitRecord(content string, confidence float64, conversationID string) *entity.MemoryRecord {
	return &entity.MemoryRecord{
		Content:    content,
		Confidence: confidence,
		Source:     entity.Source{Type: entity.SourceImplicit, ConversationID: conversationID},
	}
}

func TestContentPolicyRejectsEmpty(t *testing.T) {
	report := Run(context.Background(), Default, explicitRecord("   "), nil)
	require.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "content", report.Violations[0].Policy)
}

func TestContentPolicyRejectsOverLong(t *testing.T) {
	report := Run(context.Background(), Default, explicitRecord(strings.Repeat("a", MaxContentLength+1)), nil)
	require.False(t, report.Passed)
	require.Equal(t, "content", report.Violations[0].Policy)
}

func TestExplicitSourceSkipsConfidenceAndAttribution(t *testing.T) {
	report := Run(context.Background(), Default, explicitRecord("valid content"), nil)
	require.True(t, report.Passed)
	require.Empty(t, report.Violations)
}

func TestImplicitRequiresConfidenceFloor(t *testing.T) {
	report := Run(context.Background(), Default, implicitRecord("valid content", 0.1, "conv-1"), nil)
	require.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "confidence", report.Violations[0].Policy)
}

func TestImplicitRequiresAttribution(t *testing.T) {
	report := Run(context.Background(), Default, implicitRecord("valid content", 0.9, ""), nil)
	require.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	require.Equal(t, "attribution", report.Violations[0].Policy)
}

// spec.md §8 property 9: all violations accumulate, not just the first.
func TestAllViolationsAccumulate(t *testing.T) {
	report := Run(context.Background(), Default, implicitRecord("", 0.0, ""), nil)
	require.False(t, report.Passed)
	require.Len(t, report.Violations, 3)
	require.Equal(t, "content", report.Violations[0].Policy)
	require.Equal(t, "confidence", report.Violations[1].Policy)
	require.Equal(t, "attribution", report.Violations[2].Policy)
}

func TestDuplicateCheckYieldsWarningNotViolation(t *testing.T) {
	dup := func(ctx context.Context, content string) (bool, error) { return true, nil }
	report := Run(context.Background(), Default, explicitRecord("valid content"), dup)
	require.True(t, report.Passed)
	require.Len(t, report.Warnings, 1)
	require.Equal(t, "duplicate", report.Warnings[0].Policy)
}

func TestDuplicateCheckFailureIsSwallowed(t *testing.T) {
	dup := func(ctx context.Context, content string) (bool, error) { return false, errors.New("db unavailable") }
	report := Run(context.Background(), Default, explicitRecord("valid content"), dup)
	require.True(t, report.Passed)
	require.Empty(t, report.Warnings)
}
