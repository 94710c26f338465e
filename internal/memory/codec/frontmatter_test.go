package codec

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

func sampleRecord() *entity.MemoryFileRecord {
	ts := time.Date(2026, 2, 13, 19, 0, 0, 0, time.UTC)
	return &entity.MemoryFileRecord{
		ID:         "01JKMP3QR7XYZABC1234567890",
		Version:    1,
		Type:       entity.TypeFact,
		Layer:      entity.LayerLTM,
		Importance: 0.8,
		Confidence: 0.9,
		Tags:       []string{"programming", "typescript"},
		Entities:   []string{"James"},
		Source: entity.Source{
			Type:           entity.SourceExplicit,
			ConversationID: "conv_abc123",
		},
		CreatedAt:  ts,
		UpdatedAt:  ts,
		AccessedAt: ts,
		Content:    "User prefers TypeScript strict mode and avoids `any` types in all projects.",
	}
}

// S1 Round-trip (spec.md §8 S1 / invariants 1-2).
func TestRoundTrip(t *testing.T) {
	r := sampleRecord()

	out, err := Serialize(r)
	require.NoError(t, err)

	parsed, err := Parse(out)
	require.NoError(t, err)
	if diff := cmp.Diff(r, parsed); diff != "" {
		t.Fatalf("parse(serialize(R)) != R (-want +got):\n%s", diff)
	}

	out2, err := Serialize(parsed)
	require.NoError(t, err)
	require.Equal(t, string(out), string(out2), "serialize(parse(file)) must equal file byte-for-byte")
}

func TestCanonicalKeyOrder(t *testing.T) {
	out, err := Serialize(sampleRecord())
	require.NoError(t, err)

	s := string(out)
	keys := []string{"id:", "version:", "type:", "layer:", "importance:", "confidence:",
		"tags:", "entities:", "source:", "supersedes:", "supersededBy:",
		"createdAt:", "updatedAt:", "accessedAt:"}
	last := -1
	for _, k := range keys {
		idx := indexOf(s, k)
		require.Greater(t, idx, last, "key %q out of canonical order", k)
		last = idx
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestQuotingRules(t *testing.T) {
	require.True(t, needsQuoting(""))
	require.True(t, needsQuoting("   "))
	require.True(t, needsQuoting("true"))
	require.True(t, needsQuoting("NO"))
	require.True(t, needsQuoting("123"))
	require.True(t, needsQuoting("1.5"))
	require.True(t, needsQuoting("has: colon"))
	require.True(t, needsQuoting("has#hash"))
	require.False(t, needsQuoting("plain-word"))
	require.False(t, needsQuoting("James"))
}

func TestEmptyArraysEmitInline(t *testing.T) {
	r := sampleRecord()
	r.Tags = nil
	r.Entities = nil
	out, err := Serialize(r)
	require.NoError(t, err)
	require.Contains(t, string(out), "tags: []\n")
	require.Contains(t, string(out), "entities: []\n")
}

func TestParseMalformedFrontmatterQuarantineShape(t *testing.T) {
	data := []byte("---\ninvalid: yaml: content\n---\n\nbody\n")
	_, err := Parse(data)
	require.Error(t, err)
}

func TestParseDefaultsApplied(t *testing.T) {
	ts := "2026-02-13T19:00:00.000Z"
	data := []byte("---\n" +
		"id: abc\n" +
		"type: fact\n" +
		"layer: stm\n" +
		"importance: 0.5\n" +
		"source:\n" +
		"  type: explicit\n" +
		"createdAt: " + ts + "\n" +
		"updatedAt: " + ts + "\n" +
		"accessedAt: " + ts + "\n" +
		"---\n\nhello\n")
	r, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, 1, r.Version)
	require.Equal(t, 1.0, r.Confidence)
	require.Equal(t, []string{}, r.Tags)
	require.Equal(t, []string{}, r.Entities)
	require.Nil(t, r.Supersedes)
	require.Nil(t, r.SupersededBy)
}
