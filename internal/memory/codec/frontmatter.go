// Package codec implements the canonical Markdown-frontmatter serializer
// and parser for MemoryFileRecord (spec.md §4.1) — C1 (Codec) and C2
// (Frontmatter schema) together, since the schema's defaulting/validation
// rules are only meaningful applied to what the parser produces.
package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	numericRe    = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)
	ambiguousSet = map[string]struct{}{
		"true": {}, "false": {}, "yes": {}, "no": {},
		"on": {}, "off": {}, "null": {}, "~": {},
	}
	specialChars = []rune(":#{}[],&*?|>!%@`")
)

// needsQuoting implements spec.md §4.1's scalar emission rule.
func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	if strings.TrimSpace(s) == "" {
		return true
	}
	if _, ok := ambiguousSet[strings.ToLower(s)]; ok {
		return true
	}
	if numericRe.MatchString(s) {
		return true
	}
	for _, c := range specialChars {
		if strings.ContainsRune(s, c) {
			return true
		}
	}
	return false
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// emitScalar renders a string value the way it would appear after "key: ".
func emitScalar(s string) string {
	if needsQuoting(s) {
		return quoteString(s)
	}
	return s
}

func unquoteScalar(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		inner := s[1 : len(s)-1]
		inner = strings.ReplaceAll(inner, `\"`, `"`)
		inner = strings.ReplaceAll(inner, `\\`, `\`)
		return inner
	}
	return s
}

func emitFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func emitTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Serialize renders a MemoryFileRecord as "---\n<frontmatter>\n---\n\n<content>\n"
// with the fixed canonical key order from spec.md §4.1.
func Serialize(r *entity.MemoryFileRecord) ([]byte, error) {
	var b strings.Builder
	b.WriteString("---\n")

	b.WriteString("id: " + emitScalar(r.ID) + "\n")
	b.WriteString("version: " + strconv.Itoa(r.Version) + "\n")
	b.WriteString("type: " + emitScalar(string(r.Type)) + "\n")
	b.WriteString("layer: " + emitScalar(string(r.Layer)) + "\n")
	b.WriteString("importance: " + emitFloat(r.Importance) + "\n")
	b.WriteString("confidence: " + emitFloat(r.Confidence) + "\n")
	writeList(&b, "tags", r.Tags)
	writeList(&b, "entities", r.Entities)

	b.WriteString("source:\n")
	b.WriteString("  type: " + emitScalar(string(r.Source.Type)) + "\n")
	if r.Source.ConversationID != "" {
		b.WriteString("  conversationId: " + emitScalar(r.Source.ConversationID) + "\n")
	}
	if r.Source.MessageID != "" {
		b.WriteString("  messageId: " + emitScalar(r.Source.MessageID) + "\n")
	}

	writeOptionalID(&b, "supersedes", r.Supersedes)
	writeOptionalID(&b, "supersededBy", r.SupersededBy)

	b.WriteString("createdAt: " + emitScalar(emitTime(r.CreatedAt)) + "\n")
	b.WriteString("updatedAt: " + emitScalar(emitTime(r.UpdatedAt)) + "\n")
	b.WriteString("accessedAt: " + emitScalar(emitTime(r.AccessedAt)) + "\n")

	b.WriteString("---\n\n")
	b.WriteString(strings.TrimSpace(r.Content))
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func writeList(b *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		b.WriteString(key + ": []\n")
		return
	}
	b.WriteString(key + ":\n")
	for _, item := range items {
		b.WriteString("  - " + emitScalar(item) + "\n")
	}
}

func writeOptionalID(b *strings.Builder, key string, v *string) {
	if v == nil {
		b.WriteString(key + ": null\n")
		return
	}
	b.WriteString(key + ": " + emitScalar(*v) + "\n")
}

// rawValue is the parser's intermediate representation of one frontmatter
// entry: a bare/quoted scalar, a list of scalars, or a single-level nested
// object of string-valued keys (the only two shapes §4.1's grammar needs
// beyond top-level scalars).
type rawValue struct {
	isNull  bool
	scalar  string
	isList  bool
	list    []string
	isObj   bool
	obj     map[string]string
}

// Parse is the dual of Serialize: it implements the line-oriented reader
// from spec.md §4.1 and then applies the §4.1 "Validation" defaulting and
// checks, returning an aggregated Format/Validation error on failure.
func Parse(data []byte) (*entity.MemoryFileRecord, error) {
	text := string(data)
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, entity.New(entity.KindFormat, "codec.Parse", "missing opening frontmatter delimiter")
	}

	closeIdx := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 {
		return nil, entity.New(entity.KindFormat, "codec.Parse", "missing closing frontmatter delimiter")
	}

	fmLines := lines[1:closeIdx]
	values, err := parseFrontmatterLines(fmLines)
	if err != nil {
		return nil, err
	}

	rest := lines[closeIdx+1:]
	content := strings.TrimSpace(strings.Join(rest, "\n"))

	return buildRecord(values, content)
}

func parseFrontmatterLines(fmLines []string) (map[string]rawValue, error) {
	values := map[string]rawValue{}
	i := 0
	for i < len(fmLines) {
		line := fmLines[i]
		trimmed := strings.TrimSpace(line)
		lineNo := i + 2 // 1-based file line, +1 for the opening "---"
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			i++
			continue
		}
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			return nil, entity.New(entity.KindFormat, "codec.Parse",
				fmt.Sprintf("unexpected indented line at line %d", lineNo))
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, entity.New(entity.KindFormat, "codec.Parse",
				fmt.Sprintf("malformed frontmatter line at line %d", lineNo))
		}
		key := strings.TrimSpace(line[:idx])
		rest := strings.TrimSpace(line[idx+1:])

		if rest != "" {
			switch rest {
			case "[]":
				values[key] = rawValue{isList: true, list: []string{}}
			case "null":
				values[key] = rawValue{isNull: true}
			default:
				values[key] = rawValue{scalar: unquoteScalar(rest)}
			}
			i++
			continue
		}

		// No inline value: gather the indented block that follows.
		var sub []string
		j := i + 1
		for j < len(fmLines) {
			l := fmLines[j]
			if strings.TrimSpace(l) == "" {
				j++
				continue
			}
			if !strings.HasPrefix(l, "  ") {
				break
			}
			sub = append(sub, l)
			j++
		}
		if len(sub) == 0 {
			return nil, entity.New(entity.KindFormat, "codec.Parse",
				fmt.Sprintf("key %q has no value at line %d", key, lineNo))
		}
		if strings.HasPrefix(strings.TrimSpace(sub[0]), "-") {
			var items []string
			for _, sl := range sub {
				t := strings.TrimSpace(sl)
				if !strings.HasPrefix(t, "-") {
					return nil, entity.New(entity.KindFormat, "codec.Parse",
						fmt.Sprintf("expected list item under %q", key))
				}
				items = append(items, unquoteScalar(strings.TrimSpace(strings.TrimPrefix(t, "-"))))
			}
			values[key] = rawValue{isList: true, list: items}
		} else {
			obj := map[string]string{}
			for _, sl := range sub {
				t := strings.TrimSpace(sl)
				idx2 := strings.Index(t, ":")
				if idx2 < 0 {
					return nil, entity.New(entity.KindFormat, "codec.Parse",
						fmt.Sprintf("malformed nested line under %q", key))
				}
				k2 := strings.TrimSpace(t[:idx2])
				v2 := strings.TrimSpace(t[idx2+1:])
				obj[k2] = unquoteScalar(v2)
			}
			values[key] = rawValue{isObj: true, obj: obj}
		}
		i = j
	}
	return values, nil
}

func buildRecord(values map[string]rawValue, content string) (*entity.MemoryFileRecord, error) {
	var violations []string
	get := func(key string) (rawValue, bool) {
		v, ok := values[key]
		return v, ok
	}

	r := &entity.MemoryFileRecord{Content: content}

	if v, ok := get("id"); ok && !v.isNull && v.scalar != "" {
		r.ID = v.scalar
	} else {
		violations = append(violations, "id: required")
	}

	r.Version = 1
	if v, ok := get("version"); ok && !v.isNull {
		n, err := strconv.Atoi(v.scalar)
		if err != nil {
			violations = append(violations, "version: not an integer")
		} else {
			r.Version = n
		}
	}

	if v, ok := get("type"); ok && !v.isNull && isKnownType(v.scalar) {
		r.Type = entity.MemoryType(v.scalar)
	} else if ok && !v.isNull {
		r.Type = entity.MemoryType(v.scalar) // preserve unknown values per round-trip law
	} else {
		violations = append(violations, "type: required")
	}

	if v, ok := get("layer"); ok && !v.isNull && v.scalar != "" {
		r.Layer = entity.Layer(v.scalar)
	} else {
		violations = append(violations, "layer: required")
	}

	if v, ok := get("importance"); ok && !v.isNull {
		f, err := strconv.ParseFloat(v.scalar, 64)
		if err != nil || f < 0 || f > 1 {
			violations = append(violations, "importance: must be a number in [0,1]")
		} else {
			r.Importance = f
		}
	} else {
		violations = append(violations, "importance: required")
	}

	r.Confidence = 1.0
	if v, ok := get("confidence"); ok && !v.isNull {
		f, err := strconv.ParseFloat(v.scalar, 64)
		if err != nil || f < 0 || f > 1 {
			violations = append(violations, "confidence: must be a number in [0,1]")
		} else {
			r.Confidence = f
		}
	}

	r.Tags = []string{}
	if v, ok := get("tags"); ok && v.isList {
		r.Tags = v.list
	}
	r.Entities = []string{}
	if v, ok := get("entities"); ok && v.isList {
		r.Entities = v.list
	}

	if v, ok := get("source"); ok && v.isObj {
		r.Source.Type = entity.SourceType(v.obj["type"])
		r.Source.ConversationID = v.obj["conversationId"]
		r.Source.MessageID = v.obj["messageId"]
		if r.Source.Type == "" {
			violations = append(violations, "source.type: required")
		}
	} else {
		violations = append(violations, "source: required")
	}

	r.Supersedes = parseOptionalID(values, "supersedes")
	r.SupersededBy = parseOptionalID(values, "supersededBy")

	if v, ok := get("createdAt"); ok && !v.isNull {
		t, err := time.Parse(timeLayout, v.scalar)
		if err != nil {
			violations = append(violations, "createdAt: not a valid timestamp")
		} else {
			r.CreatedAt = t
		}
	} else {
		violations = append(violations, "createdAt: required")
	}
	if v, ok := get("updatedAt"); ok && !v.isNull {
		t, err := time.Parse(timeLayout, v.scalar)
		if err != nil {
			violations = append(violations, "updatedAt: not a valid timestamp")
		} else {
			r.UpdatedAt = t
		}
	} else {
		violations = append(violations, "updatedAt: required")
	}
	if v, ok := get("accessedAt"); ok && !v.isNull {
		t, err := time.Parse(timeLayout, v.scalar)
		if err != nil {
			violations = append(violations, "accessedAt: not a valid timestamp")
		} else {
			r.AccessedAt = t
		}
	} else {
		violations = append(violations, "accessedAt: required")
	}

	if len(violations) > 0 {
		return nil, entity.New(entity.KindValidation, "codec.Parse", strings.Join(violations, "; "))
	}
	return r, nil
}

func parseOptionalID(values map[string]rawValue, key string) *string {
	v, ok := values[key]
	if !ok || v.isNull {
		return nil
	}
	s := v.scalar
	return &s
}

func isKnownType(s string) bool {
	switch entity.MemoryType(s) {
	case entity.TypeFact, entity.TypePreference, entity.TypeDecision,
		entity.TypeEpisode, entity.TypeSkill, entity.TypeEntity, entity.TypeDocumentChunk:
		return true
	default:
		return false
	}
}
