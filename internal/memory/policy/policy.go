// Package policy implements the write-policy pipeline (C7): ordered
// synchronous validators that gate every create, plus an async best-effort
// duplicate-content check that only ever warns.
package policy

import (
	"context"
	"strings"

	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("policy")

// MaxContentLength bounds a memory's content per the Content policy.
const MaxContentLength = 10000

// Violation is one synchronous policy's rejection of a write.
type Violation struct {
	Policy string
	Reason string
}

// Warning is a non-blocking observation surfaced alongside a passing write.
type Warning struct {
	Policy string
	Reason string
}

// Report is runPolicies' aggregate result.
type Report struct {
	Passed     bool
	Violations []Violation
	Warnings   []Warning
}

// Policy is one named synchronous validator.
type Policy struct {
	Name     string
	Validate func(*entity.MemoryRecord) error
}

// DuplicateChecker is the async companion run after synchronous policies
// pass; it queries the repository for existing content and is expected to
// swallow its own failures (spec.md §4.6 "best-effort").
type DuplicateChecker func(ctx context.Context, content string) (duplicate bool, err error)

// Content rejects empty (after trim) or over-long content.
var Content = Policy{
	Name: "content",
	Validate: func(r *entity.MemoryRecord) error {
		trimmed := strings.TrimSpace(r.Content)
		if trimmed == "" {
			return entity.New(entity.KindPolicy, "policy.content", "content must not be empty")
		}
		if len(r.Content) > MaxContentLength {
			return entity.New(entity.KindPolicy, "policy.content", "content exceeds maximum length")
		}
		return nil
	},
}

// Confidence requires confidence >= 0.3 for implicitly sourced memories;
// explicit sources are exempt.
var Confidence = Policy{
	Name: "confidence",
	Validate: func(r *entity.MemoryRecord) error {
		if r.Source.Type != entity.SourceImplicit {
			return nil
		}
		if r.Confidence < 0.3 {
			return entity.New(entity.KindPolicy, "policy.confidence", "implicit memories require confidence >= 0.3")
		}
		return nil
	},
}

// Attribution requires a non-empty conversation id for implicitly sourced
// memories; explicit sources are exempt.
var Attribution = Policy{
	Name: "attribution",
	Validate: func(r *entity.MemoryRecord) error {
		if r.Source.Type != entity.SourceImplicit {
			return nil
		}
		if strings.TrimSpace(r.Source.ConversationID) == "" {
			return entity.New(entity.KindPolicy, "policy.attribution", "implicit memories require a source conversation id")
		}
		return nil
	},
}

// Default is the fixed synchronous ordering spec.md §8 property 9 requires:
// Content -> Confidence -> Attribution. Duplicate has no synchronous half.
var Default = []Policy{Content, Confidence, Attribution}

// Run executes policies in order against rec, accumulating every violation
// rather than stopping at the first (spec.md §8 property 9: "first-failing
// still runs later policies and reports all violations"). When dup is
// non-nil it is invoked after the synchronous pass and any duplicate it
// finds becomes a warning rather than a violation; a checker error is
// logged and otherwise ignored.
func Run(ctx context.Context, policies []Policy, rec *entity.MemoryRecord, dup DuplicateChecker) Report {
	var report Report
	report.Passed = true

	for _, p := range policies {
		if err := p.Validate(rec); err != nil {
			report.Passed = false
			report.Violations = append(report.Violations, Violation{Policy: p.Name, Reason: err.Error()})
		}
	}

	if dup != nil {
		isDup, err := dup(ctx, rec.Content)
		if err != nil {
			log.Warn("duplicate check failed: %v", err)
		} else if isDup {
			report.Warnings = append(report.Warnings, Warning{Policy: "duplicate", Reason: "identical content already exists"})
			log.Warn("duplicate content detected for new memory")
		}
	}

	return report
}
