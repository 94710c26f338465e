// Package service implements the façade (C8): readiness gating, the
// defaulted create APIs, best-effort batch saves, and domain event
// emission over the repository, policy pipeline, and search stack.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kiosk404/reinsmem/internal/memory/embedding"
	"github.com/kiosk404/reinsmem/internal/memory/entity"
	"github.com/kiosk404/reinsmem/internal/memory/policy"
	"github.com/kiosk404/reinsmem/internal/memory/repository"
	"github.com/kiosk404/reinsmem/internal/memory/search/bm25"
	"github.com/kiosk404/reinsmem/internal/memory/search/hybrid"
	"github.com/kiosk404/reinsmem/internal/memory/search/vector"
	"github.com/kiosk404/reinsmem/internal/memory/store"
	"github.com/kiosk404/reinsmem/pkg/logger"
)

var log = logger.For("service")

// EventType is the closed set of domain events the service emits.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event is what onMemoryEvent subscribers receive (spec.md §4.7).
type Event struct {
	Type      EventType
	Record    *entity.MemoryRecord
	Timestamp time.Time
}

// EventSink receives domain events. A panicking sink is recovered and
// logged without failing the calling operation. Sinks run synchronously,
// in subscription order, so a slow sink delays the operation's return.
type EventSink func(Event)

// BatchResult is one item's outcome within SaveBatch.
type BatchResult struct {
	Record *entity.MemoryRecord
	Err    error
}

// Service is the public façade over the repository, policy pipeline, and
// hybrid search stack.
type Service struct {
	repo     *repository.Repository
	policies []policy.Policy
	hybrid   *hybrid.Searcher
	bm       *bm25.Retriever
	vc       *vector.Retriever
	provider embedding.Provider
	cfg      entity.QueryConfig

	isReady atomic.Bool

	sinksMu sync.Mutex
	sinks   []EventSink
}

// Dependencies bundles the components New wires together.
type Dependencies struct {
	Repo     *repository.Repository
	Store    *store.Store
	Provider embedding.Provider
	Query    entity.QueryConfig
}

// New constructs a Service; it is not ready until Initialize is called.
func New(deps Dependencies) *Service {
	bm := bm25.New(deps.Store)
	vc := vector.New(deps.Store, deps.Provider)
	return &Service{
		repo:     deps.Repo,
		policies: policy.Default,
		hybrid:   hybrid.New(bm, vc),
		bm:       bm,
		vc:       vc,
		provider: deps.Provider,
		cfg:      deps.Query,
	}
}

// Subscribe registers an event sink.
func (s *Service) Subscribe(sink EventSink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Initialize flips the readiness flag. Idempotent.
func (s *Service) Initialize(ctx context.Context) error {
	s.isReady.Store(true)
	return nil
}

// Shutdown flips the readiness flag off. Idempotent.
func (s *Service) Shutdown(ctx context.Context) error {
	s.isReady.Store(false)
	return nil
}

func (s *Service) requireReady() error {
	if !s.isReady.Load() {
		return entity.New(entity.KindNotReady, "service", "memory service is not initialized")
	}
	return nil
}

// HealthCheck reports DB connectivity and the current row count.
func (s *Service) HealthCheck(ctx context.Context) (count int, err error) {
	if err := s.requireReady(); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, store.ListFilter{})
}

// RememberExplicit creates an explicitly sourced memory. Defaults: type =
// fact, importance = 0.7, confidence = 1.0 (spec.md §4.7).
func (s *Service) RememberExplicit(ctx context.Context, content string, opts ExplicitOptions) (*entity.MemoryRecord, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	rec := &entity.MemoryRecord{
		Content:    content,
		Type:       orDefaultType(opts.Type, entity.TypeFact),
		Layer:      orDefaultLayer(opts.Layer, entity.LayerLTM),
		Importance: orDefaultFloat(opts.Importance, 0.7),
		Confidence: orDefaultFloat(opts.Confidence, 1.0),
		Tags:       opts.Tags,
		Entities:   opts.Entities,
		Source:     entity.Source{Type: entity.SourceExplicit, ConversationID: opts.ConversationID, MessageID: opts.MessageID},
	}
	return s.create(ctx, rec)
}

// SaveImplicit creates an implicitly sourced memory. Default: importance =
// 0.5 (spec.md §4.7).
func (s *Service) SaveImplicit(ctx context.Context, content string, opts ImplicitOptions) (*entity.MemoryRecord, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	rec := &entity.MemoryRecord{
		Content:    content,
		Type:       orDefaultType(opts.Type, entity.TypeFact),
		Layer:      orDefaultLayer(opts.Layer, entity.LayerSTM),
		Importance: orDefaultFloat(opts.Importance, 0.5),
		Confidence: opts.Confidence,
		Tags:       opts.Tags,
		Entities:   opts.Entities,
		Source:     entity.Source{Type: entity.SourceImplicit, ConversationID: opts.ConversationID, MessageID: opts.MessageID},
	}
	return s.create(ctx, rec)
}

// ExplicitOptions carries the optional overrides RememberExplicit accepts.
type ExplicitOptions struct {
	Type           entity.MemoryType
	Layer          entity.Layer
	Importance     float64
	Confidence     float64
	Tags           []string
	Entities       []string
	ConversationID string
	MessageID      string
}

// ImplicitOptions carries the optional overrides SaveImplicit accepts.
type ImplicitOptions struct {
	Type           entity.MemoryType
	Layer          entity.Layer
	Importance     float64
	Confidence     float64
	Tags           []string
	Entities       []string
	ConversationID string
	MessageID      string
}

func (s *Service) create(ctx context.Context, rec *entity.MemoryRecord) (*entity.MemoryRecord, error) {
	report := policy.Run(ctx, s.policies, rec, s.checkDuplicate)
	if !report.Passed {
		return nil, entity.New(entity.KindPolicy, "service.create", policyViolationMessage(report))
	}
	for _, w := range report.Warnings {
		log.Warn("policy warning [%s]: %s", w.Policy, w.Reason)
	}

	out, err := s.repo.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.indexEmbedding(ctx, out)
	s.emit(Event{Type: EventCreated, Record: out, Timestamp: time.Now().UTC()})
	return out, nil
}

// indexEmbedding embeds a memory's content and persists the vector via the
// repository, best-effort: a provider failure disables vector search for
// this one memory without failing the write that already committed
// (spec.md §4.9 "Provider failure ... does not corrupt the index").
func (s *Service) indexEmbedding(ctx context.Context, rec *entity.MemoryRecord) {
	if s.provider == nil {
		return
	}
	vec, err := s.provider.EmbedQuery(ctx, rec.Content)
	if err != nil {
		log.Warn("embedding index skipped for %s: %v", rec.ID, err)
		return
	}
	row := &entity.EmbeddingRow{
		ID:        uuid.NewString(),
		MemoryID:  rec.ID,
		Provider:  s.provider.ID(),
		Model:     s.provider.Model(),
		Dimension: s.provider.Dimension(),
		Version:   1,
		Vector:    vec,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveEmbedding(ctx, row); err != nil {
		log.Warn("embedding index skipped for %s: %v", rec.ID, err)
	}
}

func (s *Service) checkDuplicate(ctx context.Context, content string) (bool, error) {
	rows, err := s.repo.List(ctx, store.ListFilter{Limit: 1000})
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		if r.Content == content {
			return true, nil
		}
	}
	return false, nil
}

// SaveBatch saves every record independently, logging and skipping
// failures rather than aborting the batch (spec.md §4.7 "best-effort").
func (s *Service) SaveBatch(ctx context.Context, records []*entity.MemoryRecord) []*entity.MemoryRecord {
	var out []*entity.MemoryRecord
	for _, rec := range records {
		saved, err := s.create(ctx, rec)
		if err != nil {
			log.Warn("saveBatch: skipping record: %v", err)
			continue
		}
		out = append(out, saved)
	}
	return out
}

// GetByID asserts readiness and delegates to the repository.
func (s *Service) GetByID(ctx context.Context, id string) (*entity.MemoryRecord, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// List asserts readiness and delegates to the repository, defaulting
// limit to 50 (spec.md §4.7).
func (s *Service) List(ctx context.Context, memType, layer string, limit, offset int) ([]*entity.MemoryRecord, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, store.ListFilter{Type: memType, Layer: layer, Limit: limit, Offset: offset})
}

// Update asserts readiness and delegates to the repository, emitting an
// updated event on success.
func (s *Service) Update(ctx context.Context, rec *entity.MemoryRecord) (*entity.MemoryRecord, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	out, err := s.repo.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.indexEmbedding(ctx, out)
	s.emit(Event{Type: EventUpdated, Record: out, Timestamp: time.Now().UTC()})
	return out, nil
}

// Forget deletes a memory by id, emitting a deleted event on success.
func (s *Service) Forget(ctx context.Context, id string) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.emit(Event{Type: EventDeleted, Record: existing, Timestamp: time.Now().UTC()})
	return nil
}

// Count asserts readiness and delegates to the repository.
func (s *Service) Count(ctx context.Context) (int, error) {
	if err := s.requireReady(); err != nil {
		return 0, err
	}
	return s.repo.Count(ctx, store.ListFilter{})
}

// Search runs the hybrid fusion search (C11) with the service's configured
// defaults layered under caller overrides.
func (s *Service) Search(ctx context.Context, query string, opts hybrid.Options) ([]entity.MemorySearchResult, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.MaxResults
	}
	if opts.MinScore == 0 {
		opts.MinScore = s.cfg.MinScore
	}
	if opts.BM25Weight == 0 && opts.VectorWeight == 0 {
		opts.BM25Weight = s.cfg.Hybrid.BM25Weight
		opts.VectorWeight = s.cfg.Hybrid.VectorWeight
	}
	if opts.Policy == "" {
		opts.Policy = hybrid.Policy(s.cfg.Hybrid.Policy)
	}
	return s.hybrid.Search(ctx, query, opts)
}

func (s *Service) emit(ev Event) {
	s.sinksMu.Lock()
	sinks := append([]EventSink(nil), s.sinks...)
	s.sinksMu.Unlock()

	for _, sink := range sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("event sink panicked: %v", r)
				}
			}()
			sink(ev)
		}()
	}
}

func orDefaultType(t entity.MemoryType, def entity.MemoryType) entity.MemoryType {
	if t == "" {
		return def
	}
	return t
}

func orDefaultLayer(l entity.Layer, def entity.Layer) entity.Layer {
	if l == "" {
		return def
	}
	return l
}

func orDefaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func policyViolationMessage(report policy.Report) string {
	msg := ""
	for i, v := range report.Violations {
		if i > 0 {
			msg += "; "
		}
		msg += v.Policy + ": " + v.Reason
	}
	return msg
}
