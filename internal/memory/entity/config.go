package entity

import "path/filepath"

// StoreConfig configures the SQLite store (C3).
type StoreConfig struct {
	Path        string
	BusyTimeoutMS int
	Vector      VectorConfig
}

// VectorConfig configures the optional sqlite-vec ANN backend (C10).
type VectorConfig struct {
	Enabled       bool
	ExtensionPath string
	// Dimension is the fixed vector length the memory_vec vec0 table is
	// created with. Zero lets the store fall back to a default; callers that
	// know their embedding provider up front (cmd/reinsmemctl's openEngine)
	// set this from provider.Dimension() before opening the store.
	Dimension int
}

// ChunkingConfig is carried for document_chunk population even though
// chunking quality itself is out of scope (spec.md §1 Non-goals).
type ChunkingConfig struct {
	Tokens  int
	Overlap int
}

// DefaultChunkingConfig mirrors the teacher's 400/80 token/overlap default.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{Tokens: 400, Overlap: 80}
}

// SyncConfig configures the watcher/ingestor lifecycle (C6/C12).
type SyncConfig struct {
	Watch            bool
	WatchDebounceMS  int
	OnSessionStart   bool
}

// DefaultSyncConfig mirrors spec.md §4.5's 500ms default debounce.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{Watch: true, WatchDebounceMS: 500}
}

// CacheConfig configures the in-process embedding cache tier.
type CacheConfig struct {
	Enabled    bool
	MaxEntries int
}

// DefaultCacheConfig mirrors the teacher's embedding-cache defaults.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, MaxEntries: 2000}
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider string
	Model    string
	Fallback string
	Remote   RemoteEmbeddingConfig
}

// RemoteEmbeddingConfig configures an HTTP embedding provider.
type RemoteEmbeddingConfig struct {
	BaseURL string
	APIKey  string
	Headers map[string]string
}

// HybridConfig configures C11's fusion defaults.
type HybridConfig struct {
	Enabled            bool
	Policy             string // "weighted_sum" or "rrf"
	BM25Weight         float64
	VectorWeight       float64
	ImportanceBoost    float64
	RRFK               int
	CandidateMultiplier int
}

// DefaultHybridConfig mirrors spec.md §4.10's defaults.
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		Enabled:             true,
		Policy:              "weighted_sum",
		BM25Weight:          0.3,
		VectorWeight:        0.7,
		ImportanceBoost:     0,
		RRFK:                60,
		CandidateMultiplier: 3,
	}
}

// QueryConfig carries search defaults for the service façade.
type QueryConfig struct {
	MaxResults int
	MinScore   float64
	Hybrid     HybridConfig
}

// DefaultQueryConfig mirrors the teacher's 6/0.35 defaults.
func DefaultQueryConfig() QueryConfig {
	return QueryConfig{MaxResults: 6, MinScore: 0.35, Hybrid: DefaultHybridConfig()}
}

// MemoryConfig is the top-level configuration for the engine.
type MemoryConfig struct {
	Enabled      bool
	WorkspaceDir string
	ExtraPaths   []string
	Embedding    EmbeddingConfig
	Store        StoreConfig
	Chunking     ChunkingConfig
	Sync         SyncConfig
	Query        QueryConfig
	Cache        CacheConfig
}

// DataDir is the directory Markdown memory files live under, mirroring
// spec.md §6's default <user-home>/.reins/environments/default/memories/
// layout when WorkspaceDir is the environment root.
func (c *MemoryConfig) DataDir() string {
	return filepath.Join(c.WorkspaceDir, "memories")
}

// QuarantineDir is the ".quarantine" subdirectory under the data directory.
func (c *MemoryConfig) QuarantineDir() string {
	return filepath.Join(c.DataDir(), ".quarantine")
}

// DefaultMemoryConfig returns the engine's zero-config defaults.
func DefaultMemoryConfig(homeDir string) MemoryConfig {
	root := filepath.Join(homeDir, ".reins", "environments", "default")
	return MemoryConfig{
		Enabled:      true,
		WorkspaceDir: root,
		Embedding:    EmbeddingConfig{Provider: "local", Model: "local-hash-v1"},
		Store: StoreConfig{
			Path:          filepath.Join(root, "memories.db"),
			BusyTimeoutMS: 1000,
		},
		Chunking: DefaultChunkingConfig(),
		Sync:     DefaultSyncConfig(),
		Query:    DefaultQueryConfig(),
		Cache:    DefaultCacheConfig(),
	}
}
