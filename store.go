package corpus

import "context"

// VectorStore abstracts chunk persistence with per-type vector similarity
// search. The core mandates only this logical schema and query contract;
// engine internals are the implementation's business.
type VectorStore interface {
	// --- Sources ---
	UpsertSource(ctx context.Context, src Source) error
	GetSource(ctx context.Context, id string) (Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	DeleteSource(ctx context.Context, id string) error

	// --- Chunks ---
	// ReplaceChunks atomically swaps the full chunk set of a source.
	// Partial in-place chunk mutation is not part of the contract.
	ReplaceChunks(ctx context.Context, sourceID string, chunks []Chunk) error
	GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error)
	GetChunksBySource(ctx context.Context, sourceID string) ([]Chunk, error)

	// SearchChunks ranks chunks by similarity of their vector of the given
	// type against the query vector. Chunks lacking that embedding type are
	// not candidates.
	SearchChunks(ctx context.Context, t EmbeddingType, vector []float32, topK int, filters ...ChunkFilter) ([]ScoredChunk, error)

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}

// KeywordSearcher is an optional VectorStore capability for full-text
// keyword search. Stores that support FTS implement it; the retriever
// discovers it via type assertion and uses it for the hybrid strategy.
type KeywordSearcher interface {
	SearchChunksKeyword(ctx context.Context, query string, topK int, filters ...ChunkFilter) ([]ScoredChunk, error)
}

// CacheEntry is one persisted embedding cache record. Entries are immutable
// once written; eviction is time- or capacity-based, never correctness-based.
type CacheEntry struct {
	Key         string
	Vector      []float32
	CreatedAt   int64
	AccessCount int64
}

// CacheStore is the persistent tier of the embedding cache. A concurrent
// duplicate write for the same key is an idempotent overwrite, never an
// error. Correctness depends on at-least-once plus idempotent writes, not
// at-most-once provider calls.
type CacheStore interface {
	GetEmbedding(ctx context.Context, key string) (CacheEntry, bool, error)
	PutEmbedding(ctx context.Context, entry CacheEntry) error
	DeleteEmbeddingsBefore(ctx context.Context, cutoff int64) (int, error)
}

// ContextRetriever is the only entry point a chat-serving layer should call.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, cfg RetrieveConfig) (RetrievalResult, error)
}
