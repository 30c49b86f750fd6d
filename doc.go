// Package corpus is a retrieval-augmented-generation knowledge base core in Go.
//
// It turns raw documents into a forest of quality-scored, hierarchically
// related chunks, generates multiple embedding views per chunk through a
// content-addressed cache, and serves the most useful subset of chunks for
// an arbitrary query while mitigating known weaknesses of long-context
// retrieval (lost-in-the-middle ordering, redundancy, shallow single-vector
// matching).
//
// # Quick Start
//
//	embedding := openaicompat.NewEmbedding(baseURL, apiKey, model, 1536)
//	embedding = corpus.WithEmbeddingRetry(embedding)
//	store := sqlite.New("corpus.db")
//	cache := corpus.NewEmbeddingCache(corpus.WithCacheBacking(store))
//
//	chunker := ingest.NewChunker()
//	embedder, err := ingest.NewEmbedder(embedding, ingest.WithEmbedCache(cache))
//	orch, err := ingest.NewOrchestrator(chunker, embedder, store)
//
//	input, err := loader.Load("handbook.md", "handbook")
//	result, err := orch.Ingest(ctx, input)
//
//	retriever := corpus.NewRetriever(store, embedding)
//	ctxSet, err := retriever.Retrieve(ctx, "fund rollforward settings", corpus.RetrieveConfig{})
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [EmbeddingProvider]: text-to-vector embedding backend
//   - [VectorStore]: chunk persistence with per-type vector similarity search
//   - [CacheStore]: persistent tier of the embedding cache
//   - [ContextRetriever]: the single entry point a chat-serving layer calls
//
// Subpackages provide implementations: ingest (chunker, embedder,
// orchestrator), loader (text extraction), provider/openaicompat (embedding
// client), store/sqlite and store/postgres (vector stores), observer
// (OpenTelemetry instrumentation).
package corpus
