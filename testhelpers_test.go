package corpus

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// nopStore implements VectorStore with no-ops. Embed it in test fakes and
// override only the methods a test cares about.
type nopStore struct{}

func (nopStore) UpsertSource(context.Context, Source) error          { return nil }
func (nopStore) GetSource(context.Context, string) (Source, error)   { return Source{}, ErrSourceNotFound }
func (nopStore) ListSources(context.Context) ([]Source, error)       { return nil, nil }
func (nopStore) DeleteSource(context.Context, string) error          { return nil }
func (nopStore) ReplaceChunks(context.Context, string, []Chunk) error { return nil }
func (nopStore) GetChunksByIDs(context.Context, []string) ([]Chunk, error) {
	return nil, nil
}
func (nopStore) GetChunksBySource(context.Context, string) ([]Chunk, error) {
	return nil, nil
}
func (nopStore) SearchChunks(context.Context, EmbeddingType, []float32, int, ...ChunkFilter) ([]ScoredChunk, error) {
	return nil, nil
}
func (nopStore) Init(context.Context) error { return nil }
func (nopStore) Close() error               { return nil }

// fakeStore serves canned search results per embedding type and resolves
// chunk lookups from an in-memory map. Any injected error wins.
type fakeStore struct {
	nopStore

	mu             sync.Mutex
	sources        map[string]Source
	chunks         map[string]Chunk
	searchResults  map[EmbeddingType][]ScoredChunk
	keywordResults []ScoredChunk
	searchErr      error
	keywordErr     error
	lookupErr      error
	upsertErr      error
	replaceErr     error
	searchCalls    int
	keywordCalls   int
	replaceCalls   int
}

func newFakeStore(chunks ...Chunk) *fakeStore {
	s := &fakeStore{
		sources:       make(map[string]Source),
		chunks:        make(map[string]Chunk, len(chunks)),
		searchResults: make(map[EmbeddingType][]ScoredChunk),
	}
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return s
}

func (s *fakeStore) UpsertSource(_ context.Context, src Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.sources[src.ID] = src
	return nil
}

func (s *fakeStore) GetSource(_ context.Context, id string) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return Source{}, s.lookupErr
	}
	src, ok := s.sources[id]
	if !ok {
		return Source{}, ErrSourceNotFound
	}
	return src, nil
}

func (s *fakeStore) ListSources(context.Context) ([]Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	return out, nil
}

func (s *fakeStore) ReplaceChunks(_ context.Context, sourceID string, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	if s.replaceErr != nil {
		return s.replaceErr
	}
	for id, c := range s.chunks {
		if c.SourceID == sourceID {
			delete(s.chunks, id)
		}
	}
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *fakeStore) SearchChunks(_ context.Context, t EmbeddingType, _ []float32, topK int, _ ...ChunkFilter) ([]ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	res := s.searchResults[t]
	if len(res) > topK {
		res = res[:topK]
	}
	return append([]ScoredChunk(nil), res...), nil
}

func (s *fakeStore) SearchChunksKeyword(_ context.Context, _ string, topK int, _ ...ChunkFilter) ([]ScoredChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywordCalls++
	if s.keywordErr != nil {
		return nil, s.keywordErr
	}
	res := s.keywordResults
	if len(res) > topK {
		res = res[:topK]
	}
	return append([]ScoredChunk(nil), res...), nil
}

func (s *fakeStore) GetChunksByIDs(_ context.Context, ids []string) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	out := make([]Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) GetChunksBySource(_ context.Context, sourceID string) ([]Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	var out []Chunk
	for _, c := range s.chunks {
		if c.SourceID == sourceID {
			out = append(out, c)
		}
	}
	return out, nil
}

// noKeywordStore forwards to a fakeStore without exposing keyword search,
// so the retriever's capability type assertion fails and the hybrid
// strategy has to fall back to vector-only search.
type noKeywordStore struct {
	inner *fakeStore
}

func (s *noKeywordStore) UpsertSource(ctx context.Context, src Source) error {
	return s.inner.UpsertSource(ctx, src)
}
func (s *noKeywordStore) GetSource(ctx context.Context, id string) (Source, error) {
	return s.inner.GetSource(ctx, id)
}
func (s *noKeywordStore) ListSources(ctx context.Context) ([]Source, error) {
	return s.inner.ListSources(ctx)
}
func (s *noKeywordStore) DeleteSource(ctx context.Context, id string) error {
	return s.inner.DeleteSource(ctx, id)
}
func (s *noKeywordStore) ReplaceChunks(ctx context.Context, sourceID string, chunks []Chunk) error {
	return s.inner.ReplaceChunks(ctx, sourceID, chunks)
}
func (s *noKeywordStore) GetChunksByIDs(ctx context.Context, ids []string) ([]Chunk, error) {
	return s.inner.GetChunksByIDs(ctx, ids)
}
func (s *noKeywordStore) GetChunksBySource(ctx context.Context, sourceID string) ([]Chunk, error) {
	return s.inner.GetChunksBySource(ctx, sourceID)
}
func (s *noKeywordStore) SearchChunks(ctx context.Context, t EmbeddingType, v []float32, topK int, f ...ChunkFilter) ([]ScoredChunk, error) {
	return s.inner.SearchChunks(ctx, t, v, topK, f...)
}
func (s *noKeywordStore) Init(ctx context.Context) error { return s.inner.Init(ctx) }
func (s *noKeywordStore) Close() error                   { return s.inner.Close() }

// stubEmbedding returns deterministic vectors and counts calls.
type stubEmbedding struct {
	mu    sync.Mutex
	dims  int
	model string
	err   error
	calls int
	texts [][]string
}

func newStubEmbedding(dims int) *stubEmbedding {
	return &stubEmbedding{dims: dims, model: "stub-model"}
}

func (p *stubEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.texts = append(p.texts, append([]string(nil), texts...))
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = stubVector(t, p.dims)
	}
	return out, nil
}

func (p *stubEmbedding) Dimensions() int { return p.dims }
func (p *stubEmbedding) Name() string    { return "stub" }
func (p *stubEmbedding) Model() string   { return p.model }

// stubVector derives a stable non-zero vector from the text so equal inputs
// embed equally and distinct inputs (almost always) differ.
func stubVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	var h uint32 = 2166136261
	for _, b := range []byte(text) {
		h = (h ^ uint32(b)) * 16777619
	}
	for i := range v {
		h = h*1664525 + 1013904223
		v[i] = float32(h%1000)/1000 + 0.001
	}
	return v
}

// mkChunk builds a minimal valid chunk for relational and retrieval tests.
func mkChunk(id, sourceID string, scale ScaleType, seq int, content string) Chunk {
	return Chunk{
		ID:             id,
		SourceID:       sourceID,
		Scale:          scale,
		SequenceOrder:  seq,
		Content:        content,
		ContentHash:    HashContent(content),
		TokenCount:     len(strings.Fields(content)),
		QualityScore:   0.8,
		CoherenceScore: 0.8,
		Embeddings:     map[EmbeddingType][]float32{},
	}
}

func scored(c Chunk, score float32) ScoredChunk {
	return ScoredChunk{Chunk: c, Score: score}
}

func chunkIDs(items []ContextItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Chunk.ID
	}
	return out
}

func fmtIDs(items []ContextItem) string {
	return fmt.Sprint(chunkIDs(items))
}
