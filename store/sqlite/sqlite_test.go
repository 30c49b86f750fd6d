package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	corpus "github.com/solumlabs/corpus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "test.db"))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSource(id string) corpus.Source {
	return corpus.Source{
		ID:        id,
		Hash:      corpus.HashContent(id),
		Version:   1,
		Status:    corpus.StatusCompleted,
		Filename:  id + ".md",
		CreatedAt: 1000,
		UpdatedAt: 1000,
	}
}

func testChunk(id, sourceID string, seq int, content string, vec []float32) corpus.Chunk {
	c := corpus.Chunk{
		ID:             id,
		SourceID:       sourceID,
		SequenceOrder:  seq,
		Scale:          corpus.ScaleParagraph,
		HierarchyLevel: corpus.ScaleParagraph.Level(),
		Content:        content,
		TokenCount:     seq + 5,
		QualityScore:   0.8,
		CoherenceScore: 0.7,
		ContentHash:    corpus.HashContent(content),
		CreatedAt:      1000,
	}
	if vec != nil {
		c.Embeddings = map[corpus.EmbeddingType][]float32{corpus.EmbeddingContent: vec}
	}
	return c
}

func TestSourceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	src := testSource("src1")
	if err := s.UpsertSource(ctx, src); err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}

	got, err := s.GetSource(ctx, "src1")
	if err != nil {
		t.Fatalf("GetSource: %v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Errorf("GetSource = %+v, want %+v", got, src)
	}

	// Upserting again replaces.
	src.Version = 2
	src.Status = corpus.StatusProcessing
	if err := s.UpsertSource(ctx, src); err != nil {
		t.Fatalf("UpsertSource (again): %v", err)
	}
	got, _ = s.GetSource(ctx, "src1")
	if got.Version != 2 || got.Status != corpus.StatusProcessing {
		t.Errorf("after upsert = %+v, want version 2 processing", got)
	}
}

func TestGetSourceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSource(context.Background(), "ghost")
	if !errors.Is(err, corpus.ErrSourceNotFound) {
		t.Fatalf("error = %v, want ErrSourceNotFound", err)
	}
}

func TestListSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"src_b", "src_a"} {
		if err := s.UpsertSource(ctx, testSource(id)); err != nil {
			t.Fatalf("UpsertSource(%s): %v", id, err)
		}
	}
	sources, err := s.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
}

func TestReplaceChunksRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testChunk("ck_a", "src1", 0, "first chunk body", []float32{0.1, 0.2})
	a.ParentID = "ck_root"
	a.ChildIDs = []string{"ck_x", "ck_y"}
	a.SiblingIDs = []string{"ck_b"}
	a.Boundaries = []corpus.BoundaryMarker{{Offset: 12, Confidence: 0.9}}
	b := testChunk("ck_b", "src1", 1, "second chunk body", nil)

	if err := s.ReplaceChunks(ctx, "src1", []corpus.Chunk{a, b}); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	got, err := s.GetChunksBySource(ctx, "src1")
	if err != nil {
		t.Fatalf("GetChunksBySource: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2", len(got))
	}
	if !reflect.DeepEqual(got[0].ChildIDs, a.ChildIDs) || got[0].ParentID != "ck_root" {
		t.Errorf("relations not round-tripped: %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].Boundaries, a.Boundaries) {
		t.Errorf("boundaries = %+v, want %+v", got[0].Boundaries, a.Boundaries)
	}
	if !reflect.DeepEqual(got[0].Embeddings[corpus.EmbeddingContent], []float32{0.1, 0.2}) {
		t.Errorf("embedding not round-tripped: %+v", got[0].Embeddings)
	}
	if got[1].Embeddings != nil && len(got[1].Embeddings) != 0 {
		t.Errorf("chunk without embeddings came back with %+v", got[1].Embeddings)
	}

	// Replacement swaps the whole set.
	c := testChunk("ck_c", "src1", 0, "replacement body", nil)
	if err := s.ReplaceChunks(ctx, "src1", []corpus.Chunk{c}); err != nil {
		t.Fatalf("ReplaceChunks (swap): %v", err)
	}
	got, _ = s.GetChunksBySource(ctx, "src1")
	if len(got) != 1 || got[0].ID != "ck_c" {
		t.Errorf("after replacement = %+v, want only ck_c", got)
	}
}

func TestGetChunksByIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []corpus.Chunk{
		testChunk("ck_a", "src1", 0, "alpha", nil),
		testChunk("ck_b", "src1", 1, "beta", nil),
		testChunk("ck_c", "src1", 2, "gamma", nil),
	}
	if err := s.ReplaceChunks(ctx, "src1", chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	got, err := s.GetChunksByIDs(ctx, []string{"ck_a", "ck_c", "ck_ghost"})
	if err != nil {
		t.Fatalf("GetChunksByIDs: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("chunks = %d, want the 2 that exist", len(got))
	}

	if got, err := s.GetChunksByIDs(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("GetChunksByIDs(nil) = (%v, %v), want empty", got, err)
	}
}

func TestSearchChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []corpus.Chunk{
		testChunk("ck_a", "src1", 0, "close match", []float32{1, 0}),
		testChunk("ck_b", "src1", 1, "far match", []float32{0, 1}),
		testChunk("ck_c", "src1", 2, "no vector", nil),
	}
	if err := s.ReplaceChunks(ctx, "src1", chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	hits, err := s.SearchChunks(ctx, corpus.EmbeddingContent, []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %d, want 2 (unembedded chunks are not candidates)", len(hits))
	}
	if hits[0].ID != "ck_a" || hits[0].Score <= hits[1].Score {
		t.Errorf("hits = %+v, want ck_a first by cosine score", hits)
	}

	// topK truncates.
	hits, _ = s.SearchChunks(ctx, corpus.EmbeddingContent, []float32{1, 0}, 1)
	if len(hits) != 1 {
		t.Errorf("topK=1 returned %d hits", len(hits))
	}
}

func TestSearchChunksFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	good := testChunk("ck_good", "src1", 0, "high quality", []float32{1, 0})
	poor := testChunk("ck_poor", "src2", 1, "low quality", []float32{1, 0})
	poor.QualityScore = 0.2
	if err := s.ReplaceChunks(ctx, "src1", []corpus.Chunk{good}); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceChunks(ctx, "src2", []corpus.Chunk{poor}); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchChunks(ctx, corpus.EmbeddingContent, []float32{1, 0}, 10,
		corpus.ChunkFilter{SourceID: "src1"})
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "ck_good" {
		t.Errorf("source filter hits = %+v, want only ck_good", hits)
	}

	hits, err = s.SearchChunks(ctx, corpus.EmbeddingContent, []float32{1, 0}, 10,
		corpus.ChunkFilter{MinQuality: 0.5})
	if err != nil {
		t.Fatalf("SearchChunks: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "ck_good" {
		t.Errorf("quality filter hits = %+v, want only ck_good", hits)
	}
}

func TestSearchChunksKeyword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chunks := []corpus.Chunk{
		testChunk("ck_a", "src1", 0, "the raft consensus algorithm elects a leader", nil),
		testChunk("ck_b", "src1", 1, "an unrelated paragraph about gardening", nil),
	}
	if err := s.ReplaceChunks(ctx, "src1", chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	hits, err := s.SearchChunksKeyword(ctx, "raft leader", 10)
	if err != nil {
		t.Fatalf("SearchChunksKeyword: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "ck_a" {
		t.Errorf("hits = %+v, want only the matching chunk", hits)
	}
	if hits[0].Score < 0 {
		t.Errorf("score = %v, want non-negative", hits[0].Score)
	}
}

func TestDeleteSourceCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertSource(ctx, testSource("src1")); err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceChunks(ctx, "src1", []corpus.Chunk{
		testChunk("ck_a", "src1", 0, "doomed", []float32{1}),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSource(ctx, "src1"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if _, err := s.GetSource(ctx, "src1"); !errors.Is(err, corpus.ErrSourceNotFound) {
		t.Errorf("source survived deletion: %v", err)
	}
	got, _ := s.GetChunksBySource(ctx, "src1")
	if len(got) != 0 {
		t.Errorf("chunks survived source deletion: %+v", got)
	}
	if hits, _ := s.SearchChunksKeyword(ctx, "doomed", 10); len(hits) != 0 {
		t.Errorf("fts rows survived source deletion: %+v", hits)
	}
}

func TestEmbeddingCacheTier(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	entry := corpus.CacheEntry{Key: "emb_k1", Vector: []float32{0.1, 0.2}, CreatedAt: 500}
	if err := s.PutEmbedding(ctx, entry); err != nil {
		t.Fatalf("PutEmbedding: %v", err)
	}

	got, ok, err := s.GetEmbedding(ctx, "emb_k1")
	if err != nil || !ok {
		t.Fatalf("GetEmbedding = (%v, %v, %v)", got, ok, err)
	}
	if !reflect.DeepEqual(got.Vector, entry.Vector) || got.CreatedAt != 500 {
		t.Errorf("entry = %+v, want %+v", got, entry)
	}

	if _, ok, err := s.GetEmbedding(ctx, "emb_missing"); err != nil || ok {
		t.Errorf("missing key = (%v, %v), want a clean miss", ok, err)
	}

	// Overwrite is idempotent.
	entry.Vector = []float32{0.9}
	if err := s.PutEmbedding(ctx, entry); err != nil {
		t.Fatalf("PutEmbedding (overwrite): %v", err)
	}
	got, _, _ = s.GetEmbedding(ctx, "emb_k1")
	if !reflect.DeepEqual(got.Vector, []float32{0.9}) {
		t.Errorf("overwrite not applied: %+v", got)
	}

	old := corpus.CacheEntry{Key: "emb_old", Vector: []float32{1}, CreatedAt: 100}
	if err := s.PutEmbedding(ctx, old); err != nil {
		t.Fatal(err)
	}
	n, err := s.DeleteEmbeddingsBefore(ctx, 400)
	if err != nil {
		t.Fatalf("DeleteEmbeddingsBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, ok, _ := s.GetEmbedding(ctx, "emb_old"); ok {
		t.Error("expired entry survived the purge")
	}
	if _, ok, _ := s.GetEmbedding(ctx, "emb_k1"); !ok {
		t.Error("fresh entry was purged")
	}
}
