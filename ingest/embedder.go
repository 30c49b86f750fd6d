package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	corpus "github.com/solumlabs/corpus"
)

// EmbedFailure records one chunk/type pair whose embedding could not be
// produced. The chunk keeps its other embeddings; the failed type is simply
// absent, never zero-filled.
type EmbedFailure struct {
	ChunkID string
	Type    corpus.EmbeddingType
	Err     error
}

// EmbedStats summarizes one embedding pass.
type EmbedStats struct {
	Generated int
	CacheHits int
	Failures  []EmbedFailure
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithEmbeddingTypes restricts which embedding views are generated
// (default: all four).
func WithEmbeddingTypes(types ...corpus.EmbeddingType) EmbedderOption {
	return func(e *Embedder) { e.types = types }
}

// WithBatchSize sets how many inputs go to the provider per call
// (default 100).
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithCache routes embedding lookups through a cache before the provider.
func WithCache(cache *corpus.EmbeddingCache) EmbedderOption {
	return func(e *Embedder) { e.cache = cache }
}

// WithDomainKeywords boosts the semantic view: keywords found in a chunk are
// appended to its embedding input so domain terms weigh more.
func WithDomainKeywords(words ...string) EmbedderOption {
	return func(e *Embedder) { e.keywords = words }
}

// WithContextWindow sets how many characters of parent and sibling content
// feed the contextual view (default 200 each).
func WithContextWindow(chars int) EmbedderOption {
	return func(e *Embedder) {
		if chars > 0 {
			e.contextWindow = chars
		}
	}
}

// WithEmbedderLogger sets a structured logger for embedding events.
func WithEmbedderLogger(l *slog.Logger) EmbedderOption {
	return func(e *Embedder) { e.logger = l }
}

// Embedder generates the multi-view embeddings for a chunk forest: the raw
// content view, a contextual view that folds in parent and sibling text, a
// hierarchical view built from the ancestor breadcrumb, and a semantic view
// with domain keywords boosted.
//
// Lookups are cache-first. Provider batches that return an invalid vector
// for a chunk get one single-item retry; a second failure leaves that
// embedding absent and records the cause. A hard provider error on a whole
// batch aborts the pass.
type Embedder struct {
	provider      corpus.EmbeddingProvider
	cache         *corpus.EmbeddingCache
	types         []corpus.EmbeddingType
	batchSize     int
	contextWindow int
	keywords      []string
	logger        *slog.Logger
}

// NewEmbedder creates an Embedder over the given provider.
func NewEmbedder(provider corpus.EmbeddingProvider, opts ...EmbedderOption) (*Embedder, error) {
	if provider == nil {
		return nil, &corpus.ErrValidation{Field: "provider", Message: "must not be nil"}
	}
	e := &Embedder{
		provider:      provider,
		types:         corpus.AllEmbeddingTypes(),
		batchSize:     100,
		contextWindow: 200,
		logger:        nopLogger,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// pending is one chunk/type pair awaiting a provider vector.
type pending struct {
	chunkIdx int
	typ      corpus.EmbeddingType
	input    string
	key      string
}

// Embed fills the Embeddings map of each chunk in place and reports stats.
// Chunks must carry their hierarchy relations; the contextual and
// hierarchical views read parent and sibling content from the same slice.
func (e *Embedder) Embed(ctx context.Context, chunks []corpus.Chunk) (EmbedStats, error) {
	var stats EmbedStats
	if len(chunks) == 0 {
		return stats, nil
	}

	byID := make(map[string]*corpus.Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
		if chunks[i].Embeddings == nil {
			chunks[i].Embeddings = make(map[corpus.EmbeddingType][]float32, len(e.types))
		}
	}

	model := e.provider.Model()
	var queue []pending
	for i := range chunks {
		for _, t := range e.types {
			if chunks[i].HasEmbedding(t) {
				continue
			}
			input := e.buildInput(&chunks[i], t, byID)
			if strings.TrimSpace(input) == "" {
				continue
			}
			key := corpus.CacheKey(input, t, model)
			if e.cache != nil {
				if vec, ok := e.cache.Get(ctx, key); ok {
					chunks[i].Embeddings[t] = vec
					stats.CacheHits++
					continue
				}
			}
			queue = append(queue, pending{chunkIdx: i, typ: t, input: input, key: key})
		}
	}

	dims := e.provider.Dimensions()
	for lo := 0; lo < len(queue); lo += e.batchSize {
		hi := min(lo+e.batchSize, len(queue))
		batch := queue[lo:hi]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.input
		}

		vecs, err := e.provider.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("embed batch of %d: %w", len(batch), err)
		}
		if len(vecs) != len(batch) {
			return stats, &corpus.ErrProvider{
				Provider: e.provider.Name(),
				Message:  fmt.Sprintf("embed returned %d vectors for %d inputs", len(vecs), len(batch)),
			}
		}

		for i, p := range batch {
			vec := vecs[i]
			if verr := corpus.ValidateVector(vec, dims); verr != nil {
				vec, verr = e.retryOne(ctx, p, dims)
				if verr != nil {
					stats.Failures = append(stats.Failures, EmbedFailure{
						ChunkID: chunks[p.chunkIdx].ID,
						Type:    p.typ,
						Err:     verr,
					})
					e.logger.Warn("embedding failed, leaving absent",
						"chunk_id", chunks[p.chunkIdx].ID,
						"type", string(p.typ),
						"error", verr)
					continue
				}
			}
			chunks[p.chunkIdx].Embeddings[p.typ] = vec
			stats.Generated++
			if e.cache != nil {
				e.cache.Put(ctx, p.key, vec)
			}
		}
	}

	e.logger.Debug("embedded chunks",
		"chunks", len(chunks),
		"generated", stats.Generated,
		"cache_hits", stats.CacheHits,
		"failures", len(stats.Failures))
	return stats, nil
}

// retryOne re-requests a single failed input once. Batch-level glitches
// often clear on an isolated call; a repeat failure is treated as final.
func (e *Embedder) retryOne(ctx context.Context, p pending, dims int) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{p.input})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, &corpus.ErrProvider{
			Provider: e.provider.Name(),
			Message:  fmt.Sprintf("single-item embed returned %d vectors", len(vecs)),
		}
	}
	if verr := corpus.ValidateVector(vecs[0], dims); verr != nil {
		return nil, verr
	}
	return vecs[0], nil
}

// buildInput derives the text embedded for each view.
func (e *Embedder) buildInput(c *corpus.Chunk, t corpus.EmbeddingType, byID map[string]*corpus.Chunk) string {
	switch t {
	case corpus.EmbeddingContent:
		return c.Content

	case corpus.EmbeddingContextual:
		var b strings.Builder
		if parent, ok := byID[c.ParentID]; ok {
			b.WriteString(headOf(parent.Content, e.contextWindow))
			b.WriteString("\n")
		}
		b.WriteString(c.Content)
		for _, sid := range c.SiblingIDs {
			if sib, ok := byID[sid]; ok {
				b.WriteString("\n")
				b.WriteString(headOf(sib.Content, e.contextWindow))
			}
		}
		return b.String()

	case corpus.EmbeddingHierarchical:
		// Breadcrumb of ancestor heads, root first, then the chunk itself.
		var crumbs []string
		seen := map[string]bool{c.ID: true}
		for cur := byID[c.ParentID]; cur != nil && !seen[cur.ID]; cur = byID[cur.ParentID] {
			seen[cur.ID] = true
			crumbs = append(crumbs, headOf(cur.Content, e.contextWindow))
		}
		var b strings.Builder
		for i := len(crumbs) - 1; i >= 0; i-- {
			b.WriteString(crumbs[i])
			b.WriteString(" > ")
		}
		b.WriteString(c.Content)
		return b.String()

	case corpus.EmbeddingSemantic:
		matched := matchKeywords(c.Content, e.keywords)
		if len(matched) == 0 {
			return c.Content
		}
		return c.Content + "\n" + strings.Join(matched, " ")
	}
	return c.Content
}

// headOf returns the first max bytes of s, cut back to a rune boundary and
// trimmed.
func headOf(s string, max int) string {
	if len(s) <= max {
		return strings.TrimSpace(s)
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut])
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// matchKeywords returns the configured keywords present in content,
// case-insensitively, in configuration order.
func matchKeywords(content string, keywords []string) []string {
	if len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(content)
	var matched []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
