package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// RetrievalStrategy is a closed set of retrieval behaviors. A pure classifier
// picks one per query; callers may pin one via RetrieveConfig.Strategy.
type RetrievalStrategy int

const (
	// StrategyAuto lets the query classifier choose.
	StrategyAuto RetrievalStrategy = iota
	// StrategyVector searches a single embedding view.
	StrategyVector
	// StrategyHybrid fuses vector and keyword search with RRF.
	StrategyHybrid
	// StrategyMultiScale queries several embedding views and unions results.
	StrategyMultiScale
	// StrategyContextual searches vectors then expands by hierarchy.
	StrategyContextual
)

func (s RetrievalStrategy) String() string {
	switch s {
	case StrategyVector:
		return "vector"
	case StrategyHybrid:
		return "hybrid"
	case StrategyMultiScale:
		return "multi-scale"
	case StrategyContextual:
		return "contextual"
	}
	return "auto"
}

// QueryKind is the classifier's verdict about a query's shape.
type QueryKind int

const (
	QuerySingleFact QueryKind = iota
	QueryMultiHop
	QueryBroad
)

// ClassifyQuery inspects a query's surface form and decides its kind. It is
// a pure function: same input, same verdict.
func ClassifyQuery(query string) QueryKind {
	if len(DecomposeQuery(query)) > 1 {
		return QueryMultiHop
	}
	lower := strings.ToLower(strings.TrimSpace(query))
	for _, p := range broadPrefixes {
		if strings.HasPrefix(lower, p) {
			return QueryBroad
		}
	}
	if len(strings.Fields(lower)) <= 2 {
		return QueryBroad // bare topic, no fact asked
	}
	return QuerySingleFact
}

var broadPrefixes = []string{
	"overview", "summarize", "summary of", "explain", "describe",
	"tell me about", "what do we know about", "everything about",
}

// multi-hop connectors; each side must be a clause, not a noun pair.
var hopSeparators = []string{
	"; ", " and also ", " as well as ", " and then ", " compared to ",
	" versus ", " vs ", " difference between",
}

// DecomposeQuery splits a complex query into independently retrievable
// sub-queries. Single-fact queries come back as a one-element slice. A bare
// " and " only splits when both sides look like clauses (three words or
// more) so noun pairs stay intact.
func DecomposeQuery(query string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	parts := []string{query}
	for _, sep := range hopSeparators {
		parts = splitAll(parts, sep, 1)
	}
	parts = splitAll(parts, " and ", 3)

	// Multiple question sentences are hops of their own.
	var out []string
	for _, p := range parts {
		for _, q := range strings.Split(p, "?") {
			q = strings.TrimSpace(q)
			if q != "" {
				out = append(out, q)
			}
		}
	}
	if len(out) == 0 {
		return []string{query}
	}
	return out
}

func splitAll(parts []string, sep string, minWords int) []string {
	var out []string
	for _, p := range parts {
		segs := strings.Split(p, sep)
		if len(segs) == 1 {
			out = append(out, p)
			continue
		}
		ok := true
		for _, s := range segs {
			if len(strings.Fields(s)) < minWords {
				ok = false
				break
			}
		}
		if !ok {
			out = append(out, p)
			continue
		}
		for _, s := range segs {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// strategyFor maps a query kind to its default strategy.
func strategyFor(kind QueryKind) RetrievalStrategy {
	switch kind {
	case QueryMultiHop:
		return StrategyMultiScale
	case QueryBroad:
		return StrategyContextual
	}
	return StrategyHybrid
}

// RetrieveConfig tunes one Retrieve call. The zero value means "defaults".
type RetrieveConfig struct {
	// MaxChunks bounds the ranked context set (default 8).
	MaxChunks int
	// Strategy pins a strategy; StrategyAuto defers to the classifier.
	Strategy RetrievalStrategy
	// EmbeddingTypes are the views the multi-scale strategy queries
	// (default: all four).
	EmbeddingTypes []EmbeddingType
	// ExpandParents / ExpandSiblings / ExpandTemporal enable context
	// expansion. The contextual strategy forces ExpandParents.
	ExpandParents  bool
	ExpandSiblings bool
	ExpandTemporal bool
	// ExpansionMaxCount bounds total expansion items (default 4).
	ExpansionMaxCount int
	// DedupThreshold drops a candidate whose content overlap with an
	// already-selected higher-ranked candidate exceeds it (default 0.9).
	DedupThreshold float64
	// SimilarityThreshold gates sibling expansion (default 0.2).
	SimilarityThreshold float64
	// KeywordWeight is the keyword share in hybrid RRF fusion (default 0.3).
	KeywordWeight float32
	// OverfetchMultiplier over-fetches candidates before re-ranking
	// (default 3).
	OverfetchMultiplier int
}

func (c RetrieveConfig) withDefaults() RetrieveConfig {
	if c.MaxChunks <= 0 {
		c.MaxChunks = 8
	}
	if len(c.EmbeddingTypes) == 0 {
		c.EmbeddingTypes = AllEmbeddingTypes()
	}
	if c.ExpansionMaxCount <= 0 {
		c.ExpansionMaxCount = 4
	}
	if c.DedupThreshold <= 0 {
		c.DedupThreshold = 0.9
	}
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = 0.2
	}
	if c.KeywordWeight <= 0 {
		c.KeywordWeight = 0.3
	}
	if c.OverfetchMultiplier <= 0 {
		c.OverfetchMultiplier = 3
	}
	return c
}

// mergeConfig fills zero-valued fields of cfg from base. Expansion flags are
// OR-ed: a zero per-call config keeps whatever expansion the defaults enable.
func mergeConfig(cfg, base RetrieveConfig) RetrieveConfig {
	if cfg.MaxChunks == 0 {
		cfg.MaxChunks = base.MaxChunks
	}
	if cfg.Strategy == StrategyAuto {
		cfg.Strategy = base.Strategy
	}
	if len(cfg.EmbeddingTypes) == 0 {
		cfg.EmbeddingTypes = base.EmbeddingTypes
	}
	cfg.ExpandParents = cfg.ExpandParents || base.ExpandParents
	cfg.ExpandSiblings = cfg.ExpandSiblings || base.ExpandSiblings
	cfg.ExpandTemporal = cfg.ExpandTemporal || base.ExpandTemporal
	if cfg.ExpansionMaxCount == 0 {
		cfg.ExpansionMaxCount = base.ExpansionMaxCount
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = base.DedupThreshold
	}
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = base.SimilarityThreshold
	}
	if cfg.KeywordWeight == 0 {
		cfg.KeywordWeight = base.KeywordWeight
	}
	if cfg.OverfetchMultiplier == 0 {
		cfg.OverfetchMultiplier = base.OverfetchMultiplier
	}
	return cfg
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithRetrieverLogger sets a structured logger for retrieval events.
func WithRetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithRetrieveDefaults overrides the built-in per-call defaults.
func WithRetrieveDefaults(cfg RetrieveConfig) RetrieverOption {
	return func(r *Retriever) { r.defaults = cfg }
}

// Retriever selects a strategy per query, fetches candidates from the vector
// store, fuses and deduplicates them, expands context along the chunk
// hierarchy, and reorders the final sequence against lost-in-the-middle.
//
// Output ordering is deterministic for identical (query, config, corpus
// state): ties break on chunk ID, and no stage uses randomness.
type Retriever struct {
	store     VectorStore
	embedding EmbeddingProvider
	logger    *slog.Logger
	defaults  RetrieveConfig
}

var _ ContextRetriever = (*Retriever)(nil)

// NewRetriever creates a Retriever over a store and an embedding provider.
// If the store implements KeywordSearcher, the hybrid strategy uses it.
func NewRetriever(store VectorStore, embedding EmbeddingProvider, opts ...RetrieverOption) *Retriever {
	r := &Retriever{store: store, embedding: embedding, logger: nopLogger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve returns the ordered context set for query.
func (r *Retriever) Retrieve(ctx context.Context, query string, cfg RetrieveConfig) (RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return RetrievalResult{}, &ErrValidation{Field: "query", Message: "empty"}
	}

	// Layer per-call config over retriever defaults over built-ins.
	cfg = mergeConfig(cfg, r.defaults).withDefaults()

	kind := ClassifyQuery(query)
	strategy := cfg.Strategy
	if strategy == StrategyAuto {
		strategy = strategyFor(kind)
	}
	if strategy == StrategyContextual {
		cfg.ExpandParents = true
	}

	subQueries := []string{query}
	if kind == QueryMultiHop {
		subQueries = DecomposeQuery(query)
	}

	fetchK := cfg.MaxChunks * cfg.OverfetchMultiplier

	// Retrieve per sub-query, union and deduplicate by chunk ID keeping the
	// best score.
	merged := make(map[string]ScoredChunk)
	for _, sq := range subQueries {
		hits, err := r.search(ctx, strategy, sq, fetchK, cfg)
		if err != nil {
			return RetrievalResult{}, err
		}
		for _, h := range hits {
			if prev, ok := merged[h.ID]; !ok || h.Score > prev.Score {
				merged[h.ID] = h
			}
		}
	}

	candidates := make([]ScoredChunk, 0, len(merged))
	for _, sc := range merged {
		candidates = append(candidates, sc)
	}
	sortScored(candidates)

	selected := r.dropRedundant(candidates, cfg.DedupThreshold)
	if len(selected) > cfg.MaxChunks {
		selected = selected[:cfg.MaxChunks]
	}

	items := make([]ContextItem, len(selected))
	for i, sc := range selected {
		items[i] = ContextItem{Chunk: sc.Chunk, Score: sc.Score}
	}

	expanded, err := r.expand(ctx, items, cfg)
	if err != nil {
		return RetrievalResult{}, err
	}
	items = append(items, expanded...)

	sortItems(items)
	items = interleaveByAttention(items)

	r.logger.Debug("retrieve ok",
		"strategy", strategy.String(),
		"sub_queries", len(subQueries),
		"candidates", len(candidates),
		"returned", len(items))

	return RetrievalResult{Query: query, Strategy: strategy, Items: items}, nil
}

// search dispatches one sub-query to the chosen strategy.
func (r *Retriever) search(ctx context.Context, strategy RetrievalStrategy, query string, topK int, cfg RetrieveConfig) ([]ScoredChunk, error) {
	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case StrategyHybrid:
		return r.searchHybrid(ctx, query, vec, topK, cfg.KeywordWeight)
	case StrategyMultiScale:
		return r.searchMultiScale(ctx, vec, topK, cfg.EmbeddingTypes)
	default: // StrategyVector, StrategyContextual
		return r.searchVector(ctx, EmbeddingContent, vec, topK)
	}
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	embs, err := r.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embs) == 0 {
		return nil, &ErrProvider{Provider: r.embedding.Name(), Message: "no embedding returned for query"}
	}
	return embs[0], nil
}

func (r *Retriever) searchVector(ctx context.Context, t EmbeddingType, vec []float32, topK int) ([]ScoredChunk, error) {
	hits, err := r.store.SearchChunks(ctx, t, vec, topK)
	if err != nil {
		return nil, &ErrStoreUnavailable{Op: "vector search", Err: err}
	}
	return hits, nil
}

func (r *Retriever) searchHybrid(ctx context.Context, query string, vec []float32, topK int, keywordWeight float32) ([]ScoredChunk, error) {
	vector, err := r.searchVector(ctx, EmbeddingContent, vec, topK)
	if err != nil {
		return nil, err
	}

	var keyword []ScoredChunk
	if ks, ok := r.store.(KeywordSearcher); ok {
		keyword, err = ks.SearchChunksKeyword(ctx, query, topK)
		if err != nil {
			// Keyword is the secondary signal; degrade to vector-only.
			r.logger.Warn("keyword search failed, using vector only", "error", err)
			keyword = nil
		}
	}

	if len(keyword) == 0 {
		return vector, nil
	}
	return reciprocalRankFusion(vector, keyword, keywordWeight), nil
}

func (r *Retriever) searchMultiScale(ctx context.Context, vec []float32, topK int, types []EmbeddingType) ([]ScoredChunk, error) {
	merged := make(map[string]ScoredChunk)
	for _, t := range types {
		hits, err := r.searchVector(ctx, t, vec, topK)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if prev, ok := merged[h.ID]; !ok || h.Score > prev.Score {
				merged[h.ID] = h
			}
		}
	}
	out := make([]ScoredChunk, 0, len(merged))
	for _, sc := range merged {
		out = append(out, sc)
	}
	sortScored(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// --- Reciprocal Rank Fusion ---

const rrfK = 60

// reciprocalRankFusion merges vector and keyword rankings. keywordWeight is
// in [0,1]; vector gets the remainder. Output is sorted by fused score
// descending, chunk ID ascending.
func reciprocalRankFusion(vector, keyword []ScoredChunk, keywordWeight float32) []ScoredChunk {
	vectorWeight := 1 - keywordWeight

	fused := make(map[string]*ScoredChunk)
	add := func(ranked []ScoredChunk, weight float32) {
		for rank, sc := range ranked {
			e, ok := fused[sc.ID]
			if !ok {
				cp := sc
				cp.Score = 0
				fused[sc.ID] = &cp
				e = fused[sc.ID]
			}
			e.Score += weight * (1.0 / float32(rrfK+rank+1))
		}
	}
	add(vector, vectorWeight)
	add(keyword, keywordWeight)

	out := make([]ScoredChunk, 0, len(fused))
	for _, e := range fused {
		out = append(out, *e)
	}
	sortScored(out)
	return out
}

// --- Redundancy reduction ---

// dropRedundant walks candidates in rank order and drops any whose content
// overlap with an already-selected candidate exceeds threshold.
func (r *Retriever) dropRedundant(candidates []ScoredChunk, threshold float64) []ScoredChunk {
	var selected []ScoredChunk
	for _, cand := range candidates {
		redundant := false
		for _, kept := range selected {
			if tokenOverlap(cand.Content, kept.Content) > threshold {
				redundant = true
				break
			}
		}
		if !redundant {
			selected = append(selected, cand)
		}
	}
	return selected
}

// tokenOverlap computes the Jaccard overlap of the two texts' token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(f, ".,;:!?\"'()[]")] = true
	}
	delete(set, "")
	return set
}

// --- Context expansion ---

// expand pulls in parents, close siblings, and temporally adjacent chunks
// for the selected items, bounded by ExpansionMaxCount. Expansion scores
// derive from the seed so ordering stays deterministic.
func (r *Retriever) expand(ctx context.Context, items []ContextItem, cfg RetrieveConfig) ([]ContextItem, error) {
	if len(items) == 0 || !(cfg.ExpandParents || cfg.ExpandSiblings || cfg.ExpandTemporal) {
		return nil, nil
	}

	have := make(map[string]bool, len(items))
	for _, it := range items {
		have[it.Chunk.ID] = true
	}

	budget := cfg.ExpansionMaxCount
	var out []ContextItem
	appendItem := func(c Chunk, score float32, reason ExpansionReason) {
		if budget <= 0 || have[c.ID] {
			return
		}
		have[c.ID] = true
		out = append(out, ContextItem{Chunk: c, Score: score, Expansion: reason})
		budget--
	}

	if cfg.ExpandParents {
		var parentIDs []string
		seen := make(map[string]bool)
		for _, it := range items {
			pid := it.Chunk.ParentID
			if pid != "" && !seen[pid] && !have[pid] {
				seen[pid] = true
				parentIDs = append(parentIDs, pid)
			}
		}
		if len(parentIDs) > 0 {
			parents, err := r.store.GetChunksByIDs(ctx, parentIDs)
			if err != nil {
				return nil, &ErrStoreUnavailable{Op: "parent expansion", Err: err}
			}
			byID := chunksByID(parents)
			for _, it := range items {
				if p, ok := byID[it.Chunk.ParentID]; ok {
					appendItem(p, it.Score*0.95, ExpansionParent)
				}
			}
		}
	}

	if cfg.ExpandSiblings && budget > 0 {
		var sibIDs []string
		seen := make(map[string]bool)
		for _, it := range items {
			for _, sid := range it.Chunk.SiblingIDs {
				if !seen[sid] && !have[sid] {
					seen[sid] = true
					sibIDs = append(sibIDs, sid)
				}
			}
		}
		if len(sibIDs) > 0 {
			sibs, err := r.store.GetChunksByIDs(ctx, sibIDs)
			if err != nil {
				return nil, &ErrStoreUnavailable{Op: "sibling expansion", Err: err}
			}
			byID := chunksByID(sibs)
			for _, it := range items {
				for _, sid := range it.Chunk.SiblingIDs {
					s, ok := byID[sid]
					if !ok {
						continue
					}
					if tokenOverlap(it.Chunk.Content, s.Content) >= cfg.SimilarityThreshold {
						appendItem(s, it.Score*0.9, ExpansionSibling)
					}
				}
			}
		}
	}

	if cfg.ExpandTemporal && budget > 0 {
		bySource := make(map[string][]Chunk)
		for _, it := range items {
			if budget <= 0 {
				break
			}
			src := it.Chunk.SourceID
			chunks, ok := bySource[src]
			if !ok {
				var err error
				chunks, err = r.store.GetChunksBySource(ctx, src)
				if err != nil {
					return nil, &ErrStoreUnavailable{Op: "temporal expansion", Err: err}
				}
				bySource[src] = chunks
			}
			for _, c := range chunks {
				if c.Scale == it.Chunk.Scale && absInt(c.SequenceOrder-it.Chunk.SequenceOrder) == 1 {
					appendItem(c, it.Score*0.85, ExpansionTemporal)
				}
			}
		}
	}

	return out, nil
}

func chunksByID(chunks []Chunk) map[string]Chunk {
	m := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		m[c.ID] = c
	}
	return m
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// --- Lost-in-the-middle mitigation ---

// interleaveByAttention reorders a score-descending sequence so the best
// items sit at the first and last positions, the next best one step in from
// each end, and the weakest land in the middle, where a consuming model pays
// the least attention.
func interleaveByAttention(items []ContextItem) []ContextItem {
	n := len(items)
	if n <= 2 {
		return items
	}
	out := make([]ContextItem, n)
	front, back := 0, n-1
	for i, it := range items {
		if i%2 == 0 {
			out[front] = it
			front++
		} else {
			out[back] = it
			back--
		}
	}
	return out
}

// sortScored orders by score descending, chunk ID ascending for ties.
func sortScored(s []ScoredChunk) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].ID < s[j].ID
	})
}

func sortItems(s []ContextItem) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Chunk.ID < s[j].Chunk.ID
	})
}
