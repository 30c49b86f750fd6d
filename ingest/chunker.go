// Package ingest turns raw document text into a stored, embedded chunk
// forest: hierarchical semantic chunking, multi-view embedding generation
// through a content-addressed cache, and a job-oriented orchestrator that
// runs the pipeline per source over a bounded worker pool.
package ingest

import (
	"context"
	"log/slog"
	"strings"

	corpus "github.com/solumlabs/corpus"
)

// Strategy selects the scoring function used to detect chunk boundaries
// between adjacent units.
type Strategy string

const (
	// StrategySemantic splits where adjacent-sentence similarity drops.
	StrategySemantic Strategy = "semantic"
	// StrategyParagraph splits at paragraph breaks.
	StrategyParagraph Strategy = "paragraph"
	// StrategySentence treats every sentence boundary as a split candidate.
	StrategySentence Strategy = "sentence"
	// StrategySection splits at headings.
	StrategySection Strategy = "section"
)

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithStrategy sets the boundary scoring strategy (default semantic).
func WithStrategy(s Strategy) ChunkerOption {
	return func(c *Chunker) { c.strategy = s }
}

// WithMaxTokens sets the maximum tokens per paragraph-scale chunk
// (default 512).
func WithMaxTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.maxTokens = n }
}

// WithMinTokens sets the floor below which a chunk is never emitted, except
// as the final remainder of a source (default 32).
func WithMinTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.minTokens = n }
}

// WithOverlapTokens sets how many trailing tokens of a chunk are carried
// into the next chunk's leading edge (default 48).
func WithOverlapTokens(n int) ChunkerOption {
	return func(c *Chunker) { c.overlapTokens = n }
}

// WithSimilarityThreshold sets the adjacent-unit similarity below which a
// semantic boundary is declared (default 0.25).
func WithSimilarityThreshold(t float64) ChunkerOption {
	return func(c *Chunker) { c.similarityThreshold = t }
}

// WithEmbed supplies an embedding function for the semantic strategy. When
// absent (or failing), similarity degrades to lexical token overlap.
func WithEmbed(fn corpus.EmbedFunc) ChunkerOption {
	return func(c *Chunker) { c.embed = fn }
}

// WithSentenceScale also emits sentence-scale leaf chunks under each
// paragraph chunk. Off by default: it multiplies chunk counts and most
// retrieval works off the paragraph scale.
func WithSentenceScale() ChunkerOption {
	return func(c *Chunker) { c.sentenceScale = true }
}

// WithChunkerLogger sets a structured logger for chunking events.
func WithChunkerLogger(l *slog.Logger) ChunkerOption {
	return func(c *Chunker) { c.logger = l }
}

// Chunker splits a document into a forest of chunks at multiple scales
// (document, section, paragraph, and optionally sentence), assigning quality
// and coherence scores and parent/child/sibling relations.
//
// Construction is strictly two-phase: every chunk ID for a document is
// generated before any relationship is wired. Wiring relations in the same
// pass that assigns IDs is a known bug pattern this type deliberately avoids.
type Chunker struct {
	strategy            Strategy
	maxTokens           int
	minTokens           int
	overlapTokens       int
	similarityThreshold float64
	embed               corpus.EmbedFunc
	sentenceScale       bool
	logger              *slog.Logger
}

// NewChunker creates a Chunker with the given options.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{
		strategy:            StrategySemantic,
		maxTokens:           512,
		minTokens:           32,
		overlapTokens:       48,
		similarityThreshold: 0.25,
		logger:              nopLogger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// span is a chunk under construction: content plus the unit range it covers.
// IDs are assigned in phase one; relations are wired in phase two.
type span struct {
	id           string
	scale        corpus.ScaleType
	seq          int
	content      string
	tokens       int
	coreStart    int // byte offset of the first non-overlap unit
	end          int
	boundaries   []corpus.BoundaryMarker
	boundaryConf float64
	coherence    float64
}

// Chunk splits a document's text into a chunk forest. An empty or
// whitespace-only document yields zero chunks and no error. Malformed
// metadata is defaulted with a warning; it never aborts ingestion.
func (c *Chunker) Chunk(ctx context.Context, in corpus.SourceInput) ([]corpus.Chunk, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil
	}
	c.sanitizeMetadata(in.Metadata)

	units := segmentUnits(in.Text)
	if len(units) == 0 {
		return nil, nil
	}

	sims := c.similarities(ctx, units)

	// Build spans coarse to fine: document, then sections, then paragraphs
	// within each section, then optionally sentences.
	var spans []*span

	docTokens := countTokens(text)
	doc := &span{
		scale:     corpus.ScaleDocument,
		content:   text,
		tokens:    docTokens,
		coreStart: units[0].start,
		end:       units[len(units)-1].end,
		coherence: meanSimilarity(sims, 0, len(units)),
	}
	spans = append(spans, doc)

	sections := c.splitSections(units)
	for i, sec := range sections {
		spans = append(spans, &span{
			scale:     corpus.ScaleSection,
			seq:       i,
			content:   joinUnits(in.Text, units[sec.lo:sec.hi]),
			tokens:    sumTokens(units[sec.lo:sec.hi]),
			coreStart: units[sec.lo].start,
			end:       units[sec.hi-1].end,
			coherence: meanSimilarity(sims, sec.lo, sec.hi),
		})
	}

	paraSeq := 0
	for _, sec := range sections {
		paras := c.groupUnits(units, sims, sec.lo, sec.hi)
		for _, p := range paras {
			p.seq = paraSeq
			paraSeq++
			spans = append(spans, p)
		}
	}

	if c.sentenceScale {
		for i := range units {
			u := units[i]
			spans = append(spans, &span{
				scale:     corpus.ScaleSentence,
				seq:       i,
				content:   u.text,
				tokens:    u.tokens,
				coreStart: u.start,
				end:       u.end,
				coherence: 1.0,
			})
		}
	}

	// Single chunk below the minimum: quality capped at the too-short
	// ceiling rather than dropped.
	tooShort := docTokens < c.minTokens

	// Phase one: every ID exists before any relation is wired.
	chunks := make([]corpus.Chunk, len(spans))
	now := corpus.NowUnix()
	for i, s := range spans {
		hash := corpus.HashContent(s.content)
		quality := c.qualityScore(s)
		if tooShort && quality > tooShortQualityCeiling {
			quality = tooShortQualityCeiling
		}
		chunks[i] = corpus.Chunk{
			ID:             corpus.ChunkID(in.SourceID, s.scale, s.seq, hash),
			SourceID:       in.SourceID,
			SequenceOrder:  s.seq,
			Scale:          s.scale,
			HierarchyLevel: s.scale.Level(),
			Content:        s.content,
			TokenCount:     s.tokens,
			QualityScore:   quality,
			CoherenceScore: clamp01(s.coherence),
			Boundaries:     s.boundaries,
			ContentHash:    hash,
			CreatedAt:      now,
		}
		s.id = chunks[i].ID
	}

	// Phase two: wire parent/child/sibling relations over assigned IDs.
	wireHierarchy(chunks, spans)

	c.logger.Debug("chunked source",
		"source_id", in.SourceID,
		"strategy", string(c.strategy),
		"units", len(units),
		"sections", len(sections),
		"chunks", len(chunks))

	return chunks, nil
}

// tooShortQualityCeiling caps the quality of a document too short to chunk
// properly.
const tooShortQualityCeiling = 0.5

// sanitizeMetadata warns about malformed loader metadata. Chunking must not
// abort ingestion over a bad filename or page count.
func (c *Chunker) sanitizeMetadata(meta corpus.SourceMetadata) {
	if meta.TotalPages < 0 {
		c.logger.Warn("metadata: negative total_pages ignored", "total_pages", meta.TotalPages)
	}
	if strings.ContainsRune(meta.Filename, '\x00') {
		c.logger.Warn("metadata: filename contains NUL")
	}
}

// similarities returns adjacent-unit similarity per the configured strategy;
// sims[i] relates units[i] and units[i+1].
func (c *Chunker) similarities(ctx context.Context, units []unit) []float64 {
	if len(units) < 2 {
		return nil
	}
	sims := make([]float64, len(units)-1)

	switch c.strategy {
	case StrategySentence:
		return sims // every boundary is a candidate
	case StrategyParagraph:
		for i := range sims {
			if !units[i+1].paraStart {
				sims[i] = 1
			}
		}
		return sims
	case StrategySection:
		for i := range sims {
			if !units[i+1].heading {
				sims[i] = 1
			}
		}
		return sims
	}

	// Semantic: embedding similarity when available, lexical otherwise.
	if c.embed != nil {
		texts := make([]string, len(units))
		for i, u := range units {
			texts[i] = u.text
		}
		if vecs, err := c.embed(ctx, texts); err == nil && len(vecs) == len(units) {
			for i := range sims {
				sims[i] = float64(corpus.CosineSimilarity(vecs[i], vecs[i+1]))
			}
			return sims
		}
		c.logger.Warn("semantic chunking: embed failed, degrading to lexical similarity")
	}
	for i := range sims {
		sims[i] = tokenOverlap(units[i].text, units[i+1].text)
	}
	return sims
}

type sectionRange struct{ lo, hi int } // unit index range, hi exclusive

// splitSections groups units into sections at heading boundaries, falling
// back to token-bounded grouping when the document has no headings.
func (c *Chunker) splitSections(units []unit) []sectionRange {
	var sections []sectionRange
	hasHeadings := false
	for _, u := range units {
		if u.heading {
			hasHeadings = true
			break
		}
	}

	if hasHeadings {
		lo := 0
		for i, u := range units {
			if u.heading && i > lo {
				sections = append(sections, sectionRange{lo, i})
				lo = i
			}
		}
		sections = append(sections, sectionRange{lo, len(units)})
		return sections
	}

	// No structural signal: bound sections by a multiple of the paragraph
	// budget so the middle scale still exists.
	budget := c.maxTokens * 4
	lo, tokens := 0, 0
	for i, u := range units {
		if tokens+u.tokens > budget && i > lo {
			sections = append(sections, sectionRange{lo, i})
			lo, tokens = i, 0
		}
		tokens += u.tokens
	}
	sections = append(sections, sectionRange{lo, len(units)})
	return sections
}

// groupUnits greedily packs units[lo:hi] into paragraph-scale spans: a chunk
// closes when maxTokens would be exceeded or similarity drops below the
// threshold, but never below minTokens unless it is the final remainder.
// The trailing overlapTokens of each chunk seed the next chunk's leading
// edge.
func (c *Chunker) groupUnits(units []unit, sims []float64, lo, hi int) []*span {
	var spans []*span
	var cur []unit
	curTokens := 0
	overlap := ""
	overlapTokens := 0

	flush := func(conf float64, boundaryOffset int) {
		if len(cur) == 0 {
			return
		}
		body := joinUnitSlice(cur)
		content := body
		tokens := curTokens
		if overlap != "" {
			content = overlap + " " + body
			tokens += overlapTokens
		}
		s := &span{
			scale:        corpus.ScaleParagraph,
			content:      content,
			tokens:       tokens,
			coreStart:    cur[0].start,
			end:          cur[len(cur)-1].end,
			boundaryConf: conf,
			coherence:    meanUnitSimilarity(units, sims, cur),
		}
		if boundaryOffset >= 0 {
			s.boundaries = append(s.boundaries, corpus.BoundaryMarker{Offset: boundaryOffset, Confidence: conf})
		}
		spans = append(spans, s)

		overlap = lastTokens(body, c.overlapTokens)
		overlapTokens = countTokens(overlap)
		cur = cur[:0:0]
		curTokens = 0
	}

	for i := lo; i < hi; i++ {
		u := units[i]

		if len(cur) > 0 && curTokens >= c.minTokens {
			// Close on budget: adding this unit would overflow maxTokens.
			if curTokens+u.tokens > c.maxTokens {
				flush(forcedBoundaryConfidence, u.start)
			} else if i > lo && sims[i-1] < c.similarityThreshold {
				// Close on semantic boundary.
				flush(1-sims[i-1], u.start)
			}
		}

		cur = append(cur, u)
		curTokens += u.tokens
	}
	flush(remainderBoundaryConfidence, -1)

	return spans
}

const (
	// forcedBoundaryConfidence applies when a chunk closes on the token
	// budget rather than a detected boundary.
	forcedBoundaryConfidence = 0.5
	// remainderBoundaryConfidence applies to the final remainder of a span.
	remainderBoundaryConfidence = 0.7
)

// wireHierarchy fills ParentID/ChildIDs/SiblingIDs over already-assigned
// IDs. Parents are found by span containment one scale up; siblings are the
// adjacent chunks under the same parent, wired symmetrically.
func wireHierarchy(chunks []corpus.Chunk, spans []*span) {
	parentScale := map[corpus.ScaleType]corpus.ScaleType{
		corpus.ScaleSection:   corpus.ScaleDocument,
		corpus.ScaleParagraph: corpus.ScaleSection,
		corpus.ScaleSentence:  corpus.ScaleParagraph,
	}

	// For each chunk, the parent is the span at the parent scale whose
	// range contains the chunk's core start.
	childLists := make(map[string][]int) // parent ID -> child indices in order
	for i, s := range spans {
		ps, ok := parentScale[s.scale]
		if !ok {
			continue
		}
		for _, p := range spans {
			if p.scale != ps {
				continue
			}
			if s.coreStart >= p.coreStart && s.coreStart < p.end {
				chunks[i].ParentID = p.id
				childLists[p.id] = append(childLists[p.id], i)
				break
			}
		}
	}

	byID := make(map[string]*corpus.Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
	}
	for parentID, childIdx := range childLists {
		parent := byID[parentID]
		for _, ci := range childIdx {
			parent.ChildIDs = append(parent.ChildIDs, chunks[ci].ID)
		}
		// Adjacent children are siblings, symmetric both ways.
		for k := 1; k < len(childIdx); k++ {
			prev, next := &chunks[childIdx[k-1]], &chunks[childIdx[k]]
			prev.SiblingIDs = append(prev.SiblingIDs, next.ID)
			next.SiblingIDs = append(next.SiblingIDs, prev.ID)
		}
	}
}

// --- helpers ---

func joinUnits(text string, units []unit) string {
	if len(units) == 0 {
		return ""
	}
	return strings.TrimSpace(text[units[0].start:units[len(units)-1].end])
}

func joinUnitSlice(units []unit) string {
	parts := make([]string, len(units))
	for i, u := range units {
		parts[i] = u.text
	}
	return strings.Join(parts, " ")
}

func sumTokens(units []unit) int {
	n := 0
	for _, u := range units {
		n += u.tokens
	}
	return n
}

// meanSimilarity averages sims over the unit range [lo, hi).
func meanSimilarity(sims []float64, lo, hi int) float64 {
	if hi-lo < 2 || len(sims) == 0 {
		return 1.0
	}
	total, n := 0.0, 0
	for i := lo; i < hi-1 && i < len(sims); i++ {
		total += sims[i]
		n++
	}
	if n == 0 {
		return 1.0
	}
	return total / float64(n)
}

// meanUnitSimilarity averages the similarities between consecutive members
// of cur, located by their positions in units.
func meanUnitSimilarity(units []unit, sims []float64, cur []unit) float64 {
	if len(cur) < 2 {
		return 1.0
	}
	// cur is a contiguous window of units; find its start index by offset.
	lo := 0
	for i := range units {
		if units[i].start == cur[0].start {
			lo = i
			break
		}
	}
	return meanSimilarity(sims, lo, lo+len(cur))
}

// tokenOverlap computes the Jaccard overlap of two texts' token sets.
func tokenOverlap(a, b string) float64 {
	setA := fieldSet(a)
	setB := fieldSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	return float64(inter) / float64(len(setA)+len(setB)-inter)
}

func fieldSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(f, ".,;:!?\"'()[]")] = true
	}
	delete(set, "")
	return set
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// nopLogger discards all output. Components that take an optional
// *slog.Logger fall back to it so call sites never nil-check.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
