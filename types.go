package corpus

// --- Domain types ---

// SourceStatus tracks a source document through the ingestion pipeline.
type SourceStatus string

const (
	StatusPending    SourceStatus = "pending"
	StatusProcessing SourceStatus = "processing"
	StatusCompleted  SourceStatus = "completed"
	StatusFailed     SourceStatus = "failed"
)

// Source is a document registered with the knowledge base. Once completed it
// is immutable except for supersession by a new version: re-ingesting changed
// content replaces the whole chunk set and increments Version.
type Source struct {
	ID         string       `json:"id"`
	Hash       string       `json:"hash"`
	Version    int          `json:"version"`
	Status     SourceStatus `json:"status"`
	Filename   string       `json:"filename"`
	TotalPages int          `json:"total_pages"`
	CreatedAt  int64        `json:"created_at"`
	UpdatedAt  int64        `json:"updated_at"`
}

// SourceInput is what a loader adapter hands to the pipeline: raw text plus
// page/structure metadata for one source document.
type SourceInput struct {
	SourceID string         `json:"source_id"`
	Text     string         `json:"text"`
	Metadata SourceMetadata `json:"metadata"`
}

// SourceMetadata carries loader-supplied structure hints. All fields are
// optional; the chunker defaults anything malformed or missing.
type SourceMetadata struct {
	Filename        string   `json:"filename"`
	TotalPages      int      `json:"total_pages"`
	StructuralHints []string `json:"structural_hints"`
}

// ScaleType is the granularity level a chunk was produced at.
type ScaleType string

const (
	ScaleDocument  ScaleType = "document"
	ScaleSection   ScaleType = "section"
	ScaleParagraph ScaleType = "paragraph"
	ScaleSentence  ScaleType = "sentence"
)

// Level returns the hierarchy level a scale occupies (document = 0).
func (s ScaleType) Level() int {
	switch s {
	case ScaleDocument:
		return 0
	case ScaleSection:
		return 1
	case ScaleParagraph:
		return 2
	case ScaleSentence:
		return 3
	}
	return -1
}

// EmbeddingType is one of the distinct vector views of a chunk.
type EmbeddingType string

const (
	EmbeddingContent      EmbeddingType = "content"
	EmbeddingContextual   EmbeddingType = "contextual"
	EmbeddingHierarchical EmbeddingType = "hierarchical"
	EmbeddingSemantic     EmbeddingType = "semantic"
)

// AllEmbeddingTypes returns the four embedding views in canonical order.
func AllEmbeddingTypes() []EmbeddingType {
	return []EmbeddingType{EmbeddingContent, EmbeddingContextual, EmbeddingHierarchical, EmbeddingSemantic}
}

// BoundaryMarker records a detected semantic boundary inside a chunk's span.
type BoundaryMarker struct {
	Offset     int     `json:"offset"` // byte offset into the source text
	Confidence float64 `json:"confidence"`
}

// Chunk is the atomic retrieval unit: a bounded span of source text with
// quality metadata and up to four embedding views.
//
// Hierarchy is held as ID sets rather than object references so the forest
// stays an arena indexed by stable IDs and validation is a pure function
// over IDs. ParentID is a weak reference; ChildIDs is ordered; SiblingIDs is
// symmetric (if A lists B, B lists A).
type Chunk struct {
	ID             string                      `json:"id"`
	SourceID       string                      `json:"source_id"`
	SequenceOrder  int                         `json:"sequence_order"`
	Scale          ScaleType                   `json:"scale"`
	HierarchyLevel int                         `json:"hierarchy_level"`
	ParentID       string                      `json:"parent_id,omitempty"`
	ChildIDs       []string                    `json:"child_ids,omitempty"`
	SiblingIDs     []string                    `json:"sibling_ids,omitempty"`
	Content        string                      `json:"content"`
	TokenCount     int                         `json:"token_count"`
	QualityScore   float64                     `json:"quality_score"`
	CoherenceScore float64                     `json:"coherence_score"`
	Boundaries     []BoundaryMarker            `json:"boundaries,omitempty"`
	Embeddings     map[EmbeddingType][]float32 `json:"-"`
	ContentHash    string                      `json:"content_hash"`
	CreatedAt      int64                       `json:"created_at"`
}

// HasEmbedding reports whether the chunk carries a vector for the given view.
// Absent means absent: a failed embedding is never zero-filled.
func (c *Chunk) HasEmbedding(t EmbeddingType) bool {
	return len(c.Embeddings[t]) > 0
}

// ScoredChunk pairs a chunk with a similarity or fusion score.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}

// --- Retrieval types ---

// ExpansionReason states why an item entered the context set.
type ExpansionReason string

const (
	ExpansionNone     ExpansionReason = ""         // ranked retrieval hit
	ExpansionParent   ExpansionReason = "parent"   // hierarchical expansion
	ExpansionSibling  ExpansionReason = "sibling"  // semantic expansion
	ExpansionTemporal ExpansionReason = "temporal" // adjacent in source order
)

// ContextItem is one entry of a retrieval result.
type ContextItem struct {
	Chunk     Chunk           `json:"chunk"`
	Score     float32         `json:"score"`
	Expansion ExpansionReason `json:"expansion,omitempty"`
}

// RetrievalResult is the ordered context set produced for one query. It is
// ephemeral: produced per query, never persisted.
type RetrievalResult struct {
	Query    string            `json:"query"`
	Strategy RetrievalStrategy `json:"strategy"`
	Items    []ContextItem     `json:"items"`
}

// --- Store filter predicates ---

// ChunkFilter narrows similarity and keyword searches. Zero values mean
// "no constraint".
type ChunkFilter struct {
	SourceID   string
	MinQuality float64
	MaxQuality float64
	After      int64 // created at or after (Unix seconds)
	Before     int64 // created strictly before (Unix seconds)
}
