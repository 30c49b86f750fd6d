package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Grade buckets a validation score.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradePoor      Grade = "poor"
	GradeVeryPoor  Grade = "very poor"
)

// ViolationKind identifies a class of quality problem.
type ViolationKind string

const (
	ViolationEmptyChunk       ViolationKind = "empty_chunk"
	ViolationDuplicate        ViolationKind = "duplicate"
	ViolationNearDuplicate    ViolationKind = "near_duplicate"
	ViolationMissingEmbedding ViolationKind = "missing_embedding"
	ViolationInvalidEmbedding ViolationKind = "invalid_embedding"
	ViolationScoreRange       ViolationKind = "score_range"
	ViolationRelation         ViolationKind = "relation"
)

// QualityViolation is one itemized finding with a remediation hint. It is
// reported, never enforced: validation does not mutate data and by itself
// never blocks ingestion.
type QualityViolation struct {
	ChunkID     string        `json:"chunk_id"`
	Kind        ViolationKind `json:"kind"`
	Detail      string        `json:"detail"`
	Remediation string        `json:"remediation"`
}

func (v QualityViolation) String() string {
	return fmt.Sprintf("%s [%s]: %s (%s)", v.ChunkID, v.Kind, v.Detail, v.Remediation)
}

// ValidationReport grades the chunk and embedding quality of one source.
type ValidationReport struct {
	SourceID      string             `json:"source_id"`
	ChunksChecked int                `json:"chunks_checked"`
	Violations    []QualityViolation `json:"violations,omitempty"`
	Score         float64            `json:"score"`
	Grade         Grade              `json:"grade"`
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithExpectedEmbeddings sets the embedding views every chunk must carry
// (default: content only).
func WithExpectedEmbeddings(types ...EmbeddingType) ValidatorOption {
	return func(v *Validator) { v.expected = types }
}

// WithEmbeddingDimensions sets the expected vector size (default: 0, skip).
func WithEmbeddingDimensions(dims int) ValidatorOption {
	return func(v *Validator) { v.dims = dims }
}

// WithNearDuplicateThreshold sets the token-overlap ratio above which two
// distinct chunks count as near duplicates (default 0.92).
func WithNearDuplicateThreshold(t float64) ValidatorOption {
	return func(v *Validator) { v.nearDupThreshold = t }
}

// WithMinChunkTokens sets the near-empty floor (default 3 tokens).
func WithMinChunkTokens(n int) ValidatorOption {
	return func(v *Validator) { v.minTokens = n }
}

// WithValidatorLogger sets a structured logger.
func WithValidatorLogger(l *slog.Logger) ValidatorOption {
	return func(v *Validator) { v.logger = l }
}

// Validator audits chunk and embedding quality across a source or the whole
// corpus and flags issues for re-ingestion. It only reads.
type Validator struct {
	store            VectorStore
	expected         []EmbeddingType
	dims             int
	nearDupThreshold float64
	minTokens        int
	logger           *slog.Logger
}

// NewValidator creates a Validator over a store.
func NewValidator(store VectorStore, opts ...ValidatorOption) *Validator {
	v := &Validator{
		store:            store,
		expected:         []EmbeddingType{EmbeddingContent},
		nearDupThreshold: 0.92,
		minTokens:        3,
		logger:           nopLogger,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// ValidateSource audits all chunks of one source.
func (v *Validator) ValidateSource(ctx context.Context, sourceID string) (ValidationReport, error) {
	chunks, err := v.store.GetChunksBySource(ctx, sourceID)
	if err != nil {
		return ValidationReport{}, &ErrStoreUnavailable{Op: "validate source", Err: err}
	}
	report := v.audit(sourceID, chunks)
	v.logger.Debug("validation complete",
		"source_id", sourceID,
		"chunks", report.ChunksChecked,
		"violations", len(report.Violations),
		"grade", string(report.Grade))
	return report, nil
}

// ValidateAll audits every source in the corpus, one report per source,
// ordered by source ID.
func (v *Validator) ValidateAll(ctx context.Context) ([]ValidationReport, error) {
	sources, err := v.store.ListSources(ctx)
	if err != nil {
		return nil, &ErrStoreUnavailable{Op: "validate all", Err: err}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })

	reports := make([]ValidationReport, 0, len(sources))
	for _, src := range sources {
		r, err := v.ValidateSource(ctx, src.ID)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (v *Validator) audit(sourceID string, chunks []Chunk) ValidationReport {
	var violations []QualityViolation

	// Duplicates are per scale: a parent legitimately carries the same
	// content as its only child (a headingless source yields a section
	// equal to the document).
	byHash := make(map[string]string) // scale+content hash -> first chunk ID
	for i := range chunks {
		c := &chunks[i]

		if strings.TrimSpace(c.Content) == "" || c.TokenCount < v.minTokens {
			violations = append(violations, QualityViolation{
				ChunkID:     c.ID,
				Kind:        ViolationEmptyChunk,
				Detail:      fmt.Sprintf("%d tokens", c.TokenCount),
				Remediation: "re-chunk source with a larger minTokens",
			})
		}

		hashKey := string(c.Scale) + "\x00" + c.ContentHash
		if first, ok := byHash[hashKey]; ok {
			violations = append(violations, QualityViolation{
				ChunkID:     c.ID,
				Kind:        ViolationDuplicate,
				Detail:      "exact hash match with " + first,
				Remediation: "re-chunk source; identical spans emitted twice",
			})
		} else {
			byHash[hashKey] = c.ID
		}

		for _, t := range v.expected {
			vec, ok := c.Embeddings[t]
			if !ok || len(vec) == 0 {
				violations = append(violations, QualityViolation{
					ChunkID:     c.ID,
					Kind:        ViolationMissingEmbedding,
					Detail:      "missing " + string(t) + " embedding",
					Remediation: "re-embed chunk",
				})
				continue
			}
			if err := ValidateVector(vec, v.dims); err != nil {
				violations = append(violations, QualityViolation{
					ChunkID:     c.ID,
					Kind:        ViolationInvalidEmbedding,
					Detail:      string(t) + ": " + err.Error(),
					Remediation: "re-embed chunk",
				})
			}
		}

		if c.QualityScore < 0 || c.QualityScore > 1 {
			violations = append(violations, QualityViolation{
				ChunkID:     c.ID,
				Kind:        ViolationScoreRange,
				Detail:      fmt.Sprintf("qualityScore %.3f out of [0,1]", c.QualityScore),
				Remediation: "re-chunk source",
			})
		}
		if c.CoherenceScore < 0 || c.CoherenceScore > 1 {
			violations = append(violations, QualityViolation{
				ChunkID:     c.ID,
				Kind:        ViolationScoreRange,
				Detail:      fmt.Sprintf("coherenceScore %.3f out of [0,1]", c.CoherenceScore),
				Remediation: "re-chunk source",
			})
		}
	}

	violations = append(violations, v.nearDuplicates(chunks)...)
	violations = append(violations, ValidateForest(chunks)...)

	score := 1.0
	if len(chunks) > 0 {
		// Weighted violation rate: structural problems cost more than
		// near-duplicates.
		var weighted float64
		for _, viol := range violations {
			switch viol.Kind {
			case ViolationNearDuplicate:
				weighted += 0.5
			case ViolationRelation, ViolationScoreRange:
				weighted += 1.5
			default:
				weighted += 1.0
			}
		}
		score = 1.0 - weighted/float64(len(chunks))
		if score < 0 {
			score = 0
		}
	}

	return ValidationReport{
		SourceID:      sourceID,
		ChunksChecked: len(chunks),
		Violations:    violations,
		Score:         score,
		Grade:         gradeFor(score),
	}
}

// nearDuplicates flags distinct chunk pairs at the same scale whose token
// overlap exceeds the threshold. Pairwise; bounded corpora keep this cheap
// because it runs per source.
func (v *Validator) nearDuplicates(chunks []Chunk) []QualityViolation {
	var out []QualityViolation
	for i := 0; i < len(chunks); i++ {
		for j := i + 1; j < len(chunks); j++ {
			a, b := &chunks[i], &chunks[j]
			if a.Scale != b.Scale || a.ContentHash == b.ContentHash {
				continue // exact dups already reported
			}
			if tokenOverlap(a.Content, b.Content) > v.nearDupThreshold {
				out = append(out, QualityViolation{
					ChunkID:     b.ID,
					Kind:        ViolationNearDuplicate,
					Detail:      "near duplicate of " + a.ID,
					Remediation: "merge near-duplicates",
				})
			}
		}
	}
	return out
}

func gradeFor(score float64) Grade {
	switch {
	case score >= 0.95:
		return GradeExcellent
	case score >= 0.85:
		return GradeGood
	case score >= 0.70:
		return GradeFair
	case score >= 0.50:
		return GradePoor
	}
	return GradeVeryPoor
}

// ValidateForest checks the hierarchy invariants of a chunk set as a pure
// function over IDs: every parent/child/sibling reference resolves and is
// bidirectionally consistent, and parent links form no cycles.
func ValidateForest(chunks []Chunk) []QualityViolation {
	byID := make(map[string]*Chunk, len(chunks))
	for i := range chunks {
		byID[chunks[i].ID] = &chunks[i]
	}

	var out []QualityViolation
	report := func(id string, detail string) {
		out = append(out, QualityViolation{
			ChunkID:     id,
			Kind:        ViolationRelation,
			Detail:      detail,
			Remediation: "re-ingest source",
		})
	}

	for _, c := range chunks {
		if c.ParentID != "" {
			p, ok := byID[c.ParentID]
			if !ok {
				report(c.ID, "parent "+c.ParentID+" not found")
			} else if !containsID(p.ChildIDs, c.ID) {
				report(c.ID, "parent "+p.ID+" does not list it as child")
			}
		}
		for _, childID := range c.ChildIDs {
			child, ok := byID[childID]
			if !ok {
				report(c.ID, "child "+childID+" not found")
			} else if child.ParentID != c.ID {
				report(c.ID, "child "+childID+" does not reference back")
			}
		}
		for _, sibID := range c.SiblingIDs {
			sib, ok := byID[sibID]
			if !ok {
				report(c.ID, "sibling "+sibID+" not found")
			} else if !containsID(sib.SiblingIDs, c.ID) {
				report(c.ID, "sibling relation with "+sibID+" not symmetric")
			}
		}
	}

	// Cycle detection over parent links.
	for _, c := range chunks {
		slow, ok := byID[c.ParentID]
		seen := map[string]bool{c.ID: true}
		for ok {
			if seen[slow.ID] {
				report(c.ID, "cycle through "+slow.ID)
				break
			}
			seen[slow.ID] = true
			slow, ok = byID[slow.ParentID]
		}
	}

	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
