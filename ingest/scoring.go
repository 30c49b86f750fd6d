package ingest

import (
	"strings"

	corpus "github.com/solumlabs/corpus"
)

// Quality scoring weights. Length fit dominates because retrieval quality
// degrades fastest on fragments and run-ons; boundary confidence and
// structural signal refine within that.
const (
	weightLengthFit = 0.45
	weightBoundary  = 0.35
	weightStructure = 0.20
	idealFillRatio  = 0.75 // fraction of maxTokens where length fit peaks
)

// qualityScore rates a span in [0,1] from its length fit against the token
// budget, the confidence of the boundary that closed it, and structural
// signals in its content.
func (c *Chunker) qualityScore(s *span) float64 {
	length := c.lengthFit(s)
	boundary := s.boundaryConf
	if boundary == 0 {
		boundary = defaultBoundaryConfidence(s.scale)
	}
	structure := structureSignal(s.content)
	return clamp01(weightLengthFit*length + weightBoundary*boundary + weightStructure*structure)
}

// lengthFit peaks at idealFillRatio of the budget and falls off linearly on
// both sides. Scales above paragraph are not budget-bound and score on a
// floor-only basis.
func (c *Chunker) lengthFit(s *span) float64 {
	if s.scale == corpus.ScaleDocument || s.scale == corpus.ScaleSection {
		if s.tokens >= c.minTokens {
			return 1.0
		}
		return float64(s.tokens) / float64(c.minTokens)
	}
	if s.scale == corpus.ScaleSentence {
		// Sentences have no budget; penalize only degenerate ones.
		if s.tokens >= 3 {
			return 1.0
		}
		return float64(s.tokens) / 3.0
	}

	ideal := float64(c.maxTokens) * idealFillRatio
	t := float64(s.tokens)
	if t <= 0 {
		return 0
	}
	if t <= ideal {
		return t / ideal
	}
	// Over the ideal point: degrade toward the hard maximum.
	over := (t - ideal) / (float64(c.maxTokens) - ideal)
	return clamp01(1 - 0.5*over)
}

// defaultBoundaryConfidence applies to scales whose boundaries come from
// document structure rather than a detected split.
func defaultBoundaryConfidence(scale corpus.ScaleType) float64 {
	switch scale {
	case corpus.ScaleDocument:
		return 1.0
	case corpus.ScaleSection:
		return 0.9
	case corpus.ScaleSentence:
		return 0.8
	default:
		return 0.5
	}
}

// structureSignal rewards content that carries visible structure: headings,
// list markers, and multi-line flow all make a chunk easier to ground.
func structureSignal(content string) float64 {
	score := 0.4 // plain prose baseline
	lines := strings.Split(content, "\n")
	if len(lines) > 1 {
		score += 0.2
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			score += 0.3
		case strings.HasPrefix(trimmed, "- "),
			strings.HasPrefix(trimmed, "* "),
			strings.HasPrefix(trimmed, "1. "):
			score += 0.1
		}
		if score >= 1 {
			break
		}
	}
	return clamp01(score)
}
