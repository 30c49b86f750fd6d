package corpus

import (
	"fmt"
	"math"
)

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or zero norms yield 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// ValidateVector checks that a provider-returned vector is usable: correct
// dimensionality, no NaN or Inf components, non-zero norm. wantDims <= 0
// skips the dimensionality check.
func ValidateVector(vec []float32, wantDims int) error {
	if len(vec) == 0 {
		return &ErrValidation{Field: "vector", Message: "empty"}
	}
	if wantDims > 0 && len(vec) != wantDims {
		return &ErrValidation{Field: "vector", Message: fmt.Sprintf("dimension %d, want %d", len(vec), wantDims)}
	}
	var norm float64
	for _, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &ErrValidation{Field: "vector", Message: "contains NaN or Inf component"}
		}
		norm += f * f
	}
	if norm == 0 {
		return &ErrValidation{Field: "vector", Message: "zero norm"}
	}
	return nil
}
