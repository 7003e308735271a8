// Package similarity provides vector similarity utilities.
package similarity

import (
	"errors"
	"math"
)

// ErrLengthMismatch is returned when two vectors have different lengths.
var ErrLengthMismatch = errors.New("vector length mismatch")

// Dot returns the dot product of two equal-length vectors.
// Accumulation happens in float64.
func Dot(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}

	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum), nil
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity computes the cosine similarity between two float32 vectors.
// Returns a value in [-1, 1], or 0 when either vector is empty, zero, or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dotProduct += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
