package embedding

import (
	"fmt"

	"github.com/thebtf/e5sim/pkg/similarity"
)

const (
	// MaskEpsilon keeps the mean defined when the mask is all zeros.
	MaskEpsilon = 1e-9
	// MinNorm is the smallest norm used as a divisor during normalization.
	// A pooled zero vector therefore stays zero instead of turning into NaNs.
	MinNorm = 1e-12
)

// Vector is a unit-normalized sentence embedding.
type Vector []float32

// TokenEmbeddings is a seq_len x dim matrix of per-token embeddings, row-major.
type TokenEmbeddings struct {
	Data   []float32
	SeqLen int
	Dim    int
}

// Row returns the embedding of token i.
func (t TokenEmbeddings) Row(i int) []float32 {
	return t.Data[i*t.Dim : (i+1)*t.Dim]
}

// MeanPool averages token embeddings over the positions where mask is non-zero.
// Input shape: [seq_len, dim], mask: [seq_len]. Output shape: [dim].
func MeanPool(emb TokenEmbeddings, mask []int64) ([]float32, error) {
	if len(mask) != emb.SeqLen {
		return nil, fmt.Errorf("%w: mask has %d positions, embeddings have %d",
			ErrDimensionMismatch, len(mask), emb.SeqLen)
	}
	if len(emb.Data) != emb.SeqLen*emb.Dim {
		return nil, fmt.Errorf("%w: %d values for shape [%d, %d]",
			ErrDimensionMismatch, len(emb.Data), emb.SeqLen, emb.Dim)
	}

	sum := make([]float64, emb.Dim)
	var count float64
	for s := 0; s < emb.SeqLen; s++ {
		m := float64(mask[s])
		count += m
		if m == 0 {
			continue
		}
		row := emb.Row(s)
		for h := range sum {
			sum[h] += float64(row[h]) * m
		}
	}

	pooled := make([]float32, emb.Dim)
	for h := range sum {
		pooled[h] = float32(sum[h] / (count + MaskEpsilon))
	}
	return pooled, nil
}

// Normalize scales v to unit L2 norm. The divisor is clamped to MinNorm.
func Normalize(v []float32) Vector {
	norm := similarity.Norm(v)
	if norm < MinNorm {
		norm = MinNorm
	}

	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Pool mean-pools and normalizes token embeddings into a sentence vector.
func Pool(emb TokenEmbeddings, mask []int64) (Vector, error) {
	pooled, err := MeanPool(emb, mask)
	if err != nil {
		return nil, err
	}
	return Normalize(pooled), nil
}

// Dot scores two unit vectors. No normalization is applied here.
func Dot(a, b Vector) (float32, error) {
	score, err := similarity.Dot(a, b)
	if err != nil {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return score, nil
}
