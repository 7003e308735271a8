package embedding

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAssetPipeline loads the real model from E5SIM_ASSETS_DIR or skips the test.
func newAssetPipeline(t *testing.T) *Pipeline {
	t.Helper()

	dir := os.Getenv("E5SIM_ASSETS_DIR")
	if dir == "" {
		t.Skip("E5SIM_ASSETS_DIR not set, skipping ONNX integration test")
	}

	variant := VariantSmall
	if v := os.Getenv("E5SIM_MODEL"); v != "" {
		parsed, err := ParseVariant(v)
		require.NoError(t, err)
		variant = parsed
	}
	cfg, err := ConfigFor(variant)
	require.NoError(t, err)

	p, err := NewPipeline(Options{
		Variant:          variant,
		ModelPath:        filepath.Join(dir, cfg.AssetName),
		TokenizerBackend: TokenizerSentencePiece,
		TokenizerPath:    filepath.Join(dir, DefaultTokenizerFile(TokenizerSentencePiece)),
		Runtime:          RuntimeOptions{LibraryPath: os.Getenv("E5SIM_ORT_LIBRARY")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestONNX_RelevanceOrdering(t *testing.T) {
	p := newAssetPipeline(t)

	results := p.ScorePassages("query: what is a cat", []string{
		"passage: a cat is a small domesticated feline",
		"passage: rockets use liquid fuel",
	})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	assert.Greater(t, results[0].Score, results[1].Score)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, float32(-1.0001))
		assert.LessOrEqual(t, r.Score, float32(1.0001))
	}
}

func TestONNX_SelfSimilarity(t *testing.T) {
	p := newAssetPipeline(t)

	score, err := p.ComputeSimilarity("query: what is a cat", "query: what is a cat")
	require.NoError(t, err)

	assert.InDelta(t, 1.0, score, 1e-3)
}

func TestONNX_MissingModel(t *testing.T) {
	_, err := NewPipeline(Options{
		Variant:          VariantBase,
		ModelPath:        filepath.Join(t.TempDir(), "missing.onnx"),
		TokenizerBackend: TokenizerSentencePiece,
		TokenizerPath:    filepath.Join(t.TempDir(), "missing.model"),
	})
	assert.Error(t, err)
}
