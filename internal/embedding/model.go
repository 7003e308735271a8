// Package embedding provides E5 text embeddings and similarity scoring on top of ONNX Runtime.
package embedding

import (
	"fmt"
	"strings"
)

// Variant selects one member of the multilingual E5 model family.
type Variant string

const (
	// VariantSmall is multilingual-e5-small (384 dims, takes token_type_ids).
	VariantSmall Variant = "small"
	// VariantBase is multilingual-e5-base (768 dims).
	VariantBase Variant = "base"
	// VariantLarge is multilingual-e5-large (1024 dims).
	VariantLarge Variant = "large"
)

// DefaultVariant is used when no variant is configured.
const DefaultVariant = VariantSmall

// MaxSequenceLength is the longest token sequence the E5 models accept.
const MaxSequenceLength = 512

// Tensor names shared by every exported E5 model.
const (
	inputIDsName      = "input_ids"
	attentionMaskName = "attention_mask"
	tokenTypeIDsName  = "token_type_ids"
	hiddenStateName   = "last_hidden_state"
)

// ModelConfig describes a variant's input signature and output size.
// It is fixed once a variant is selected.
type ModelConfig struct {
	Variant           Variant `json:"variant"`
	Name              string  `json:"name"`
	Dimensions        int     `json:"dimensions"`
	NeedsTokenTypeIDs bool    `json:"needs_token_type_ids"`
	// AssetName is the default model file name inside the assets directory.
	AssetName         string `json:"asset_name"`
	MaxSequenceLength int    `json:"max_sequence_length"`
}

// InputNames returns the ONNX input tensor names in binding order.
func (c ModelConfig) InputNames() []string {
	if c.NeedsTokenTypeIDs {
		return []string{inputIDsName, attentionMaskName, tokenTypeIDsName}
	}
	return []string{inputIDsName, attentionMaskName}
}

// OutputNames returns the ONNX output tensor names.
func (c ModelConfig) OutputNames() []string {
	return []string{hiddenStateName}
}

var variants = []ModelConfig{
	{
		Variant:           VariantSmall,
		Name:              "multilingual-e5-small",
		Dimensions:        384,
		NeedsTokenTypeIDs: true,
		AssetName:         "e5-small.onnx",
		MaxSequenceLength: MaxSequenceLength,
	},
	{
		Variant:           VariantBase,
		Name:              "multilingual-e5-base",
		Dimensions:        768,
		AssetName:         "e5-base.onnx",
		MaxSequenceLength: MaxSequenceLength,
	},
	{
		Variant:           VariantLarge,
		Name:              "multilingual-e5-large",
		Dimensions:        1024,
		AssetName:         "e5-large.onnx",
		MaxSequenceLength: MaxSequenceLength,
	},
}

// ParseVariant accepts "small", "e5-small", "e5_small" and the like, case-insensitively.
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "e5-")
	name = strings.TrimPrefix(name, "e5_")
	for _, c := range variants {
		if string(c.Variant) == name {
			return c.Variant, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedVariant, s)
}

// ConfigFor returns the model configuration of a variant.
func ConfigFor(v Variant) (ModelConfig, error) {
	for _, c := range variants {
		if c.Variant == v {
			return c, nil
		}
	}
	return ModelConfig{}, fmt.Errorf("%w: %q", ErrUnsupportedVariant, v)
}

// Variants lists every supported variant, smallest first.
func Variants() []ModelConfig {
	result := make([]ModelConfig, len(variants))
	copy(result, variants)
	return result
}
