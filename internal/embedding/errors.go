package embedding

import "errors"

var (
	// ErrUnsupportedVariant is returned for a model variant outside small/base/large.
	ErrUnsupportedVariant = errors.New("unsupported model variant")

	// ErrNoOutput is returned when the model run yields no usable output tensor.
	ErrNoOutput = errors.New("model returned no output tensor")

	// ErrDimensionMismatch is returned when vectors or tensors disagree on size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrClosed is returned by a pipeline after Close.
	ErrClosed = errors.New("pipeline is closed")
)
