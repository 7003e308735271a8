package embedding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache stores sentence embeddings keyed by model and text.
type Cache interface {
	Get(ctx context.Context, model, text string) ([]float32, bool, error)
	Put(ctx context.Context, model, text string, vec []float32) error
}

// Options describes the assets a Pipeline is built from.
type Options struct {
	Variant          Variant
	ModelPath        string
	TokenizerBackend TokenizerBackend
	TokenizerPath    string
	Runtime          RuntimeOptions
}

// PassageScore is the similarity of one passage to the query.
type PassageScore struct {
	Index   int
	Passage string
	Score   float32
	// Err is set when this passage could not be scored; Score is then 0.
	Err error
}

// Pipeline computes E5 similarity scores.
// Calls are serialized; the model and tokenizer are loaded once and reused.
type Pipeline struct {
	config    ModelConfig
	tokenizer Tokenizer
	encoder   Encoder
	pre       Preprocessor
	cache     Cache
	metrics   *pipelineMetrics

	mu     sync.Mutex
	closed bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithCache enables the embedding cache for Embed.
func WithCache(c Cache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// New assembles a pipeline from an already loaded tokenizer and encoder.
func New(cfg ModelConfig, tk Tokenizer, enc Encoder, opts ...Option) *Pipeline {
	p := &Pipeline{
		config:    cfg,
		tokenizer: tk,
		encoder:   enc,
		pre:       NewPreprocessor(tk.IDOffset(), cfg),
		metrics:   newPipelineMetrics(cfg.Variant),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPipeline loads the tokenizer and ONNX model described by o.
// Any failure here is a startup failure; nothing is retried.
func NewPipeline(o Options, opts ...Option) (*Pipeline, error) {
	cfg, err := ConfigFor(o.Variant)
	if err != nil {
		return nil, err
	}

	tk, err := LoadTokenizer(o.TokenizerBackend, o.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	enc, err := NewONNXEncoder(o.ModelPath, cfg, o.Runtime)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", filepath.Base(o.ModelPath), err)
	}

	log.Info().
		Str("variant", string(cfg.Variant)).
		Int("dimensions", cfg.Dimensions).
		Str("tokenizer", string(o.TokenizerBackend)).
		Msg("Similarity pipeline ready")

	return New(cfg, tk, enc, opts...), nil
}

// Model returns the active model configuration.
func (p *Pipeline) Model() ModelConfig {
	return p.config
}

// ComputeSimilarity returns the dot product of the normalized embeddings of text1 and text2.
// On failure the score is 0.
func (p *Pipeline) ComputeSimilarity(text1, text2 string) (float32, error) {
	start := time.Now()
	score, err := p.computeSimilarity(text1, text2)
	p.metrics.record(start, err)
	if err != nil {
		return 0, err
	}
	return score, nil
}

func (p *Pipeline) computeSimilarity(text1, text2 string) (float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	raw1, err := p.tokenizer.EncodeToIDs(text1)
	if err != nil {
		return 0, fmt.Errorf("tokenize text1: %w", err)
	}
	raw2, err := p.tokenizer.EncodeToIDs(text2)
	if err != nil {
		return 0, fmt.Errorf("tokenize text2: %w", err)
	}

	seq1, seq2 := p.pre.Pair(raw1, raw2)

	emb1, err := p.embedSequence(seq1)
	if err != nil {
		return 0, fmt.Errorf("embed text1: %w", err)
	}
	emb2, err := p.embedSequence(seq2)
	if err != nil {
		return 0, fmt.Errorf("embed text2: %w", err)
	}

	return Dot(emb1, emb2)
}

// Embed returns the normalized embedding of a single unpadded text.
func (p *Pipeline) Embed(ctx context.Context, text string) (Vector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}

	if p.cache != nil {
		cached, ok, err := p.cache.Get(ctx, p.config.Name, text)
		if err != nil {
			log.Warn().Err(err).Msg("Embedding cache lookup failed")
		} else if ok && len(cached) == p.config.Dimensions {
			return Vector(cached), nil
		}
	}

	raw, err := p.tokenizer.EncodeToIDs(text)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}

	vec, err := p.embedSequence(p.pre.Single(raw))
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, p.config.Name, text, vec); err != nil {
			log.Warn().Err(err).Msg("Embedding cache store failed")
		}
	}
	return vec, nil
}

// embedSequence runs the model and pooling for one sequence. Must be called with lock held.
func (p *Pipeline) embedSequence(seq TokenSequence) (Vector, error) {
	tokens, err := p.encoder.Encode(seq)
	if err != nil {
		return nil, err
	}
	if tokens.Dim != p.config.Dimensions {
		return nil, fmt.Errorf("%w: model returned %d dims, expected %d",
			ErrDimensionMismatch, tokens.Dim, p.config.Dimensions)
	}
	return Pool(tokens, seq.AttentionMask)
}

// ScorePassages scores every passage against the query, in input order.
// An empty query or passage list is a no-op. A failing passage gets score 0 and its
// error attached; the remaining passages are still scored.
func (p *Pipeline) ScorePassages(query string, passages []string) []PassageScore {
	if query == "" || len(passages) == 0 {
		log.Warn().
			Bool("empty_query", query == "").
			Int("passages", len(passages)).
			Msg("Query or passages list is empty, no similarities to calculate")
		return nil
	}

	results := make([]PassageScore, 0, len(passages))
	for i, passage := range passages {
		score, err := p.ComputeSimilarity(query, passage)
		result := PassageScore{Index: i, Passage: passage, Score: score, Err: err}

		if err != nil {
			log.Error().
				Err(err).
				Bool("no_output", errors.Is(err, ErrNoOutput)).
				Int("index", i).
				Str("passage", passage).
				Msg("Failed to compute similarity")
		} else {
			log.Info().
				Str("query", query).
				Str("passage", passage).
				Float32("score", score).
				Msg("Similarity computed")
		}
		results = append(results, result)
	}
	return results
}

// RankPassages returns a copy of scores ordered by descending score.
// Failed passages sort last; ties keep input order.
func RankPassages(scores []PassageScore) []PassageScore {
	ranked := make([]PassageScore, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		if (ranked[i].Err == nil) != (ranked[j].Err == nil) {
			return ranked[i].Err == nil
		}
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Close releases the model. Further calls return ErrClosed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.encoder.Close()
}
