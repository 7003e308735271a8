package embedding

import (
	"fmt"
	"os"
	"strings"

	sentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// TokenizerBackend names a tokenizer implementation.
type TokenizerBackend string

const (
	// TokenizerSentencePiece reads a SentencePiece model file (sentencepiece.bpe.model).
	TokenizerSentencePiece TokenizerBackend = "sentencepiece"
	// TokenizerHuggingFace reads a Hugging Face tokenizer.json.
	TokenizerHuggingFace TokenizerBackend = "huggingface"
)

// DefaultTokenizerFile returns the conventional asset name for a backend.
func DefaultTokenizerFile(b TokenizerBackend) string {
	if b == TokenizerHuggingFace {
		return "tokenizer.json"
	}
	return "sentencepiece.bpe.model"
}

// ParseTokenizerBackend validates a backend name. Empty selects SentencePiece.
func ParseTokenizerBackend(s string) (TokenizerBackend, error) {
	switch TokenizerBackend(strings.ToLower(strings.TrimSpace(s))) {
	case "", TokenizerSentencePiece:
		return TokenizerSentencePiece, nil
	case TokenizerHuggingFace:
		return TokenizerHuggingFace, nil
	default:
		return "", fmt.Errorf("unknown tokenizer backend: %q", s)
	}
}

// Tokenizer converts text into raw subword ids.
type Tokenizer interface {
	// EncodeToIDs returns subword ids without BOS/EOS or any other special tokens.
	EncodeToIDs(text string) ([]int, error)

	// IDOffset is the shift that maps raw ids onto the model vocabulary.
	IDOffset() int
}

// LoadTokenizer opens the tokenizer asset for the given backend.
func LoadTokenizer(backend TokenizerBackend, path string) (Tokenizer, error) {
	switch backend {
	case TokenizerSentencePiece:
		return NewSentencePieceTokenizer(path)
	case TokenizerHuggingFace:
		return NewHFTokenizer(path)
	default:
		return nil, fmt.Errorf("unknown tokenizer backend: %q", backend)
	}
}

// SentencePieceTokenizer encodes with a raw SentencePiece model.
// SentencePiece piece ids sit one below the fairseq vocabulary E5 was trained on,
// so its offset is 1.
type SentencePieceTokenizer struct {
	proc *sentencepiece.Processor
}

var _ Tokenizer = (*SentencePieceTokenizer)(nil)

// NewSentencePieceTokenizer loads a SentencePiece model file.
func NewSentencePieceTokenizer(path string) (*SentencePieceTokenizer, error) {
	proc, err := sentencepiece.NewProcessorFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("load sentencepiece model %s: %w", path, err)
	}
	return &SentencePieceTokenizer{proc: proc}, nil
}

// EncodeToIDs implements Tokenizer.
func (t *SentencePieceTokenizer) EncodeToIDs(text string) ([]int, error) {
	tokens := t.proc.Encode(text)
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids, nil
}

// IDOffset implements Tokenizer.
func (t *SentencePieceTokenizer) IDOffset() int { return 1 }

// HFTokenizer encodes with a Hugging Face tokenizer.json.
// Its vocabulary already includes the fairseq special tokens, so no shift is needed.
type HFTokenizer struct {
	tk *tokenizer.Tokenizer
}

var _ Tokenizer = (*HFTokenizer)(nil)

// NewHFTokenizer loads a tokenizer.json file.
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tokenizer %s: %w", path, err)
	}
	defer f.Close()

	tk, err := pretrained.FromReader(f)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &HFTokenizer{tk: tk}, nil
}

// EncodeToIDs implements Tokenizer.
func (t *HFTokenizer) EncodeToIDs(text string) ([]int, error) {
	enc, err := t.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	return enc.Ids, nil
}

// IDOffset implements Tokenizer.
func (t *HFTokenizer) IDOffset() int { return 0 }
