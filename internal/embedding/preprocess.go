package embedding

// Special token ids of the XLM-RoBERTa vocabulary used by E5.
const (
	BOSTokenID = 0
	PadTokenID = 1
	EOSTokenID = 2
)

// TokenSequence is a model-ready id sequence with its attention mask.
// Both slices always have the same length.
type TokenSequence struct {
	IDs           []int64
	AttentionMask []int64
}

// Len returns the padded sequence length.
func (s TokenSequence) Len() int {
	return len(s.IDs)
}

// RealLen returns the number of non-padding positions.
func (s TokenSequence) RealLen() int {
	n := 0
	for _, m := range s.AttentionMask {
		if m != 0 {
			n++
		}
	}
	return n
}

// TokenTypeIDs returns the all-zero segment ids for a single-segment input.
func (s TokenSequence) TokenTypeIDs() []int64 {
	return make([]int64, len(s.IDs))
}

// Preprocessor turns raw tokenizer ids into model input.
type Preprocessor struct {
	// IDOffset is added to every raw id before framing.
	IDOffset int
	// MaxLength caps the framed length, BOS and EOS included. Zero disables truncation.
	MaxLength int
}

// NewPreprocessor returns a preprocessor for the given tokenizer offset and model limits.
func NewPreprocessor(idOffset int, cfg ModelConfig) Preprocessor {
	return Preprocessor{IDOffset: idOffset, MaxLength: cfg.MaxSequenceLength}
}

// Single frames one sequence without padding.
func (p Preprocessor) Single(raw []int) TokenSequence {
	ids := p.frame(raw)
	return pad(ids, len(ids))
}

// Pair frames two sequences and right-pads the shorter one so both share a length.
func (p Preprocessor) Pair(raw1, raw2 []int) (TokenSequence, TokenSequence) {
	ids1 := p.frame(raw1)
	ids2 := p.frame(raw2)

	maxLen := len(ids1)
	if len(ids2) > maxLen {
		maxLen = len(ids2)
	}
	return pad(ids1, maxLen), pad(ids2, maxLen)
}

// frame shifts the raw ids and wraps them in BOS/EOS, truncating content if needed.
func (p Preprocessor) frame(raw []int) []int64 {
	content := raw
	if p.MaxLength >= 2 && len(content) > p.MaxLength-2 {
		content = content[:p.MaxLength-2]
	}

	ids := make([]int64, 0, len(content)+2)
	ids = append(ids, BOSTokenID)
	for _, id := range content {
		ids = append(ids, int64(id+p.IDOffset))
	}
	return append(ids, EOSTokenID)
}

// pad extends ids to length n with PAD and builds the matching mask.
func pad(ids []int64, n int) TokenSequence {
	seq := TokenSequence{
		IDs:           make([]int64, n),
		AttentionMask: make([]int64, n),
	}
	copy(seq.IDs, ids)
	for i := range seq.IDs {
		if i < len(ids) {
			seq.AttentionMask[i] = 1
		} else {
			seq.IDs[i] = PadTokenID
		}
	}
	return seq
}
