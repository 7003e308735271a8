package embedding

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// Encoder runs the transformer and returns per-token embeddings.
type Encoder interface {
	// Encode maps one token sequence to a [seq_len, dim] matrix.
	Encode(seq TokenSequence) (TokenEmbeddings, error)

	// Close releases model resources.
	Close() error
}

// RuntimeOptions configures the ONNX Runtime environment and session.
type RuntimeOptions struct {
	// LibraryPath points at libonnxruntime. Empty uses the platform default lookup.
	LibraryPath string
	// UseCUDA appends the CUDA execution provider.
	UseCUDA bool
	// IntraOpThreads limits intra-op parallelism. Zero keeps the runtime default.
	IntraOpThreads int
}

var (
	runtimeMu    sync.Mutex
	runtimeUsers int
)

// acquireRuntime initializes the shared ONNX environment on first use.
func acquireRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeUsers == 0 && !ort.IsInitialized() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize ONNX runtime: %w", err)
		}
	}
	runtimeUsers++
	return nil
}

// releaseRuntime destroys the shared environment when its last user goes away.
func releaseRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeUsers == 0 {
		return nil
	}
	runtimeUsers--
	if runtimeUsers > 0 || !ort.IsInitialized() {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("destroy environment: %w", err)
	}
	return nil
}

// ONNXEncoder runs an exported E5 model through ONNX Runtime.
type ONNXEncoder struct {
	session *ort.DynamicAdvancedSession
	config  ModelConfig
	mu      sync.Mutex
}

// Compile-time check that ONNXEncoder implements Encoder
var _ Encoder = (*ONNXEncoder)(nil)

// NewONNXEncoder loads the model at modelPath with the input signature of cfg.
func NewONNXEncoder(modelPath string, cfg ModelConfig, opts RuntimeOptions) (*ONNXEncoder, error) {
	if err := acquireRuntime(opts.LibraryPath); err != nil {
		return nil, err
	}

	session, err := newSession(modelPath, cfg, opts)
	if err != nil {
		_ = releaseRuntime()
		return nil, err
	}

	log.Info().
		Str("model", cfg.Name).
		Str("path", modelPath).
		Strs("inputs", cfg.InputNames()).
		Bool("cuda", opts.UseCUDA).
		Msg("ONNX model loaded")

	return &ONNXEncoder{session: session, config: cfg}, nil
}

func newSession(modelPath string, cfg ModelConfig, opts RuntimeOptions) (*ort.DynamicAdvancedSession, error) {
	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer sessionOpts.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := sessionOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	if opts.UseCUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return nil, fmt.Errorf("create CUDA provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := sessionOpts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return nil, fmt.Errorf("append CUDA provider: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath, cfg.InputNames(), cfg.OutputNames(), sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}
	return session, nil
}

// Encode implements Encoder.
func (e *ONNXEncoder) Encode(seq TokenSequence) (TokenEmbeddings, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return TokenEmbeddings{}, ErrClosed
	}

	seqLen := seq.Len()
	shape := ort.NewShape(1, int64(seqLen))

	inputIDs, err := ort.NewTensor(shape, seq.IDs)
	if err != nil {
		return TokenEmbeddings{}, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputIDs.Destroy()

	attentionMask, err := ort.NewTensor(shape, seq.AttentionMask)
	if err != nil {
		return TokenEmbeddings{}, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer attentionMask.Destroy()

	inputs := []ort.Value{inputIDs, attentionMask}
	if e.config.NeedsTokenTypeIDs {
		tokenTypeIDs, err := ort.NewTensor(shape, seq.TokenTypeIDs())
		if err != nil {
			return TokenEmbeddings{}, fmt.Errorf("create token_type_ids tensor: %w", err)
		}
		defer tokenTypeIDs.Destroy()
		inputs = append(inputs, tokenTypeIDs)
	}

	// A nil output is allocated by the runtime and owned by us afterwards.
	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return TokenEmbeddings{}, fmt.Errorf("run inference: %w", err)
	}
	if outputs[0] == nil {
		return TokenEmbeddings{}, ErrNoOutput
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return TokenEmbeddings{}, fmt.Errorf("%w: unexpected output type %T", ErrNoOutput, outputs[0])
	}

	dims := hidden.GetShape()
	if len(dims) != 3 || dims[0] != 1 || int(dims[1]) != seqLen || int(dims[2]) != e.config.Dimensions {
		return TokenEmbeddings{}, fmt.Errorf("%w: output shape %v, expected [1 %d %d]",
			ErrDimensionMismatch, dims, seqLen, e.config.Dimensions)
	}

	data := make([]float32, seqLen*e.config.Dimensions)
	copy(data, hidden.GetData())

	return TokenEmbeddings{Data: data, SeqLen: seqLen, Dim: e.config.Dimensions}, nil
}

// Close releases the session and, if it was the last one, the runtime environment.
func (e *ONNXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}

	var errs []error
	if err := e.session.Destroy(); err != nil {
		errs = append(errs, fmt.Errorf("destroy session: %w", err))
	}
	e.session = nil

	if err := releaseRuntime(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
