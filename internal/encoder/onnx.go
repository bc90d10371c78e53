//go:build cgo

package encoder

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX input and output names used by BERT exports.
var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"last_hidden_state"}
)

// ONNXConfig configures an ONNXModel.
type ONNXConfig struct {
	ModelPath      string
	LibraryPath    string // ONNX Runtime shared library
	MaxLength      int
	HiddenSize     int
	IntraOpThreads int
}

// ONNXModel runs a BERT export through ONNX Runtime.
type ONNXModel struct {
	session   *ort.DynamicAdvancedSession
	maxLength int
	hidden    int
	release   func()
	closeOnce sync.Once
}

// NewONNXModel creates a session for cfg.ModelPath.
func NewONNXModel(cfg ONNXConfig) (*ONNXModel, error) {
	if cfg.MaxLength <= 0 || cfg.HiddenSize <= 0 {
		return nil, fmt.Errorf("%w: max length %d, hidden size %d", ErrInvalidConfig, cfg.MaxLength, cfg.HiddenSize)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model file: %v", ErrInvalidConfig, err)
	}

	release, err := acquireEnvironment(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		release()
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer opts.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			release()
			return nil, fmt.Errorf("setting intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, onnxInputNames, onnxOutputNames, opts)
	if err != nil {
		release()
		return nil, fmt.Errorf("creating ONNX session for %s: %w", cfg.ModelPath, err)
	}

	return &ONNXModel{
		session:   session,
		maxLength: cfg.MaxLength,
		hidden:    cfg.HiddenSize,
		release:   release,
	}, nil
}

// Forward runs in through the model.
func (m *ONNXModel) Forward(ctx context.Context, in Input) (HiddenStates, error) {
	if err := ctx.Err(); err != nil {
		return HiddenStates{}, err
	}
	if err := validateInput(in, m.maxLength); err != nil {
		return HiddenStates{}, err
	}

	n := int64(in.Len())
	shape := ort.NewShape(1, n)

	mask := make([]int64, n)
	for i := range mask {
		mask[i] = 1
	}

	ids, err := ort.NewTensor(shape, in.IDs)
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: input_ids tensor: %v", ErrInference, err)
	}
	defer ids.Destroy()

	attn, err := ort.NewTensor(shape, mask)
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: attention_mask tensor: %v", ErrInference, err)
	}
	defer attn.Destroy()

	types, err := ort.NewTensor(shape, in.TypeIDs)
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: token_type_ids tensor: %v", ErrInference, err)
	}
	defer types.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, n, int64(m.hidden)))
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: output tensor: %v", ErrInference, err)
	}
	defer out.Destroy()

	if err := m.session.Run(
		[]ort.ArbitraryTensor{ids, attn, types},
		[]ort.ArbitraryTensor{out},
	); err != nil {
		return HiddenStates{}, fmt.Errorf("%w: %v", ErrInference, err)
	}

	// Output memory is owned by the tensor and freed on Destroy.
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())

	return HiddenStates{Data: data, SeqLen: int(n), Hidden: m.hidden}, nil
}

// MaxLength returns the longest accepted sequence.
func (m *ONNXModel) MaxLength() int { return m.maxLength }

// HiddenSize returns the hidden state width.
func (m *ONNXModel) HiddenSize() int { return m.hidden }

// Close destroys the session and releases the runtime environment.
func (m *ONNXModel) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.session.Destroy()
		m.release()
	})
	return err
}

var (
	envMu    sync.Mutex
	envRefs  int
	envOwned bool
)

// acquireEnvironment initializes the process-wide ONNX Runtime environment
// on first use. The returned func drops the reference; the environment is
// destroyed with the last one if this package created it.
func acquireEnvironment(libraryPath string) (func(), error) {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
		}
		envOwned = true
	}
	envRefs++

	var once sync.Once
	return func() {
		once.Do(func() {
			envMu.Lock()
			defer envMu.Unlock()
			envRefs--
			if envRefs == 0 && envOwned {
				_ = ort.DestroyEnvironment()
				envOwned = false
			}
		})
	}, nil
}
