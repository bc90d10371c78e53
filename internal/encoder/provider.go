package encoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"go.uber.org/zap"
)

// Config holds configuration for opening an Encoder.
type Config struct {
	// Provider is "onnx" (explicit paths) or "fastembed" (download bundle).
	Provider string

	ModelPath     string
	TokenizerPath string

	// MaxLength is the longest sequence the model accepts, special tokens
	// included. Defaults to 512.
	MaxLength int

	// HiddenSize is the width of last_hidden_state for the onnx provider.
	// The fastembed provider takes it from the model name.
	HiddenSize int

	FastEmbedModel string
	CacheDir       string
	ShowProgress   bool

	// ONNXLibrary overrides ONNX_PATH and the managed install.
	ONNXLibrary string

	CLSToken       string
	SEPToken       string
	IntraOpThreads int
}

// FromRunConfig maps the encoder section of a run configuration.
func FromRunConfig(c config.EncoderConfig) Config {
	return Config{
		Provider:       c.Provider,
		ModelPath:      c.ModelPath,
		TokenizerPath:  c.TokenizerPath,
		MaxLength:      c.MaxLength,
		HiddenSize:     c.HiddenSize,
		FastEmbedModel: c.FastEmbedModel,
		CacheDir:       c.CacheDir,
		ONNXLibrary:    c.ONNXLibrary,
		CLSToken:       c.CLSToken,
		SEPToken:       c.SEPToken,
		IntraOpThreads: c.IntraOpThreads,
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "fastembed"
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
	if c.CLSToken == "" {
		c.CLSToken = "[CLS]"
	}
	if c.SEPToken == "" {
		c.SEPToken = "[SEP]"
	}
}

// Encoder pairs a loaded model with its tokenizer.
type Encoder struct {
	Model     Model
	Tokenizer Tokenizer
	Name      string

	closers []io.Closer
}

// Close releases the model.
func (e *Encoder) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

// Open resolves the ONNX runtime, provisions the model bundle when the
// provider is fastembed, and loads model and tokenizer. Every failure here
// is a resource-initialization failure for the caller.
func Open(ctx context.Context, cfg Config, logger *logging.Logger) (*Encoder, error) {
	cfg.applyDefaults()
	logger = logger.Named("encoder")

	libPath, err := EnsureONNXRuntime(ctx, cfg.ONNXLibrary, logger)
	if err != nil {
		return nil, err
	}

	modelPath, tokPath, hidden := cfg.ModelPath, cfg.TokenizerPath, cfg.HiddenSize
	name := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))

	switch cfg.Provider {
	case "fastembed":
		bundle, err := FetchModel(ctx, cfg.FastEmbedModel, cfg.CacheDir, cfg.ShowProgress)
		if err != nil {
			return nil, err
		}
		modelPath, tokPath, hidden = bundle.Model, bundle.Tokenizer, bundle.Dimension
		name = cfg.FastEmbedModel
		logger.Info(ctx, "model bundle ready",
			zap.String("model", name),
			zap.String("dir", bundle.Dir),
			zap.Int("hidden_size", hidden),
		)
	case "onnx":
		if modelPath == "" || tokPath == "" {
			return nil, fmt.Errorf("%w: onnx provider needs model and tokenizer paths", ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}

	tok, err := NewWordPieceTokenizer(tokPath, cfg.CLSToken, cfg.SEPToken)
	if err != nil {
		return nil, err
	}

	model, err := NewONNXModel(ONNXConfig{
		ModelPath:      modelPath,
		LibraryPath:    libPath,
		MaxLength:      cfg.MaxLength,
		HiddenSize:     hidden,
		IntraOpThreads: cfg.IntraOpThreads,
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "encoder loaded",
		zap.String("model", name),
		zap.String("path", modelPath),
		zap.Int("max_length", cfg.MaxLength),
		zap.Int("hidden_size", hidden),
	)

	return &Encoder{
		Model:     Instrument(model, name, NewMetrics(logger.Underlying())),
		Tokenizer: tok,
		Name:      name,
		closers:   []io.Closer{model},
	}, nil
}
