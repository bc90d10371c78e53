//go:build !cgo

package encoder

import "context"

// ONNXConfig configures an ONNXModel.
type ONNXConfig struct {
	ModelPath      string
	LibraryPath    string
	MaxLength      int
	HiddenSize     int
	IntraOpThreads int
}

// ONNXModel is a stub for non-CGO builds.
type ONNXModel struct{}

// NewONNXModel returns ErrNotAvailable when CGO is not available.
func NewONNXModel(_ ONNXConfig) (*ONNXModel, error) {
	return nil, ErrNotAvailable
}

// Forward returns ErrNotAvailable when CGO is not available.
func (m *ONNXModel) Forward(_ context.Context, _ Input) (HiddenStates, error) {
	return HiddenStates{}, ErrNotAvailable
}

// MaxLength returns 0 when CGO is not available.
func (m *ONNXModel) MaxLength() int { return 0 }

// HiddenSize returns 0 when CGO is not available.
func (m *ONNXModel) HiddenSize() int { return 0 }

// Close is a no-op when CGO is not available.
func (m *ONNXModel) Close() error { return nil }
