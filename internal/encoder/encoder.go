package encoder

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates invalid encoder configuration.
	ErrInvalidConfig = errors.New("invalid encoder configuration")

	// ErrEmptyInput indicates an empty id sequence or text.
	ErrEmptyInput = errors.New("empty encoder input")

	// ErrInvalidInput indicates a malformed input sequence.
	ErrInvalidInput = errors.New("invalid encoder input")

	// ErrSequenceTooLong indicates an input longer than the model accepts.
	ErrSequenceTooLong = errors.New("sequence exceeds model max length")

	// ErrInference indicates a failed forward pass.
	ErrInference = errors.New("encoder inference failed")

	// ErrUnknownToken indicates a special token missing from the vocabulary.
	ErrUnknownToken = errors.New("token not in vocabulary")

	// ErrNotAvailable is returned by binaries built without cgo.
	ErrNotAvailable = errors.New("encoder: not available (binary built without CGO support)")
)

// Input is one model input sequence.
type Input struct {
	IDs     []int64
	TypeIDs []int64 // segment ids; same length as IDs
}

// Len returns the sequence length.
func (in Input) Len() int { return len(in.IDs) }

// HiddenStates holds last_hidden_state for one sequence, row-major
// [SeqLen][Hidden].
type HiddenStates struct {
	Data   []float32
	SeqLen int
	Hidden int
}

// Row returns the hidden vector at position i. The slice aliases Data.
func (h HiddenStates) Row(i int) []float32 {
	return h.Data[i*h.Hidden : (i+1)*h.Hidden : (i+1)*h.Hidden]
}

// Model runs a forward pass over a single input sequence.
type Model interface {
	Forward(ctx context.Context, in Input) (HiddenStates, error)

	// MaxLength returns the longest sequence Forward accepts.
	MaxLength() int

	// HiddenSize returns the width of each hidden state row.
	HiddenSize() int
}

// SpecialTokens holds the ids of the sequence delimiters.
type SpecialTokens struct {
	CLS int
	SEP int
}

// Tokenizer converts text to WordPiece ids without adding special tokens.
type Tokenizer interface {
	Tokenize(text string) ([]int, error)
	Special() SpecialTokens
}

// validateInput checks in against a model's limits.
func validateInput(in Input, maxLength int) error {
	if in.Len() == 0 {
		return ErrEmptyInput
	}
	if len(in.TypeIDs) != in.Len() {
		return fmt.Errorf("%w: %d type ids for %d ids", ErrInvalidInput, len(in.TypeIDs), in.Len())
	}
	if in.Len() > maxLength {
		return fmt.Errorf("%w: %d > %d", ErrSequenceTooLong, in.Len(), maxLength)
	}
	return nil
}
