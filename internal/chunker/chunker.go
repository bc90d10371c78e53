// Package chunker splits token sequences into fixed-capacity windows.
//
// Documents longer than the encoder's input limit are split rather than
// truncated, so every token contributes to the document score. Windows are
// contiguous, non-overlapping and cover the input exactly once.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a non-positive capacity or an empty sequence.
var ErrInvalidInput = errors.New("invalid chunking input")

// Split partitions tokens left-to-right into windows of at most capacity
// tokens. The last window may be shorter. The returned windows alias the
// input slice; callers must not mutate them.
func Split[T any](tokens []T, capacity int) ([][]T, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0, got %d", ErrInvalidInput, capacity)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: token sequence is empty", ErrInvalidInput)
	}

	chunks := make([][]T, 0, Count(len(tokens), capacity))
	for start := 0; start < len(tokens); start += capacity {
		end := min(start+capacity, len(tokens))
		// Full slice expression caps each window so an append by the
		// caller cannot overwrite the next one.
		chunks = append(chunks, tokens[start:end:end])
	}
	return chunks, nil
}

// Count returns the number of windows Split produces for n tokens.
func Count(n, capacity int) int {
	if n <= 0 || capacity <= 0 {
		return 0
	}
	return (n + capacity - 1) / capacity
}
