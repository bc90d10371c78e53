package similarity

import (
	"errors"
	"fmt"
)

var (
	// ErrScoring matches every *ScoringError via errors.Is.
	ErrScoring = errors.New("scoring failed")

	// ErrBudgetExceeded indicates a query and chunk that do not fit the
	// encoder input together.
	ErrBudgetExceeded = errors.New("input exceeds encoder budget")

	// ErrEmptyText indicates text that tokenized to nothing.
	ErrEmptyText = errors.New("text has no tokens")
)

// ScoringError reports a failed (query, document) evaluation.
type ScoringError struct {
	QueryID string
	DocID   string
	Err     error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring document %s for query %s: %v", e.DocID, e.QueryID, e.Err)
}

func (e *ScoringError) Unwrap() error { return e.Err }

// Is reports whether target is ErrScoring.
func (e *ScoringError) Is(target error) bool { return target == ErrScoring }
