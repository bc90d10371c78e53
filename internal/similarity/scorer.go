package similarity

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyrsmithlabs/bertrank/internal/chunker"
	"github.com/fyrsmithlabs/bertrank/internal/encoder"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"go.uber.org/zap"
)

// Query is a retrieval request: an id and its concatenated text.
type Query struct {
	ID   string
	Text string
}

// Document is a candidate document and its full text.
type Document struct {
	ID   string
	Text string
}

// Outcome is the result of evaluating one (query, document) pair: either a
// score, or the error that caused the pair to be skipped.
type Outcome struct {
	Score  float64
	Chunks int   // windows encoded
	Err    error // non-nil means skipped
}

// Skipped reports whether the pair produced no score.
func (o Outcome) Skipped() bool { return o.Err != nil }

// Scorer computes whole-document similarity for (query, document) pairs.
// It is safe for concurrent use.
type Scorer struct {
	tokenizer encoder.Tokenizer
	pair      *PairEncoder
	logger    *logging.Logger

	// Query token ids by (id, text); every document for a query reuses them.
	queryTokens sync.Map
}

type queryKey struct {
	id, text string
}

// NewScorer creates a Scorer over a shared tokenizer and model.
func NewScorer(tok encoder.Tokenizer, model encoder.Model, logger *logging.Logger) *Scorer {
	return &Scorer{
		tokenizer: tok,
		pair:      NewPairEncoder(model, tok.Special()),
		logger:    logger.Named("similarity"),
	}
}

// Score returns the similarity of q and d.
func (s *Scorer) Score(ctx context.Context, q Query, d Document) (float64, error) {
	o := s.Evaluate(ctx, q, d)
	return o.Score, o.Err
}

// Evaluate scores q against d. Failures are returned in the Outcome as a
// *ScoringError naming both ids.
func (s *Scorer) Evaluate(ctx context.Context, q Query, d Document) Outcome {
	score, chunks, err := s.evaluate(ctx, q, d)
	if err != nil {
		return Outcome{Chunks: chunks, Err: &ScoringError{QueryID: q.ID, DocID: d.ID, Err: err}}
	}
	return Outcome{Score: score, Chunks: chunks}
}

func (s *Scorer) evaluate(ctx context.Context, q Query, d Document) (float64, int, error) {
	qTokens, err := s.tokenizeQuery(q)
	if err != nil {
		return 0, 0, err
	}

	budget := s.pair.Budget(len(qTokens))
	if budget <= 0 {
		return 0, 0, fmt.Errorf("%w: query of %d tokens leaves no room for the document (max %d)",
			ErrBudgetExceeded, len(qTokens), s.pair.MaxLength())
	}

	dTokens, err := s.tokenizer.Tokenize(d.Text)
	if err != nil {
		return 0, 0, fmt.Errorf("tokenizing document: %w", err)
	}
	if len(dTokens) == 0 {
		return 0, 0, fmt.Errorf("document: %w", ErrEmptyText)
	}

	chunks, err := chunker.Split(dTokens, budget)
	if err != nil {
		return 0, 0, err
	}

	var qSum, dSum []float64
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return 0, i, err
		}

		qv, dv, err := s.pair.Embed(ctx, qTokens, chunk)
		if err != nil {
			return 0, i, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		if qSum == nil {
			qSum, dSum = qv, dv
		} else {
			addInto(qSum, qv)
			addInto(dSum, dv)
		}

		s.logger.Trace(ctx, "chunk encoded",
			zap.Int("chunk", i),
			zap.Int("tokens", len(chunk)),
		)
	}

	meanInto(qSum, len(chunks))
	meanInto(dSum, len(chunks))

	score, ok := cosine(qSum, dSum)
	if !ok {
		s.logger.Debug(ctx, "degenerate aggregate vector, scoring 0",
			zap.String("query.id", q.ID),
			zap.String("doc.id", d.ID),
			zap.Int("chunks", len(chunks)),
		)
	}
	return score, len(chunks), nil
}

// tokenizeQuery returns the memoized token ids for q.
func (s *Scorer) tokenizeQuery(q Query) ([]int, error) {
	key := queryKey{id: q.ID, text: q.Text}
	if v, ok := s.queryTokens.Load(key); ok {
		return v.([]int), nil
	}

	ids, err := s.tokenizer.Tokenize(q.Text)
	if err != nil {
		return nil, fmt.Errorf("tokenizing query: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("query: %w", ErrEmptyText)
	}

	v, _ := s.queryTokens.LoadOrStore(key, ids)
	return v.([]int), nil
}
