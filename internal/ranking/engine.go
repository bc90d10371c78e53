package ranking

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/corpus"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/fyrsmithlabs/bertrank/internal/trec"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/fyrsmithlabs/bertrank/internal/ranking"

var (
	// ErrInvalidInput indicates bad run parameters, such as k <= 0.
	ErrInvalidInput = errors.New("invalid ranking input")

	// errSource marks document source failures other than not-found.
	errSource = errors.New("document source failed")
)

// Scorer evaluates one (query, document) pair.
type Scorer interface {
	Evaluate(ctx context.Context, q similarity.Query, d similarity.Document) similarity.Outcome
}

// Engine ranks a candidate pool against a set of queries.
type Engine struct {
	scorer  Scorer
	source  corpus.Source
	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *Metrics
	workers int
	runTag  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets the number of concurrent units of work. n <= 0 keeps
// the default of one per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithRunTag stamps every RankedEntry with tag.
func WithRunTag(tag string) Option {
	return func(e *Engine) {
		e.runTag = tag
	}
}

// WithMetrics records run metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer replaces the tracer from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// NewEngine creates an Engine that reads document text from source and
// scores it with scorer.
func NewEngine(scorer Scorer, source corpus.Source, logger *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		scorer:  scorer,
		source:  source,
		logger:  logger.Named("ranking"),
		tracer:  otel.Tracer(instrumentationName),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank scores every document in pool against every query and passes each
// query's top k to emit, in the order of queries. emit is never called
// concurrently. Rank stops at the first emit error or when ctx is done.
func (e *Engine) Rank(ctx context.Context, queries []similarity.Query, pool []string, k int, emit func(QueryResult) error) error {
	if k <= 0 {
		return fmt.Errorf("%w: k must be > 0, got %d", ErrInvalidInput, k)
	}
	if emit == nil {
		return fmt.Errorf("%w: emit is nil", ErrInvalidInput)
	}

	e.logger.Info(ctx, "ranking started",
		zap.Int("queries", len(queries)),
		zap.Int("candidates", len(pool)),
		zap.Int("k", k),
		zap.Int("workers", e.workers),
	)
	start := time.Now()

	gate := newReleaseGate(emit)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var (
		started []*accumulator
		runErr  error
	)
dispatch:
	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		a := newAccumulator(i, q, pool)
		a.ctx, a.span = e.tracer.Start(logging.WithQueryID(gctx, q.ID), "ranking.query",
			trace.WithAttributes(
				attribute.String("query.id", q.ID),
				attribute.Int("candidates", len(pool)),
				attribute.Int("k", k),
			),
		)
		started = append(started, a)

		if len(pool) == 0 {
			if err := e.complete(a, k, gate); err != nil {
				runErr = err
				break
			}
			continue
		}

		for j, docID := range pool {
			if gctx.Err() != nil {
				break dispatch
			}
			g.Go(func() error {
				return e.unit(a, j, docID, k, gate)
			})
		}
	}

	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		// Every unit has returned, so no accumulator has an owner left.
		for _, a := range started {
			a.abandon(runErr)
		}
		e.logger.Warn(ctx, "ranking stopped",
			zap.Int("queries_released", gate.released()),
			zap.Error(runErr),
		)
		return runErr
	}

	e.logger.Info(ctx, "ranking finished",
		zap.Int("queries", gate.released()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// RankAll runs Rank and returns every entry, grouped by query in input
// order.
func (e *Engine) RankAll(ctx context.Context, queries []similarity.Query, pool []string, k int) ([]trec.RankedEntry, error) {
	var out []trec.RankedEntry
	err := e.Rank(ctx, queries, pool, k, func(r QueryResult) error {
		out = append(out, r.Entries...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// unit scores candidate i of a and finalizes the query if it was the
// last one outstanding.
func (e *Engine) unit(a *accumulator, i int, docID string, k int, gate *releaseGate) error {
	if err := a.ctx.Err(); err != nil {
		return err
	}

	ctx, span := e.tracer.Start(logging.WithDocumentID(a.ctx, docID), "ranking.score_pair",
		trace.WithAttributes(
			attribute.String("query.id", a.query.ID),
			attribute.String("doc.id", docID),
		),
	)
	o := e.evaluate(ctx, a.query, docID)
	if o.Skipped() {
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, skipReason(o.Err))
	} else {
		span.SetAttributes(
			attribute.Float64("score", o.Score),
			attribute.Int("chunks", o.Chunks),
		)
	}
	span.End()

	// A cancelled run leaves the slot empty rather than recording a skip.
	if err := ctx.Err(); err != nil {
		return err
	}

	e.metrics.observePair(o)
	if a.set(i, o) {
		return e.complete(a, k, gate)
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, q similarity.Query, docID string) similarity.Outcome {
	text, err := e.source.Text(ctx, docID)
	if err != nil {
		if !errors.Is(err, corpus.ErrNotFound) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", errSource, err)
		}
		return similarity.Outcome{Err: err}
	}
	return e.scorer.Evaluate(ctx, q, similarity.Document{ID: docID, Text: text})
}

// complete finalizes a and passes it to the gate.
func (e *Engine) complete(a *accumulator, k int, gate *releaseGate) error {
	start := time.Now()
	res := finalize(a, k, e.runTag)

	for _, s := range res.Skipped {
		e.logger.Warn(a.ctx, "pair skipped",
			zap.String("doc.id", s.DocID),
			zap.String("reason", s.Reason),
			zap.Error(s.Err),
		)
	}
	e.logger.Info(a.ctx, "query ranked",
		zap.Int("scored", res.Scored),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("returned", len(res.Entries)),
	)

	a.span.SetAttributes(
		attribute.Int("scored", res.Scored),
		attribute.Int("skipped", len(res.Skipped)),
		attribute.Int("returned", len(res.Entries)),
	)
	a.endSpan()
	e.metrics.observeQuery(res, time.Since(start))

	return gate.release(a.index, res)
}
