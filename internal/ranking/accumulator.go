package ranking

import (
	"context"
	"sync/atomic"

	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// accumulator collects the outcomes for one query. Each slot is written
// by exactly one unit of work; the unit that brings remaining to zero owns
// the accumulator from then on and may read every slot.
type accumulator struct {
	index     int
	query     similarity.Query
	pool      []string
	outcomes  []similarity.Outcome
	remaining atomic.Int64

	// Query-scoped context and span, ended when the query is finalized
	// or abandoned.
	ctx   context.Context
	span  trace.Span
	ended bool
}

func newAccumulator(index int, q similarity.Query, pool []string) *accumulator {
	a := &accumulator{
		index:    index,
		query:    q,
		pool:     pool,
		outcomes: make([]similarity.Outcome, len(pool)),
	}
	a.remaining.Store(int64(len(pool)))
	return a
}

// set stores the outcome for candidate i and reports whether it was the
// last one outstanding.
func (a *accumulator) set(i int, o similarity.Outcome) bool {
	a.outcomes[i] = o
	return a.remaining.Add(-1) == 0
}

// endSpan ends the query span once. Only the owner of a calls it, or Rank
// after every unit has returned.
func (a *accumulator) endSpan() {
	if a.ended {
		return
	}
	a.ended = true
	a.span.End()
}

// abandon ends the span of a query that will never be finalized.
func (a *accumulator) abandon(err error) {
	if a.ended {
		return
	}
	a.span.SetAttributes(attribute.Int64("pending", a.remaining.Load()))
	a.span.SetStatus(codes.Error, "abandoned: "+err.Error())
	a.endSpan()
}
