package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if queryID := QueryIDFromContext(ctx); queryID != "" {
		fields = append(fields, zap.String("query.id", queryID))
	}
	if docID := DocumentIDFromContext(ctx); docID != "" {
		fields = append(fields, zap.String("doc.id", docID))
	}

	return fields
}

type runCtxKey struct{}
type queryCtxKey struct{}
type documentCtxKey struct{}

// WithRunID tags the context with the identifier of the current ranking run.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext extracts the run ID from context.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithQueryID tags the context with the query being ranked.
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryCtxKey{}, queryID)
}

// QueryIDFromContext extracts the query ID from context.
func QueryIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(queryCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithDocumentID tags the context with the document being scored.
func WithDocumentID(ctx context.Context, docID string) context.Context {
	return context.WithValue(ctx, documentCtxKey{}, docID)
}

// DocumentIDFromContext extracts the document ID from context.
func DocumentIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(documentCtxKey{}).(string); ok {
		return s
	}
	return ""
}
