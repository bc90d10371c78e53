package telemetry

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestTelemetry records the spans and bridged log records of a run in
// memory.
type TestTelemetry struct {
	*Telemetry

	SpanRecorder *tracetest.SpanRecorder
	logs         *recordingExporter
}

// NewTestTelemetry creates telemetry that exports to memory.
func NewTestTelemetry() *TestTelemetry {
	cfg := NewDefaultConfig()
	cfg.Enabled = true
	cfg.Logs.Enabled = true

	spans := tracetest.NewSpanRecorder()
	logs := &recordingExporter{}

	return &TestTelemetry{
		Telemetry: &Telemetry{
			config: cfg,
			traces: trace.NewTracerProvider(trace.WithSpanProcessor(spans)),
			logs:   sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(logs))),
		},
		SpanRecorder: spans,
		logs:         logs,
	}
}

// Spans returns the ended spans, in end order.
func (t *TestTelemetry) Spans() []trace.ReadOnlySpan {
	return t.SpanRecorder.Ended()
}

// SpansNamed returns the ended spans called name, in end order.
// A ranking records one ranking.score_pair span per pair.
func (t *TestTelemetry) SpansNamed(name string) []trace.ReadOnlySpan {
	var out []trace.ReadOnlySpan
	for _, span := range t.Spans() {
		if span.Name() == name {
			out = append(out, span)
		}
	}
	return out
}

// SpanByName returns the first span called name, or nil.
func (t *TestTelemetry) SpanByName(name string) trace.ReadOnlySpan {
	if spans := t.SpansNamed(name); len(spans) > 0 {
		return spans[0]
	}
	return nil
}

// QueryIDs returns the query.id values seen on spans called name.
func (t *TestTelemetry) QueryIDs(name string) map[string]bool {
	ids := make(map[string]bool)
	for _, span := range t.SpansNamed(name) {
		if v, ok := spanAttr(span, "query.id"); ok {
			ids[v.AsString()] = true
		}
	}
	return ids
}

// AssertSpanExists fails tb unless a span called name has ended.
func (t *TestTelemetry) AssertSpanExists(tb testing.TB, name string) {
	tb.Helper()
	if t.SpanByName(name) == nil {
		names := make([]string, 0, len(t.Spans()))
		for _, span := range t.Spans() {
			names = append(names, span.Name())
		}
		tb.Errorf("span %q not recorded, have %v", name, names)
	}
}

// AssertSpanAttribute fails tb unless the first span called name has
// attribute key equal to want.
func (t *TestTelemetry) AssertSpanAttribute(tb testing.TB, name, key string, want any) {
	tb.Helper()
	span := t.SpanByName(name)
	if span == nil {
		tb.Fatalf("span %q not recorded", name)
	}
	v, ok := spanAttr(span, attribute.Key(key))
	if !ok {
		tb.Errorf("span %q has no attribute %q", name, key)
		return
	}
	if got := v.AsInterface(); got != want {
		tb.Errorf("span %q attribute %q = %v, want %v", name, key, got, want)
	}
}

func spanAttr(span trace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

// LogRecords returns the log records emitted through LoggerProvider.
func (t *TestTelemetry) LogRecords() []sdklog.Record {
	return t.logs.snapshot()
}

// recordingExporter keeps every exported log record.
type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(context.Context) error { return nil }

func (e *recordingExporter) snapshot() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]sdklog.Record, len(e.records))
	copy(out, e.records)
	return out
}
