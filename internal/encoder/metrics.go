package encoder

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const encoderInstrumentationName = "github.com/fyrsmithlabs/bertrank/internal/encoder"

// Metrics holds encoder forward-pass metrics.
type Metrics struct {
	meter     metric.Meter
	logger    *zap.Logger
	duration  metric.Float64Histogram
	seqLength metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics creates encoder metrics on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetrics(otel.Meter(encoderInstrumentationName), logger)
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{
		meter:  meter,
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.duration, err = m.meter.Float64Histogram(
		"bertrank.encoder.forward_duration_seconds",
		metric.WithDescription("Duration of one encoder forward pass in seconds, labeled by model."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		m.logger.Warn("failed to create duration histogram", zap.Error(err))
	}

	m.seqLength, err = m.meter.Int64Histogram(
		"bertrank.encoder.sequence_length",
		metric.WithDescription("Tokens per encoder input sequence, including special tokens."),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(16, 32, 64, 128, 256, 384, 512),
	)
	if err != nil {
		m.logger.Warn("failed to create sequence length histogram", zap.Error(err))
	}

	m.errors, err = m.meter.Int64Counter(
		"bertrank.encoder.errors_total",
		metric.WithDescription("Failed encoder forward passes, labeled by model."),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create errors counter", zap.Error(err))
	}
}

// RecordForward records one forward pass.
func (m *Metrics) RecordForward(ctx context.Context, model string, duration time.Duration, seqLen int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if seqLen > 0 && m.seqLength != nil {
		m.seqLength.Record(ctx, int64(seqLen), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

// instrumentedModel records Metrics around every Forward call.
type instrumentedModel struct {
	Model
	name    string
	metrics *Metrics
}

// Instrument wraps model so each forward pass is measured under name.
func Instrument(model Model, name string, metrics *Metrics) Model {
	if metrics == nil {
		return model
	}
	return &instrumentedModel{Model: model, name: name, metrics: metrics}
}

func (m *instrumentedModel) Forward(ctx context.Context, in Input) (HiddenStates, error) {
	start := time.Now()
	hs, err := m.Model.Forward(ctx, in)
	m.metrics.RecordForward(ctx, m.name, time.Since(start), in.Len(), err)
	return hs, err
}
