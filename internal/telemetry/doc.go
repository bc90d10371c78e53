// Package telemetry exports the traces, metrics and logs of a ranking run
// over OTLP.
//
// A ranking run opens one span per query and one child span per scored
// (query, document) pair; the encoder records inference latency and
// sequence length through the global meter. When logging.otel is set,
// zap records are bridged to the log provider. Every signal carries the
// run id, run tag and model on its resource.
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromRunConfig(cfg, runID, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
//	tracer := tel.Tracer("bertrank/ranking")
//
// # Error Handling
//
// Telemetry failures do not fail a run. A provider that cannot be created
// is left out, the global no-op provider stands in, and Health reports the
// cause.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	_, span := tt.Tracer("test").Start(ctx, "ranking.query")
//	span.End()
//	tt.AssertSpanExists(t, "ranking.query")
//	records := tt.LogRecords()
package telemetry
