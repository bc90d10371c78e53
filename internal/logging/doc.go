// Package logging provides structured logging with OpenTelemetry integration.
//
// # Overview
//
// Logging package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Stderr output (stdout is reserved for run files) plus optional export
//     to an OTLP log provider through the otelzap bridge
//   - Automatic context field injection (trace_id, run.id, query.id, doc.id)
//   - Level-aware sampling (errors never sampled)
//
// # Usage
//
//	cfg, err := logging.FromRunConfig(runCfg.Logging, version)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger, err := logging.NewLogger(cfg, tel.LoggerProvider())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithQueryID(ctx, "12")
//	ctx = logging.WithDocumentID(ctx, "wp1hd5w9")
//	logger.Warn(ctx, "pair skipped", zap.Error(err))
//
// # Sampling
//
// A run over a thousand candidates per topic can skip many pairs. Sampling
// keeps those lines bounded:
//   - Trace: first 1 per second, drop rest
//   - Debug: first 10 per second, drop rest
//   - Info: first 100, then 1 every 10
//   - Warn: first 100, then 1 every 100
//   - Error+: never sampled
//
// # Testing
//
// Use TestLogger for test assertions:
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "test message", zap.String("key", "value"))
//	tl.AssertLogged(t, zapcore.InfoLevel, "test message")
//	tl.AssertField(t, "test message", "key", "value")
//
// Logger is safe for concurrent use. Child loggers (With, Named) are
// independent and do not affect parent or siblings.
package logging
