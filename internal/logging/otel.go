package logging

import (
	"errors"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap/zapcore"
)

// bridgeScope is the instrumentation scope of bridged records.
const bridgeScope = "github.com/fyrsmithlabs/bertrank"

// newCore tees stderr and the OTLP bridge as cfg enables them, then
// applies sampling to both.
func newCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core
	if cfg.Stderr {
		cores = append(cores, zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stderr), cfg.Level))
	}
	if cfg.OTEL && otelProvider != nil {
		// The bridge has no level of its own.
		cores = append(cores, &levelFilterCore{
			Core:  otelzap.NewCore(bridgeScope, otelzap.WithLoggerProvider(otelProvider)),
			allow: cfg.Level.Enabled,
		})
	}
	if len(cores) == 0 {
		return nil, errors.New("no output available: stderr is off and no otel provider was given")
	}
	return newSampledCore(zapcore.NewTee(cores...), cfg.Sampling), nil
}
