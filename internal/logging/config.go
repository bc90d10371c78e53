package logging

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger. Records go to stderr, since stdout
// may carry the run file, and to an OTLP log provider when OTEL is set.
type Config struct {
	Level  zapcore.Level
	Format string // "json" or "console"

	Stderr bool
	OTEL   bool

	Sampling SamplingConfig

	// Caller adds the calling file and line; CallerSkip drops wrapper
	// frames on top of the Logger's own.
	Caller     bool
	CallerSkip int

	// Stacktraces are attached at this level and above.
	StacktraceLevel zapcore.Level

	// Fields are added to every record.
	Fields map[string]string
}

// SamplingConfig bounds the per-pair lines of a large run. Each level
// listed in Levels gets its own sampler per Tick.
type SamplingConfig struct {
	Enabled bool
	Tick    config.Duration
	Levels  map[zapcore.Level]LevelSamplingConfig
}

// LevelSamplingConfig keeps the first Initial records of a message per
// tick, then every Thereafter-th. Thereafter 0 drops the rest.
type LevelSamplingConfig struct {
	Initial    int
	Thereafter int
}

// NewDefaultConfig logs JSON at info to stderr.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Stderr: true,
		Sampling: SamplingConfig{
			Enabled: true,
			Tick:    config.Duration(time.Second),
			Levels:  DefaultLevelSamplingConfig(),
		},
		Caller:          true,
		StacktraceLevel: zapcore.ErrorLevel,
		Fields:          map[string]string{"service": "bertrank"},
	}
}

// DefaultLevelSamplingConfig samples trace and debug hard, since the
// encoder logs per chunk there. Error and above are never sampled.
func DefaultLevelSamplingConfig() map[zapcore.Level]LevelSamplingConfig {
	return map[zapcore.Level]LevelSamplingConfig{
		TraceLevel:         {Initial: 1},
		zapcore.DebugLevel: {Initial: 10},
		zapcore.InfoLevel:  {Initial: 100, Thereafter: 10},
		zapcore.WarnLevel:  {Initial: 100, Thereafter: 100},
	}
}

// FromRunConfig builds the logger Config for the logging section of a
// run configuration.
func FromRunConfig(c config.LoggingConfig, version string) (*Config, error) {
	level, err := LevelFromString(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level %q: %w", c.Level, err)
	}
	cfg := NewDefaultConfig()
	cfg.Level = level
	if c.Format != "" {
		cfg.Format = c.Format
	}
	cfg.OTEL = c.OTEL
	if version != "" {
		cfg.Fields["version"] = version
	}
	return cfg, cfg.Validate()
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	switch {
	case c.Format != "json" && c.Format != "console":
		return fmt.Errorf("format must be 'json' or 'console', got %q", c.Format)
	case !c.Stderr && !c.OTEL:
		return errors.New("at least one output must be enabled (stderr or otel)")
	case c.Sampling.Enabled && c.Sampling.Tick.Duration() <= 0:
		return errors.New("sampling tick must be > 0 when sampling is enabled")
	case c.CallerSkip < 0:
		return fmt.Errorf("caller skip must be >= 0, got %d", c.CallerSkip)
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			return fmt.Errorf("field %q=%q: key and value must be set", k, v)
		}
	}
	return nil
}
