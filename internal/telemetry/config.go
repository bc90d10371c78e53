package telemetry

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/config"
)

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"` // "grpc" (default) or "http/protobuf"
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Insecure       bool           `koanf:"insecure"`        // Use insecure connection (no TLS)
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"` // Accept self-signed collector certificates
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Logs           LogsConfig     `koanf:"logs"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`

	// Run is set per invocation and never read from a file.
	Run RunInfo `koanf:"-"`
}

// RunInfo identifies the ranking run on every exported signal.
type RunInfo struct {
	ID    string
	Tag   string
	Model string
}

// SamplingConfig controls trace sampling behavior.
type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // 0.0-1.0, default 1.0
}

// MetricsConfig controls metrics export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// LogsConfig controls export of bridged zap records.
type LogsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ShutdownConfig controls graceful shutdown behavior.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns telemetry defaults.
// Telemetry is disabled by default; most runs have no collector.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "bertrank",
		ServiceVersion: "0.1.0",
		Insecure:       true,
		Sampling: SamplingConfig{
			Rate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// FromRunConfig builds the telemetry Config for one run. Log export
// follows logging.otel and only happens when telemetry is enabled.
func FromRunConfig(c *config.Config, runID, version string) *Config {
	rc := c.Telemetry
	cfg := NewDefaultConfig()
	cfg.Enabled = rc.Enabled
	cfg.Endpoint = rc.Endpoint
	cfg.Protocol = rc.Protocol
	cfg.Insecure = rc.Insecure
	if rc.ServiceName != "" {
		cfg.ServiceName = rc.ServiceName
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	cfg.Sampling.Rate = rc.SampleRate
	cfg.Metrics.Enabled = rc.MetricsEnabled
	if rc.ExportInterval > 0 {
		cfg.Metrics.ExportInterval = rc.ExportInterval
	}
	if rc.ShutdownTimeout > 0 {
		cfg.Shutdown.Timeout = rc.ShutdownTimeout
	}
	cfg.Logs.Enabled = c.Logging.OTEL
	cfg.Run = RunInfo{
		ID:    runID,
		Tag:   c.Ranker.RunTag,
		Model: modelName(c.Encoder),
	}
	return cfg
}

// modelName is the fastembed model id or the ONNX file name without its
// extension.
func modelName(e config.EncoderConfig) string {
	if e.Provider == "fastembed" {
		return e.FastEmbedModel
	}
	if e.ModelPath == "" {
		return ""
	}
	base := filepath.Base(e.ModelPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Validate rejects an enabled config that could not export. A disabled
// config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint is required when telemetry is enabled")
	case c.ServiceName == "":
		return errors.New("service_name is required when telemetry is enabled")
	case c.ServiceVersion == "":
		return errors.New("service_version is required when telemetry is enabled")
	case c.Protocol != "" && c.Protocol != "grpc" && c.Protocol != "http/protobuf":
		return fmt.Errorf("protocol must be 'grpc' or 'http/protobuf', got %q", c.Protocol)
	case c.Insecure && !isLoopback(c.Endpoint):
		return fmt.Errorf("insecure export to %s refused: use TLS or a loopback collector", c.Endpoint)
	case c.Sampling.Rate < 0 || c.Sampling.Rate > 1:
		return fmt.Errorf("sampling.rate must be within [0, 1], got %g", c.Sampling.Rate)
	case c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0:
		return errors.New("metrics.export_interval must be positive when metrics are enabled")
	case c.Shutdown.Timeout.Duration() <= 0:
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

// isLoopback reports whether endpoint names localhost or a loopback IP.
func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
