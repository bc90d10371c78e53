package telemetry

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.Equal(t, "bertrank", cfg.ServiceName)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.Sampling.Rate)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.Timeout.Duration())
}

func TestFromRunConfig(t *testing.T) {
	rc := &config.Config{
		Ranker:  config.RankerConfig{RunTag: "bert-maxp"},
		Encoder: config.EncoderConfig{Provider: "onnx", ModelPath: "/models/scibert.onnx"},
		Logging: config.LoggingConfig{OTEL: true},
		Telemetry: config.TelemetryConfig{
			Enabled:         true,
			Endpoint:        "127.0.0.1:4318",
			Protocol:        "http/protobuf",
			Insecure:        true,
			SampleRate:      0.25,
			MetricsEnabled:  false,
			ShutdownTimeout: config.Duration(2 * time.Second),
		},
	}
	cfg := FromRunConfig(rc, "run-42", "1.2.3")

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "127.0.0.1:4318", cfg.Endpoint)
	assert.Equal(t, "http/protobuf", cfg.Protocol)
	assert.Equal(t, "bertrank", cfg.ServiceName)
	assert.Equal(t, "1.2.3", cfg.ServiceVersion)
	assert.Equal(t, 0.25, cfg.Sampling.Rate)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Logs.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Metrics.ExportInterval.Duration())
	assert.Equal(t, 2*time.Second, cfg.Shutdown.Timeout.Duration())
	assert.Equal(t, RunInfo{ID: "run-42", Tag: "bert-maxp", Model: "scibert"}, cfg.Run)
	require.NoError(t, cfg.Validate())
}

func TestModelName(t *testing.T) {
	tests := []struct {
		enc  config.EncoderConfig
		want string
	}{
		{config.EncoderConfig{Provider: "fastembed", FastEmbedModel: "BAAI/bge-small-en-v1.5"}, "BAAI/bge-small-en-v1.5"},
		{config.EncoderConfig{Provider: "onnx", ModelPath: "models/bert.base.onnx"}, "bert.base"},
		{config.EncoderConfig{Provider: "onnx"}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, modelName(tt.enc))
	}
}

func TestConfig_Validate(t *testing.T) {
	enabled := func(mutate func(*Config)) *Config {
		cfg := NewDefaultConfig()
		cfg.Enabled = true
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		config *Config
		errMsg string
	}{
		{
			name:   "valid default config",
			config: NewDefaultConfig(),
		},
		{
			name:   "disabled config skips validation",
			config: &Config{Enabled: false},
		},
		{
			name:   "missing endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "" }),
			errMsg: "endpoint is required",
		},
		{
			name:   "missing service name",
			config: enabled(func(c *Config) { c.ServiceName = "" }),
			errMsg: "service_name is required",
		},
		{
			name:   "missing service version",
			config: enabled(func(c *Config) { c.ServiceVersion = "" }),
			errMsg: "service_version is required",
		},
		{
			name:   "unknown protocol",
			config: enabled(func(c *Config) { c.Protocol = "udp" }),
			errMsg: "protocol must be",
		},
		{
			name:   "insecure remote endpoint",
			config: enabled(func(c *Config) { c.Endpoint = "collector.example.com:4317" }),
			errMsg: "insecure export",
		},
		{
			name: "secure remote endpoint",
			config: enabled(func(c *Config) {
				c.Endpoint = "collector.example.com:4317"
				c.Insecure = false
			}),
		},
		{
			name:   "sampling rate too high",
			config: enabled(func(c *Config) { c.Sampling.Rate = 1.5 }),
			errMsg: "sampling.rate",
		},
		{
			name:   "zero export interval",
			config: enabled(func(c *Config) { c.Metrics.ExportInterval = 0 }),
			errMsg: "export_interval",
		},
		{
			name:   "zero shutdown timeout",
			config: enabled(func(c *Config) { c.Shutdown.Timeout = 0 }),
			errMsg: "shutdown.timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		endpoint string
		isLocal  bool
	}{
		{"localhost:4317", true},
		{"localhost", true},
		{"http://localhost:4318", true},
		{"127.0.0.1:4317", true},
		{"127.0.1.1:4317", true},
		{"[::1]:4317", true},
		{"::1", true},
		{"collector.prod:4317", false},
		{"https://otel.example.com", false},
		{"10.0.0.1:4317", false},
		{"localhost.evil.com:4317", false},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.isLocal, isLoopback(tt.endpoint))
		})
	}
}
