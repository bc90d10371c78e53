// Package config provides configuration loading for bertrank.
//
// Configuration is layered: built-in defaults, then an optional YAML file,
// then BERTRANK_* environment variables. See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Config holds the complete bertrank configuration.
type Config struct {
	Ranker    RankerConfig    `koanf:"ranker"`
	Encoder   EncoderConfig   `koanf:"encoder"`
	Data      DataConfig      `koanf:"data"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Metrics   MetricsConfig   `koanf:"metrics"`
}

// RankerConfig controls the ranking run and its output.
type RankerConfig struct {
	TopK    int    `koanf:"top_k"`
	RunTag  string `koanf:"run_tag"`
	Workers int    `koanf:"workers"` // 0 means one per CPU
	Output  string `koanf:"output"`  // empty or "-" writes to stdout

	// ScorePrecision is the number of decimals written per score;
	// -1 selects the shortest representation that round-trips.
	ScorePrecision int `koanf:"score_precision"`
}

// EncoderConfig selects and configures the pair encoder.
type EncoderConfig struct {
	Provider       string `koanf:"provider"` // "onnx" or "fastembed"
	ModelPath      string `koanf:"model_path"`
	TokenizerPath  string `koanf:"tokenizer_path"`
	MaxLength      int    `koanf:"max_length"`
	HiddenSize     int    `koanf:"hidden_size"` // onnx provider only; fastembed models carry their own
	FastEmbedModel string `koanf:"fastembed_model"`
	CacheDir       string `koanf:"cache_dir"`
	ONNXLibrary    string `koanf:"onnx_library"`
	CLSToken       string `koanf:"cls_token"`
	SEPToken       string `koanf:"sep_token"`
	IntraOpThreads int    `koanf:"intra_op_threads"`
}

// DataConfig locates the topics, candidate pool and document corpus.
type DataConfig struct {
	Topics     string `koanf:"topics"`
	ValidDocs  string `koanf:"valid_docs"`
	Metadata   string `koanf:"metadata"`
	DocsDir    string `koanf:"docs_dir"`
	CachePath  string `koanf:"cache_path"`
	Qrels      string `koanf:"qrels"`
	SampleSize int    `koanf:"sample_size"` // 0 keeps the whole pool
	SampleSeed int64  `koanf:"sample_seed"`
	Preload    bool   `koanf:"preload"`
}

// LoggingConfig holds the user-facing logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Endpoint        string   `koanf:"endpoint"`
	Protocol        string   `koanf:"protocol"` // "grpc" or "http/protobuf"
	Insecure        bool     `koanf:"insecure"`
	ServiceName     string   `koanf:"service_name"`
	SampleRate      float64  `koanf:"sample_rate"`
	MetricsEnabled  bool     `koanf:"metrics_enabled"`
	ExportInterval  Duration `koanf:"export_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig controls the end-of-run Prometheus push.
type MetricsConfig struct {
	PushgatewayURL string `koanf:"pushgateway_url"` // empty disables the push
	Job            string `koanf:"job"`
}

// Validate validates the configuration.
//
// Data paths are not checked here; missing inputs surface when the run
// opens them.
func (c *Config) Validate() error {
	if c.Ranker.TopK <= 0 {
		return fmt.Errorf("ranker.top_k must be positive, got %d", c.Ranker.TopK)
	}
	if err := ValidateRunTag(c.Ranker.RunTag); err != nil {
		return err
	}
	if c.Ranker.Workers < 0 {
		return fmt.Errorf("ranker.workers must be >= 0, got %d", c.Ranker.Workers)
	}
	if c.Ranker.ScorePrecision < -1 {
		return fmt.Errorf("ranker.score_precision must be >= -1, got %d", c.Ranker.ScorePrecision)
	}

	switch c.Encoder.Provider {
	case "onnx":
		if c.Encoder.ModelPath == "" || c.Encoder.TokenizerPath == "" {
			return errors.New("encoder.model_path and encoder.tokenizer_path are required for the onnx provider")
		}
	case "fastembed":
		if c.Encoder.FastEmbedModel == "" {
			return errors.New("encoder.fastembed_model is required for the fastembed provider")
		}
	default:
		return fmt.Errorf("encoder.provider must be 'onnx' or 'fastembed', got %q", c.Encoder.Provider)
	}
	if c.Encoder.MaxLength <= 3 {
		return fmt.Errorf("encoder.max_length must be greater than 3, got %d", c.Encoder.MaxLength)
	}
	if c.Encoder.Provider == "onnx" && c.Encoder.HiddenSize <= 0 {
		return fmt.Errorf("encoder.hidden_size must be positive for the onnx provider, got %d", c.Encoder.HiddenSize)
	}
	if c.Encoder.CLSToken == "" || c.Encoder.SEPToken == "" {
		return errors.New("encoder.cls_token and encoder.sep_token are required")
	}

	if c.Data.SampleSize < 0 {
		return fmt.Errorf("data.sample_size must be >= 0, got %d", c.Data.SampleSize)
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", c.Telemetry.SampleRate)
		}
	}

	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return errors.New("metrics.job is required when metrics.pushgateway_url is set")
	}

	return nil
}

// ValidateRunTag checks that tag can be written as a single run file field.
func ValidateRunTag(tag string) error {
	if tag == "" {
		return errors.New("ranker.run_tag must not be empty")
	}
	if strings.IndexFunc(tag, unicode.IsSpace) >= 0 {
		return fmt.Errorf("ranker.run_tag must not contain whitespace, got %q", tag)
	}
	return nil
}
