package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BERTRANK_"
)

// defaults is loaded first so an explicit zero in a file or the
// environment (score_precision: 0, sample_seed: 0) is kept as written.
const defaults = `
ranker:
  top_k: 1000
  run_tag: bertrank
  workers: 0
  output: run.txt
  score_precision: 6
encoder:
  provider: fastembed
  max_length: 512
  hidden_size: 768
  fastembed_model: fast-bge-small-en-v1.5
  cache_dir: local_cache
  cls_token: "[CLS]"
  sep_token: "[SEP]"
  intra_op_threads: 1
data:
  topics: topics-rnd5.xml
  valid_docs: docids-rnd5.txt
  metadata: metadata.csv
  docs_dir: "."
  cache_path: metadata.db
  sample_size: 0
  sample_seed: 42
  preload: false
logging:
  level: info
  format: json
  otel: false
telemetry:
  enabled: false
  endpoint: localhost:4317
  protocol: grpc
  insecure: true
  service_name: bertrank
  sample_rate: 1.0
  metrics_enabled: true
  export_interval: 15s
  shutdown_timeout: 5s
metrics:
  pushgateway_url: ""
  job: bertrank
`

// Default returns the built-in configuration with no file or environment
// overrides applied.
func Default() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	return &cfg, nil
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BERTRANK_RANKER_TOP_K, BERTRANK_ENCODER_MODEL_PATH, etc.)
//  2. YAML config file
//  3. Built-in defaults
//
// If configPath is empty, ~/.config/bertrank/config.yaml is used when it
// exists. An explicit configPath that does not exist is an error.
// Files larger than 1MB are rejected.
//
// # Environment Variable Mapping
//
// The BERTRANK_ prefix is stripped and the remainder split on its first
// underscore into section and field:
//
//	BERTRANK_RANKER_TOP_K       -> ranker.top_k
//	BERTRANK_ENCODER_MODEL_PATH -> encoder.model_path
//	BERTRANK_DATA_SAMPLE_SIZE   -> data.sample_size
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath()
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist) && !explicit:
			// No user config; defaults and environment only.
		case err != nil:
			return nil, err
		default:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// DefaultConfigPath returns ~/.config/bertrank/config.yaml, or "" when the
// home directory cannot be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bertrank", "config.yaml")
}

// envKey maps BERTRANK_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// readConfigFile opens path once and validates it through the open
// descriptor before reading.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path is not a regular file: %s", info.Name())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
