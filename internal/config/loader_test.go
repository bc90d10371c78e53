package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// TestLoadWithFile_ValidYAML tests loading configuration from a valid YAML file.
func TestLoadWithFile_ValidYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `ranker:
  top_k: 100
  run_tag: covid-bert
  score_precision: 0
encoder:
  provider: onnx
  model_path: /models/bert/model.onnx
  tokenizer_path: /models/bert/tokenizer.json
data:
  sample_size: 250
  sample_seed: 0
`)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Ranker.TopK != 100 {
		t.Errorf("Ranker.TopK = %d, want 100", cfg.Ranker.TopK)
	}
	if cfg.Ranker.RunTag != "covid-bert" {
		t.Errorf("Ranker.RunTag = %q, want covid-bert", cfg.Ranker.RunTag)
	}
	if cfg.Ranker.ScorePrecision != 0 {
		t.Errorf("Ranker.ScorePrecision = %d, want explicit 0 kept", cfg.Ranker.ScorePrecision)
	}
	if cfg.Data.SampleSeed != 0 {
		t.Errorf("Data.SampleSeed = %d, want explicit 0 kept", cfg.Data.SampleSeed)
	}
	if cfg.Encoder.MaxLength != 512 {
		t.Errorf("Encoder.MaxLength = %d, want default 512", cfg.Encoder.MaxLength)
	}
}

// TestLoadWithFile_EnvironmentOverride tests that environment variables override YAML.
func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `ranker:
  top_k: 100
encoder:
  max_length: 256
telemetry:
  shutdown_timeout: 2s
`)

	t.Setenv("BERTRANK_RANKER_TOP_K", "10")
	t.Setenv("BERTRANK_ENCODER_MAX_LENGTH", "128")
	t.Setenv("BERTRANK_DATA_DOCS_DIR", "/corpus/document_parses")
	t.Setenv("BERTRANK_TELEMETRY_SHUTDOWN_TIMEOUT", "9s")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Ranker.TopK != 10 {
		t.Errorf("Ranker.TopK = %d, want 10 (from env override)", cfg.Ranker.TopK)
	}
	if cfg.Encoder.MaxLength != 128 {
		t.Errorf("Encoder.MaxLength = %d, want 128 (from env override)", cfg.Encoder.MaxLength)
	}
	if cfg.Data.DocsDir != "/corpus/document_parses" {
		t.Errorf("Data.DocsDir = %q, want /corpus/document_parses", cfg.Data.DocsDir)
	}
	if cfg.Telemetry.ShutdownTimeout.Duration() != 9*time.Second {
		t.Errorf("Telemetry.ShutdownTimeout = %v, want 9s", cfg.Telemetry.ShutdownTimeout.Duration())
	}
}

// TestLoadWithFile_NoDefaultFile tests that a missing default file falls back to defaults.
func TestLoadWithFile_NoDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v, want nil", err)
	}
	if cfg.Ranker.TopK != 1000 {
		t.Errorf("Ranker.TopK = %d, want 1000", cfg.Ranker.TopK)
	}
}

// TestLoadWithFile_DefaultPath tests that ~/.config/bertrank/config.yaml is picked up.
func TestLoadWithFile_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "bertrank")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("ranker:\n  run_tag: from-home\n"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile(\"\") error = %v", err)
	}
	if cfg.Ranker.RunTag != "from-home" {
		t.Errorf("Ranker.RunTag = %q, want from-home", cfg.Ranker.RunTag)
	}
}

// TestLoadWithFile_MissingExplicitFile tests that an explicit path must exist.
func TestLoadWithFile_MissingExplicitFile(t *testing.T) {
	_, err := LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("LoadWithFile() should error on missing explicit file")
	}
}

// TestLoadWithFile_InvalidYAML tests handling of malformed YAML.
func TestLoadWithFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `ranker:
  top_k: 10
  invalid syntax here
`)

	if _, err := LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() should error on invalid YAML, got nil")
	}
}

// TestLoadWithFile_Validation tests that loaded values are validated.
func TestLoadWithFile_Validation(t *testing.T) {
	path := writeConfig(t, "ranker:\n  top_k: -5\n")

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("LoadWithFile() should error on invalid top_k, got nil")
	}
	if !strings.Contains(err.Error(), "top_k") {
		t.Errorf("expected top_k validation error, got: %v", err)
	}
}

// TestLoadWithFile_FileTooLarge tests file size limit enforcement.
func TestLoadWithFile_FileTooLarge(t *testing.T) {
	path := writeConfig(t, string(bytes.Repeat([]byte("# comment line\n"), 150000)))

	_, err := LoadWithFile(path)
	if err == nil {
		t.Fatal("Expected error for large file, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected 'too large' error, got: %v", err)
	}
}

// TestLoadWithFile_Directory tests that a directory is rejected.
func TestLoadWithFile_Directory(t *testing.T) {
	_, err := LoadWithFile(t.TempDir())
	if err == nil {
		t.Fatal("Expected error for directory path, got nil")
	}
	if !strings.Contains(err.Error(), "regular file") {
		t.Errorf("Expected 'regular file' error, got: %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"BERTRANK_RANKER_TOP_K":            "ranker.top_k",
		"BERTRANK_ENCODER_MODEL_PATH":      "encoder.model_path",
		"BERTRANK_METRICS_PUSHGATEWAY_URL": "metrics.pushgateway_url",
		"BERTRANK_LOGGING":                 "logging",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
