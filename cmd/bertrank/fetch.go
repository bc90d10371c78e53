package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/encoder"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fetchModelName string
	fetchCacheDir  string
)

// fetchModelCmd provisions the ONNX runtime and model bundle
var fetchModelCmd = &cobra.Command{
	Use:   "fetch-model",
	Short: "Download the ONNX runtime and the fastembed model bundle",
	Long: `Fetch-model downloads the ONNX runtime library and the configured
fastembed model bundle so that a later rank starts without network access.

The ONNX runtime is installed under the user cache directory
(~/.cache/bertrank/onnxruntime/<version> on Linux) unless
encoder.onnx_library or ONNX_PATH already points at one.

Examples:
  # Fetch the configured model
  bertrank fetch-model

  # Fetch a specific model into a shared cache
  bertrank fetch-model --model fast-bge-base-en-v1.5 --cache-dir /data/models`,
	RunE: runFetchModel,
}

func init() {
	fetchModelCmd.Flags().StringVar(&fetchModelName, "model", "", "fastembed model (default from config)")
	fetchModelCmd.Flags().StringVar(&fetchCacheDir, "cache-dir", "", "model cache directory (default from config)")
}

func runFetchModel(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	ctx := cmd.Context()

	model := cfg.Encoder.FastEmbedModel
	if fetchModelName != "" {
		model = fetchModelName
	}
	if !slices.Contains(encoder.SupportedModels(), model) {
		return fmt.Errorf("unsupported model %q, supported: %s", model, strings.Join(encoder.SupportedModels(), ", "))
	}
	cacheDir := cfg.Encoder.CacheDir
	if fetchCacheDir != "" {
		cacheDir = fetchCacheDir
	}

	lib, err := encoder.EnsureONNXRuntime(ctx, cfg.Encoder.ONNXLibrary, logger)
	if err != nil {
		return err
	}
	bundle, err := encoder.FetchModel(ctx, model, cacheDir, true)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", model, err)
	}

	logger.Info(ctx, "model ready",
		zap.String("model", model),
		zap.String("dir", bundle.Dir),
		zap.String("onnx_library", lib),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "ONNX runtime: %s\nmodel %s: %s (hidden size %d)\n", lib, model, bundle.Dir, bundle.Dimension)
	return nil
}
