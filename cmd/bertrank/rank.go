package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/fyrsmithlabs/bertrank/internal/manager"
	"github.com/fyrsmithlabs/bertrank/internal/progress"
	"github.com/fyrsmithlabs/bertrank/internal/ranking"
	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/fyrsmithlabs/bertrank/internal/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rankOutput       string
	rankTopK         int
	rankRunTag       string
	rankWorkers      int
	rankSample       int
	rankShowProgress bool
)

// rankCmd runs a full ranking
var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank the candidate pool for every topic and write a run file",
	Long: `Rank scores every candidate document against every topic, keeps the
top-k documents per topic and writes them as a TREC run file.

The run file is written to a temporary file next to --output and renamed
into place when the run completes; an interrupted run leaves no output.

Examples:
  # Rank with the configured inputs, writing run.txt
  bertrank rank

  # Top 100 per topic to stdout
  bertrank rank --top-k 100 --output -

  # Quick check on 500 sampled candidates with a progress view
  bertrank rank --sample 500 --progress --output sample.run`,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVarP(&rankOutput, "output", "o", "", "run file path, - for stdout (default from config)")
	rankCmd.Flags().IntVarP(&rankTopK, "top-k", "k", 0, "documents kept per topic (default from config)")
	rankCmd.Flags().StringVar(&rankRunTag, "run-tag", "", "run tag written in the last column (default from config)")
	rankCmd.Flags().IntVar(&rankWorkers, "workers", 0, "concurrent scoring workers, 0 for one per CPU (default from config)")
	rankCmd.Flags().IntVar(&rankSample, "sample", 0, "rank a seeded random sample of this many candidates")
	rankCmd.Flags().BoolVar(&rankShowProgress, "progress", false, "show a progress view when stderr is a terminal")
}

// loadConfig reads the config file and environment, then applies the
// rank flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, err
	}
	applyRankFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func applyRankFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Ranker.Output = rankOutput
	}
	if flags.Changed("top-k") {
		cfg.Ranker.TopK = rankTopK
	}
	if flags.Changed("run-tag") {
		cfg.Ranker.RunTag = rankRunTag
	}
	if flags.Changed("workers") {
		cfg.Ranker.Workers = rankWorkers
	}
	if flags.Changed("sample") {
		cfg.Data.SampleSize = rankSample
	}
}

func runRank(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	tel, err := telemetry.New(ctx, telemetry.FromRunConfig(cfg, runID, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := newLogger(cfg.Logging, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return err
	}
	// Runs after the logger is synced, so the last records are exported.
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "bertrank: %v\n", err)
		}
	}()
	defer func() { _ = logger.Sync() }()

	if h := tel.Health(); h.Degraded {
		logger.Warn(ctx, "telemetry degraded", zap.String("reason", h.Reason))
	}
	if cfg.Logging.OTEL && !cfg.Telemetry.Enabled {
		logger.Warn(ctx, "logging.otel has no effect while telemetry is disabled")
	}

	showProgress := rankShowProgress && progress.Enabled(os.Stderr)

	res, err := manager.Setup(ctx, cfg, showProgress, logger)
	if err != nil {
		logger.Error(ctx, "setup failed", zap.Error(err))
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Warn(ctx, "closing encoder", zap.Error(err))
		}
	}()

	metrics := ranking.NewMetrics()
	scorer := similarity.NewScorer(res.Encoder.Tokenizer, res.Encoder.Model, logger)
	engine := ranking.NewEngine(scorer, res.Store, logger,
		ranking.WithWorkers(cfg.Ranker.Workers),
		ranking.WithRunTag(cfg.Ranker.RunTag),
		ranking.WithMetrics(metrics),
		ranking.WithTracer(tel.Tracer("bertrank/ranking")),
	)

	tops := res.Topics.All()
	var reporter *progress.Reporter
	var options []manager.Option
	if showProgress {
		reporter = progress.Start(len(tops), os.Stderr, stop)
		options = append(options, manager.WithProgress(reporter.Update))
	}

	mgr, err := manager.New(engine, tops, res.Pool, manager.Options{
		TopK:           cfg.Ranker.TopK,
		RunTag:         cfg.Ranker.RunTag,
		Output:         cfg.Ranker.Output,
		ScorePrecision: cfg.Ranker.ScorePrecision,
	}, logger, options...)
	if err != nil {
		if reporter != nil {
			_ = reporter.Finish(err)
		}
		return err
	}

	logger.Info(ctx, "run starting",
		zap.String("model", res.Encoder.Name),
		zap.String("run_tag", cfg.Ranker.RunTag),
		zap.String("output", cfg.Ranker.Output),
	)

	summary, runErr := mgr.Run(ctx)
	if reporter != nil {
		if err := reporter.Finish(runErr); err != nil {
			logger.Warn(ctx, "progress view failed", zap.Error(err))
		}
	}

	pushMetrics(ctx, cfg.Metrics, metrics, runID, logger)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			logger.Warn(ctx, "run interrupted, no run file written",
				zap.Int("entries", summary.Entries),
				zap.Duration("elapsed", summary.Elapsed),
			)
		} else {
			logger.Error(ctx, "run failed", zap.Error(runErr))
		}
		return runErr
	}

	if !showProgress && summary.Output != "" && summary.Output != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d entries for %d topics to %s in %s\n",
			summary.Entries, summary.Queries, summary.Output, summary.Elapsed.Round(time.Millisecond))
	}
	return nil
}

// pushMetrics sends the run metrics to the configured Pushgateway. A push
// failure does not fail the run.
func pushMetrics(ctx context.Context, cfg config.MetricsConfig, m *ranking.Metrics, runID string, logger *logging.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := m.Push(pushCtx, cfg.PushgatewayURL, cfg.Job, map[string]string{"run_id": runID}); err != nil {
		logger.Warn(ctx, "metrics push failed", zap.Error(err))
		return
	}
	logger.Debug(ctx, "metrics pushed", zap.String("url", cfg.PushgatewayURL))
}
