// Package manager runs a complete ranking: every topic against the
// candidate pool, written to a TREC run file.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/fyrsmithlabs/bertrank/internal/ranking"
	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/fyrsmithlabs/bertrank/internal/topics"
	"github.com/fyrsmithlabs/bertrank/internal/trec"
	"go.uber.org/zap"
)

// ErrInvalidConfig indicates run options that cannot produce a run file.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Ranker ranks a candidate pool against queries. *ranking.Engine
// implements it.
type Ranker interface {
	Rank(ctx context.Context, queries []similarity.Query, pool []string, k int, emit func(ranking.QueryResult) error) error
}

// Options configures a run.
type Options struct {
	TopK   int
	RunTag string

	// Output is the run file path. Empty or "-" writes to Stdout.
	Output string

	// ScorePrecision is passed to the exporter; see trec.WithPrecision.
	ScorePrecision int
}

// Progress reports one finished query.
type Progress struct {
	QueryID string
	Done    int
	Total   int
	Entries int
	Skipped int
}

// Summary describes a finished run.
type Summary struct {
	Queries    int
	Candidates int
	Entries    int
	Skipped    int
	Output     string
	Elapsed    time.Duration
}

// Manager writes the ranking of every topic against a candidate pool.
type Manager struct {
	ranker   Ranker
	topics   []topics.Topic
	pool     []string
	opts     Options
	logger   *logging.Logger
	stdout   io.Writer
	progress func(Progress)
}

// Option configures a Manager.
type Option func(*Manager)

// WithStdout sets the writer used when Output is empty or "-".
func WithStdout(w io.Writer) Option {
	return func(m *Manager) {
		m.stdout = w
	}
}

// WithProgress calls fn after each query is written. fn is never called
// concurrently.
func WithProgress(fn func(Progress)) Option {
	return func(m *Manager) {
		m.progress = fn
	}
}

// New creates a Manager. It fails fast on options that would make the run
// pointless, before any scoring.
func New(ranker Ranker, tops []topics.Topic, pool []string, opts Options, logger *logging.Logger, options ...Option) (*Manager, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be > 0, got %d", ErrInvalidConfig, opts.TopK)
	}
	if _, err := trec.NewExporter(io.Discard, opts.RunTag, trec.WithPrecision(opts.ScorePrecision)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	m := &Manager{
		ranker: ranker,
		topics: tops,
		pool:   pool,
		opts:   opts,
		logger: logger.Named("manager"),
		stdout: os.Stdout,
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// Run ranks every topic and writes the run file. A file output is written
// to a temporary file and renamed into place only when the run completes,
// so an interrupted run never leaves a partial file at Output. Stdout
// receives one complete query at a time; an interrupted run leaves only
// whole queries there.
func (m *Manager) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	summary := Summary{
		Queries:    len(m.topics),
		Candidates: len(m.pool),
		Output:     m.opts.Output,
	}

	out, commit, abort, err := m.openOutput()
	if err != nil {
		return summary, err
	}

	exportOpts := []trec.ExporterOption{trec.WithPrecision(m.opts.ScorePrecision)}
	if m.toStdout() {
		// stdout cannot be rolled back, so each query reaches it whole.
		exportOpts = append(exportOpts, trec.WithGroupWrites())
	}
	exporter, err := trec.NewExporter(out, m.opts.RunTag, exportOpts...)
	if err != nil {
		abort()
		return summary, err
	}

	queries := make([]similarity.Query, len(m.topics))
	for i, t := range m.topics {
		queries[i] = similarity.Query{ID: t.Number, Text: t.Text()}
	}

	done := 0
	err = m.ranker.Rank(ctx, queries, m.pool, m.opts.TopK, func(r ranking.QueryResult) error {
		if err := exporter.Write(r.Entries...); err != nil {
			return err
		}
		done++
		summary.Skipped += len(r.Skipped)
		if m.progress != nil {
			m.progress(Progress{
				QueryID: r.QueryID,
				Done:    done,
				Total:   len(queries),
				Entries: len(r.Entries),
				Skipped: len(r.Skipped),
			})
		}
		return nil
	})
	summary.Entries = exporter.Written()
	summary.Elapsed = time.Since(start)
	if err != nil {
		abort()
		return summary, fmt.Errorf("ranking: %w", err)
	}

	if err := exporter.Flush(); err != nil {
		abort()
		return summary, err
	}
	if err := commit(); err != nil {
		return summary, err
	}

	m.logger.Info(ctx, "run written",
		zap.String("output", m.outputName()),
		zap.Int("queries", summary.Queries),
		zap.Int("candidates", summary.Candidates),
		zap.Int("entries", summary.Entries),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

func (m *Manager) toStdout() bool {
	return m.opts.Output == "" || m.opts.Output == "-"
}

func (m *Manager) outputName() string {
	if m.toStdout() {
		return "stdout"
	}
	return m.opts.Output
}

// openOutput returns the writer for the run and functions that finish or
// discard it.
func (m *Manager) openOutput() (w io.Writer, commit func() error, abort func(), err error) {
	if m.toStdout() {
		return m.stdout, func() error { return nil }, func() {}, nil
	}

	dir := filepath.Dir(m.opts.Output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.opts.Output)+".*.tmp")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating run file: %w", err)
	}

	abort = func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	commit = func() error {
		if err := tmp.Sync(); err != nil {
			abort()
			return fmt.Errorf("syncing run file: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("closing run file: %w", err)
		}
		if err := os.Chmod(tmp.Name(), 0o644); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("setting run file mode: %w", err)
		}
		if err := os.Rename(tmp.Name(), m.opts.Output); err != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("moving run file into place: %w", err)
		}
		return nil
	}
	return tmp, commit, abort, nil
}
