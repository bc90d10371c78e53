package manager

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/fyrsmithlabs/bertrank/internal/config"
	"github.com/fyrsmithlabs/bertrank/internal/corpus"
	"github.com/fyrsmithlabs/bertrank/internal/encoder"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/fyrsmithlabs/bertrank/internal/topics"
	"go.uber.org/zap"
)

// Data is the run input: topics, candidate pool and document store.
type Data struct {
	Topics *topics.Collection
	Pool   []string
	Store  *corpus.Store
}

// LoadData reads the topics, the candidate pool and the corpus metadata.
// Any failure is fatal to the run. Pool ids without metadata are kept;
// the engine skips them.
func LoadData(ctx context.Context, cfg config.DataConfig, workers int, logger *logging.Logger) (*Data, error) {
	tops, err := topics.Load(cfg.Topics)
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}
	if tops.Len() == 0 {
		return nil, fmt.Errorf("loading topics: %s has no topics", cfg.Topics)
	}

	ids, err := corpus.ReadValidDocs(cfg.ValidDocs)
	if err != nil {
		return nil, fmt.Errorf("loading candidate pool: %w", err)
	}
	pool := corpus.Sample(ids, cfg.SampleSize, cfg.SampleSeed)

	meta, err := corpus.LoadMetadataCached(ctx, cfg.Metadata, cfg.CachePath, logger)
	if err != nil {
		return nil, fmt.Errorf("loading metadata: %w", err)
	}
	store := corpus.NewStore(cfg.DocsDir, meta, logger)

	missing := 0
	for _, id := range pool {
		if _, ok := store.Metadata(id); !ok {
			missing++
		}
	}
	if missing > 0 {
		logger.Warn(ctx, "candidates without metadata will be skipped",
			zap.Int("missing", missing),
			zap.Int("pool", len(pool)),
		)
	}

	if cfg.Preload {
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		if _, err := store.Preload(ctx, pool, workers); err != nil {
			return nil, fmt.Errorf("preloading documents: %w", err)
		}
	}

	logger.Info(ctx, "run data loaded",
		zap.Int("topics", tops.Len()),
		zap.Int("candidates", len(pool)),
		zap.Int("valid_docs", len(ids)),
		zap.Int("metadata", store.Len()),
	)
	return &Data{Topics: tops, Pool: pool, Store: store}, nil
}

// Resources are the loaded data plus the encoder.
type Resources struct {
	*Data
	Encoder *encoder.Encoder
}

// Close releases the encoder.
func (r *Resources) Close() error {
	if r == nil || r.Encoder == nil {
		return nil
	}
	return r.Encoder.Close()
}

// Setup loads everything a run needs, data first so that a bad path is
// reported before the model is downloaded or loaded.
func Setup(ctx context.Context, cfg *config.Config, showProgress bool, logger *logging.Logger) (*Resources, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	data, err := LoadData(ctx, cfg.Data, cfg.Ranker.Workers, logger)
	if err != nil {
		return nil, err
	}

	encCfg := encoder.FromRunConfig(cfg.Encoder)
	encCfg.ShowProgress = showProgress
	enc, err := encoder.Open(ctx, encCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("loading encoder: %w", err)
	}
	return &Resources{Data: data, Encoder: enc}, nil
}
