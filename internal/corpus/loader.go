package corpus

import (
	"context"

	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"go.uber.org/zap"
)

// LoadMetadataCached returns the metadata in csvPath, served from the
// SQLite cache at cachePath when the cache was built from the same file.
// A stale or empty cache is rebuilt. An empty cachePath disables caching.
// Cache failures are logged and never fatal.
func LoadMetadataCached(ctx context.Context, csvPath, cachePath string, logger *logging.Logger) (map[string]Metadata, error) {
	if cachePath == "" {
		return LoadMetadata(csvPath)
	}

	fp, err := FingerprintOf(csvPath)
	if err != nil {
		return nil, err
	}

	cache, err := OpenCache(cachePath)
	if err != nil {
		logger.Warn(ctx, "metadata cache unavailable", zap.String("path", cachePath), zap.Error(err))
		return LoadMetadata(csvPath)
	}
	defer cache.Close()

	meta, ok, err := cache.Load(ctx, fp)
	if err != nil {
		logger.Warn(ctx, "metadata cache unreadable", zap.String("path", cachePath), zap.Error(err))
	}
	if ok {
		logger.Debug(ctx, "metadata served from cache",
			zap.String("path", cachePath),
			zap.Int("documents", len(meta)),
		)
		return meta, nil
	}

	meta, err = LoadMetadata(csvPath)
	if err != nil {
		return nil, err
	}
	if err := cache.Save(ctx, fp, meta); err != nil {
		logger.Warn(ctx, "metadata cache not saved", zap.String("path", cachePath), zap.Error(err))
	} else {
		logger.Info(ctx, "metadata cache rebuilt",
			zap.String("path", cachePath),
			zap.Int("documents", len(meta)),
		)
	}
	return meta, nil
}
