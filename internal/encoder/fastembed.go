//go:build cgo

package encoder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// fetchMu serializes downloads; fastembed-go initializes the runtime
// environment while it loads a model.
var fetchMu sync.Mutex

// FetchModel ensures the fastembed bundle for model is present under
// cacheDir and returns its location. The library path must already be
// exported as ONNX_PATH (see EnsureONNXRuntime).
func FetchModel(ctx context.Context, model, cacheDir string, showProgress bool) (Bundle, error) {
	m, err := lookupModel(model)
	if err != nil {
		return Bundle{}, err
	}
	if cacheDir == "" {
		cacheDir = "local_cache"
	}

	dir := filepath.Join(cacheDir, m.name)
	if b, err := locateBundle(dir); err == nil {
		b.Dimension = m.dimension
		return b, nil
	}

	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}

	fetchMu.Lock()
	defer fetchMu.Unlock()

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                fastembed.EmbeddingModel(m.name),
		CacheDir:             cacheDir,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return Bundle{}, fmt.Errorf("fetching model %s: %w", model, err)
	}
	if err := flagEmbed.Destroy(); err != nil {
		return Bundle{}, fmt.Errorf("releasing fastembed model: %w", err)
	}

	b, err := locateBundle(dir)
	if err != nil {
		return Bundle{}, err
	}
	b.Dimension = m.dimension
	return b, nil
}
