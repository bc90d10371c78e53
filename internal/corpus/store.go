package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// parsedDocument is the subset of a CORD-19 document parse that is read.
type parsedDocument struct {
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
	BodyText []struct {
		Text string `json:"text"`
	} `json:"body_text"`
}

// Store serves document text from the JSON parses under a data directory.
// Text is memoized, so each file is read at most once. Store is safe for
// concurrent use.
type Store struct {
	dataDir string
	meta    map[string]Metadata
	logger  *logging.Logger

	mu   sync.RWMutex
	docs map[string]string
}

var _ Source = (*Store)(nil)

// NewStore creates a Store over meta. File paths in meta are resolved
// against dataDir.
func NewStore(dataDir string, meta map[string]Metadata, logger *logging.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		meta:    meta,
		logger:  logger.Named("corpus"),
		docs:    make(map[string]string),
	}
}

// Len returns the number of documents with metadata.
func (s *Store) Len() int { return len(s.meta) }

// Metadata returns the metadata row for id.
func (s *Store) Metadata(id string) (Metadata, bool) {
	m, ok := s.meta[id]
	return m, ok
}

// Text returns the title followed by the body paragraphs of id, joined by
// single spaces. It returns ErrNotFound when id has no metadata or its
// file is missing.
func (s *Store) Text(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	text, ok := s.docs[id]
	s.mu.RUnlock()
	if ok {
		return text, nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := s.read(id)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.docs[id] = text
	s.mu.Unlock()
	return text, nil
}

func (s *Store) read(id string) (string, error) {
	m, ok := s.meta[id]
	if !ok {
		return "", fmt.Errorf("%w: %s has no metadata", ErrNotFound, id)
	}

	rel := filepath.FromSlash(m.Path())
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s points outside the data directory: %s", ErrNotFound, id, m.Path())
	}
	data, err := os.ReadFile(filepath.Join(s.dataDir, rel))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s: file %s is missing", ErrNotFound, id, m.Path())
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", id, err)
	}

	var doc parsedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decoding %s (%s): %w", id, m.Path(), err)
	}

	parts := make([]string, 0, len(doc.BodyText)+1)
	title := strings.TrimSpace(doc.Metadata.Title)
	if title == "" {
		title = m.Title
	}
	if title != "" {
		parts = append(parts, title)
	}
	for _, p := range doc.BodyText {
		if t := strings.TrimSpace(p.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// Preload reads ids into memory with up to workers concurrent reads.
// Documents that fail to load are logged and left out; they fail again on
// Text. It returns the number loaded.
func (s *Store) Preload(ctx context.Context, ids []string, workers int) (int, error) {
	if workers <= 0 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		loaded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := s.Text(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.Debug(ctx, "document not preloaded",
					zap.String("doc.id", id),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			loaded++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return loaded, err
	}
	if err := ctx.Err(); err != nil {
		return loaded, err
	}

	s.logger.Info(ctx, "documents preloaded",
		zap.Int("loaded", loaded),
		zap.Int("requested", len(ids)),
	)
	return loaded, nil
}
