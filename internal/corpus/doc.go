// Package corpus loads CORD-19 metadata and serves document text by
// cord_uid.
//
// Metadata comes from metadata.csv, optionally through a SQLite cache
// keyed on the CSV's size and modification time. Document text is read
// from the parsed JSON files the metadata points at, preferring the PMC
// parse over the PDF parse.
package corpus

import (
	"context"
	"errors"
)

// ErrNotFound indicates an unknown document id or a missing backing file.
var ErrNotFound = errors.New("document not found")

// Source returns the full text of a document.
type Source interface {
	Text(ctx context.Context, id string) (string, error)
}
