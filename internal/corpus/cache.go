package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_source (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	path       TEXT NOT NULL,
	size       INTEGER NOT NULL,
	mod_time   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS metadata (
	cord_uid   TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	abstract   TEXT NOT NULL,
	pdf_file   TEXT NOT NULL,
	pmc_file   TEXT NOT NULL
);
`

// Fingerprint identifies the metadata.csv a cache was built from.
type Fingerprint struct {
	Path    string
	Size    int64
	ModTime int64 // unix nanoseconds
}

// FingerprintOf stats path.
func FingerprintOf(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("stat metadata: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return Fingerprint{Path: abs, Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// MetadataCache persists parsed metadata in SQLite so later runs skip the
// CSV parse.
type MetadataCache struct {
	db   *sql.DB
	path string
}

// OpenCache opens or creates the cache database at path.
func OpenCache(path string) (*MetadataCache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &MetadataCache{db: db, path: path}, nil
}

// Close closes the database.
func (c *MetadataCache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *MetadataCache) Path() string {
	return c.path
}

// Load returns the cached metadata if it was built from fp. The boolean
// is false when the cache is empty or stale.
func (c *MetadataCache) Load(ctx context.Context, fp Fingerprint) (map[string]Metadata, bool, error) {
	var cached Fingerprint
	err := c.db.QueryRowContext(ctx,
		`SELECT path, size, mod_time FROM cache_source WHERE id = 1`,
	).Scan(&cached.Path, &cached.Size, &cached.ModTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache fingerprint: %w", err)
	}
	if cached != fp {
		return nil, false, nil
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT cord_uid, title, abstract, pdf_file, pmc_file FROM metadata`)
	if err != nil {
		return nil, false, fmt.Errorf("querying metadata: %w", err)
	}
	defer rows.Close()

	meta := make(map[string]Metadata)
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.CordUID, &m.Title, &m.Abstract, &m.PDFFile, &m.PMCFile); err != nil {
			return nil, false, fmt.Errorf("scanning metadata: %w", err)
		}
		meta[m.CordUID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating metadata: %w", err)
	}
	return meta, true, nil
}

// Save replaces the cache contents with meta, stamped with fp.
func (c *MetadataCache) Save(ctx context.Context, fp Fingerprint, meta map[string]Metadata) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("clearing metadata: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO metadata (cord_uid, title, abstract, pdf_file, pmc_file) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range meta {
		if _, err := stmt.ExecContext(ctx, m.CordUID, m.Title, m.Abstract, m.PDFFile, m.PMCFile); err != nil {
			return fmt.Errorf("inserting %s: %w", m.CordUID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_source (id, path, size, mod_time) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET path = excluded.path, size = excluded.size, mod_time = excluded.mod_time`,
		fp.Path, fp.Size, fp.ModTime,
	); err != nil {
		return fmt.Errorf("writing cache fingerprint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing cache: %w", err)
	}
	return nil
}
