package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Metadata is the part of a metadata.csv row needed to locate a document.
type Metadata struct {
	CordUID  string
	Title    string
	Abstract string
	PDFFile  string // first of pdf_json_files, relative to the data directory
	PMCFile  string // first of pmc_json_files, relative to the data directory
}

// Path returns the JSON file to read: the PMC parse when there is one,
// else the PDF parse.
func (m Metadata) Path() string {
	if m.PMCFile != "" {
		return m.PMCFile
	}
	return m.PDFFile
}

var requiredColumns = []string{"cord_uid", "title", "abstract", "pdf_json_files", "pmc_json_files"}

// LoadMetadata reads metadata.csv from path.
func LoadMetadata(path string) (map[string]Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata: %w", err)
	}
	defer f.Close()

	meta, err := ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return meta, nil
}

// ParseMetadata reads CORD-19 metadata rows, locating columns by header
// name. The first row for a cord_uid wins. Rows with neither a PDF nor a
// PMC parse are dropped.
func ParseMetadata(r io.Reader) (map[string]Metadata, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("metadata is empty")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("metadata has no %q column", name)
		}
	}

	field := func(rec []string, name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	meta := make(map[string]Metadata)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading metadata: %w", err)
		}

		uid := field(rec, "cord_uid")
		if uid == "" {
			continue
		}
		if _, seen := meta[uid]; seen {
			continue
		}
		m := Metadata{
			CordUID:  uid,
			Title:    field(rec, "title"),
			Abstract: field(rec, "abstract"),
			PDFFile:  firstPath(field(rec, "pdf_json_files")),
			PMCFile:  firstPath(field(rec, "pmc_json_files")),
		}
		if m.Path() == "" {
			continue
		}
		meta[uid] = m
	}
	return meta, nil
}

// firstPath returns the first entry of a "a; b" file list.
func firstPath(s string) string {
	first, _, _ := strings.Cut(s, ";")
	return strings.TrimSpace(first)
}
