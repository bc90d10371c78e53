package trec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/bertrank/internal/config"
)

// DefaultPrecision is the number of decimals written per score.
const DefaultPrecision = 6

// ShortestPrecision selects the shortest decimal that parses back to the
// same float64.
const ShortestPrecision = -1

var (
	// ErrInvalidTag indicates a run tag that cannot be a single field.
	ErrInvalidTag = errors.New("invalid run tag")

	// ErrTagMismatch indicates an entry stamped with a different run tag
	// than the exporter writes.
	ErrTagMismatch = errors.New("run tag mismatch")

	// ErrMalformedLine indicates a run or qrels line that does not parse.
	ErrMalformedLine = errors.New("malformed line")
)

// RankedEntry is one line of a run: a document at a rank for a query.
type RankedEntry struct {
	QueryID string
	DocID   string
	Rank    int
	Score   float64
	RunTag  string
}

// Exporter writes RankedEntry values in run file format. Each Write is
// formatted completely before any of it reaches the writer, so a failed
// Write leaves no partial line. Output is buffered unless WithGroupWrites
// is set; call Flush when done.
type Exporter struct {
	w          io.Writer
	buf        *bufio.Writer
	unbuffered bool
	group      []byte
	tag        string
	precision  int
	written    int
}

// ExporterOption configures an Exporter.
type ExporterOption func(*Exporter)

// WithPrecision sets the decimals written per score. Use ShortestPrecision
// for round-trip formatting.
func WithPrecision(p int) ExporterOption {
	return func(e *Exporter) {
		e.precision = p
	}
}

// WithGroupWrites hands each Write to the underlying writer as a single
// call. Use it for a stream that cannot be rolled back, such as stdout,
// where a readable prefix must end on a group boundary.
func WithGroupWrites() ExporterOption {
	return func(e *Exporter) {
		e.unbuffered = true
	}
}

// NewExporter creates an Exporter writing to w with the given run tag.
func NewExporter(w io.Writer, tag string, opts ...ExporterOption) (*Exporter, error) {
	if err := config.ValidateRunTag(tag); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTag, err)
	}
	e := &Exporter{
		w:         w,
		tag:       tag,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.precision < ShortestPrecision {
		return nil, fmt.Errorf("score precision must be >= %d, got %d", ShortestPrecision, e.precision)
	}
	if !e.unbuffered {
		e.buf = bufio.NewWriter(w)
		e.w = e.buf
	}
	return e, nil
}

// Write appends entries in the order given as one group. An entry with an
// empty RunTag takes the exporter's tag; any other tag fails the whole
// group before anything is written.
func (e *Exporter) Write(entries ...RankedEntry) error {
	for _, entry := range entries {
		if entry.RunTag != "" && entry.RunTag != e.tag {
			return fmt.Errorf("%w: entry %s/%s has %q, run is %q",
				ErrTagMismatch, entry.QueryID, entry.DocID, entry.RunTag, e.tag)
		}
	}
	e.group = e.group[:0]
	for _, entry := range entries {
		e.group = e.appendLine(e.group, entry)
	}
	if len(e.group) == 0 {
		return nil
	}
	if _, err := e.w.Write(e.group); err != nil {
		return fmt.Errorf("writing run entries: %w", err)
	}
	e.written += len(entries)
	return nil
}

// Flush writes any buffered lines to the underlying writer.
func (e *Exporter) Flush() error {
	if e.buf == nil {
		return nil
	}
	if err := e.buf.Flush(); err != nil {
		return fmt.Errorf("flushing run file: %w", err)
	}
	return nil
}

// Written returns the number of entries written so far.
func (e *Exporter) Written() int { return e.written }

func (e *Exporter) appendLine(b []byte, entry RankedEntry) []byte {
	b = append(b, entry.QueryID...)
	b = append(b, " Q0 "...)
	b = append(b, entry.DocID...)
	b = append(b, ' ')
	b = strconv.AppendInt(b, int64(entry.Rank), 10)
	b = append(b, ' ')
	b = strconv.AppendFloat(b, entry.Score, 'f', e.precision, 64)
	b = append(b, ' ')
	b = append(b, e.tag...)
	return append(b, '\n')
}

// ParseRun reads a run file. Entries are returned in file order.
func ParseRun(r io.Reader) ([]RankedEntry, error) {
	var entries []RankedEntry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 6 {
			return nil, fmt.Errorf("%w: line %d: want 6 fields, got %d", ErrMalformedLine, line, len(fields))
		}
		if fields[1] != "Q0" {
			return nil, fmt.Errorf("%w: line %d: second field must be Q0, got %q", ErrMalformedLine, line, fields[1])
		}
		rank, err := strconv.Atoi(fields[3])
		if err != nil || rank < 1 {
			return nil, fmt.Errorf("%w: line %d: rank %q", ErrMalformedLine, line, fields[3])
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: score %q", ErrMalformedLine, line, fields[4])
		}
		entries = append(entries, RankedEntry{
			QueryID: fields[0],
			DocID:   fields[2],
			Rank:    rank,
			Score:   score,
			RunTag:  fields[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading run: %w", err)
	}
	return entries, nil
}
