package trec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Qrels maps query id to document id to graded relevance.
type Qrels map[string]map[string]int

// Relevance returns the judged relevance of docID for queryID, and
// whether the pair was judged at all.
func (q Qrels) Relevance(queryID, docID string) (int, bool) {
	docs, ok := q[queryID]
	if !ok {
		return 0, false
	}
	rel, ok := docs[docID]
	return rel, ok
}

// ReadQrels parses "<qid> <iter> <docid> <rel>" lines. A later judgment of
// the same pair replaces an earlier one.
func ReadQrels(r io.Reader) (Qrels, error) {
	qrels := make(Qrels)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: qrels line %d: want 4 fields, got %d", ErrMalformedLine, line, len(fields))
		}
		rel, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: qrels line %d: relevance %q", ErrMalformedLine, line, fields[3])
		}
		docs, ok := qrels[fields[0]]
		if !ok {
			docs = make(map[string]int)
			qrels[fields[0]] = docs
		}
		docs[fields[2]] = rel
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading qrels: %w", err)
	}
	return qrels, nil
}
