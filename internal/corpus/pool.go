package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"unicode"
)

// ErrInvalidID indicates a pool id that cannot be a single run file field.
var ErrInvalidID = errors.New("invalid document id")

// ReadValidDocs reads one document id per line from path. Blank lines are
// skipped and repeated ids are kept once, in first-seen order. An id with
// inner whitespace fails the read.
func ReadValidDocs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening candidate pool: %w", err)
	}
	defer f.Close()
	return ParseValidDocs(f)
}

// ParseValidDocs is ReadValidDocs over a reader.
func ParseValidDocs(r io.Reader) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		if strings.ContainsFunc(id, unicode.IsSpace) {
			return nil, fmt.Errorf("%w: line %d: %q contains whitespace", ErrInvalidID, line, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading candidate pool: %w", err)
	}
	return ids, nil
}

// Sample picks n ids without replacement using seed, returned in their
// original order. n <= 0 or n >= len(ids) returns a copy of ids.
func Sample(ids []string, n int, seed int64) []string {
	if n <= 0 || n >= len(ids) {
		return slices.Clone(ids)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	picked := rng.Perm(len(ids))[:n]
	slices.Sort(picked)

	out := make([]string, n)
	for i, idx := range picked {
		out[i] = ids[idx]
	}
	return out
}
