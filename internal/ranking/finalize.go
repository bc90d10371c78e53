package ranking

import (
	"errors"
	"math"
	"sort"

	"github.com/fyrsmithlabs/bertrank/internal/corpus"
	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/fyrsmithlabs/bertrank/internal/trec"
)

// ScoredPair is the score of one document for one query.
type ScoredPair struct {
	QueryID string
	DocID   string
	Score   float64
}

// Skip records a pair left out of a ranking.
type Skip struct {
	DocID  string
	Reason string
	Err    error
}

// QueryResult is the finalized ranking of one query.
type QueryResult struct {
	QueryID string
	Entries []trec.RankedEntry
	Scored  int    // pairs with a score, before truncation
	Skipped []Skip // pairs without a score, in pool order
}

// finalize ranks the scored outcomes of a: highest score first, ties in
// pool order, truncated to k, ranks 1..n.
func finalize(a *accumulator, k int, runTag string) QueryResult {
	res := QueryResult{QueryID: a.query.ID}

	pairs := make([]ScoredPair, 0, len(a.outcomes))
	for i, o := range a.outcomes {
		switch {
		case o.Skipped():
			res.Skipped = append(res.Skipped, Skip{DocID: a.pool[i], Reason: skipReason(o.Err), Err: o.Err})
		case math.IsNaN(o.Score):
			res.Skipped = append(res.Skipped, Skip{DocID: a.pool[i], Reason: reasonInvalidScore})
		default:
			pairs = append(pairs, ScoredPair{QueryID: a.query.ID, DocID: a.pool[i], Score: o.Score})
		}
	}
	res.Scored = len(pairs)

	// Stable: candidates with equal scores keep their pool order.
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Score > pairs[j].Score
	})

	limit := k
	if limit > len(pairs) {
		limit = len(pairs)
	}

	res.Entries = make([]trec.RankedEntry, limit)
	for i := 0; i < limit; i++ {
		res.Entries[i] = trec.RankedEntry{
			QueryID: pairs[i].QueryID,
			DocID:   pairs[i].DocID,
			Rank:    i + 1,
			Score:   pairs[i].Score,
			RunTag:  runTag,
		}
	}
	return res
}

// Skip reasons, used as log fields and metric labels.
const (
	reasonNotFound     = "not_found"
	reasonSource       = "source_error"
	reasonBudget       = "budget_exceeded"
	reasonEmpty        = "empty_text"
	reasonScoring      = "scoring_error"
	reasonInvalidScore = "invalid_score"
)

func skipReason(err error) string {
	switch {
	case errors.Is(err, corpus.ErrNotFound):
		return reasonNotFound
	case errors.Is(err, errSource):
		return reasonSource
	case errors.Is(err, similarity.ErrBudgetExceeded):
		return reasonBudget
	case errors.Is(err, similarity.ErrEmptyText):
		return reasonEmpty
	default:
		return reasonScoring
	}
}
