package trec

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// QueryScores holds the cutoff measures for one query.
type QueryScores struct {
	QueryID   string
	Retrieved int
	Judged    int // retrieved documents with any judgment
	Precision float64
	NDCG      float64
}

// Report is the result of evaluating a run at cutoff K.
type Report struct {
	K             int
	Queries       []QueryScores // sorted by query id
	MeanPrecision float64
	MeanNDCG      float64
}

// Evaluate computes P@k and nDCG@k for every query that appears in both
// run and qrels. A document counts as relevant when its grade is > 0.
// Gains are the raw grades with a log2(rank+1) discount.
func Evaluate(run []RankedEntry, qrels Qrels, k int) (Report, error) {
	if k <= 0 {
		return Report{}, fmt.Errorf("cutoff must be > 0, got %d", k)
	}

	byQuery := make(map[string][]RankedEntry)
	for _, e := range run {
		byQuery[e.QueryID] = append(byQuery[e.QueryID], e)
	}

	report := Report{K: k}
	for qid, entries := range byQuery {
		judged, ok := qrels[qid]
		if !ok {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
		if len(entries) > k {
			entries = entries[:k]
		}
		report.Queries = append(report.Queries, scoreQuery(qid, entries, judged, k))
	}
	if len(report.Queries) == 0 {
		return report, errors.New("no query in the run has relevance judgments")
	}

	sort.Slice(report.Queries, func(i, j int) bool { return report.Queries[i].QueryID < report.Queries[j].QueryID })
	for _, q := range report.Queries {
		report.MeanPrecision += q.Precision
		report.MeanNDCG += q.NDCG
	}
	n := float64(len(report.Queries))
	report.MeanPrecision /= n
	report.MeanNDCG /= n
	return report, nil
}

func scoreQuery(qid string, entries []RankedEntry, judged map[string]int, k int) QueryScores {
	s := QueryScores{QueryID: qid, Retrieved: len(entries)}

	relevant := 0
	dcg := 0.0
	for i, e := range entries {
		rel, ok := judged[e.DocID]
		if !ok {
			continue
		}
		s.Judged++
		if rel > 0 {
			relevant++
			dcg += float64(rel) / math.Log2(float64(i+2))
		}
	}
	s.Precision = float64(relevant) / float64(k)

	ideal := make([]int, 0, len(judged))
	for _, rel := range judged {
		if rel > 0 {
			ideal = append(ideal, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))
	idcg := 0.0
	for i, rel := range ideal {
		if i >= k {
			break
		}
		idcg += float64(rel) / math.Log2(float64(i+2))
	}
	if idcg > 0 {
		s.NDCG = dcg / idcg
	}
	return s
}
