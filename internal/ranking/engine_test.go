package ranking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/corpus"
	"github.com/fyrsmithlabs/bertrank/internal/encoder"
	"github.com/fyrsmithlabs/bertrank/internal/logging"
	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/fyrsmithlabs/bertrank/internal/telemetry"
	"github.com/fyrsmithlabs/bertrank/internal/trec"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap/zapcore"
)

// mapSource serves text from a map; unknown ids are not found.
type mapSource map[string]string

func (m mapSource) Text(_ context.Context, id string) (string, error) {
	text, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", corpus.ErrNotFound, id)
	}
	return text, nil
}

// tableScorer returns a fixed score per (query, document).
type tableScorer struct {
	scores map[string]map[string]float64
	fail   map[string]error // by document id
	jitter bool
	calls  atomic.Int64
	hook   func(n int64)
}

func (s *tableScorer) Evaluate(ctx context.Context, q similarity.Query, d similarity.Document) similarity.Outcome {
	n := s.calls.Add(1)
	if s.hook != nil {
		s.hook(n)
	}
	if s.jitter {
		time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
	}
	if err, ok := s.fail[d.ID]; ok {
		return similarity.Outcome{Err: &similarity.ScoringError{QueryID: q.ID, DocID: d.ID, Err: err}}
	}
	return similarity.Outcome{Score: s.scores[q.ID][d.ID], Chunks: 1}
}

func randomTable(queries []similarity.Query, pool []string, seed uint64) map[string]map[string]float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	table := make(map[string]map[string]float64, len(queries))
	for _, q := range queries {
		table[q.ID] = make(map[string]float64, len(pool))
		for _, d := range pool {
			table[q.ID][d] = rng.Float64()*2 - 1
		}
	}
	return table
}

func fixture(nQueries, nDocs int) ([]similarity.Query, []string, mapSource) {
	queries := make([]similarity.Query, nQueries)
	for i := range queries {
		queries[i] = similarity.Query{ID: fmt.Sprintf("%d", i+1), Text: "query"}
	}
	pool := make([]string, nDocs)
	src := make(mapSource, nDocs)
	for i := range pool {
		pool[i] = fmt.Sprintf("doc%03d", i)
		src[pool[i]] = "text"
	}
	return queries, pool, src
}

func collect(t *testing.T, e *Engine, queries []similarity.Query, pool []string, k int) []QueryResult {
	t.Helper()
	var out []QueryResult
	err := e.Rank(context.Background(), queries, pool, k, func(r QueryResult) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestRank_InvalidK(t *testing.T) {
	queries, pool, src := fixture(2, 3)
	scorer := &tableScorer{scores: randomTable(queries, pool, 1)}
	e := NewEngine(scorer, src, logging.NewNop())

	for _, k := range []int{0, -1, -100} {
		err := e.Rank(context.Background(), queries, pool, k, func(QueryResult) error {
			t.Fatal("emit called")
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidInput, "k=%d", k)

		_, err = e.RankAll(context.Background(), queries, pool, k)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Zero(t, scorer.calls.Load(), "no scoring before validation")

	err := e.Rank(context.Background(), queries, pool, 1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRank_MonotonicAndTruncated(t *testing.T) {
	queries, pool, src := fixture(5, 40)
	table := randomTable(queries, pool, 7)
	e := NewEngine(&tableScorer{scores: table, jitter: true}, src, logging.NewNop(), WithWorkers(8), WithRunTag("run1"))

	const k = 10
	results := collect(t, e, queries, pool, k)
	require.Len(t, results, len(queries))

	for i, r := range results {
		assert.Equal(t, queries[i].ID, r.QueryID, "query order")
		require.Len(t, r.Entries, k)
		assert.Equal(t, len(pool), r.Scored)

		for j, entry := range r.Entries {
			assert.Equal(t, j+1, entry.Rank)
			assert.Equal(t, r.QueryID, entry.QueryID)
			assert.Equal(t, "run1", entry.RunTag)
			if j > 0 {
				assert.GreaterOrEqual(t, r.Entries[j-1].Score, entry.Score)
			}
		}

		// The entries are exactly the k best.
		all := make([]float64, 0, len(pool))
		for _, s := range table[r.QueryID] {
			all = append(all, s)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(all)))
		for j, entry := range r.Entries {
			assert.Equal(t, all[j], entry.Score)
			assert.Equal(t, table[r.QueryID][entry.DocID], entry.Score)
		}
	}
}

func TestRank_FewerCandidatesThanK(t *testing.T) {
	queries, pool, src := fixture(1, 3)
	e := NewEngine(&tableScorer{scores: randomTable(queries, pool, 3)}, src, logging.NewNop())

	results := collect(t, e, queries, pool, 1000)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Entries, 3)
}

func TestRank_SkipsMissingDocument(t *testing.T) {
	queries, pool, src := fixture(3, 5)
	pool = append(pool[:2], append([]string{"X"}, pool[2:]...)...)
	tl := logging.NewTestLogger()
	e := NewEngine(&tableScorer{scores: randomTable(queries, pool, 5)}, src, tl.Logger, WithWorkers(3))

	results := collect(t, e, queries, pool, 10)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Len(t, r.Entries, 5)
		for _, entry := range r.Entries {
			assert.NotEqual(t, "X", entry.DocID)
		}
		require.Len(t, r.Skipped, 1)
		assert.Equal(t, "X", r.Skipped[0].DocID)
		assert.Equal(t, reasonNotFound, r.Skipped[0].Reason)
		assert.ErrorIs(t, r.Skipped[0].Err, corpus.ErrNotFound)
	}

	assert.Equal(t, 3, tl.CountLogged(zapcore.WarnLevel, "pair skipped"))
	tl.AssertField(t, "pair skipped", "doc.id", "X")
	tl.AssertField(t, "pair skipped", "reason", reasonNotFound)
}

type brokenSource struct{ mapSource }

func (b brokenSource) Text(ctx context.Context, id string) (string, error) {
	if id == "bad" {
		return "", errors.New("permission denied")
	}
	return b.mapSource.Text(ctx, id)
}

func TestRank_SkipReasons(t *testing.T) {
	queries, pool, src := fixture(1, 2)
	pool = append(pool, "bad", "long", "empty")
	src["long"] = "x"
	src["empty"] = ""
	scorer := &tableScorer{
		scores: randomTable(queries, pool, 9),
		fail: map[string]error{
			"long":  similarity.ErrBudgetExceeded,
			"empty": similarity.ErrEmptyText,
		},
	}
	m := NewMetrics()
	e := NewEngine(scorer, brokenSource{src}, logging.NewNop(), WithMetrics(m))

	results := collect(t, e, queries, pool, 10)
	require.Len(t, results, 1)
	r := results[0]
	assert.Len(t, r.Entries, 2)

	reasons := map[string]string{}
	for _, s := range r.Skipped {
		reasons[s.DocID] = s.Reason
	}
	assert.Equal(t, map[string]string{
		"bad":   reasonSource,
		"long":  reasonBudget,
		"empty": reasonEmpty,
	}, reasons)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PairsScored))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsSkipped.WithLabelValues(reasonSource)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsSkipped.WithLabelValues(reasonBudget)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesRanked))
}

func TestRank_TiesKeepPoolOrder(t *testing.T) {
	queries, pool, src := fixture(1, 6)
	table := map[string]map[string]float64{"1": {}}
	for i, d := range pool {
		table["1"][d] = 0.5
		if i == 4 {
			table["1"][d] = 0.9
		}
	}
	e := NewEngine(&tableScorer{scores: table, jitter: true}, src, logging.NewNop(), WithWorkers(6))

	for run := 0; run < 5; run++ {
		results := collect(t, e, queries, pool, 4)
		ids := make([]string, 0, 4)
		for _, entry := range results[0].Entries {
			ids = append(ids, entry.DocID)
		}
		assert.Equal(t, []string{"doc004", "doc000", "doc001", "doc002"}, ids)
	}
}

func TestRankAll_Deterministic(t *testing.T) {
	queries, pool, src := fixture(6, 25)
	table := randomTable(queries, pool, 11)

	var runs [][]trec.RankedEntry
	for _, workers := range []int{1, 4, 16} {
		e := NewEngine(&tableScorer{scores: table, jitter: true}, src, logging.NewNop(), WithWorkers(workers))
		entries, err := e.RankAll(context.Background(), queries, pool, 7)
		require.NoError(t, err)
		require.Len(t, entries, 6*7)
		runs = append(runs, entries)
	}
	assert.Equal(t, runs[0], runs[1])
	assert.Equal(t, runs[0], runs[2])
}

func TestRank_EmptyPool(t *testing.T) {
	queries, _, src := fixture(3, 0)
	e := NewEngine(&tableScorer{}, src, logging.NewNop())

	results := collect(t, e, queries, nil, 5)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, queries[i].ID, r.QueryID)
		assert.Empty(t, r.Entries)
	}
}

func TestRank_EmitErrorStopsRun(t *testing.T) {
	queries, pool, src := fixture(4, 10)
	e := NewEngine(&tableScorer{scores: randomTable(queries, pool, 2)}, src, logging.NewNop(), WithWorkers(2))

	boom := errors.New("write failed")
	calls := 0
	err := e.Rank(context.Background(), queries, pool, 3, func(QueryResult) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestRank_Cancelled(t *testing.T) {
	queries, pool, src := fixture(10, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scorer := &tableScorer{
		scores: randomTable(queries, pool, 4),
		hook: func(n int64) {
			if n == 20 {
				cancel()
			}
		},
	}
	e := NewEngine(scorer, src, logging.NewNop(), WithWorkers(4))

	var mu sync.Mutex
	emitted := 0
	err := e.Rank(ctx, queries, pool, 5, func(QueryResult) error {
		mu.Lock()
		emitted++
		mu.Unlock()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, scorer.calls.Load(), int64(len(queries)*len(pool)))
	assert.Zero(t, emitted)
}

func TestRank_CancelledEndsQuerySpans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	queries, pool, src := fixture(6, 40)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scorer := &tableScorer{
		scores: randomTable(queries, pool, 5),
		hook: func(n int64) {
			if n == 50 {
				cancel()
			}
		},
	}
	e := NewEngine(scorer, src, logging.NewNop(), WithWorkers(3), WithTracer(tt.Tracer("ranking-test")))

	err := e.Rank(ctx, queries, pool, 5, func(QueryResult) error { return nil })
	require.ErrorIs(t, err, context.Canceled)

	// Every query that started scoring has an ended query span.
	scored := tt.QueryIDs("ranking.score_pair")
	ended := tt.QueryIDs("ranking.query")
	require.NotEmpty(t, scored)
	for id := range scored {
		assert.True(t, ended[id], "query %s span not ended", id)
	}

	abandoned := 0
	for _, s := range tt.SpansNamed("ranking.query") {
		if s.Status().Code == codes.Error {
			abandoned++
		}
	}
	assert.Positive(t, abandoned)
}

func TestRank_Spans(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	queries, pool, src := fixture(2, 3)
	e := NewEngine(&tableScorer{scores: randomTable(queries, pool, 8)}, src, logging.NewNop(),
		WithTracer(tt.Tracer("ranking-test")))

	collect(t, e, queries, pool, 2)

	tt.AssertSpanExists(t, "ranking.query")
	tt.AssertSpanExists(t, "ranking.score_pair")
	tt.AssertSpanAttribute(t, "ranking.query", "returned", int64(2))

	assert.Len(t, tt.SpansNamed("ranking.score_pair"), 6)
	assert.Len(t, tt.SpansNamed("ranking.query"), 2)
}

func TestRank_WithSimilarityScorer(t *testing.T) {
	tok := encoder.NewTestTokenizer("virus", "transmission", "through", "respiratory", "droplets", "stock", "market", "earnings")
	model := encoder.NewTestModel(tok.VocabSize(), 512)
	scorer := similarity.NewScorer(tok, model, logging.NewNop())

	src := mapSource{
		"d1": "virus transmission through respiratory droplets",
		"d2": "stock market earnings",
	}
	e := NewEngine(scorer, src, logging.NewNop(), WithRunTag("bertrank"))

	entries, err := e.RankAll(context.Background(),
		[]similarity.Query{{ID: "q1", Text: "virus transmission"}},
		[]string{"d2", "d1"}, 2)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "d1", entries[0].DocID)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "d2", entries[1].DocID)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Greater(t, entries[0].Score, entries[1].Score)
}
