package ranking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fyrsmithlabs/bertrank/internal/similarity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds Prometheus metrics for one ranking run. Each Metrics has
// its own registry, so a run can be pushed to a Pushgateway as a batch job.
//
// Metrics:
//   - bertrank_pairs_scored_total - pairs that produced a score
//   - bertrank_pairs_skipped_total{reason} - pairs left out of a ranking
//   - bertrank_document_chunks - windows encoded per scored document
//   - bertrank_queries_ranked_total - queries finalized
//   - bertrank_query_finalize_duration_seconds - sort and truncate time per query
//
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	PairsScored      prometheus.Counter
	PairsSkipped     *prometheus.CounterVec
	DocumentChunks   prometheus.Histogram
	QueriesRanked    prometheus.Counter
	FinalizeDuration prometheus.Histogram
}

// NewMetrics creates run metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PairsScored: f.NewCounter(prometheus.CounterOpts{
			Name: "bertrank_pairs_scored_total",
			Help: "Total number of (query, document) pairs that produced a score",
		}),
		PairsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bertrank_pairs_skipped_total",
			Help: "Total number of (query, document) pairs skipped",
		}, []string{"reason"}),
		DocumentChunks: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bertrank_document_chunks",
			Help:    "Number of encoder windows per scored document",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
		}),
		QueriesRanked: f.NewCounter(prometheus.CounterOpts{
			Name: "bertrank_queries_ranked_total",
			Help: "Total number of queries finalized",
		}),
		FinalizeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bertrank_query_finalize_duration_seconds",
			Help:    "Time to sort and truncate one query's scores",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100us to ~1.6s
		}),
	}
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Push sends the run metrics to the Pushgateway at url under job, grouped
// by the given labels.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if m == nil {
		return nil
	}
	p := push.New(url, job).Gatherer(m.registry)
	for k, v := range grouping {
		p = p.Grouping(k, v)
	}
	if err := p.PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}

func (m *Metrics) observePair(o similarity.Outcome) {
	if m == nil || o.Skipped() || math.IsNaN(o.Score) {
		return
	}
	m.PairsScored.Inc()
	m.DocumentChunks.Observe(float64(o.Chunks))
}

func (m *Metrics) observeQuery(res QueryResult, elapsed time.Duration) {
	if m == nil {
		return
	}
	for _, s := range res.Skipped {
		m.PairsSkipped.WithLabelValues(s.Reason).Inc()
	}
	m.QueriesRanked.Inc()
	m.FinalizeDuration.Observe(elapsed.Seconds())
}
