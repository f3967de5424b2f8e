package crawl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors for the crawler on a dedicated
// registry.
type Metrics struct {
	Registry      *prometheus.Registry
	QueriesTotal  *prometheus.CounterVec
	QueryDuration prometheus.Histogram
	RetriesTotal  prometheus.Counter
	RunsTotal     *prometheus.CounterVec
	SnapshotSize  *prometheus.GaugeVec
}

// NewMetrics constructs and registers all crawler metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	queries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_queries_total",
			Help: "Availability queries issued, by classified outcome.",
		},
		[]string{"outcome"},
	)
	queryDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slotwatch_query_duration_seconds",
			Help:    "Form interaction latency per date query.",
			Buckets: prometheus.DefBuckets,
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slotwatch_retries_total",
			Help: "Retry attempts dispatched for ambiguous dates.",
		},
	)
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotwatch_runs_total",
			Help: "Crawl runs finished, by terminal status.",
		},
		[]string{"status"},
	)
	snapshotSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slotwatch_snapshot_records",
			Help: "Slot records currently held per category.",
		},
		[]string{"category"},
	)

	registry.MustRegister(queries, queryDuration, retries, runs, snapshotSize)

	return &Metrics{
		Registry:      registry,
		QueriesTotal:  queries,
		QueryDuration: queryDuration,
		RetriesTotal:  retries,
		RunsTotal:     runs,
		SnapshotSize:  snapshotSize,
	}
}

// ObserveQuery counts one classified query outcome.
func (m *Metrics) ObserveQuery(o Outcome) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcomeLabel(o)).Inc()
}

// ObserveQueryDuration records one form interaction latency.
func (m *Metrics) ObserveQueryDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.QueryDuration.Observe(d.Seconds())
}

// IncRetry counts one retry dispatch.
func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveRun counts one finished run.
func (m *Metrics) ObserveRun(status RunStatus) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(status)).Inc()
}

// SetSnapshotSize records the current record count for a category.
func (m *Metrics) SetSnapshotSize(category string, n int) {
	if m == nil {
		return
	}
	m.SnapshotSize.WithLabelValues(category).Set(float64(n))
}

func outcomeLabel(o Outcome) string {
	switch o.Kind {
	case OutcomeAvailable:
		return "available"
	case OutcomeSoldOut:
		return "sold_out"
	default:
		return "ambiguous"
	}
}
