package crawl

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsObservations(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.ObserveQuery(Available("4"))
	m.ObserveQuery(Available("9"))
	m.ObserveQuery(SoldOut())
	m.ObserveQuery(Ambiguous("timed out"))
	m.IncRetry()
	m.ObserveRun(RunSuccess)
	m.ObserveRun(RunFailed)
	m.SetSnapshotSize("gorilla", 60)
	m.ObserveQueryDuration(250 * time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("available")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("sold_out")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("ambiguous")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RetriesTotal))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failed")))
	require.Equal(t, 60.0, testutil.ToFloat64(m.SnapshotSize.WithLabelValues("gorilla")))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveQuery(SoldOut())
	m.ObserveQueryDuration(time.Second)
	m.IncRetry()
	m.ObserveRun(RunSuccess)
	m.SetSnapshotSize("gorilla", 1)
}
