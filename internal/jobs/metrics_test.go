package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("integrity").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("integrity").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("integrity", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("integrity", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("integrity")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.SetViolations("over_delivery", 3)
	require.NoError(t, metrics.Track("noop").End(nil))
}
