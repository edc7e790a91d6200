package testutil

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// CounterValue returns the current value for a CounterVec label set.
func CounterValue(tb testing.TB, vec *prometheus.CounterVec, labels ...string) float64 {
	tb.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	require.NoError(tb, err)
	return Value(tb, counter)
}

// Value returns the current value of a single counter.
func Value(tb testing.TB, counter prometheus.Counter) float64 {
	tb.Helper()

	var m dto.Metric
	require.NoError(tb, counter.Write(&m))
	return m.GetCounter().GetValue()
}
