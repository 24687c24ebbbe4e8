package testsupport

import (
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue returns the value of the first sample of metricName whose labels
// contain labelFilter, read from the default registry. Counters and gauges yield
// their value, histograms their sample count. A missing series reads as 0.
func GetMetricValue(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	mf := gatherFamily(t, metricName)
	if mf == nil {
		return 0
	}
	for _, m := range mf.GetMetric() {
		if hasLabels(m, labelFilter) {
			return sampleValue(m)
		}
	}
	return 0
}

// SumMetricValues adds up every series of metricName matching labelFilter.
// Useful when a test does not care about the remaining labels.
func SumMetricValues(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	mf := gatherFamily(t, metricName)
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if hasLabels(m, labelFilter) {
			total += sampleValue(m)
		}
	}
	return total
}

// AssertMetricDelta asserts that metricName moved by exactly expectedDelta while fn ran.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaEventually is AssertMetricDelta for work that completes in the
// background (event writers, flush loops).
func AssertMetricDeltaEventually(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels) == before+expectedDelta
	}, 2*time.Second, 20*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, expectedDelta)
}

func gatherFamily(t *testing.T, metricName string) *dto.MetricFamily {
	t.Helper()

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "gather metrics")

	// Gather returns families sorted by name.
	idx, found := slices.BinarySearchFunc(mfs, metricName, func(mf *dto.MetricFamily, name string) int {
		switch {
		case mf.GetName() < name:
			return -1
		case mf.GetName() > name:
			return 1
		}
		return 0
	})
	if !found {
		return nil
	}
	return mfs[idx]
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	case m.GetHistogram() != nil:
		return float64(m.GetHistogram().GetSampleCount())
	}
	return 0
}

func hasLabels(m *dto.Metric, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	have := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		have[pair.GetName()] = pair.GetValue()
	}
	for k, v := range filter {
		if have[k] != v {
			return false
		}
	}
	return true
}
