package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertti/parpack/internal/stats"
)

func TestCollector_Counter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricBlocks, 2)
	c.IncCounter(stats.MetricBlocks, 3)

	assert.InDelta(t, 5.0, testutil.ToFloat64(c.counters[stats.MetricBlocks]), 1e-9)
}

func TestCollector_Gauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SetGauge(stats.MetricItemsInFlight, 7)
	c.SetGauge(stats.MetricItemsInFlight, 4)

	assert.InDelta(t, 4.0, testutil.ToFloat64(c.gauges[stats.MetricItemsInFlight]), 1e-9)
}

func TestCollector_SharedRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	first.IncCounter(stats.MetricBytesIn, 10)
	second.IncCounter(stats.MetricBytesIn, 5)

	// The second collector reuses the metric registered by the first.
	assert.InDelta(t, 15.0, testutil.ToFloat64(first.counters[stats.MetricBytesIn]), 1e-9)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricBlocks, 3)
	c.SetGauge(stats.MetricReorderPending, 1)
	c.ObserveHistogram(stats.MetricBlockSeconds, 0.5)
	c.ObserveHistogram(stats.MetricBlockSeconds, 1.5)

	samples, err := Snapshot(reg)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	byName := make(map[string]Sample)
	for _, s := range samples {
		byName[s.Name] = s
	}
	assert.InDelta(t, 3.0, byName[stats.MetricBlocks].Value, 1e-9)
	assert.InDelta(t, 1.0, byName[stats.MetricReorderPending].Value, 1e-9)
	assert.Equal(t, uint64(2), byName[stats.MetricBlockSeconds].Count)
	assert.InDelta(t, 2.0, byName[stats.MetricBlockSeconds].Value, 1e-9)
	assert.Contains(t, byName[stats.MetricBlockSeconds].String(), "count=2")
}
