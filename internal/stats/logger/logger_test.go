package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vertti/parpack/internal/stats"
)

func TestCollector_LogsBlockEvents(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricBlocks, 1)
	c.IncCounter(stats.MetricBlocks, 1)
	c.IncCounter(stats.MetricBlockErrors, 1)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "block written", entries[1].Message)
	assert.Equal(t, int64(2), entries[1].ContextMap()["blocks"])
	assert.Equal(t, "block failed", entries[2].Message)
	assert.Equal(t, int64(1), entries[2].ContextMap()["failures"])
}

func TestCollector_AccumulatesQuietly(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricBytesIn, 100)
	c.IncCounter(stats.MetricBytesIn, 23)
	c.SetGauge(stats.MetricItemsInFlight, 3)
	c.SetGauge(stats.MetricItemsInFlight, 7)
	c.SetGauge(stats.MetricItemsInFlight, 2)
	c.ObserveHistogram(stats.MetricBlockSeconds, 0.5)

	assert.Zero(t, logs.Len())
	assert.Equal(t, int64(123), c.Total(stats.MetricBytesIn))
	assert.Equal(t, int64(7), c.Peak(stats.MetricItemsInFlight))
}

func TestCollector_Summary(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	c := New(zap.New(core))

	c.IncCounter(stats.MetricBlocks, 4)
	c.IncCounter(stats.MetricBytesOut, 2048)
	c.SetGauge(stats.MetricReorderPending, 3)
	c.ObserveHistogram(stats.MetricBlockSeconds, 0.25)
	c.ObserveHistogram(stats.MetricBlockSeconds, 0.75)
	c.Summary()

	entries := logs.FilterMessage("pipeline totals").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(4), fields[stats.MetricBlocks])
	assert.Equal(t, int64(2048), fields[stats.MetricBytesOut])
	assert.Equal(t, int64(3), fields[stats.MetricReorderPending+"_peak"])
	assert.InDelta(t, 0.5, fields[stats.MetricBlockSeconds+"_mean"], 1e-9)
	assert.InDelta(t, 0.75, fields[stats.MetricBlockSeconds+"_max"], 1e-9)
}

func TestCollector_ConcurrentUpdates(t *testing.T) {
	t.Parallel()

	c := New(nil)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				c.IncCounter(stats.MetricBytesIn, 1)
				c.ObserveHistogram(stats.MetricBlockSeconds, 0.001)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), c.Total(stats.MetricBytesIn))
}

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	c := New(nil)
	assert.NotPanics(t, func() {
		c.IncCounter(stats.MetricBlocks, 1)
		c.Summary()
	})
}
