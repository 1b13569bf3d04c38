// Package logger provides a stats collector that keeps pipeline totals in
// memory and reports them through zap.
package logger

import (
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vertti/parpack/internal/stats"
)

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// timing accumulates histogram observations.
type timing struct {
	count int64
	sum   float64
	max   float64
}

// Collector implements stats.Collector for verbose runs. Block completions
// and failures are logged at debug level as they happen; byte counters and
// gauges are only accumulated. Summary logs the totals once a run ends.
type Collector struct {
	logger *zap.Logger

	mu       sync.Mutex
	counters map[string]int64
	peaks    map[string]int64
	timings  map[string]*timing
}

// New creates a collector that logs to logger.
// If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:   logger,
		counters: make(map[string]int64),
		peaks:    make(map[string]int64),
		timings:  make(map[string]*timing),
	}
}

// IncCounter adds delta to the running total for name.
func (c *Collector) IncCounter(name string, delta int64) {
	c.mu.Lock()
	c.counters[name] += delta
	total := c.counters[name]
	c.mu.Unlock()

	switch name {
	case stats.MetricBlocks:
		c.logger.Debug("block written", zap.Int64("blocks", total))
	case stats.MetricBlockErrors:
		c.logger.Debug("block failed", zap.Int64("failures", total))
	}
}

// SetGauge records the highest value seen for name.
func (c *Collector) SetGauge(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if peak, ok := c.peaks[name]; !ok || value > peak {
		c.peaks[name] = value
	}
}

// ObserveHistogram adds value to the timing for name.
func (c *Collector) ObserveHistogram(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tm, ok := c.timings[name]
	if !ok {
		tm = &timing{}
		c.timings[name] = tm
	}
	tm.count++
	tm.sum += value
	tm.max = max(tm.max, value)
}

// Total returns the running total of counter name.
func (c *Collector) Total(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Peak returns the highest value gauge name was set to.
func (c *Collector) Peak(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peaks[name]
}

// Summary logs one info entry with every counter total, gauge peak and
// timing seen so far, in metric name order.
func (c *Collector) Summary() {
	c.mu.Lock()
	fields := make([]zap.Field, 0, len(c.counters)+len(c.peaks)+2*len(c.timings))
	for _, name := range slices.Sorted(maps.Keys(c.counters)) {
		fields = append(fields, zap.Int64(name, c.counters[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(c.peaks)) {
		fields = append(fields, zap.Int64(name+"_peak", c.peaks[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(c.timings)) {
		tm := c.timings[name]
		mean := 0.0
		if tm.count > 0 {
			mean = tm.sum / float64(tm.count)
		}
		fields = append(fields,
			zap.Float64(name+"_mean", mean),
			zap.Float64(name+"_max", tm.max),
		)
	}
	c.mu.Unlock()

	c.logger.Info("pipeline totals", fields...)
}
