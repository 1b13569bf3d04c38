// Package stats provides a unified interface for collecting metrics.
package stats

// Metric names used throughout the pipeline.
const (
	// Block metrics.
	MetricBlocks         = "parpack_blocks_total"
	MetricBlockErrors    = "parpack_block_errors_total"
	MetricBlockSeconds   = "parpack_block_transform_seconds"
	MetricBytesIn        = "parpack_bytes_in_total"
	MetricBytesOut       = "parpack_bytes_out_total"
	MetricItemsInFlight  = "parpack_work_items_in_flight"
	MetricBackpressure   = "parpack_backpressure_waits_total"
	MetricReorderPending = "parpack_reorder_pending"
)

// Collector defines the interface for collecting metrics.
type Collector interface {
	// IncCounter increments a counter metric by delta.
	IncCounter(name string, delta int64)

	// SetGauge sets a gauge metric to value.
	SetGauge(name string, value int64)

	// ObserveHistogram records a value in a histogram metric.
	ObserveHistogram(name string, value float64)
}
