// Package prometheus provides a Prometheus-based stats collector.
package prometheus

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vertti/parpack/internal/stats"
)

// Collector implements stats.Collector using Prometheus metrics.
type Collector struct {
	registry prometheus.Registerer

	mu         sync.RWMutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// Compile-time check that Collector implements stats.Collector.
var _ stats.Collector = (*Collector)(nil)

// New creates a new Prometheus collector.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Collector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Collector{
		registry:   registry,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

// IncCounter increments a counter metric.
func (c *Collector) IncCounter(name string, delta int64) {
	counter := getOrCreate(c, c.counters, name, func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: name})
	})
	counter.Add(float64(delta))
}

// SetGauge sets a gauge metric.
func (c *Collector) SetGauge(name string, value int64) {
	gauge := getOrCreate(c, c.gauges, name, func() prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: name})
	})
	gauge.Set(float64(value))
}

// ObserveHistogram records a value in a histogram.
func (c *Collector) ObserveHistogram(name string, value float64) {
	histogram := getOrCreate(c, c.histograms, name, func() prometheus.Histogram {
		return prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    name,
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		})
	})
	histogram.Observe(value)
}

// getOrCreate returns the metric registered under name, creating and
// registering it on first use.
func getOrCreate[M prometheus.Collector](c *Collector, metrics map[string]M, name string, create func() M) M {
	c.mu.RLock()
	metric, ok := metrics[name]
	c.mu.RUnlock()
	if ok {
		return metric
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock.
	if metric, ok = metrics[name]; ok {
		return metric
	}

	metric = create()
	if err := c.registry.Register(metric); err != nil {
		// If already registered, reuse the existing metric.
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				metrics[name] = existing
				return existing
			}
		}
		// Registration failed but the metric still works locally.
	}
	metrics[name] = metric
	return metric
}

// Sample is a flattened view of one gathered metric.
type Sample struct {
	Name  string
	Value float64 // Counter/gauge value, or histogram sum
	Count uint64  // Histogram sample count; zero otherwise
}

// String formats the sample for status output.
func (s Sample) String() string {
	if s.Count > 0 {
		return fmt.Sprintf("%s count=%d sum=%g", s.Name, s.Count, s.Value)
	}
	return fmt.Sprintf("%s %g", s.Name, s.Value)
}

// Snapshot gathers all metrics from g, sorted by name.
func Snapshot(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var samples []Sample
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			samples = append(samples, sampleOf(family.GetName(), family.GetType(), metric))
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

func sampleOf(name string, kind dto.MetricType, metric *dto.Metric) Sample {
	switch kind {
	case dto.MetricType_COUNTER:
		return Sample{Name: name, Value: metric.GetCounter().GetValue()}
	case dto.MetricType_GAUGE:
		return Sample{Name: name, Value: metric.GetGauge().GetValue()}
	case dto.MetricType_HISTOGRAM:
		h := metric.GetHistogram()
		return Sample{Name: name, Value: h.GetSampleSum(), Count: h.GetSampleCount()}
	default:
		return Sample{Name: name, Value: metric.GetUntyped().GetValue()}
	}
}
