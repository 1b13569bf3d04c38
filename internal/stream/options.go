package stream

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/vertti/parpack/internal/stats"
)

const (
	// DefaultBlockSize is the default block size in bytes.
	DefaultBlockSize = 512 * 1024
	// MinBlockSize is the smallest accepted block size.
	MinBlockSize = 1024
	// ItemsPerWorker sizes the default pool relative to the worker count.
	ItemsPerWorker = 4
)

// Option configures a Stream.
type Option interface {
	apply(*options)
}

type options struct {
	workers   int
	poolSize  int
	blockSize int
	logger    *zap.Logger
	stats     stats.Collector
}

func defaultOptions() options {
	return options{
		workers:   runtime.NumCPU(),
		blockSize: DefaultBlockSize,
		logger:    zap.NewNop(),
		stats:     stats.NewNoop(),
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithWorkers sets how many blocks are transformed concurrently.
// Values below 1 keep the default of runtime.NumCPU().
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.workers = n
		}
	})
}

// WithPoolSize sets the number of work items, which caps both memory use
// and how far the producer can run ahead of the writer.
// Default is workers × ItemsPerWorker.
func WithPoolSize(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	})
}

// WithBlockSize sets the block size in bytes. Compressor and decompressor
// must agree on it. Default is DefaultBlockSize.
func WithBlockSize(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.blockSize = n
		}
	})
}

// WithLogger sets the logger. If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// WithStats sets the stats collector. If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.stats = c
		}
	})
}
