package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vertti/parpack/internal/archive"
	"github.com/vertti/parpack/internal/compress"
	"github.com/vertti/parpack/internal/stats"
	logstats "github.com/vertti/parpack/internal/stats/logger"
	promstats "github.com/vertti/parpack/internal/stats/prometheus"
)

func runArchive(ctx context.Context, cfg *config, mode archive.Mode, input, output string, status io.Writer) error {
	logger, err := newLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best effort on exit

	collector, report := newCollector(cfg, logger)
	opts := &compress.Options{
		BlockSize: cfg.blockSize,
		Workers:   cfg.workers,
		Codec:     cfg.codec,
		ReadSize:  cfg.readSize,
		Logger:    logger,
		Stats:     collector,
	}

	fmt.Fprintf(status, "%s: %s -> %s (codec %s, block size %d)\n", mode, input, output, cfg.codec, cfg.blockSize)

	res, err := archive.Run(ctx, mode, input, output, opts)
	if err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(status, "interrupted; output removed")
		}
		logger.Debug("run failed", zap.Stringer("mode", mode), zap.Error(err))
		return err
	}

	c := res.Counters
	fmt.Fprintf(status, "done: %d blocks, %d -> %d bytes in %s\n", c.Blocks, c.BytesIn, c.BytesOut, res.Elapsed)
	return report(status)
}

// newLogger returns a development logger when verbose, otherwise a
// production logger that only reports warnings and errors.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// newCollector picks the metrics backend. With --metrics the run records
// into a private Prometheus registry that report prints at the end; with
// --verbose alone report logs the collected totals.
func newCollector(cfg *config, logger *zap.Logger) (stats.Collector, func(io.Writer) error) {
	noReport := func(io.Writer) error { return nil }

	switch {
	case cfg.metrics:
		registry := prometheus.NewRegistry()
		return promstats.New(registry), func(w io.Writer) error {
			samples, err := promstats.Snapshot(registry)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "metrics:")
			for _, s := range samples {
				fmt.Fprintf(w, "  %s\n", s)
			}
			return nil
		}
	case cfg.verbose:
		collector := logstats.New(logger)
		return collector, func(io.Writer) error {
			collector.Summary()
			return nil
		}
	default:
		return stats.NewNoop(), noReport
	}
}
