// Package compress runs whole inputs through the block pipeline: it reads
// an io.Reader in spans and feeds them to a compressing or decompressing
// stream that writes to an io.Writer.
package compress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/vertti/parpack/internal/codec"
	"github.com/vertti/parpack/internal/codec/registry"
	"github.com/vertti/parpack/internal/stats"
	"github.com/vertti/parpack/internal/stream"
)

// DefaultReadSize is the default number of bytes read from the input per
// call.
const DefaultReadSize = 64 * 1024

// Options configures compression and decompression. The zero value is
// usable; both sides of an archive must agree on BlockSize and Codec.
type Options struct {
	BlockSize int             // Block size in bytes (default: stream.DefaultBlockSize)
	Workers   int             // Parallel block workers (default: NumCPU)
	PoolSize  int             // Work items (default: Workers × stream.ItemsPerWorker)
	Codec     string          // Codec name (default: registry.Default)
	ReadSize  int             // Input span size (default: DefaultReadSize)
	Logger    *zap.Logger     // Default: no-op
	Stats     stats.Collector // Default: no-op
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Codec == "" {
		out.Codec = registry.Default
	}
	if out.ReadSize <= 0 {
		out.ReadSize = DefaultReadSize
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Stats == nil {
		out.Stats = stats.NewNoop()
	}
	return out
}

func (o Options) streamOptions() []stream.Option {
	opts := []stream.Option{
		stream.WithWorkers(o.Workers),
		stream.WithPoolSize(o.PoolSize),
		stream.WithLogger(o.Logger),
		stream.WithStats(o.Stats),
	}
	if o.BlockSize != 0 {
		opts = append(opts, stream.WithBlockSize(o.BlockSize))
	}
	return opts
}

// Compress reads raw data from r and writes an archive to w.
// w is flushed if it has a Flush method but never closed.
func Compress(ctx context.Context, r io.Reader, w io.Writer, opts *Options) (stream.Counters, error) {
	return run(ctx, r, w, opts, stream.NewCompressor)
}

// Decompress reads an archive from r and writes the raw data to w.
// Input that ends inside a frame is an error matching stream.ErrFormat.
func Decompress(ctx context.Context, r io.Reader, w io.Writer, opts *Options) (stream.Counters, error) {
	return run(ctx, r, w, opts, stream.NewDecompressor)
}

func run(
	ctx context.Context,
	r io.Reader,
	w io.Writer,
	opts *Options,
	newTransform func(codec.Codec) stream.Transform,
) (stream.Counters, error) {
	o := opts.withDefaults()

	c, err := registry.Lookup(o.Codec)
	if err != nil {
		return stream.Counters{}, err
	}
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close() //nolint:errcheck // codec close during cleanup
	}

	t := newTransform(c)
	s, err := stream.New(ctx, keepOpen{w}, t, o.streamOptions()...)
	if err != nil {
		return stream.Counters{}, err
	}

	start := time.Now()
	feedErr := feed(ctx, r, s, o.ReadSize)
	closeErr := s.Close()

	counters := s.Counters()
	o.Logger.Debug("run finished",
		zap.String("transform", t.Name()),
		zap.Int64("blocks", counters.Blocks),
		zap.Int64("bytesIn", counters.BytesIn),
		zap.Int64("bytesOut", counters.BytesOut),
		zap.Duration("elapsed", time.Since(start)),
	)

	if feedErr != nil {
		return counters, feedErr
	}
	return counters, closeErr
}

// feed copies r into s one span at a time, stopping early when ctx is
// cancelled.
func feed(ctx context.Context, r io.Reader, s *stream.Stream, readSize int) error {
	buf := make([]byte, readSize)
	for {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := s.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: reading input: %w", stream.ErrIO, err)
		}
	}
}

// keepOpen hides the Close method of the caller's writer so the stream
// leaves it open, while still passing Flush through.
type keepOpen struct {
	io.Writer
}

func (k keepOpen) Flush() error {
	if f, ok := k.Writer.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
