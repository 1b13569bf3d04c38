// Package stream implements the parallel block pipeline: input is cut into
// fixed-size blocks, blocks are transformed concurrently, and the results
// reach the sink strictly in input order.
package stream

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vertti/parpack/internal/stats"
)

// State is the lifecycle phase of a Stream.
type State int

const (
	StateIdle     State = iota // No bytes written yet; pool not allocated
	StateActive                // Filling, dispatching and draining
	StateFlushing              // Final drain in progress
	StateFaulted               // An error was recorded; no more input is accepted
	StateClosed                // Terminal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateFlushing:
		return "flushing"
	case StateFaulted:
		return "faulted"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Counters summarizes the work done by a stream.
type Counters struct {
	Blocks   int64 // Blocks written to the sink
	BytesIn  int64 // Bytes accepted by Write
	BytesOut int64 // Bytes written to the sink
}

// Stream is an io.WriteCloser that runs every block through a Transform on
// a bounded set of workers and writes the results to the sink in order.
//
// Write, Flush and Close must be called from a single goroutine.
type Stream struct {
	parent    context.Context
	sink      io.Writer
	transform Transform
	opts      options
	limit     int

	ctx    context.Context
	cancel context.CancelCauseFunc
	group  *errgroup.Group

	pool    *pool
	done    chan *workItem // Items finished by workers
	pending reorderHeap    // Finished items waiting for their turn
	cur     *workItem      // Item being filled, if any

	lastAssigned   int
	lastDispatched int
	lastWritten    int

	err      firstError
	state    State
	counters Counters
}

// New returns a stream writing to sink. The pool is allocated on the first
// Write. Cancelling ctx aborts the run.
func New(ctx context.Context, sink io.Writer, t Transform, opts ...Option) (*Stream, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.blockSize < MinBlockSize {
		return nil, fmt.Errorf("block size %d below minimum %d", o.blockSize, MinBlockSize)
	}
	if o.poolSize == 0 {
		o.poolSize = o.workers * ItemsPerWorker
	}
	limit, err := t.capacity(o.blockSize)
	if err != nil {
		return nil, err
	}

	return &Stream{
		parent:         ctx,
		sink:           sink,
		transform:      t,
		opts:           o,
		limit:          limit,
		lastAssigned:   -1,
		lastDispatched: -1,
		lastWritten:    -1,
	}, nil
}

// State returns the current lifecycle phase.
func (s *Stream) State() State {
	if s.state != StateClosed && s.err.get() != nil {
		return StateFaulted
	}
	return s.state
}

// Err returns the first error recorded by the stream, if any.
func (s *Stream) Err() error {
	return s.err.get()
}

// Counters returns totals for the work done so far.
func (s *Stream) Counters() Counters {
	return s.counters
}

// BlockCapacity returns how many input bytes fill one block.
func (s *Stream) BlockCapacity() int {
	return s.limit
}

func (s *Stream) init() {
	ctx, cancel := context.WithCancelCause(s.parent)
	s.group, s.ctx = errgroup.WithContext(ctx)
	s.group.SetLimit(s.opts.workers)
	s.cancel = cancel

	s.pool = newPool(s.opts.poolSize, s.opts.blockSize, s.limit)
	s.done = make(chan *workItem, s.opts.poolSize)
	s.state = StateActive

	s.opts.logger.Debug("stream started",
		zap.String("transform", s.transform.Name()),
		zap.Int("blockSize", s.opts.blockSize),
		zap.Int("blockCapacity", s.limit),
		zap.Int("workers", s.opts.workers),
		zap.Int("poolSize", s.opts.poolSize),
	)
}

// Write consumes all of p, blocking while every work item is in flight.
// It returns the first error recorded by any block.
func (s *Stream) Write(p []byte) (int, error) {
	if s.state == StateClosed {
		return 0, ErrClosed
	}
	if err := s.err.get(); err != nil {
		return 0, err
	}
	if s.state == StateIdle {
		s.init()
	}

	s.poll()
	if err := s.writeReady(); err != nil {
		return 0, err
	}

	written := 0
	for written < len(p) {
		if err := s.err.get(); err != nil {
			return written, err
		}
		it := s.cur
		if it == nil {
			var err error
			if it, err = s.acquire(); err != nil {
				return written, err
			}
			s.lastAssigned++
			it.ordinal = s.lastAssigned
			s.cur = it
		}

		n, full, err := s.transform.fill(it, p[written:])
		written += n
		s.counters.BytesIn += int64(n)
		s.opts.stats.IncCounter(stats.MetricBytesIn, int64(n))
		if err != nil {
			return written, s.fail(err)
		}
		if full {
			s.cur = nil
			if err := s.dispatch(it); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Flush dispatches a partially filled block when the transform allows it
// and waits until every dispatched block has reached the sink.
func (s *Stream) Flush() error {
	if s.state == StateClosed {
		return ErrClosed
	}
	if err := s.err.get(); err != nil {
		return err
	}
	if s.state == StateIdle {
		return nil
	}
	return s.flush(false)
}

// Close flushes remaining blocks, waits for all workers and closes the sink
// if it implements io.Closer. Input ending inside a frame is an ErrFormat.
// Closing twice is a no-op.
func (s *Stream) Close() error {
	if s.state == StateClosed {
		return nil
	}

	var err error
	if s.state != StateIdle {
		if err = s.err.get(); err == nil {
			s.state = StateFlushing
			err = s.flush(true)
		}
		if err != nil {
			s.cancel(err)
		}
		// Worker failures are already recorded in s.err.
		_ = s.group.Wait()
		s.cancel(ErrClosed)

		s.opts.logger.Debug("stream closed",
			zap.String("transform", s.transform.Name()),
			zap.Int64("blocks", s.counters.Blocks),
			zap.Int64("bytesIn", s.counters.BytesIn),
			zap.Int64("bytesOut", s.counters.BytesOut),
			zap.Error(err),
		)
	}

	if closer, ok := s.sink.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing sink: %w", ErrIO, cerr)
		}
	}
	s.state = StateClosed
	return err
}

type flusher interface {
	Flush() error
}

func (s *Stream) flush(final bool) error {
	if it := s.cur; it != nil {
		switch {
		case s.transform.short(it):
			s.cur = nil
			if err := s.dispatch(it); err != nil {
				return err
			}
		case final:
			return s.fail(blockError(it.ordinal, ErrFormat, errTruncated))
		}
	}

	for {
		s.poll()
		if err := s.writeReady(); err != nil {
			return err
		}
		if s.lastWritten == s.lastDispatched {
			break
		}
		if err := s.await(); err != nil {
			return err
		}
	}

	if f, ok := s.sink.(flusher); ok {
		if err := f.Flush(); err != nil {
			return s.fail(fmt.Errorf("%w: flushing sink: %w", ErrIO, err))
		}
	}
	return nil
}

// acquire returns a free item, writing finished blocks until one is
// released. This is the producer's only backpressure point.
func (s *Stream) acquire() (*workItem, error) {
	for {
		if it, ok := s.pool.tryAcquire(); ok {
			return it, nil
		}
		s.opts.stats.IncCounter(stats.MetricBackpressure, 1)
		if err := s.await(); err != nil {
			return nil, err
		}
		if err := s.writeReady(); err != nil {
			return nil, err
		}
	}
}

// dispatch hands a filled item to a worker. The worker always sends the
// item back on s.done, so no item leaves the pool for good.
func (s *Stream) dispatch(it *workItem) error {
	if s.ctx.Err() != nil {
		err := blockError(it.ordinal, ErrDispatch, context.Cause(s.ctx))
		s.pool.release(it)
		return s.fail(err)
	}

	s.lastDispatched = it.ordinal
	s.opts.stats.SetGauge(stats.MetricItemsInFlight, int64(s.pool.inUse()))
	s.group.Go(func() error {
		s.run(it)
		s.done <- it
		return it.err
	})
	return nil
}

// run executes the transform for one item on a worker goroutine.
func (s *Stream) run(it *workItem) {
	if s.ctx.Err() != nil {
		it.err = context.Cause(s.ctx)
		return
	}

	start := time.Now()
	it.err = s.transform.finish(it)
	it.elapsed = time.Since(start)
	s.opts.stats.ObserveHistogram(stats.MetricBlockSeconds, it.elapsed.Seconds())
	if it.err != nil {
		s.opts.stats.IncCounter(stats.MetricBlockErrors, 1)
		s.fail(it.err)
	}
}

// poll moves every finished item into the reorder heap without blocking.
func (s *Stream) poll() {
	for {
		select {
		case it := <-s.done:
			heap.Push(&s.pending, it)
		default:
			return
		}
	}
}

// await blocks until at least one more item has finished.
func (s *Stream) await() error {
	select {
	case it := <-s.done:
		heap.Push(&s.pending, it)
		s.poll()
		return nil
	case <-s.ctx.Done():
		return s.fail(context.Cause(s.ctx))
	}
}

// writeReady writes pending items to the sink for as long as the lowest
// pending ordinal is the next one due, and recycles their slots.
func (s *Stream) writeReady() error {
	defer func() {
		s.opts.stats.SetGauge(stats.MetricReorderPending, int64(s.pending.Len()))
	}()

	for s.pending.Len() > 0 && s.pending.next() == s.lastWritten+1 {
		it := heap.Pop(&s.pending).(*workItem) //nolint:errcheck // heap only holds *workItem
		if it.err != nil {
			return s.fail(it.err)
		}
		n, err := s.sink.Write(it.output)
		s.counters.BytesOut += int64(n)
		s.opts.stats.IncCounter(stats.MetricBytesOut, int64(n))
		if err != nil {
			return s.fail(blockError(it.ordinal, ErrIO, err))
		}

		s.lastWritten = it.ordinal
		s.counters.Blocks++
		s.opts.stats.IncCounter(stats.MetricBlocks, 1)
		s.pool.release(it)
	}
	return nil
}

// fail records err as the stream's error unless one is already recorded,
// and returns the recorded error. Safe for concurrent use.
func (s *Stream) fail(err error) error {
	if s.err.set(err) {
		s.opts.logger.Debug("stream faulted", zap.Error(err))
	}
	return s.err.get()
}
