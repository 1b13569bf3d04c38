package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vertti/parpack/internal/codec"
	"github.com/vertti/parpack/internal/codec/noopcodec"
	"github.com/vertti/parpack/internal/codec/zstdcodec"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testBlockSize = 4096

func newZstd(t testing.TB) *zstdcodec.Codec {
	t.Helper()
	c, err := zstdcodec.New(zstd.SpeedFastest)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// writeSpans writes data in pieces of at most span bytes.
func writeSpans(w io.Writer, data []byte, span int) error {
	for len(data) > 0 {
		n := min(span, len(data))
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func compressBytes(t testing.TB, c codec.Codec, data []byte, span int, opts ...Option) []byte {
	t.Helper()
	var out bytes.Buffer
	s, err := New(context.Background(), &out, NewCompressor(c), opts...)
	require.NoError(t, err)
	require.NoError(t, writeSpans(s, data, span))
	require.NoError(t, s.Close())
	return out.Bytes()
}

func decompressBytes(c codec.Codec, data []byte, span int, opts ...Option) ([]byte, error) {
	var out bytes.Buffer
	s, err := New(context.Background(), &out, NewDecompressor(c), opts...)
	if err != nil {
		return nil, err
	}
	werr := writeSpans(s, data, span)
	cerr := s.Close()
	if werr != nil {
		return nil, werr
	}
	return out.Bytes(), cerr
}

func requireSameBytes(t *testing.T, want, got []byte) {
	t.Helper()
	require.Len(t, got, len(want))
	require.True(t, bytes.Equal(want, got), "content mismatch")
}

// patterned returns n bytes that compress somewhat but not trivially.
func patterned(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + i/251)
	}
	return data
}

// delayCodec stores blocks as-is but sleeps according to the first byte of
// each block, so later blocks can finish before earlier ones.
type delayCodec struct {
	noopcodec.Codec
	delay func(first byte) time.Duration
}

func (d *delayCodec) Compress(dst, src []byte) ([]byte, error) {
	time.Sleep(d.delay(src[0]))
	return d.Codec.Compress(dst, src)
}

// gateCodec blocks every Compress call until the gate is closed and tracks
// how many calls run at once.
type gateCodec struct {
	noopcodec.Codec
	gate   chan struct{}
	active atomic.Int32
	peak   atomic.Int32
	calls  atomic.Int32
}

func newGateCodec() *gateCodec {
	return &gateCodec{gate: make(chan struct{})}
}

func (g *gateCodec) Compress(dst, src []byte) ([]byte, error) {
	g.calls.Add(1)
	cur := g.active.Add(1)
	for {
		peak := g.peak.Load()
		if cur <= peak || g.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	<-g.gate
	g.active.Add(-1)
	return g.Codec.Compress(dst, src)
}

// failCodec fails blocks whose first byte equals poison.
type failCodec struct {
	noopcodec.Codec
	poison byte
}

var errPoison = errors.New("poisoned block")

func (f *failCodec) Compress(dst, src []byte) ([]byte, error) {
	if src[0] == f.poison {
		return dst, errPoison
	}
	return f.Codec.Compress(dst, src)
}

// failWriter accepts limit bytes, then fails.
type failWriter struct {
	limit int
	n     int
}

var errSinkFull = errors.New("sink full")

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n+len(p) > w.limit {
		return 0, errSinkFull
	}
	w.n += len(p)
	return len(p), nil
}

// closeRecorder is a sink that records Flush and Close calls.
type closeRecorder struct {
	bytes.Buffer
	flushes int
	closed  int
}

func (c *closeRecorder) Flush() error {
	c.flushes++
	return nil
}

func (c *closeRecorder) Close() error {
	c.closed++
	return nil
}

// recorder is a stats.Collector that keeps counter totals.
type recorder struct {
	mu       sync.Mutex
	counters map[string]int64
	observed map[string]int
}

func newRecorder() *recorder {
	return &recorder{counters: make(map[string]int64), observed: make(map[string]int)}
}

func (r *recorder) IncCounter(name string, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[name] += delta
}

func (r *recorder) SetGauge(string, int64) {}

func (r *recorder) ObserveHistogram(name string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observed[name]++
}

func (r *recorder) counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}
