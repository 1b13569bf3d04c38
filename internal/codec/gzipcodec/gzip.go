// Package gzipcodec provides a gzip block codec.
package gzipcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/vertti/parpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements gzip compression. Each block is a complete gzip member.
type Codec struct {
	level   int
	writers sync.Pool
	readers sync.Pool
}

// New returns a new gzip codec at the given compression level.
func New(level int) (*Codec, error) {
	// Fail early on a bad level instead of inside a worker.
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		return nil, fmt.Errorf("creating gzip writer: %w", err)
	}
	return &Codec{level: level}, nil
}

// Name returns "gzip".
func (c *Codec) Name() string {
	return "gzip"
}

// appendWriter appends to a byte slice.
type appendWriter struct {
	buf []byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Compress appends a gzip member holding src to dst.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	out := &appendWriter{buf: dst}
	zw, ok := c.writers.Get().(*gzip.Writer)
	if ok {
		zw.Reset(out)
	} else {
		var err error
		zw, err = gzip.NewWriterLevel(out, c.level)
		if err != nil {
			return dst, fmt.Errorf("creating gzip writer: %w", err)
		}
	}
	defer c.writers.Put(zw)

	if _, err := zw.Write(src); err != nil {
		return dst, fmt.Errorf("gzip compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return dst, fmt.Errorf("gzip compress: %w", err)
	}
	return out.buf, nil
}

// Decompress appends the decoded gzip member to dst.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	in := bytes.NewReader(src)
	zr, ok := c.readers.Get().(*gzip.Reader)
	if ok {
		if err := zr.Reset(in); err != nil {
			c.readers.Put(zr)
			return dst, fmt.Errorf("gzip decompress: %w", err)
		}
	} else {
		var err error
		zr, err = gzip.NewReader(in)
		if err != nil {
			return dst, fmt.Errorf("gzip decompress: %w", err)
		}
	}
	defer c.readers.Put(zr)
	zr.Multistream(false)

	out := dst[:cap(dst)]
	n := len(dst)
	for n < len(out) {
		m, err := zr.Read(out[n:])
		n += m
		if errors.Is(err, io.EOF) {
			return out[:n], nil
		}
		if err != nil {
			return dst, fmt.Errorf("gzip decompress: %w", err)
		}
	}

	// Buffer is full, so the member has to end here.
	var extra [1]byte
	m, err := zr.Read(extra[:])
	if m > 0 {
		return dst, codec.ErrOutputTooLarge
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return dst, fmt.Errorf("gzip decompress: %w", err)
	}
	return out[:n], nil
}

// MaxEncodedSize returns a bound covering stored deflate blocks plus the
// gzip header and trailer.
func (c *Codec) MaxEncodedSize(n int) int {
	return n + n/1000 + 64
}
