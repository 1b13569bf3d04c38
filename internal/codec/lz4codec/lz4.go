// Package lz4codec provides an LZ4 block codec.
package lz4codec

import (
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/vertti/parpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements LZ4 block compression. lz4.Compressor is not safe for
// concurrent use, so compressors are pooled.
type Codec struct {
	compressors sync.Pool
}

// New returns a new LZ4 codec.
func New() *Codec {
	return &Codec{
		compressors: sync.Pool{
			New: func() any { return new(lz4.Compressor) },
		},
	}
}

// Name returns "lz4".
func (c *Codec) Name() string {
	return "lz4"
}

// Compress appends the LZ4 block for src to dst.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	dst = grow(dst, lz4.CompressBlockBound(len(src)))
	comp := c.compressors.Get().(*lz4.Compressor) //nolint:errcheck // pool always returns *lz4.Compressor
	defer c.compressors.Put(comp)

	// With a destination of CompressBlockBound bytes compression always succeeds.
	n, err := comp.CompressBlock(src, dst[len(dst):cap(dst)])
	if err != nil {
		return dst, fmt.Errorf("lz4 compress: %w", err)
	}
	return dst[:len(dst)+n], nil
}

// Decompress appends the decoded LZ4 block to dst.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	n, err := lz4.UncompressBlock(src, dst[len(dst):cap(dst)])
	if err != nil {
		// lz4 reports a short destination and a corrupt source the same way.
		return dst, fmt.Errorf("lz4 decompress: %w", err)
	}
	return dst[:len(dst)+n], nil
}

// MaxEncodedSize returns lz4.CompressBlockBound(n).
func (c *Codec) MaxEncodedSize(n int) int {
	return lz4.CompressBlockBound(n)
}

// grow ensures dst has room for n more bytes without changing its length.
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) >= n {
		return dst
	}
	out := make([]byte, len(dst), len(dst)+n)
	copy(out, dst)
	return out
}
