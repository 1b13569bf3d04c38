// Package snappycodec provides a Snappy block codec.
package snappycodec

import (
	"fmt"

	"github.com/golang/snappy"

	"github.com/vertti/parpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements Snappy block compression (not the framed stream format).
type Codec struct{}

// New returns a new Snappy codec.
func New() *Codec {
	return &Codec{}
}

// Name returns "snappy".
func (c *Codec) Name() string {
	return "snappy"
}

// Compress appends the Snappy block for src to dst.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	bound := snappy.MaxEncodedLen(len(src))
	if bound < 0 {
		return dst, fmt.Errorf("snappy compress: block of %d bytes too large", len(src))
	}
	// Encode uses its destination when it is at least MaxEncodedLen long.
	if cap(dst)-len(dst) >= bound {
		encoded := snappy.Encode(dst[len(dst):len(dst)+bound], src)
		return dst[:len(dst)+len(encoded)], nil
	}
	return append(dst, snappy.Encode(nil, src)...), nil
}

// Decompress appends the decoded Snappy block to dst.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	n, err := snappy.DecodedLen(src)
	if err != nil {
		return dst, fmt.Errorf("snappy decompress: %w", err)
	}
	if n > cap(dst)-len(dst) {
		return dst, codec.ErrOutputTooLarge
	}
	decoded, err := snappy.Decode(dst[len(dst):len(dst)+n], src)
	if err != nil {
		return dst, fmt.Errorf("snappy decompress: %w", err)
	}
	return dst[:len(dst)+len(decoded)], nil
}

// MaxEncodedSize returns snappy.MaxEncodedLen(n).
func (c *Codec) MaxEncodedSize(n int) int {
	return snappy.MaxEncodedLen(n)
}
