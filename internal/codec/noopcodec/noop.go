// Package noopcodec provides a no-op codec (blocks are stored as-is).
package noopcodec

import (
	"github.com/vertti/parpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements no compression.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

// Compress appends src to dst unchanged.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Decompress appends src to dst unchanged.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) > cap(dst)-len(dst) {
		return dst, codec.ErrOutputTooLarge
	}
	return append(dst, src...), nil
}

// MaxEncodedSize returns n.
func (c *Codec) MaxEncodedSize(n int) int {
	return n
}
