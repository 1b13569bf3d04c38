// Package zstdcodec provides a zstd block codec.
package zstdcodec

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/vertti/parpack/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements zstd compression. EncodeAll and DecodeAll are safe for
// concurrent use; each call borrows one of GOMAXPROCS internal encoders, so
// one Codec serves all workers. Decoding never grows dst past its capacity.
type Codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New returns a new zstd codec at the given encoder level.
func New(level zstd.EncoderLevel) (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(0),
		zstd.WithDecodeAllCapLimit(true),
	)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &Codec{enc: enc, dec: dec}, nil
}

// Name returns "zstd".
func (c *Codec) Name() string {
	return "zstd"
}

// Compress appends the zstd frame for src to dst.
func (c *Codec) Compress(dst, src []byte) ([]byte, error) {
	return c.enc.EncodeAll(src, dst), nil
}

// Decompress appends the decoded zstd frame to dst. A frame that decodes to
// more than cap(dst)-len(dst) bytes fails with codec.ErrOutputTooLarge
// before the excess is allocated.
func (c *Codec) Decompress(dst, src []byte) ([]byte, error) {
	limit := cap(dst)
	out, err := c.dec.DecodeAll(src, dst)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
		return dst, codec.ErrOutputTooLarge
	}
	if err != nil {
		return dst, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(out) > limit {
		return dst, codec.ErrOutputTooLarge
	}
	return out, nil
}

// MaxEncodedSize returns the zstd worst-case output size.
func (c *Codec) MaxEncodedSize(n int) int {
	return c.enc.MaxEncodedSize(n)
}

// Close releases the encoder and decoder.
func (c *Codec) Close() error {
	c.dec.Close()
	return c.enc.Close()
}
