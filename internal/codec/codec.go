// Package codec provides block compression codecs for archive payloads.
package codec

import "errors"

// ErrOutputTooLarge is returned when a decoded block does not fit in the
// destination capacity the caller provided.
var ErrOutputTooLarge = errors.New("decoded block exceeds buffer capacity")

// Codec compresses and decompresses whole blocks.
//
// Implementations must be safe for concurrent use: a single Codec is shared
// by every worker of a stream.
type Codec interface {
	// Name returns the codec identifier used on the command line (e.g., "zstd").
	Name() string
	// Compress appends the compressed form of src to dst and returns the
	// extended slice. When cap(dst)-len(dst) >= MaxEncodedSize(len(src)) no
	// allocation takes place.
	Compress(dst, src []byte) ([]byte, error)
	// Decompress appends the decoded form of src to dst. The result must not
	// grow beyond cap(dst); ErrOutputTooLarge is returned instead.
	Decompress(dst, src []byte) ([]byte, error)
	// MaxEncodedSize returns the worst-case compressed size of n input bytes.
	MaxEncodedSize(n int) int
}
