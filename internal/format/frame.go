// Package format defines the block frame layout of parpack archives.
//
// An archive is a plain concatenation of frames, one per block:
//
//	[uint32 LE: total frame length][uint32 LE: block ordinal][payload]
//
// The total length counts the 8 header bytes plus the codec payload.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the size of an encoded frame header in bytes.
const HeaderSize = 8

// MaxOrdinal is the largest block ordinal a frame header can carry.
const MaxOrdinal = math.MaxUint32

// ErrShortFrame is returned when a frame header declares a length that
// cannot hold its own header and a non-empty payload.
var ErrShortFrame = errors.New("frame length too small")

// FrameHeader precedes each compressed block.
type FrameHeader struct {
	Length  uint32 // Header plus payload length
	Ordinal uint32 // Zero-based block sequence number
}

// PayloadSize returns the number of payload bytes following the header.
func (h FrameHeader) PayloadSize() int {
	return int(h.Length) - HeaderSize
}

// Validate checks that the header describes a frame with a payload.
func (h FrameHeader) Validate() error {
	if h.Length <= HeaderSize {
		return fmt.Errorf("%w: %d", ErrShortFrame, h.Length)
	}
	return nil
}

// Put encodes the header into the first HeaderSize bytes of dst.
func (h FrameHeader) Put(dst []byte) {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint32(dst[0:4], h.Length)
	binary.LittleEndian.PutUint32(dst[4:8], h.Ordinal)
}

// Write serializes the frame header to the writer.
func (h FrameHeader) Write(w io.Writer) error {
	var buf [HeaderSize]byte
	h.Put(buf[:])
	_, err := w.Write(buf[:])
	return err
}

// ParseFrameHeader decodes a header from the first HeaderSize bytes of src.
func ParseFrameHeader(src []byte) (FrameHeader, error) {
	if len(src) < HeaderSize {
		return FrameHeader{}, io.ErrUnexpectedEOF
	}
	return FrameHeader{
		Length:  binary.LittleEndian.Uint32(src[0:4]),
		Ordinal: binary.LittleEndian.Uint32(src[4:8]),
	}, nil
}

// ReadFrameHeader reads a frame header from the reader.
// Returns io.EOF if the reader is exhausted before the first byte.
func ReadFrameHeader(r io.Reader) (FrameHeader, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FrameHeader{}, err
	}
	return ParseFrameHeader(buf[:])
}

// Scan walks the frames of an archive without decoding payloads and calls
// fn for every header. It stops at the first error returned by fn.
func Scan(r io.Reader, fn func(FrameHeader) error) error {
	for {
		h, err := ReadFrameHeader(r)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading frame header: %w", err)
		}
		if err := h.Validate(); err != nil {
			return err
		}
		if _, err := io.CopyN(io.Discard, r, int64(h.PayloadSize())); err != nil {
			return fmt.Errorf("skipping frame %d payload: %w", h.Ordinal, err)
		}
		if err := fn(h); err != nil {
			return err
		}
	}
}
