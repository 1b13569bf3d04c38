package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/vertti/parpack/internal/codec"
	"github.com/vertti/parpack/internal/format"
)

// DefaultHeadroom is the minimum number of bytes a compressing block keeps
// free below the block size.
const DefaultHeadroom = 200

// Transform is the direction-specific half of a stream: how raw bytes fill
// a work item and how a filled item becomes output. Use NewCompressor or
// NewDecompressor.
type Transform interface {
	// Name identifies the transform in logs.
	Name() string

	// capacity returns how many input bytes one block of blockSize may hold.
	capacity(blockSize int) (int, error)
	// fill copies a prefix of p into it and reports how many bytes were
	// consumed and whether the item is ready for dispatch. Runs on the
	// producer goroutine.
	fill(it *workItem, p []byte) (n int, full bool, err error)
	// short reports whether a partially filled item may be dispatched as a
	// block of its own.
	short(it *workItem) bool
	// finish turns a filled item into output. Runs on a worker goroutine.
	finish(it *workItem) error
}

// compressor frames codec-compressed blocks.
type compressor struct {
	codec codec.Codec
}

// NewCompressor returns a Transform that splits input into blocks and
// writes each as a frame holding the c-compressed block.
func NewCompressor(c codec.Codec) Transform {
	return &compressor{codec: c}
}

func (c *compressor) Name() string {
	return "compress/" + c.codec.Name()
}

// capacity reserves room for the frame header and the codec's worst-case
// expansion, so every frame fits in one block on the way back.
func (c *compressor) capacity(blockSize int) (int, error) {
	headroom := format.HeaderSize + c.codec.MaxEncodedSize(blockSize) - blockSize
	if headroom < DefaultHeadroom {
		headroom = DefaultHeadroom
	}
	limit := blockSize - headroom
	if limit <= 0 {
		return 0, fmt.Errorf("block size %d leaves no room for %s payload", blockSize, c.codec.Name())
	}
	return limit, nil
}

func (c *compressor) fill(it *workItem, p []byte) (int, bool, error) {
	n := copy(it.inBuf[len(it.input):it.limit], p)
	it.input = it.inBuf[:len(it.input)+n]
	return n, len(it.input) == it.limit, nil
}

func (c *compressor) short(it *workItem) bool {
	return len(it.input) > 0
}

func (c *compressor) finish(it *workItem) error {
	if int64(it.ordinal) > format.MaxOrdinal {
		return blockError(it.ordinal, ErrFormat, errors.New("ordinal does not fit in frame header"))
	}

	out, err := c.codec.Compress(it.outBuf[:format.HeaderSize], it.input)
	if err != nil {
		return blockError(it.ordinal, ErrCodec, err)
	}
	if len(out) > len(it.inBuf) {
		return blockError(it.ordinal, ErrCodec,
			fmt.Errorf("frame of %d bytes exceeds block size %d", len(out), len(it.inBuf)))
	}

	//nolint:gosec // both values checked against uint32 range above
	format.FrameHeader{Length: uint32(len(out)), Ordinal: uint32(it.ordinal)}.Put(out)
	it.output = out
	return nil
}

// decompressor reads frames back into raw blocks.
type decompressor struct {
	codec codec.Codec
}

// NewDecompressor returns a Transform that reads frames written by a
// compressor using the same codec and block size.
func NewDecompressor(c codec.Codec) Transform {
	return &decompressor{codec: c}
}

func (d *decompressor) Name() string {
	return "decompress/" + d.codec.Name()
}

func (d *decompressor) capacity(blockSize int) (int, error) {
	return blockSize, nil
}

// fill accumulates the frame header first, which may arrive split over
// several calls, then the payload it announces.
func (d *decompressor) fill(it *workItem, p []byte) (int, bool, error) {
	consumed := 0
	if it.expected < 0 {
		n := copy(it.header[it.headerLen:], p)
		it.headerLen += n
		consumed += n
		if it.headerLen < format.HeaderSize {
			return consumed, false, nil
		}

		h, err := format.ParseFrameHeader(it.header[:])
		if err == nil {
			err = h.Validate()
		}
		if err != nil {
			return consumed, false, blockError(it.ordinal, ErrFormat, err)
		}
		if int64(h.Ordinal) != int64(it.ordinal) {
			return consumed, false, blockError(it.ordinal, ErrFormat,
				fmt.Errorf("frame carries ordinal %d", h.Ordinal))
		}
		if h.PayloadSize() > it.limit {
			return consumed, false, blockError(it.ordinal, ErrFormat,
				fmt.Errorf("frame payload of %d bytes exceeds block size %d", h.PayloadSize(), it.limit))
		}
		it.expected = h.PayloadSize()
		p = p[n:]
	}

	n := copy(it.inBuf[len(it.input):it.expected], p)
	it.input = it.inBuf[:len(it.input)+n]
	consumed += n
	return consumed, len(it.input) == it.expected, nil
}

// short is always false: a frame is only complete once its payload is.
func (d *decompressor) short(*workItem) bool {
	return false
}

func (d *decompressor) finish(it *workItem) error {
	out, err := d.codec.Decompress(it.outBuf[:0], it.input)
	if err != nil {
		return blockError(it.ordinal, ErrCodec, err)
	}
	it.output = out
	return nil
}

// errTruncated marks input that ended inside a frame.
var errTruncated = fmt.Errorf("input ends inside a frame: %w", io.ErrUnexpectedEOF)
