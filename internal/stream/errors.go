package stream

import (
	"errors"
	"fmt"
	"sync"
)

// Error kinds. A failed run returns an error matching exactly one of them
// with errors.Is.
var (
	// ErrFormat reports a malformed archive: bad frame header, ordinal
	// mismatch or truncated input.
	ErrFormat = errors.New("archive format error")
	// ErrCodec reports a block codec failure.
	ErrCodec = errors.New("codec error")
	// ErrDispatch reports a block that could not be handed to a worker.
	ErrDispatch = errors.New("dispatch error")
	// ErrIO reports a sink write failure.
	ErrIO = errors.New("output error")
	// ErrClosed is returned by Write and Flush after Close.
	ErrClosed = errors.New("stream closed")
)

// BlockError describes the failure of a single block. It matches both its
// Kind and the underlying cause with errors.Is.
type BlockError struct {
	Ordinal int
	Kind    error
	Err     error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%v: block %d: %v", e.Kind, e.Ordinal, e.Err)
}

func (e *BlockError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func blockError(ordinal int, kind, err error) *BlockError {
	return &BlockError{Ordinal: ordinal, Kind: kind, Err: err}
}

// firstError keeps the first error recorded by any goroutine.
type firstError struct {
	mu  sync.Mutex
	err error
}

// set records err unless an error is already recorded. It reports whether
// err was kept.
func (f *firstError) set(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false
	}
	f.err = err
	return true
}

func (f *firstError) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
