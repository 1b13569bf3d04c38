package stream

import (
	"time"

	"github.com/vertti/parpack/internal/format"
)

// workItem carries one block through fill, transform and write. Items are
// allocated once per run and recycled until the stream closes.
//
// At any moment an item is owned by exactly one party: the free list, the
// producer (filling), a worker, or the reorder heap.
type workItem struct {
	index   int // Slot in the pool
	ordinal int // Block ordinal, -1 while free

	inBuf  []byte // Fixed backing array for input
	input  []byte // Valid input bytes, always a prefix of inBuf
	limit  int    // Fill capacity of input for the current transform
	outBuf []byte // Fixed backing array for output
	output []byte // Ready-to-write bytes

	// Decompress-side frame state. expected is -1 until the frame header
	// has been read in full.
	header    [format.HeaderSize]byte
	headerLen int
	expected  int

	err     error
	elapsed time.Duration
}

func newWorkItem(index, blockSize, limit int) *workItem {
	it := &workItem{
		index:  index,
		inBuf:  make([]byte, blockSize),
		outBuf: make([]byte, blockSize+blockSize/2),
		limit:  limit,
	}
	it.reset()
	return it
}

// reset returns the item to its free state.
func (it *workItem) reset() {
	it.ordinal = -1
	it.input = it.inBuf[:0]
	it.output = it.outBuf[:0]
	it.headerLen = 0
	it.expected = -1
	it.err = nil
	it.elapsed = 0
}

// pool is a fixed set of work items. The free channel doubles as the
// producer's semaphore: an empty channel means every item is in flight.
type pool struct {
	items []*workItem
	free  chan *workItem
}

func newPool(size, blockSize, limit int) *pool {
	p := &pool{
		items: make([]*workItem, size),
		free:  make(chan *workItem, size),
	}
	for i := range p.items {
		p.items[i] = newWorkItem(i, blockSize, limit)
		p.free <- p.items[i]
	}
	return p
}

// tryAcquire takes a free item without blocking.
func (p *pool) tryAcquire() (*workItem, bool) {
	select {
	case it := <-p.free:
		return it, true
	default:
		return nil, false
	}
}

// release resets it and returns it to the free list. The channel has room
// for every item, so this never blocks.
func (p *pool) release(it *workItem) {
	it.reset()
	p.free <- it
}

// inUse returns how many items are outside the free list.
func (p *pool) inUse() int {
	return len(p.items) - len(p.free)
}
