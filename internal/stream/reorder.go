package stream

import "container/heap"

// reorderHeap holds finished items keyed by ordinal so the writer always
// sees the lowest pending ordinal first.
type reorderHeap []*workItem

var _ heap.Interface = (*reorderHeap)(nil)

func (h reorderHeap) Len() int           { return len(h) }
func (h reorderHeap) Less(i, j int) bool { return h[i].ordinal < h[j].ordinal }
func (h reorderHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *reorderHeap) Push(x any) {
	*h = append(*h, x.(*workItem)) //nolint:errcheck // heap only holds *workItem
}

func (h *reorderHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// next returns the lowest pending ordinal, or -1 when empty.
func (h reorderHeap) next() int {
	if len(h) == 0 {
		return -1
	}
	return h[0].ordinal
}
