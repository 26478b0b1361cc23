package taskpool

import "time"

// retryItem is a task parked until due.
type retryItem[T any] struct {
	task Task[T]
	due  time.Time

	// seq breaks ties between equal due times in scheduling order.
	seq uint64

	// index is maintained by heap.Interface.
	index int
}

// dueHeap is a min-heap ordered by due time.
type dueHeap[T any] []*retryItem[T]

func (h dueHeap[T]) Len() int { return len(h) }
func (h dueHeap[T]) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h dueHeap[T]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *dueHeap[T]) Push(x any) {
	it := x.(*retryItem[T])
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *dueHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}
