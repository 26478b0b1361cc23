package taskpool

import (
	"sync"

	"github.com/gammazero/deque"
)

// BoundedChannel is a capacity-limited FIFO safe for any number of
// producers and consumers.
//
// Unlike a Go channel it distinguishes two ways of stopping:
//
//   - Close stops admissions but lets consumers drain what is queued.
//   - Cancel is a hard abort: every blocked or future Push and Pull
//     fails immediately and queued items are abandoned.
type BoundedChannel[E any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond

	buf      deque.Deque[E]
	capacity int

	closed   bool
	canceled bool
}

// NewBoundedChannel creates a channel holding at most capacity items.
// Capacities below one are raised to one.
func NewBoundedChannel[E any](capacity int) *BoundedChannel[E] {
	if capacity < 1 {
		capacity = 1
	}
	c := &BoundedChannel[E]{capacity: capacity}
	c.notFull = sync.NewCond(&c.mu)
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// Push appends item at the tail, blocking while the channel is full.
// It returns false without enqueueing once the channel is closed or
// canceled.
func (c *BoundedChannel[E]) Push(item E) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.closed && !c.canceled && c.buf.Len() >= c.capacity {
		c.notFull.Wait()
	}
	if c.closed || c.canceled {
		return false
	}
	c.buf.PushBack(item)
	c.notEmpty.Signal()
	return true
}

// TryPush is the non-blocking form of Push. It also returns false when
// the channel is full.
func (c *BoundedChannel[E]) TryPush(item E) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.canceled || c.buf.Len() >= c.capacity {
		return false
	}
	c.buf.PushBack(item)
	c.notEmpty.Signal()
	return true
}

// Pull removes the head item, blocking while the channel is empty.
//
// ok is false if the channel was canceled (even with items still
// queued) or if it is closed and fully drained.
func (c *BoundedChannel[E]) Pull() (item E, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.closed && !c.canceled && c.buf.Len() == 0 {
		c.notEmpty.Wait()
	}
	if c.canceled || c.buf.Len() == 0 {
		return item, false
	}
	item = c.buf.PopFront()
	c.notFull.Signal()
	return item, true
}

// Close stops admissions. Queued items remain available to Pull.
func (c *BoundedChannel[E]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// Cancel aborts the channel and wakes every waiter.
func (c *BoundedChannel[E]) Cancel() {
	c.mu.Lock()
	c.canceled = true
	c.mu.Unlock()
	c.notFull.Broadcast()
	c.notEmpty.Broadcast()
}

// Len returns the number of queued items.
func (c *BoundedChannel[E]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Len()
}

// Cap returns the capacity the channel was created with.
func (c *BoundedChannel[E]) Cap() int { return c.capacity }
