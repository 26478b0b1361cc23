package taskpool

import (
	"sync"
)

// schedQueue is the primary queue the pool feeds and its workers drain.
//
// Implementations are safe for concurrent producers and consumers. The
// abstraction decouples scheduling policy from execution so FIFO, fair
// and budgeted-priority ordering share one worker loop.
type schedQueue[T any] interface {
	// Push enqueues a fresh submission, blocking while full. Any stale
	// tombstone for the task's id is cleared.
	Push(task Task[T]) bool

	// TryPush is the non-blocking form of Push.
	TryPush(task Task[T]) bool

	// Requeue re-injects a task from the retry timer without clearing
	// tombstones.
	Requeue(task Task[T]) bool

	// Pull blocks for the next task. It returns false once the queue is
	// aborted or closed and drained.
	Pull() (Task[T], bool)

	// Cancel plants a one-shot tombstone for id.
	Cancel(id string) bool

	Close()
	Abort()

	// Len returns the number of queued tasks.
	Len() int
}

// fifoQueue puts lazy cancellation on top of a BoundedChannel:
// tombstoned tasks stay queued and are skipped once they reach the head.
type fifoQueue[T any] struct {
	ch *BoundedChannel[Task[T]]

	mu         sync.Mutex
	tombstones *Tombstones

	onDiscard func(n int)
}

func newFifoQueue[T any](capacity int) *fifoQueue[T] {
	return &fifoQueue[T]{
		ch:         NewBoundedChannel[Task[T]](capacity),
		tombstones: NewTombstones(),
	}
}

func (q *fifoQueue[T]) Push(task Task[T]) bool {
	q.clear(task.ID)
	return q.ch.Push(task)
}

func (q *fifoQueue[T]) TryPush(task Task[T]) bool {
	q.clear(task.ID)
	return q.ch.TryPush(task)
}

func (q *fifoQueue[T]) Requeue(task Task[T]) bool { return q.ch.Push(task) }

func (q *fifoQueue[T]) clear(id string) {
	q.mu.Lock()
	q.tombstones.Clear(id)
	q.mu.Unlock()
}

func (q *fifoQueue[T]) Pull() (Task[T], bool) {
	for {
		task, ok := q.ch.Pull()
		if !ok {
			return task, false
		}
		q.mu.Lock()
		canceled := q.tombstones.Consume(task.ID)
		q.mu.Unlock()
		if !canceled {
			return task, true
		}
		if q.onDiscard != nil {
			q.onDiscard(1)
		}
	}
}

func (q *fifoQueue[T]) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tombstones.Plant(id)
}

func (q *fifoQueue[T]) Close() { q.ch.Close() }
func (q *fifoQueue[T]) Abort() { q.ch.Cancel() }
func (q *fifoQueue[T]) Len() int { return q.ch.Len() }

var (
	_ schedQueue[int] = (*Scheduler[int])(nil)
	_ schedQueue[int] = (*fifoQueue[int])(nil)
)

// makeQueue builds the primary queue for opts.QT. onDiscard is invoked
// with the number of queued tasks swallowed by tombstones.
func makeQueue[T any](opts Options, onDiscard func(n int)) schedQueue[T] {
	switch opts.QT {
	case FairQueueType:
		s := NewScheduler[T](opts.QueueCapacity, []int{1})
		s.onDiscard = onDiscard
		return s
	case PriorityQueue:
		s := NewScheduler[T](opts.QueueCapacity, opts.Budgets)
		s.onDiscard = onDiscard
		return s
	default:
		q := newFifoQueue[T](opts.QueueCapacity)
		q.onDiscard = onDiscard
		return q
	}
}
