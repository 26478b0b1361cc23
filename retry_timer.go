package taskpool

import (
	"container/heap"
	"context"
	"sync"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

// RetryTimer parks tasks until their due time and then hands them to a
// re-injection callback from a single dispatcher goroutine.
//
// The callback runs without the timer's lock held, so a callback that
// blocks (for instance on a full primary queue) never stalls Schedule.
type RetryTimer[T any] struct {
	mu    sync.Mutex
	items dueHeap[T]
	seq   uint64

	// inTransit counts items popped from the heap whose callback has
	// not returned yet. Empty reports false while it is non-zero.
	inTransit int
	stopping  bool

	reinject func(Task[T])
	ctx      context.Context

	wake     chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewRetryTimer starts a timer whose dispatcher calls reinject for every
// expired task. ctx is used for logging only.
func NewRetryTimer[T any](ctx context.Context, reinject func(Task[T])) *RetryTimer[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &RetryTimer[T]{
		reinject: reinject,
		ctx:      ctx,
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	heap.Init(&t.items)
	go t.dispatch()
	return t
}

// Schedule parks task until due. The dispatcher is woken only if the
// new item became the soonest one. It reports false after Stop.
func (t *RetryTimer[T]) Schedule(task Task[T], due time.Time) bool {
	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return false
	}
	task.DueAt = due
	t.seq++
	it := &retryItem[T]{task: task, due: due, seq: t.seq}
	heap.Push(&t.items, it)
	soonest := it.index == 0
	t.mu.Unlock()

	if soonest {
		t.signal()
	}
	return true
}

func (t *RetryTimer[T]) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *RetryTimer[T]) dispatch() {
	defer close(t.done)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)

	for {
		t.mu.Lock()
		if t.stopping {
			t.mu.Unlock()
			return
		}

		wait := time.Duration(-1)
		if t.items.Len() > 0 {
			head := t.items[0]
			now := time.Now()
			if !head.due.After(now) {
				heap.Pop(&t.items)
				t.inTransit++
				t.mu.Unlock()

				t.reinject(head.task)

				t.mu.Lock()
				t.inTransit--
				t.mu.Unlock()
				continue
			}
			wait = head.due.Sub(now)
		}
		t.mu.Unlock()

		if wait < 0 {
			select {
			case <-t.wake:
			case <-t.stopCh:
				return
			}
			continue
		}

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-t.wake:
			stopTimer(timer)
		case <-t.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func stopTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// Stop terminates the dispatcher and waits for it to exit. Items that
// are still pending are abandoned. Stop is idempotent.
//
// If the callback is blocked, Stop waits for it to return; callers
// should unblock the callback's target first.
func (t *RetryTimer[T]) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopping = true
		abandoned := t.items.Len()
		t.mu.Unlock()
		close(t.stopCh)

		if abandoned > 0 {
			lg.FromContext(t.ctx).Warn("retry timer stopped with pending tasks",
				lg.Int("abandoned", abandoned))
		}
	})
	<-t.done
}

// Empty reports whether no task is pending or in transit to the
// re-injection callback.
func (t *RetryTimer[T]) Empty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items.Len() == 0 && t.inTransit == 0
}

// Len returns the number of parked tasks.
func (t *RetryTimer[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.items.Len()
}
