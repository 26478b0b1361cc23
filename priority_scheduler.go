package taskpool

import (
	"sync"
)

// DefaultBudgets are the per-cycle delivery budgets used when
// Options.Budgets is empty: bands P0, P1 and P2.
var DefaultBudgets = []int{70, 30, 1}

type band[T any] struct {
	q      *FairQueue[T]
	budget int
	used   int
}

// Scheduler composes several FairQueue bands under per-cycle delivery
// budgets.
//
// Band 0 is the most urgent. Within one cycle band i is served at most
// budget[i] times; an empty band never consumes its budget, and a band
// with a zero budget is disabled. When every band is either exhausted
// or empty a new cycle starts, so unused quota from an idle period
// cannot block a lower band.
//
// Scheduler is also a blocking primary queue: Push blocks while the
// total backlog is at capacity and Pull blocks until work arrives, the
// scheduler is closed and drained, or it is aborted.
type Scheduler[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	bands      []band[T]
	tombstones *Tombstones
	capacity   int

	closed  bool
	aborted bool

	// onDiscard is told how many queued tasks were consumed by
	// tombstones. It is called with mu held and must not call back
	// into the scheduler.
	onDiscard func(n int)
}

// NewScheduler creates a scheduler with one band per budget entry.
// Negative budgets are treated as zero. A capacity below one means
// unbounded.
func NewScheduler[T any](capacity int, budgets []int) *Scheduler[T] {
	if len(budgets) == 0 {
		budgets = DefaultBudgets
	}
	s := &Scheduler[T]{
		bands:      make([]band[T], len(budgets)),
		tombstones: NewTombstones(),
		capacity:   capacity,
	}
	for i, b := range budgets {
		s.bands[i] = band[T]{q: NewFairQueue[T](), budget: max(b, 0)}
	}
	s.notEmpty = sync.NewCond(&s.mu)
	s.notFull = sync.NewCond(&s.mu)
	return s
}

// NormalizeBand clamps a requested band into [0, bands-1].
func (s *Scheduler[T]) NormalizeBand(b int) int {
	if b <= 0 {
		return 0
	}
	if b >= len(s.bands) {
		return len(s.bands) - 1
	}
	return b
}

// Push enqueues a fresh submission, blocking while the scheduler is at
// capacity. Any stale tombstone for task.ID is cleared first.
//
// Push returns false if the scheduler is closed or aborted, or if the
// task's band is disabled.
func (s *Scheduler[T]) Push(task Task[T]) bool {
	return s.push(task, true, true)
}

// TryPush is the non-blocking form of Push.
func (s *Scheduler[T]) TryPush(task Task[T]) bool {
	return s.push(task, true, false)
}

// Requeue re-injects a task coming back from the retry timer. Unlike
// Push it keeps any tombstone planted while the task was waiting.
func (s *Scheduler[T]) Requeue(task Task[T]) bool {
	return s.push(task, false, true)
}

func (s *Scheduler[T]) push(task Task[T], fresh, block bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.Band = s.NormalizeBand(task.Band)
	if s.bands[task.Band].budget == 0 {
		return false
	}
	for block && !s.closed && !s.aborted && s.fullLocked() {
		s.notFull.Wait()
	}
	if s.closed || s.aborted || s.fullLocked() {
		return false
	}
	if fresh {
		s.tombstones.Clear(task.ID)
	}
	s.bands[task.Band].q.Push(task)
	s.notEmpty.Signal()
	return true
}

// Cancel plants a tombstone for id. It reports false if one was
// already pending. A task is skipped only if the tombstone reaches it
// before it is dequeued.
func (s *Scheduler[T]) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tombstones.Plant(id)
}

// TryPull returns the next task without blocking.
func (s *Scheduler[T]) TryPull() (Task[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return Task[T]{}, false
	}
	return s.nextLocked()
}

// Pull blocks until a task is selected. It returns false once the
// scheduler is aborted, or closed with nothing left to deliver.
func (s *Scheduler[T]) Pull() (Task[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.aborted {
			return Task[T]{}, false
		}
		if s.lenLocked() == 0 {
			if s.closed {
				return Task[T]{}, false
			}
			s.notEmpty.Wait()
			continue
		}
		if t, ok := s.nextLocked(); ok {
			return t, true
		}
		// only tombstoned tasks were queued; they are gone now
	}
}

// nextLocked runs the two-pass budgeted selection.
func (s *Scheduler[T]) nextLocked() (Task[T], bool) {
	before := s.lenLocked()
	task, ok := s.selectLocked()

	discarded := before - s.lenLocked()
	if ok {
		discarded--
	}
	if discarded > 0 {
		s.notFull.Broadcast()
		if s.onDiscard != nil {
			s.onDiscard(discarded)
		}
	}
	if ok {
		s.notFull.Signal()
	}
	return task, ok
}

func (s *Scheduler[T]) selectLocked() (Task[T], bool) {
	for pass := 0; pass < 2; pass++ {
		for i := range s.bands {
			b := &s.bands[i]
			if b.used >= b.budget {
				continue
			}
			if t, ok := b.q.PopOne(s.tombstones); ok {
				b.used++
				return t, true
			}
		}
		// every band is exhausted or empty: start a new cycle
		s.resetCycleLocked()
	}
	return Task[T]{}, false
}

func (s *Scheduler[T]) resetCycleLocked() {
	for i := range s.bands {
		s.bands[i].used = 0
	}
}

func (s *Scheduler[T]) lenLocked() int {
	n := 0
	for i := range s.bands {
		n += s.bands[i].q.Len()
	}
	return n
}

func (s *Scheduler[T]) fullLocked() bool {
	return s.capacity > 0 && s.lenLocked() >= s.capacity
}

// Close stops admissions; queued tasks remain available to Pull.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notEmpty.Broadcast()
	s.notFull.Broadcast()
}

// Abort is the hard stop: every blocked or future Push and Pull fails.
func (s *Scheduler[T]) Abort() {
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.notEmpty.Broadcast()
	s.notFull.Broadcast()
}

// Len returns the number of queued tasks across all bands.
func (s *Scheduler[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

// BandLen returns the number of tasks queued in band b.
func (s *Scheduler[T]) BandLen(b int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bands[s.NormalizeBand(b)].q.Len()
}

// Bands returns the number of bands.
func (s *Scheduler[T]) Bands() int { return len(s.bands) }

// Cap returns the capacity bound, or 0 if unbounded.
func (s *Scheduler[T]) Cap() int { return max(s.capacity, 0) }
