package taskpool

import (
	"sync"

	"github.com/gammazero/deque"
)

// FairQueue multiplexes per-tenant backlogs in round-robin order so a
// tenant with a deep backlog cannot starve the others.
//
// Every tenant with queued work sits exactly once in the active ring.
// Each PopOne serves the ring head and, if that tenant still has work,
// moves it to the tail. A tenant therefore waits at most (active
// tenants - 1) deliveries for its next turn. Within one tenant,
// submission order is preserved.
type FairQueue[T any] struct {
	mu       sync.Mutex
	backlogs map[string]*deque.Deque[Task[T]]
	ring     deque.Deque[string]
	size     int
}

// NewFairQueue returns an empty queue.
func NewFairQueue[T any]() *FairQueue[T] {
	return &FairQueue[T]{
		backlogs: make(map[string]*deque.Deque[Task[T]]),
	}
}

// Push appends task to its tenant backlog. The tenant joins the ring
// only when its backlog goes from empty to non-empty.
func (q *FairQueue[T]) Push(task Task[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	b, ok := q.backlogs[task.Tenant]
	if !ok {
		b = &deque.Deque[Task[T]]{}
		q.backlogs[task.Tenant] = b
	}
	if b.Len() == 0 {
		q.ring.PushBack(task.Tenant)
	}
	b.PushBack(task)
	q.size++
}

// PopOne returns the next task in round-robin order.
//
// Tasks whose id matches a marker in ts are consumed silently: the
// marker is removed and the next task of the same backlog is tried
// without giving up the tenant's turn. ts may be nil.
//
// Ring heads without a backlog are dropped and the walk continues; the
// loop is iterative so adversarial ring contents cannot grow the stack.
func (q *FairQueue[T]) PopOne(ts *Tombstones) (Task[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.Len() > 0 {
		tenant := q.ring.PopFront()
		b, ok := q.backlogs[tenant]
		if !ok || b.Len() == 0 {
			delete(q.backlogs, tenant)
			continue
		}

		for b.Len() > 0 {
			task := b.PopFront()
			q.size--
			if ts.Consume(task.ID) {
				continue
			}
			if b.Len() > 0 {
				q.ring.PushBack(tenant)
			} else {
				delete(q.backlogs, tenant)
			}
			return task, true
		}
		delete(q.backlogs, tenant)
	}
	return Task[T]{}, false
}

// Len returns the number of queued tasks across all tenants, including
// tasks that will be skipped by a pending tombstone.
func (q *FairQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Tenants returns the number of tenants currently in the ring.
func (q *FairQueue[T]) Tenants() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Len()
}

// Empty reports whether no task is queued.
func (q *FairQueue[T]) Empty() bool { return q.Len() == 0 }
