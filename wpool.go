package taskpool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
)

// ShutdownMode selects how Shutdown stops the pool.
type ShutdownMode int

const (
	// Drain waits until the primary queue and the retry timer are empty
	// and no handler is running, then stops the workers.
	Drain ShutdownMode = iota

	// Cancel abandons queued and parked tasks immediately and only waits
	// for handlers that are already running.
	Cancel
)

func (m ShutdownMode) String() string {
	switch m {
	case Drain:
		return "Drain"
	case Cancel:
		return "Cancel"
	default:
		return "Unknown"
	}
}

// Pool runs a fixed number of workers over one primary queue and a
// retry timer.
//
// Workers loop Pull → Handle → classify. A RetryableFailure goes to the
// retry timer until the policy's attempt ceiling is reached; every
// other outcome drops the task. The submitter is never told which of
// these happened.
type Pool[T any, M MetricsPolicy] struct {
	opts    Options
	handler Handler[T]
	metrics M

	queue schedQueue[T]
	retry *RetryTimer[T]

	// ctx is handed to handlers and canceled when the pool aborts.
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	idle *sync.Cond

	accepting bool
	aborted   bool

	// outstanding counts accepted tasks that have not been dropped yet:
	// queued, executing, or parked in the retry timer.
	outstanding int

	wg            sync.WaitGroup
	activeWorkers atomic.Int32
	seed          atomic.Int64
	abortOnce     sync.Once

	// OnInternalError, if set, receives handler panics and retries lost
	// to a stopped queue. Set it before submitting work.
	OnInternalError func(error)
}

// NewPool creates a pool with AtomicMetrics.
func NewPool[T any](opts Options, h Handler[T]) *Pool[T, *AtomicMetrics] {
	return NewPoolFromOptions[*AtomicMetrics, T](&AtomicMetrics{}, opts, h)
}

// NewPoolFromOptions creates a pool and starts its workers. Zero option
// values are filled with defaults; options that are still invalid
// afterwards cause a panic.
func NewPoolFromOptions[M MetricsPolicy, T any](metrics M, opts Options, h Handler[T]) *Pool[T, M] {
	if h == nil {
		panic("taskpool: nil handler")
	}
	opts.FillDefaults()
	if err := opts.Validate(); err != nil {
		panic(err)
	}

	ctx, cancel := context.WithCancel(opts.Ctx)
	p := &Pool[T, M]{
		opts:      opts,
		handler:   h,
		metrics:   metrics,
		ctx:       ctx,
		cancel:    cancel,
		accepting: true,
	}
	p.idle = sync.NewCond(&p.mu)
	p.seed.Store(time.Now().UnixNano())
	p.queue = makeQueue[T](opts, p.discarded)
	p.retry = NewRetryTimer[T](ctx, p.requeue)

	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	lg.FromContext(ctx).Info("pool started",
		lg.Int("workers", opts.Workers),
		lg.String("queue", opts.QT.String()),
		lg.Int("capacity", opts.QueueCapacity))
	return p
}

// Submit enqueues task, blocking while the primary queue is full.
//
// It returns false, without enqueueing, once the pool stopped accepting
// or the queue was closed. A task with an empty ID receives a random
// one and a zero CreatedAt is stamped with the current time.
func (p *Pool[T, M]) Submit(task Task[T]) bool {
	return p.submit(task, true)
}

// TrySubmit is the non-blocking form of Submit. It also returns false
// when the queue is full.
func (p *Pool[T, M]) TrySubmit(task Task[T]) bool {
	return p.submit(task, false)
}

func (p *Pool[T, M]) submit(task Task[T], block bool) bool {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	task.Attempt = 0
	task.DueAt = time.Time{}

	p.mu.Lock()
	if !p.accepting {
		p.mu.Unlock()
		p.metrics.IncRejected()
		return false
	}
	p.outstanding++
	p.mu.Unlock()

	var ok bool
	if block {
		ok = p.queue.Push(task)
	} else {
		ok = p.queue.TryPush(task)
	}
	if !ok {
		p.release(1)
		p.metrics.IncRejected()
		return false
	}
	p.metrics.IncSubmitted()
	return true
}

// Cancel plants a one-shot tombstone for id in the primary queue. It
// reports false if a tombstone for id was already pending.
//
// Cancellation is best effort: a task that was already dequeued, or one
// the tombstone has not reached yet, may still run. A later Submit of
// the same id clears the tombstone.
func (p *Pool[T, M]) Cancel(id string) bool {
	return p.queue.Cancel(id)
}

// StopAccepting rejects future submissions. Queued, running and parked
// tasks are not affected.
func (p *Pool[T, M]) StopAccepting() {
	p.mu.Lock()
	p.accepting = false
	p.mu.Unlock()
	p.idle.Broadcast()
}

// Shutdown stops the pool in the given mode and blocks until every
// worker has exited.
//
// If ctx is done first, Shutdown returns ctx.Err() and the pool keeps
// shutting down in the background; calling Shutdown again waits for it
// (a Cancel call escalates a pending Drain).
func (p *Pool[T, M]) Shutdown(ctx context.Context, mode ShutdownMode) error {
	p.StopAccepting()

	if mode == Drain {
		if err := p.waitQuiescent(ctx); err != nil {
			return err
		}
	}
	p.abort(mode)

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.wg.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop drains the pool and blocks until it is fully stopped.
func (p *Pool[T, M]) Stop() { _ = p.Shutdown(context.Background(), Drain) }

func (p *Pool[T, M]) waitQuiescent(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.mu.Lock()
		for p.outstanding > 0 && !p.aborted {
			p.idle.Wait()
		}
		p.mu.Unlock()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abort hard-stops the primary queue and the retry timer. The queue
// goes first so a dispatcher blocked re-injecting into a full queue is
// released before the timer is joined.
func (p *Pool[T, M]) abort(mode ShutdownMode) {
	p.abortOnce.Do(func() {
		queued, parked := p.queue.Len(), p.retry.Len()

		p.mu.Lock()
		p.aborted = true
		p.mu.Unlock()
		p.idle.Broadcast()

		p.queue.Abort()
		p.retry.Stop()
		p.cancel()

		lg.FromContext(p.ctx).Info("pool stopping",
			lg.String("mode", mode.String()),
			lg.Int("abandoned_queued", queued),
			lg.Int("abandoned_retries", parked))
	})
}

// release marks n outstanding tasks as finished and wakes drain waiters
// once nothing is left.
func (p *Pool[T, M]) release(n int) {
	p.mu.Lock()
	p.outstanding -= n
	idle := p.outstanding == 0
	p.mu.Unlock()
	if idle {
		p.idle.Broadcast()
	}
}

// discarded is called by the primary queue for tasks swallowed by
// tombstones.
func (p *Pool[T, M]) discarded(n int) {
	p.metrics.AddDiscarded(int64(n))
	p.release(n)
}

// requeue is the retry timer's re-injection callback.
func (p *Pool[T, M]) requeue(task Task[T]) {
	if p.queue.Requeue(task) {
		return
	}
	p.metrics.IncDropped()
	p.reportInternalError(wrapTaskErr(ErrRequeueRejected, task.ID))
	p.release(1)
}

func (p *Pool[T, M]) ActiveWorkers() int32 { return p.activeWorkers.Load() }
func (p *Pool[T, M]) QueueLength() int     { return p.queue.Len() }
func (p *Pool[T, M]) PendingRetries() int  { return p.retry.Len() }
func (p *Pool[T, M]) Metrics() M           { return p.metrics }

// Outstanding returns the number of accepted tasks not yet dropped.
func (p *Pool[T, M]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// Accepting reports whether Submit still admits tasks.
func (p *Pool[T, M]) Accepting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accepting
}
