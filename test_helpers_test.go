package taskpool

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

func newTestOptions(qt QueueType) Options {
	return Options{
		Workers:       runtime.GOMAXPROCS(0),
		QueueCapacity: 1024,
		QT:            qt,
		Retry:         RetryPolicy{Attempts: 3, Initial: 5 * time.Millisecond, Max: 20 * time.Millisecond},
	}
}

func newTestPool[T any](t *testing.T, workers int, qt QueueType, h Handler[T]) *Pool[T, *AtomicMetrics] {
	t.Helper()

	opts := newTestOptions(qt)
	opts.Workers = workers
	return NewPool[T](opts, h)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before timeout")
}

// recorder is a Handler that remembers every invocation.
type recorder[T any] struct {
	mu    sync.Mutex
	calls []call[T]
	fn    func(Task[T]) Outcome
}

type call[T any] struct {
	task Task[T]
	at   time.Time
}

func newRecorder[T any](fn func(Task[T]) Outcome) *recorder[T] {
	if fn == nil {
		fn = func(Task[T]) Outcome { return Success }
	}
	return &recorder[T]{fn: fn}
}

func (r *recorder[T]) Handle(_ context.Context, task Task[T]) Outcome {
	r.mu.Lock()
	r.calls = append(r.calls, call[T]{task: task, at: time.Now()})
	r.mu.Unlock()
	return r.fn(task)
}

func (r *recorder[T]) snapshot() []call[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call[T](nil), r.calls...)
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recorder[T]) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.task.ID
	}
	return out
}

func percentile(samples []int64, q float64) time.Duration {
	pos := int(float64(len(samples)-1) * q)
	return time.Duration(samples[pos])
}

func getenvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
