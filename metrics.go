package taskpool

import (
	"sync/atomic"
)

// MetricsPolicy defines hooks used by the pool to report queueing and
// execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
type MetricsPolicy interface {
	// IncSubmitted counts a task accepted by Submit.
	IncSubmitted()

	// IncRejected counts a Submit that did not enqueue.
	IncRejected()

	// IncExecuted counts one handler invocation.
	IncExecuted()

	// IncRetried counts a task handed to the retry timer.
	IncRetried()

	// IncDropped counts a task dropped after PermanentFailure or
	// exhausted attempts.
	IncDropped()

	// AddDiscarded counts n queued tasks swallowed by tombstones.
	AddDiscarded(n int64)
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	submitted atomic.Uint64
	rejected  atomic.Uint64

	_ [48]byte // padding to avoid false sharing

	executed  atomic.Uint64
	retried   atomic.Uint64
	dropped   atomic.Uint64
	discarded atomic.Int64
}

func (m *AtomicMetrics) Submitted() uint64 { return m.submitted.Load() }
func (m *AtomicMetrics) Rejected() uint64  { return m.rejected.Load() }
func (m *AtomicMetrics) Executed() uint64  { return m.executed.Load() }
func (m *AtomicMetrics) Retried() uint64   { return m.retried.Load() }
func (m *AtomicMetrics) Dropped() uint64   { return m.dropped.Load() }
func (m *AtomicMetrics) Discarded() int64  { return m.discarded.Load() }

func (m *AtomicMetrics) IncSubmitted()        { m.submitted.Add(1) }
func (m *AtomicMetrics) IncRejected()         { m.rejected.Add(1) }
func (m *AtomicMetrics) IncExecuted()         { m.executed.Add(1) }
func (m *AtomicMetrics) IncRetried()          { m.retried.Add(1) }
func (m *AtomicMetrics) IncDropped()          { m.dropped.Add(1) }
func (m *AtomicMetrics) AddDiscarded(n int64) { m.discarded.Add(n) }

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (m *NoopMetrics) IncSubmitted()        {}
func (m *NoopMetrics) IncRejected()         {}
func (m *NoopMetrics) IncExecuted()         {}
func (m *NoopMetrics) IncRetried()          {}
func (m *NoopMetrics) IncDropped()          {}
func (m *NoopMetrics) AddDiscarded(n int64) {}
