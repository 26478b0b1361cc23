// Package taskpool runs handler invocations for multi-tenant tasks on a
// fixed set of workers, with budgeted priorities, per-tenant fairness,
// delayed retries and two shutdown modes.
//
// Architecture overview
//
// The pool is composed of three loosely coupled layers:
//
//  1. Scheduling (schedQueue)
//     The primary queue orders tasks. Three implementations share one
//     worker loop, selected through Options.QT:
//
//     - FifoQueue: a BoundedChannel, strict arrival order.
//     - FairQueueType: a single-band Scheduler, round-robin across
//     tenants.
//     - PriorityQueue: a multi-band Scheduler. Each band has a budget
//     of dequeues per cycle; inside a band tenants are served
//     round-robin by a FairQueue.
//
//  2. Execution (Pool / workers)
//     Workers loop Pull → Handle → classify. Handlers return an
//     Outcome; panics are recovered and count as PermanentFailure.
//
//  3. Retry (RetryTimer)
//     RetryableFailure moves the task to a timer that re-injects it
//     into the primary queue once its backoff elapsed. The backoff for
//     the k-th failure is min(Initial*2^k, Max). A task runs at most
//     RetryPolicy.Attempts times.
//
// Budgets
//
// With budgets [70, 30, 1] band 0 gets at most 70 dequeues per cycle,
// band 1 at most 30 and band 2 one. A band that runs dry does not use
// up its quota, so lower bands get the slack. A cycle ends when every
// band either spent its budget or has nothing to offer.
//
// Cancellation
//
// Cancel plants a one-shot tombstone for a task id. The matching task
// is discarded lazily once it reaches the head of its tenant backlog
// (or of the FIFO). A later Submit with the same id clears the
// tombstone. A task that is executing or parked for retry is not
// affected until it comes back through the queue.
//
// Shutdown
//
// Shutdown(ctx, Drain) stops admissions and waits until the primary
// queue and the retry timer are empty and no handler is running.
// Shutdown(ctx, Cancel) abandons queued and parked tasks and only waits
// for running handlers; their context is canceled.
//
// Error handling
//
// Handlers report failures through their Outcome, never through an
// error value, and no completion signal reaches the submitter.
// Internal errors (handler panics, retries lost to a stopped queue) are
// logged and passed to Pool.OnInternalError.
//
// Logging
//
// Options.Ctx carries the logger. Everything the pool logs goes
// through zlog.FromContext on that context.
package taskpool
