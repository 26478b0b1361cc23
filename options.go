package taskpool

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/multierr"
)

const (
	DefaultQueueCapacity = 1024
)

// QueueType defines the scheduling strategy of the pool's primary queue.
//
// The type is configured via Options.QT when creating a new Pool.
type QueueType int

const (
	// FifoQueue is a BoundedChannel: strict arrival order.
	FifoQueue QueueType = iota

	// FairQueueType is a single-band Scheduler: round-robin across
	// tenants, no priorities.
	FairQueueType

	// PriorityQueue is a multi-band Scheduler with per-cycle budgets and
	// tenant fairness inside each band.
	PriorityQueue
)

// Options configure a Pool.
//
// All zero values are replaced with sensible defaults in FillDefaults.
type Options struct {
	Workers int

	// QueueCapacity bounds the primary queue; Submit blocks while it is
	// full.
	QueueCapacity int

	QT QueueType

	// Budgets holds one per-cycle budget per band for PriorityQueue.
	// Ignored by the other queue types.
	Budgets []int

	Retry RetryPolicy

	// PinWorkers locks each worker to an OS thread bound to one CPU.
	// Only effective on Linux.
	PinWorkers bool

	// Ctx is the base context. It carries the logger and is the parent
	// of the context handed to handlers.
	Ctx context.Context
}

// FillDefaults replaces zero values with defaults.
func (o *Options) FillDefaults() {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.QT == PriorityQueue && len(o.Budgets) == 0 {
		o.Budgets = append([]int(nil), DefaultBudgets...)
	}
	if o.Retry.Attempts <= 0 {
		o.Retry.Attempts = defaultAttempts
	}
	if o.Retry.Initial <= 0 {
		o.Retry.Initial = defaultInitialRetry
	}
	if o.Retry.Max <= 0 {
		o.Retry.Max = defaultMaxRetry
	}
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
}

// Validate reports every inconsistency in o. The returned error wraps
// ErrInvalidOptions.
func (o *Options) Validate() error {
	var err error
	if o.Workers <= 0 {
		err = multierr.Append(err, fmt.Errorf("workers must be positive, got %d", o.Workers))
	}
	if o.QueueCapacity <= 0 {
		err = multierr.Append(err, fmt.Errorf("queue capacity must be positive, got %d", o.QueueCapacity))
	}
	switch o.QT {
	case FifoQueue, FairQueueType:
	case PriorityQueue:
		enabled := 0
		for i, b := range o.Budgets {
			if b < 0 {
				err = multierr.Append(err, fmt.Errorf("budget for band %d is negative: %d", i, b))
			}
			if b > 0 {
				enabled++
			}
		}
		if enabled == 0 {
			err = multierr.Append(err, fmt.Errorf("at least one band needs a positive budget"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("unknown queue type %d", o.QT))
	}
	if o.Retry.Attempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("retry attempts must be positive, got %d", o.Retry.Attempts))
	}
	if o.Retry.Initial <= 0 || o.Retry.Max < o.Retry.Initial {
		err = multierr.Append(err, fmt.Errorf("retry backoff needs 0 < initial <= max, got %v/%v",
			o.Retry.Initial, o.Retry.Max))
	}
	if o.Retry.Jitter && o.Retry.Initial > 0 && o.Retry.Initial < minJitterBackoff {
		err = multierr.Append(err, fmt.Errorf("jittered backoff needs initial >= %v, got %v",
			minJitterBackoff, o.Retry.Initial))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

func (qt QueueType) String() string {
	switch qt {
	case FifoQueue:
		return "FifoQueue"
	case FairQueueType:
		return "FairQueue"
	case PriorityQueue:
		return "PriorityQueue"
	default:
		return "Unknown"
	}
}

// ParseQueueType maps the names returned by String back to a QueueType.
func ParseQueueType(s string) (QueueType, error) {
	switch s {
	case "FifoQueue", "fifo":
		return FifoQueue, nil
	case "FairQueue", "fair":
		return FairQueueType, nil
	case "PriorityQueue", "priority":
		return PriorityQueue, nil
	default:
		return 0, fmt.Errorf("%w: unknown queue type %q", ErrInvalidOptions, s)
	}
}
