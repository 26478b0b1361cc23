package taskpool

import (
	"context"
	"time"
)

// Outcome is the classification a Handler returns for one execution
// of a task.
type Outcome int

const (
	// Success drops the task; no further action is taken.
	Success Outcome = iota

	// RetryableFailure schedules the task for a backed-off redelivery
	// until the retry policy's attempt ceiling is reached.
	RetryableFailure

	// PermanentFailure drops the task immediately.
	PermanentFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case RetryableFailure:
		return "RetryableFailure"
	case PermanentFailure:
		return "PermanentFailure"
	default:
		return "Unknown"
	}
}

// Task represents a single unit of work submitted to the pool.
//
// ID is chosen by the caller and is not required to be unique across
// time; it is the key used by Cancel. Tenant partitions fairness and
// Band selects the priority tier (lower is more urgent).
type Task[T any] struct {
	ID      string
	Tenant  string
	Band    int
	Payload T

	// Attempt counts retryable failures so far. It starts at 0 and is
	// only incremented by a worker.
	Attempt int

	CreatedAt time.Time

	// DueAt is set when the task is parked in the retry timer.
	DueAt time.Time
}

// Handler executes tasks. Implementations must always return one of the
// three outcomes and must not block indefinitely; a handler that never
// returns pins its worker forever.
//
// ctx is derived from Options.Ctx and is canceled by a Cancel-mode
// shutdown.
type Handler[T any] interface {
	Handle(ctx context.Context, task Task[T]) Outcome
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc[T any] func(ctx context.Context, task Task[T]) Outcome

// Handle calls f(ctx, task).
func (f HandlerFunc[T]) Handle(ctx context.Context, task Task[T]) Outcome {
	return f(ctx, task)
}
