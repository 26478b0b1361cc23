package taskpool

import (
	"fmt"
	"runtime"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
)

func (p *Pool[T, M]) worker(id int) {
	defer p.wg.Done()

	if p.opts.PinWorkers {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		cpu := id % runtime.NumCPU()
		if err := PinToCPU(cpu); err != nil {
			lg.FromContext(p.ctx).Warn("worker pinning failed",
				lg.Int("worker", id), lg.Int("cpu", cpu), lg.Any("error", err))
		}
	}

	for {
		task, ok := p.queue.Pull()
		if !ok {
			return
		}
		p.activeWorkers.Add(1)
		outcome := p.execute(task)
		p.settle(task, outcome)
		p.activeWorkers.Add(-1)
	}
}

// execute runs the handler once. A panic is recovered and counts as a
// PermanentFailure.
func (p *Pool[T, M]) execute(task Task[T]) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.reportInternalError(fmt.Errorf("%w: task %s: %v", ErrHandlerPanic, task.ID, r))
			outcome = PermanentFailure
		}
	}()
	p.metrics.IncExecuted()
	return p.handler.Handle(p.ctx, task)
}

// settle applies the retry policy to outcome. Retryable tasks move to
// the retry timer and stay outstanding; everything else is dropped.
func (p *Pool[T, M]) settle(task Task[T], outcome Outcome) {
	logger := lg.FromContext(p.ctx).With(
		lg.String("task", task.ID),
		lg.String("tenant", task.Tenant),
		lg.Int("band", task.Band))

	switch outcome {
	case Success:
		p.release(1)
		return

	case RetryableFailure:
		pol := p.opts.Retry
		if !pol.CanRetry(task.Attempt) {
			logger.Error("task exhausted retries", lg.Int("attempts", task.Attempt+1))
			break
		}
		delay := pol.nextDelay(task.Attempt, p.seed.Add(1))
		task.Attempt++
		if !p.retry.Schedule(task, time.Now().Add(delay)) {
			logger.Warn("retry timer stopped; dropping task", lg.Int("attempt", task.Attempt))
			break
		}
		p.metrics.IncRetried()
		logger.Warn("task attempt failed; backing off",
			lg.Int("attempt", task.Attempt),
			lg.String("sleep", delay.String()))
		return

	default:
		logger.Warn("task failed permanently", lg.Int("attempt", task.Attempt+1))
	}

	p.metrics.IncDropped()
	p.release(1)
}
