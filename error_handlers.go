package taskpool

import (
	"errors"
	"fmt"

	lg "github.com/Andrej220/go-utils/zlog"
)

var (
	// ErrInvalidOptions is wrapped by every error returned from
	// Options.Validate.
	ErrInvalidOptions = errors.New("taskpool: invalid options")

	// ErrHandlerPanic is wrapped by the error reported when a handler
	// panics. The task is treated as a permanent failure.
	ErrHandlerPanic = errors.New("taskpool: handler panicked")

	// ErrRequeueRejected is reported when a task leaving the retry timer
	// cannot be re-injected because the primary queue stopped.
	ErrRequeueRejected = errors.New("taskpool: retry re-injection rejected")
)

// reportInternalError reports an internal pool error.
//
// Internal errors are failures that never reach a submitter: handler
// panics and retries lost because the queue was already stopped.
// The error is always logged; OnInternalError is called when set.
func (p *Pool[T, M]) reportInternalError(e error) {
	lg.FromContext(p.ctx).Error("internal pool error", lg.Any("error", e))
	if p.OnInternalError != nil {
		p.OnInternalError(e)
	}
}

func wrapTaskErr(err error, id string) error {
	return fmt.Errorf("%w: task %s", err, id)
}
