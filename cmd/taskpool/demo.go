package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/azargarov/taskpool"
)

type fate int

const (
	fateSuccess fate = iota
	// fails once, then succeeds
	fateFlaky
	// fails permanently
	fateBroken
)

type job struct {
	work time.Duration
	fate fate
}

type bandStats struct {
	submitted   atomic.Int64
	rejected    atomic.Int64
	invocations atomic.Int64
	succeeded   atomic.Int64
	failed      atomic.Int64
}

// report is what `run` prints once the pool is stopped.
type report struct {
	bands    []*bandStats
	metrics  *taskpool.AtomicMetrics
	canceled int64
	elapsed  time.Duration
	mode     taskpool.ShutdownMode
	forced   bool
}

// workloadHandler classifies each invocation by the fate drawn at
// generation time.
type workloadHandler struct {
	stats []*bandStats
}

func (h *workloadHandler) Handle(ctx context.Context, task taskpool.Task[job]) taskpool.Outcome {
	st := h.stats[task.Band]
	st.invocations.Add(1)

	if task.Payload.work > 0 {
		t := time.NewTimer(task.Payload.work)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			st.failed.Add(1)
			return taskpool.PermanentFailure
		}
	}

	switch task.Payload.fate {
	case fateFlaky:
		if task.Attempt == 0 {
			return taskpool.RetryableFailure
		}
	case fateBroken:
		st.failed.Add(1)
		return taskpool.PermanentFailure
	}
	st.succeeded.Add(1)
	return taskpool.Success
}

// runWorkload builds a pool from cfg, feeds it the synthetic workload
// from concurrent submitters and stops it in the configured mode.
func runWorkload(ctx context.Context, cfg *Config, logger *zap.Logger) (*report, error) {
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	opts.Ctx = lg.Attach(ctx, newZLogger(logger.Named("pool")))
	mode, err := parseShutdownMode(cfg.Pool.Shutdown)
	if err != nil {
		return nil, err
	}

	bands := 1
	if opts.QT == taskpool.PriorityQueue {
		bands = len(opts.Budgets)
	}
	rep := &report{bands: make([]*bandStats, bands), mode: mode}
	for i := range rep.bands {
		rep.bands[i] = &bandStats{}
	}

	metrics := &taskpool.AtomicMetrics{}
	pool := taskpool.NewPoolFromOptions[*taskpool.AtomicMetrics, job](metrics, opts, &workloadHandler{stats: rep.bands})
	pool.OnInternalError = func(err error) {
		logger.Warn("pool internal error", zap.Error(err))
	}
	rep.metrics = metrics

	w := cfg.Workload
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for s := 0; s < w.Submitters; s++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(s)))
			for i := s; i < w.Tasks; i += w.Submitters {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				task := taskpool.Task[job]{
					ID:      uuid.NewString(),
					Tenant:  fmt.Sprintf("tenant-%02d", r.Intn(w.Tenants)),
					Band:    r.Intn(bands),
					Payload: job{work: w.Work, fate: drawFate(r, w)},
				}
				st := rep.bands[task.Band]
				if !pool.Submit(task) {
					st.rejected.Add(1)
					continue
				}
				st.submitted.Add(1)
				if r.Float64() < w.CancelRatio && pool.Cancel(task.ID) {
					atomic.AddInt64(&rep.canceled, 1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("submission interrupted", zap.Error(err))
		mode = taskpool.Cancel
	}

	logger.Info("all tasks submitted, shutting down",
		zap.Stringer("mode", mode),
		zap.Int("queued", pool.QueueLength()),
		zap.Int("pending_retries", pool.PendingRetries()))

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Pool.ShutdownTimeout)
	defer cancel()
	if err := pool.Shutdown(sctx, mode); err != nil {
		logger.Warn("graceful shutdown timed out; cancelling", zap.Error(err))
		rep.forced = true
		if err := pool.Shutdown(context.Background(), taskpool.Cancel); err != nil {
			return nil, err
		}
	}
	rep.elapsed = time.Since(start)
	rep.mode = mode
	return rep, nil
}

func drawFate(r *rand.Rand, w WorkloadConfig) fate {
	x := r.Float64()
	switch {
	case x < w.PermanentRatio:
		return fateBroken
	case x < w.PermanentRatio+w.RetryableRatio:
		return fateFlaky
	default:
		return fateSuccess
	}
}

func (r *report) print(out io.Writer) {
	head := color.New(color.FgCyan, color.Bold)
	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	head.Fprintf(out, "%-6s %10s %10s %12s %10s %10s\n",
		"band", "submitted", "rejected", "invocations", "succeeded", "failed")
	for i, b := range r.bands {
		fmt.Fprintf(out, "%-6s %10d %10d %12d %10s %10s\n",
			fmt.Sprintf("P%d", i),
			b.submitted.Load(),
			b.rejected.Load(),
			b.invocations.Load(),
			ok.Sprint(b.succeeded.Load()),
			bad.Sprint(b.failed.Load()))
	}

	m := r.metrics
	fmt.Fprintf(out, "\nretried=%d dropped=%d discarded=%d cancel-requests=%d\n",
		m.Retried(), m.Dropped(), m.Discarded(), atomic.LoadInt64(&r.canceled))

	status := ok.Sprint(r.mode.String())
	if r.forced {
		status = warn.Sprint("Cancel (forced)")
	}
	fmt.Fprintf(out, "shutdown=%s elapsed=%v\n", status, r.elapsed.Round(time.Millisecond))
}
