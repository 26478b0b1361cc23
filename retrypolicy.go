package taskpool

import (
	"math"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
)

const (
	defaultAttempts     = 3
	defaultInitialRetry = 200 * time.Millisecond
	defaultMaxRetry     = 5 * time.Second

	// minJitterBackoff is the smallest Initial the randomized backoff
	// accepts: it draws from [d/2, d) and needs d/2 > 0.
	minJitterBackoff = 2 * time.Nanosecond
)

// RetryPolicy describes how many times and how often a task is retried.
// Zero values are replaced with pool defaults by Options.FillDefaults.
type RetryPolicy struct {
	// Attempts is the maximum number of handler invocations per task,
	// the first one included.
	Attempts int

	// Initial is the first backoff duration.
	Initial time.Duration

	// Max is the cap for backoff duration.
	Max time.Duration

	// Jitter draws delays from a randomized exponential backoff instead
	// of the exact min(Initial*2^k, Max) sequence.
	Jitter bool
}

// GetDefaultRP returns a pointer to the default retry policy.
func GetDefaultRP() *RetryPolicy {
	return &RetryPolicy{
		Attempts: defaultAttempts,
		Initial:  defaultInitialRetry,
		Max:      defaultMaxRetry,
	}
}

// CanRetry reports whether a task that has failed attempt times before
// the current failure may be executed again.
func (rp RetryPolicy) CanRetry(attempt int) bool {
	return attempt+1 < rp.Attempts
}

// Delay returns the backoff before the retry that follows the k-th
// failure (k counted from zero): min(Initial*2^k, Max). The sequence
// is non-decreasing and saturates at Max without overflowing.
func (rp RetryPolicy) Delay(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	d := rp.Initial
	for i := 0; i < k; i++ {
		if d >= rp.Max || d > rp.Max/2 {
			return rp.Max
		}
		d *= 2
	}
	return min(d, rp.Max)
}

// nextDelay picks the delay for the k-th failure honoring Jitter. The
// jittered delay lies in [Delay(k)/2, Delay(k)). Policies the randomized
// backoff cannot handle fall back to the exact sequence.
func (rp RetryPolicy) nextDelay(k int, seed int64) time.Duration {
	if !rp.Jitter || rp.Initial < minJitterBackoff || rp.Max > math.MaxInt64/2 {
		return rp.Delay(k)
	}
	bo := boff.New(rp.Initial, rp.Max, seed)
	d := bo.Next()
	for i := 0; i < k; i++ {
		d = bo.Next()
	}
	return d
}
