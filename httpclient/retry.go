package httpclient

import (
	"context"
	"errors"
	"time"
)

// Backoff selects how the retry delay grows between attempts.
type Backoff string

const (
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

const (
	// DefaultTimeout bounds each attempt when neither the request nor the client sets one.
	DefaultTimeout = 10 * time.Second

	// DefaultRetryDelay is used when a retry policy leaves Delay at zero.
	DefaultRetryDelay = 1 * time.Second

	maxBackoffShift = 30
)

// RetryPolicy controls the attempt loop of Execute.
type RetryPolicy struct {
	// Attempts is the number of retries after the first call.
	Attempts int
	// Delay is the base wait between attempts. Zero means DefaultRetryDelay; negative means no wait.
	Delay   time.Duration
	Backoff Backoff
}

// Retry returns a linear policy with n retries one second apart.
func Retry(n int) *RetryPolicy {
	return &RetryPolicy{Attempts: n, Delay: DefaultRetryDelay, Backoff: BackoffLinear}
}

func (p *RetryPolicy) normalize() RetryPolicy {
	if p == nil {
		return RetryPolicy{Backoff: BackoffLinear}
	}
	out := *p
	if out.Attempts < 0 {
		out.Attempts = 0
	}
	if out.Delay == 0 {
		out.Delay = DefaultRetryDelay
	}
	if out.Backoff != BackoffExponential {
		out.Backoff = BackoffLinear
	}
	return out
}

// delayFor returns the wait after the given 1-based failed attempt.
func (p RetryPolicy) delayFor(attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	if p.Backoff != BackoffExponential || attempt <= 1 {
		return p.Delay
	}
	shift := min(attempt-1, maxBackoffShift)
	d := p.Delay << shift
	if d <= 0 || d>>shift != p.Delay {
		return time.Duration(1<<63 - 1)
	}
	return d
}

// errAttemptTimeout is the cancellation cause set by the per-attempt timer.
var errAttemptTimeout = errors.New("attempt timed out")

// errNoResponse replaces a nil response returned without an error.
var errNoResponse = errors.New("transport returned no response")

// transportError is an attempt failure that produced no usable HTTP response.
type transportError struct {
	err      error
	timedOut bool
}

func (e *transportError) Error() string { return e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

// isRetryable reports whether a failed attempt may be retried.
func isRetryable(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return !isBreakerRejection(te.err)
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Status >= 500
	}
	return false
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
