package executor

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryOptions bounds the retry loop of a single stage invocation.
type RetryOptions struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.BackoffMultiplier <= 1 {
		o.BackoffMultiplier = 2
	}
	return o
}

// Options configures one resilient invocation.
type Options struct {
	Stage   string
	Timeout time.Duration
	Retry   RetryOptions

	// OnError is reported every classified failure, including ones that
	// will be retried. OnRetry is reported just before each backoff wait.
	OnError func(err *ExecError)
	OnRetry func(attempt int, delay time.Duration, err *ExecError)
}

// CalculateBackoffDelay returns the wait before the retry that follows the
// given 1-based attempt: min(initial * multiplier^(attempt-1), max) plus up
// to 25% positive jitter.
func CalculateBackoffDelay(attempt int, opts RetryOptions) time.Duration {
	opts = opts.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	base := float64(opts.InitialDelay) * math.Pow(opts.BackoffMultiplier, float64(attempt-1))
	if base > float64(opts.MaxDelay) {
		base = float64(opts.MaxDelay)
	}
	jitter := rand.Float64() * 0.25 * base
	return time.Duration(base + jitter)
}

// Execute runs op with timeout, bounded retries and cancellation. Retries
// happen here and nowhere else: callers treat every returned error as final.
func Execute[T any](ctx context.Context, opts Options, op func(context.Context) (T, error)) (T, error) {
	var zero T
	retry := opts.Retry.withDefaults()

	var last *ExecError
	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			cancelErr := newExecError(CodeCancelled, err.Error(), opts.Stage, attempt, err)
			report(opts.OnError, cancelErr)
			return zero, cancelErr
		}

		value, execErr := runAttempt(ctx, opts, attempt, op)
		if execErr == nil {
			return value, nil
		}
		report(opts.OnError, execErr)
		last = execErr

		if !execErr.Recoverable || attempt == retry.MaxAttempts {
			break
		}

		delay := CalculateBackoffDelay(attempt, retry)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, delay, execErr)
		}
		if err := sleep(ctx, delay); err != nil {
			cancelErr := newExecError(CodeCancelled, err.Error(), opts.Stage, attempt, err)
			report(opts.OnError, cancelErr)
			return zero, cancelErr
		}
	}

	// Exhausting attempts on a recoverable error (after at least one retry)
	// is reported as MAX_RETRIES_EXCEEDED; everything else propagates as-is.
	if last.Recoverable && retry.MaxAttempts > 1 && last.Attempt == retry.MaxAttempts {
		wrapped := wrapMaxRetries(last, opts.Stage, retry.MaxAttempts)
		report(opts.OnError, wrapped)
		return zero, wrapped
	}
	return zero, last
}

// runAttempt races op against the configured timeout. A lost race is a
// TIMEOUT regardless of what the operation would eventually report. The
// operation's goroutine is abandoned on timeout; we stop waiting for it, we
// do not guarantee the underlying call stops.
func runAttempt[T any](ctx context.Context, opts Options, attempt int, op func(context.Context) (T, error)) (T, *ExecError) {
	var zero T

	opCtx := ctx
	var cancel context.CancelFunc
	if opts.Timeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	type attemptResult struct {
		value T
		err   error
	}
	resultCh := make(chan attemptResult, 1)
	go func() {
		v, err := op(opCtx)
		resultCh <- attemptResult{value: v, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return zero, Classify(res.err, opts.Stage, attempt)
		}
		return res.value, nil
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return zero, newExecError(CodeCancelled, ctx.Err().Error(), opts.Stage, attempt, ctx.Err())
		}
		return zero, newExecError(CodeTimeout, "operation timed out after "+opts.Timeout.String(), opts.Stage, attempt, opCtx.Err())
	}
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func report(onError func(*ExecError), err *ExecError) {
	if onError != nil {
		onError(err)
	}
}
