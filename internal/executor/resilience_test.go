package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"llmfit/internal/tester"
)

func fastRetry(maxAttempts int) RetryOptions {
	return RetryOptions{
		MaxAttempts:       maxAttempts,
		InitialDelay:      time.Millisecond,
		MaxDelay:          5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestCalculateBackoffDelay_GrowsAndSaturates(t *testing.T) {
	opts := RetryOptions{InitialDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond, BackoffMultiplier: 2, MaxAttempts: 10}

	for attempt, base := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		4: 400 * time.Millisecond, // saturated at MaxDelay
		9: 400 * time.Millisecond,
	} {
		d := CalculateBackoffDelay(attempt, opts)
		if d < base || d > base+base/4 {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, base, base+base/4)
		}
	}
}

func TestExecute_RetriesRecoverableThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	got, err := Execute(context.Background(), Options{Stage: "screening", Retry: fastRetry(3)}, func(context.Context) (string, error) {
		if calls.Add(1) < 3 {
			return "", errors.New("503 service unavailable")
		}
		return "ok", nil
	})
	tester.NoErr(t, err)
	tester.Eq(t, got, "ok")
	tester.Eq(t, calls.Load(), int32(3))
}

func TestExecute_NonRecoverableFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	_, err := Execute(context.Background(), Options{Stage: "screening", Retry: fastRetry(3)}, func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("401 unauthorized")
	})
	tester.Eq(t, calls.Load(), int32(1))

	execErr := AsExecError(err, "screening")
	tester.Eq(t, execErr.Code, CodeAuthentication)
}

func TestExecute_ExhaustionWrapsMaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	_, err := Execute(context.Background(), Options{Stage: "dimensions", Retry: fastRetry(2)}, func(context.Context) (string, error) {
		calls.Add(1)
		return "", errors.New("rate limit exceeded")
	})
	tester.Eq(t, calls.Load(), int32(2))

	execErr := AsExecError(err, "dimensions")
	tester.Eq(t, execErr.Code, CodeMaxRetriesExceeded)
	tester.False(t, execErr.Recoverable)

	// The original classified failure stays reachable through the chain.
	var cause *ExecError
	tester.True(t, errors.As(execErr.Cause, &cause))
	tester.Eq(t, cause.Code, CodeRateLimit)
}

func TestExecute_SingleAttemptNeverWraps(t *testing.T) {
	_, err := Execute(context.Background(), Options{Stage: "screening", Retry: fastRetry(1)}, func(context.Context) (string, error) {
		return "", errors.New("rate limit exceeded")
	})
	execErr := AsExecError(err, "screening")
	tester.Eq(t, execErr.Code, CodeRateLimit)
}

func TestExecute_PreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, err := Execute(ctx, Options{Stage: "screening", Retry: fastRetry(3)}, func(context.Context) (string, error) {
		calls.Add(1)
		return "ok", nil
	})
	tester.Eq(t, calls.Load(), int32(0))

	execErr := AsExecError(err, "screening")
	tester.Eq(t, execErr.Code, CodeCancelled)
}

func TestExecute_AttemptTimeout(t *testing.T) {
	_, err := Execute(context.Background(), Options{
		Stage:   "synthesis",
		Timeout: 10 * time.Millisecond,
		Retry:   fastRetry(1),
	}, func(ctx context.Context) (string, error) {
		select {
		case <-time.After(time.Second):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})
	execErr := AsExecError(err, "synthesis")
	tester.Eq(t, execErr.Code, CodeTimeout)
	tester.True(t, execErr.Recoverable)
}

func TestExecute_ReportsEveryAttemptError(t *testing.T) {
	var reported []ErrorCode
	_, _ = Execute(context.Background(), Options{
		Stage: "screening",
		Retry: fastRetry(2),
		OnError: func(e *ExecError) {
			reported = append(reported, e.Code)
		},
	}, func(context.Context) (string, error) {
		return "", errors.New("connection reset")
	})
	// Two attempt failures plus the final wrap.
	tester.Eq(t, reported, []ErrorCode{CodeNetworkError, CodeNetworkError, CodeMaxRetriesExceeded})
}

func TestExecuteParallel_SiblingIsolationAndOrder(t *testing.T) {
	ops := []func(context.Context) (int, error){
		func(context.Context) (int, error) { return 10, nil },
		func(context.Context) (int, error) { return 0, errors.New("403 forbidden") },
		func(context.Context) (int, error) { return 30, nil },
	}
	results := ExecuteParallel(context.Background(), Options{Stage: "dimensions", Retry: fastRetry(1)}, ops)

	tester.Eq(t, len(results), 3)
	tester.True(t, results[0].Fulfilled())
	tester.Eq(t, results[0].Value, 10)
	tester.False(t, results[1].Fulfilled())
	tester.Eq(t, results[1].Err.Code, CodeAuthentication)
	tester.True(t, results[2].Fulfilled())
	tester.Eq(t, results[2].Value, 30)
}

func TestRunCancel_Idempotent(t *testing.T) {
	ctx, cancel := NewRunCancel(context.Background())
	tester.True(t, cancel.Cancel(), "first cancel fires")
	tester.False(t, cancel.Cancel(), "second cancel is a no-op")
	tester.True(t, cancel.Cancelled())

	select {
	case <-ctx.Done():
	default:
		t.Fatal("child context not cancelled")
	}
}

func TestRunCancel_ObservesCancelledParent(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	parentCancel()

	ctx, _ := NewRunCancel(parent)
	select {
	case <-ctx.Done():
	default:
		t.Fatal("child of pre-cancelled parent must start cancelled")
	}
}
