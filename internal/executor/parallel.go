package executor

import (
	"context"
	"sync"
)

// Result is the per-item outcome of a parallel fan-out. Exactly one of
// Value/Err is meaningful; Err nil means the item fulfilled.
type Result[T any] struct {
	Value T
	Err   *ExecError
}

// Fulfilled reports whether the item succeeded.
func (r Result[T]) Fulfilled() bool { return r.Err == nil }

// ExecuteParallel runs every operation through the resilience wrapper
// concurrently. One item's failure never cancels its siblings; the returned
// slice has one entry per input position, in input order. The call itself
// never fails.
func ExecuteParallel[T any](ctx context.Context, opts Options, ops []func(context.Context) (T, error)) []Result[T] {
	results := make([]Result[T], len(ops))
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(idx int, fn func(context.Context) (T, error)) {
			defer wg.Done()
			value, err := Execute(ctx, opts, fn)
			if err != nil {
				results[idx] = Result[T]{Err: AsExecError(err, opts.Stage)}
				return
			}
			results[idx] = Result[T]{Value: value}
		}(i, op)
	}
	wg.Wait()
	return results
}
