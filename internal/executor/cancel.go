package executor

import (
	"context"
	"sync"
)

// RunCancel is the cancellation handle for one run. It scopes a child
// context to a parent signal: the child is cancelled when the parent is
// cancelled (including a parent that was already cancelled, observed
// synchronously via context.WithCancel) or when Cancel is called.
type RunCancel struct {
	cancel context.CancelFunc

	mu    sync.Mutex
	fired bool
}

// NewRunCancel derives a cancellable child context from parent.
func NewRunCancel(parent context.Context) (context.Context, *RunCancel) {
	ctx, cancel := context.WithCancel(parent)
	return ctx, &RunCancel{cancel: cancel}
}

// Cancel cancels the child scope. It is idempotent and reports whether this
// call was the one that fired.
func (c *RunCancel) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired {
		return false
	}
	c.fired = true
	c.cancel()
	return true
}

// Cancelled reports whether Cancel has been called on this handle. It does
// not observe parent cancellation; check the context for that.
func (c *RunCancel) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}
