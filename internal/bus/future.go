package bus

import (
	"context"
	"fmt"
)

// Future is a single-shot completion handle: Resolve stores a result, and
// one Wait call receives it.
type Future struct {
	done chan error
}

// NewFuture creates an unresolved Future.
func NewFuture() *Future {
	return &Future{done: make(chan error, 1)}
}

// Resolve completes the future with result (nil for success). A call made
// while an earlier result is still unread is a no-op.
func (f *Future) Resolve(result error) {
	select {
	case f.done <- result:
	default:
	}
}

// Wait blocks until the future resolves or ctx is done, whichever comes
// first, and consumes the result. If ctx is done first, it returns an error
// wrapping ctx.Err() and leaves the eventual result unread.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case err := <-f.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("future abandoned: %w", ctx.Err())
	}
}
