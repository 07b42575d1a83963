package errors

import (
	"context"
	"fmt"
	"time"
)

// WithTimeoutResult runs fn under a deadline derived from ctx. When the
// deadline fires first, fn's context is cancelled and its eventual
// result is discarded; fn itself may keep running until it observes the
// cancellation. If ctx itself ends first the error is REQUEST_CANCELLED
// rather than MODEL_TIMEOUT.
func WithTimeoutResult[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}

	resultChan := make(chan result, 1)
	go func() {
		val, err := fn(ctx)
		resultChan <- result{val, err}
	}()

	select {
	case res := <-resultChan:
		// fn may return ctx.Err() just before Done is observed.
		if res.err == nil || ctx.Err() == nil {
			return res.val, res.err
		}
	case <-ctx.Done():
	}

	if parent.Err() != nil {
		return zero, Cancelled(parent)
	}
	return zero, NewBuilder(CodeModelTimeout, fmt.Sprintf("operation timed out after %v", timeout)).
		Temporary().
		Wrap(ctx.Err()).
		Build()
}
