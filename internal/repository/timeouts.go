package repository

import (
	"context"
	"time"
)

// DefaultWriteTimeout is the timeout for write operations.
const DefaultWriteTimeout = 10 * time.Second

// WithWriteTimeout returns a context with the default write timeout.
// If the context already has a shorter deadline, it is returned unchanged.
func WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultWriteTimeout)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < timeout {
			return ctx, func() {}
		}
	}
	return context.WithTimeout(ctx, timeout)
}
