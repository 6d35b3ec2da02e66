// Package repository implements booking record and conversation state
// persistence on PostgreSQL and Redis.
package repository

import (
	"context"
	"time"
)

// Default query timeouts.
const (
	// DefaultQueryTimeout is the default timeout for simple queries.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultListQueryTimeout is the timeout for list queries.
	DefaultListQueryTimeout = 10 * time.Second

	// DefaultWriteTimeout is the timeout for write operations.
	DefaultWriteTimeout = 10 * time.Second
)

// WithQueryTimeout returns a context with the default query timeout.
// If the context already has a sooner deadline, the original context is returned.
func WithQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultQueryTimeout)
}

// WithListQueryTimeout returns a context with the default list query timeout.
func WithListQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultListQueryTimeout)
}

// WithWriteTimeout returns a context with the default write timeout.
func WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, DefaultWriteTimeout)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining < timeout {
			return ctx, func() {}
		}
	}
	return context.WithTimeout(ctx, timeout)
}
