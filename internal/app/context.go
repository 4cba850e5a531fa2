package app

import (
	"context"
	"errors"
)

// ErrNotInitialized is returned when a command runs without a container
var ErrNotInitialized = errors.New("application not initialized")

type contextKey struct{}

// FromContext returns the App stored in ctx
func FromContext(ctx context.Context) (*App, error) {
	a, ok := ctx.Value(contextKey{}).(*App)
	if !ok || a == nil {
		return nil, ErrNotInitialized
	}
	return a, nil
}

// WithApp stores the App in ctx
func WithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}
