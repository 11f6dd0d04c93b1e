package tenant

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithID binds the resolved tenant to the context for the current request.
// Binding is idempotent: re-binding the same identifier returns the context
// unchanged. Re-binding a different identifier is a programming error and
// panics, since it would silently leak one tenant's data into another's
// request.
func WithID(ctx context.Context, id ID) context.Context {
	if bound, ok := FromContext(ctx); ok {
		if bound == id {
			return ctx
		}
		panic("tenant: rebinding context to a different tenant: " + bound.String() + " -> " + id.String())
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext retrieves the tenant bound to the context.
// Returns false if no tenant has been bound yet.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(contextKey{}).(ID)
	return id, ok
}

// MustFromContext retrieves the tenant bound to the context.
// Panics if no tenant is bound. Use this only in handlers that run strictly
// behind the tenant middleware.
func MustFromContext(ctx context.Context) ID {
	id, ok := FromContext(ctx)
	if !ok {
		panic("tenant: no tenant in context")
	}
	return id
}

// LoggerExtractor returns a logger context extractor that injects the current
// tenant into log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := FromContext(ctx); ok {
			return slog.String("tenant", id.String()), true
		}
		return slog.Attr{}, false
	}
}
