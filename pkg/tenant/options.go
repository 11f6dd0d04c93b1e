package tenant

import (
	"errors"
	"log/slog"
	"net/http"
)

// ErrorHandler writes the boundary response when the gateway cannot attribute
// or provision a tenant. Implementations must not expose internal tenant
// state or database identifiers to the caller.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds gateway middleware configuration.
type config struct {
	defaultTenant ID
	skipPaths     []string
	errorHandler  ErrorHandler
	log           *slog.Logger
}

// Option configures the gateway middleware.
type Option func(*config)

// WithDefaultTenant sets the tenant used when resolution yields no candidate.
func WithDefaultTenant(id ID) Option {
	return func(c *config) {
		if !id.IsZero() {
			c.defaultTenant = id
		}
	}
}

// WithSkipPaths sets path prefixes that bypass tenant resolution entirely,
// e.g. health and metrics endpoints.
func WithSkipPaths(paths []string) Option {
	return func(c *config) {
		c.skipPaths = paths
	}
}

// WithErrorHandler sets a custom boundary error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrProvisioningTimeout):
		w.Header().Set("Retry-After", "1")
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, ErrNoTenantInContext):
		http.Error(w, "Tenant required", http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
