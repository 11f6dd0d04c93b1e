package tenant

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// FallbackTenant is used when resolution yields no candidate and no default
// tenant has been configured.
const FallbackTenant = ID("default")

// Middleware is the per-request tenancy gateway. For every inbound request it
// resolves the tenant, lazily provisions the tenant's database on first
// sight, binds the identifier to the request context, and only then hands
// control to the next handler. Resolution problems fall back to the default
// tenant; provisioning problems short-circuit the request without invoking
// downstream handlers.
func Middleware(resolver Resolver, provisioner *Provisioner, opts ...Option) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("tenant: middleware requires a resolver")
	}
	if provisioner == nil {
		panic("tenant: middleware requires a provisioner")
	}

	cfg := &config{
		defaultTenant: FallbackTenant,
		errorHandler:  defaultErrorHandler,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			id := cfg.defaultTenant
			candidate, err := resolver(r)
			switch {
			case err != nil:
				// Malformed candidates are never propagated; the request
				// proceeds on the default tenant.
				cfg.log.WarnContext(r.Context(), "malformed tenant candidate",
					slog.String("host", r.Host),
					slog.String("error", err.Error()))
			case candidate != "":
				resolved, err := NewID(candidate)
				if err != nil {
					cfg.log.WarnContext(r.Context(), "malformed tenant candidate",
						slog.String("host", r.Host),
						slog.String("error", err.Error()))
					break
				}
				id = resolved
			}

			ref, err := provisioner.EnsureReady(r.Context(), id)
			if err != nil {
				cfg.log.ErrorContext(r.Context(), "tenant gateway failed",
					slog.String("tenant", id.String()),
					slog.String("error", err.Error()))
				cfg.errorHandler(w, r, err)
				return
			}

			ctx := WithID(r.Context(), id)
			cfg.log.DebugContext(ctx, "request attributed to tenant",
				slog.String("tenant", id.String()),
				slog.String("database", ref.Database))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant ensures a tenant is bound to the request context. Mount it on
// route groups that must never run outside the tenancy gateway.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
