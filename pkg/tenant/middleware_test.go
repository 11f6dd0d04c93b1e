package tenant_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

func newTestGateway(t *testing.T, alloc tenant.Allocator, opts ...tenant.Option) http.Handler {
	t.Helper()

	if alloc == nil {
		alloc = &stubAllocator{}
	}
	prov := tenant.NewProvisioner(tenant.NewMemoryStore(), alloc,
		tenant.WithPollInterval(5*time.Millisecond))

	resolver := tenant.NewCompositeResolver(
		tenant.NewHostResolver("leaguemanager.app"),
		tenant.NewHeaderResolver(""),
		tenant.NewQueryResolver(""),
	)

	mw := tenant.Middleware(resolver, prov, opts...)
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := tenant.FromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("unbound"))
			return
		}
		_, _ = w.Write([]byte(id.String()))
	}))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("attributes request by subdomain", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil)
		req := httptest.NewRequest("GET", "https://acme.leaguemanager.app/scores", nil)
		req.Host = "acme.leaguemanager.app"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "acme", rr.Body.String())
	})

	t.Run("bare base domain falls back to default tenant", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil, tenant.WithDefaultTenant("htlyons"))
		req := httptest.NewRequest("GET", "https://leaguemanager.app/", nil)
		req.Host = "leaguemanager.app"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "htlyons", rr.Body.String())
	})

	t.Run("loopback header override is honored", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil, tenant.WithDefaultTenant("htlyons"))
		req := httptest.NewRequest("GET", "http://localhost:4200/", nil)
		req.Host = "localhost:4200"
		req.Header.Set("X-Tenant-Id", "acme")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "acme", rr.Body.String())
	})

	t.Run("loopback without overrides falls back to default tenant", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil, tenant.WithDefaultTenant("htlyons"))
		req := httptest.NewRequest("GET", "http://localhost:4200/", nil)
		req.Host = "localhost:4200"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "htlyons", rr.Body.String())
	})

	t.Run("malformed candidate falls back, never propagates", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil, tenant.WithDefaultTenant("htlyons"))
		req := httptest.NewRequest("GET", "http://localhost:4200/", nil)
		req.Host = "localhost:4200"
		req.Header.Set("X-Tenant-Id", "not a slug!")
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "htlyons", rr.Body.String())
	})

	t.Run("provisioning failure short-circuits with a generic error", func(t *testing.T) {
		t.Parallel()

		alloc := &stubAllocator{}
		alloc.set(func(ctx context.Context, id tenant.ID) (tenant.DatabaseRef, error) {
			return tenant.DatabaseRef{}, errors.New("pg down: connection refused to 10.0.0.5")
		})

		handler := newTestGateway(t, alloc)
		req := httptest.NewRequest("GET", "https://acme.leaguemanager.app/", nil)
		req.Host = "acme.leaguemanager.app"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		// Internal detail must not leak to the caller.
		assert.NotContains(t, rr.Body.String(), "10.0.0.5")
		assert.NotContains(t, rr.Body.String(), "leaguedb")
	})

	t.Run("skip paths bypass resolution entirely", func(t *testing.T) {
		t.Parallel()

		handler := newTestGateway(t, nil, tenant.WithSkipPaths([]string{"/health"}))
		req := httptest.NewRequest("GET", "https://acme.leaguemanager.app/health", nil)
		req.Host = "acme.leaguemanager.app"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, "unbound", rr.Body.String())
	})

	t.Run("provisioning timeout responds as retryable", func(t *testing.T) {
		t.Parallel()

		alloc := &stubAllocator{}
		release := make(chan struct{})
		defer close(release)
		alloc.set(func(ctx context.Context, id tenant.ID) (tenant.DatabaseRef, error) {
			<-release
			return tenant.DatabaseRef{}, errors.New("released")
		})

		prov := tenant.NewProvisioner(tenant.NewMemoryStore(), alloc,
			tenant.WithWaitTimeout(30*time.Millisecond),
			tenant.WithPollInterval(5*time.Millisecond))
		mw := tenant.Middleware(tenant.NewHostResolver("leaguemanager.app"), prov)
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("downstream handler must not run")
		}))

		req := httptest.NewRequest("GET", "https://slowco.leaguemanager.app/", nil)
		req.Host = "slowco.leaguemanager.app"
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	})
}

func TestRequireTenant(t *testing.T) {
	t.Parallel()

	mw := tenant.RequireTenant(nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects requests without a bound tenant", func(t *testing.T) {
		t.Parallel()

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("passes requests with a bound tenant", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(tenant.WithID(req.Context(), "acme"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code)
	})
}
