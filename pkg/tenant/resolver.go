package tenant

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Resolver extracts a raw tenant candidate from an HTTP request.
// Returns empty string if no candidate is found, error if the candidate is
// malformed. Resolvers are pure and safe for concurrent use.
type Resolver func(r *http.Request) (string, error)

// DefaultTenantHeader is the canonical development override header.
const DefaultTenantHeader = "X-Tenant-Id"

// DefaultTenantQueryParam is the canonical development override query parameter.
const DefaultTenantQueryParam = "tenant"

// stripPort removes a trailing :port from a host, if present. Bracketed IPv6
// hosts come back unbracketed.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.Trim(host, "[]")
}

// isLoopbackHost reports whether the request targets a local development host.
// Header and query overrides are honored only for such hosts to prevent
// tenant spoofing in production.
func isLoopbackHost(host string) bool {
	host = stripPort(host)
	return host == "localhost" || host == "127.0.0.1" || host == "::1" ||
		strings.HasSuffix(host, ".localhost")
}

// NewHostResolver extracts the tenant slug from a wildcard subdomain of the
// configured base domain, e.g. "acme" from "acme.leaguemanager.app" with base
// domain "leaguemanager.app". The bare base domain and the www label resolve
// to no tenant.
func NewHostResolver(baseDomain string) Resolver {
	baseDomain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(baseDomain)), ".")
	// Reserved label: "leaguemanager" for base domain "leaguemanager.app".
	reserved, _, _ := strings.Cut(baseDomain, ".")

	return func(req *http.Request) (string, error) {
		if baseDomain == "" {
			return "", nil
		}

		host := strings.ToLower(stripPort(req.Host))
		if !strings.HasSuffix(host, "."+baseDomain) {
			return "", nil
		}

		label, _, _ := strings.Cut(strings.TrimSuffix(host, "."+baseDomain), ".")
		if label == "" || label == "www" || label == reserved {
			return "", nil
		}

		if _, err := NewID(label); err != nil {
			return "", fmt.Errorf("host resolver: %w", err)
		}
		return label, nil
	}
}

// NewHeaderResolver extracts the tenant slug from an override header.
// The override is honored only for loopback hosts; on any other host the
// header is ignored entirely.
func NewHeaderResolver(headerName string) Resolver {
	if headerName == "" {
		headerName = DefaultTenantHeader
	}

	return func(req *http.Request) (string, error) {
		if !isLoopbackHost(req.Host) {
			return "", nil
		}

		value := strings.TrimSpace(req.Header.Get(headerName))
		if value == "" {
			return "", nil
		}
		if _, err := NewID(value); err != nil {
			return "", fmt.Errorf("header resolver: %w", err)
		}
		return value, nil
	}
}

// NewQueryResolver extracts the tenant slug from an override query parameter,
// with the same loopback-only restriction as the header override.
func NewQueryResolver(param string) Resolver {
	if param == "" {
		param = DefaultTenantQueryParam
	}

	return func(req *http.Request) (string, error) {
		if !isLoopbackHost(req.Host) {
			return "", nil
		}

		value := strings.TrimSpace(req.URL.Query().Get(param))
		if value == "" {
			return "", nil
		}
		if _, err := NewID(value); err != nil {
			return "", fmt.Errorf("query resolver: %w", err)
		}
		return value, nil
	}
}

// NewCompositeResolver tries resolvers in order, returning the first non-empty
// candidate. A malformed candidate stops the chain so it is reported rather
// than silently shadowed by a lower-priority source.
func NewCompositeResolver(resolvers ...Resolver) Resolver {
	return func(r *http.Request) (string, error) {
		for _, resolve := range resolvers {
			candidate, err := resolve(r)
			if err != nil {
				return "", err
			}
			if candidate != "" {
				return candidate, nil
			}
		}
		return "", nil
	}
}
