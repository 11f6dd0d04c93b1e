// Package tenant implements per-request tenant resolution and lazy, race-safe
// provisioning of per-tenant databases.
//
// Every inbound request is attributed to exactly one tenant. The first time a
// tenant is seen its isolated database is created and migrated on the fly;
// from then on the resolved identifier rides the request context and tells
// downstream data access which connection to use.
//
// # Architecture
//
// The package is built around five pieces:
//
//  1. Resolvers extract a raw tenant candidate from the request (wildcard
//     subdomain, loopback-only header or query overrides).
//  2. Store is the process-wide registry of tenants and their provisioning
//     state, with an atomic reservation primitive.
//  3. Provisioner turns "tenant exists" into a blocking, exactly-once
//     operation on top of the Store.
//  4. Context helpers bind the resolved identifier to one request.
//  5. Middleware orchestrates the above once per request.
//
// # Usage
//
//	resolver := tenant.NewCompositeResolver(
//		tenant.NewHostResolver("leaguemanager.app"),
//		tenant.NewHeaderResolver(""),
//		tenant.NewQueryResolver(""),
//	)
//
//	store := tenant.NewPGStore(adminPool)
//	prov := tenant.NewProvisioner(store, allocator)
//
//	router.Use(tenant.Middleware(resolver, prov,
//		tenant.WithDefaultTenant("htlyons"),
//		tenant.WithSkipPaths([]string{"/health"}),
//	))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		id := tenant.MustFromContext(r.Context())
//		// select the tenant's connection by id
//	}
//
// # Concurrency
//
// The only shared mutable state is the Store; all access goes through its
// atomic operations. N concurrent first-time requests for the same tenant
// result in exactly one allocation: Store.Reserve elects a single owner, the
// owner provisions on a context detached from its request, and everyone else
// blocks on a per-identifier completion signal with a bounded wait.
//
// A failed attempt is recorded on the registry record and surfaced to the
// owner and all waiters; the next request for that tenant re-arms the record
// and retries from scratch.
//
// # Isolation
//
// The resolved identifier is request-scoped, carried by context.Context with
// an unexported key. There is no process-global "current tenant": two
// concurrent requests can never observe each other's binding.
package tenant
