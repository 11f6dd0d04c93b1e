// Package pg is the PostgreSQL backing for the tenancy subsystem: the admin
// connection pool, the dynamic creation of per-tenant databases, their
// baseline migrations, and per-tenant pool management.
//
// It builds on pgx/v5 for connectivity and goose/v3 for schema migrations.
//
// # Architecture
//
//   - Config – declarative settings populated from environment variables via
//     github.com/caarlos0/env, covering pool limits, retry behaviour, the
//     tenant database name prefix, and migration paths.
//
//   - Connect / ConnectTo – open pools with retry and ping verification;
//     ConnectTo derives a pool to any database on the same server, which is
//     how tenant databases are reached.
//
//   - Allocator – implements tenant.Allocator: CREATE DATABASE for the tenant
//     slug (tolerating an existing database left by a crashed attempt), then
//     the goose baseline schema.
//
//   - PoolManager – lazily created, cached per-tenant pools for downstream
//     data access.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	admin, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		panic(err)
//	}
//	defer admin.Close()
//
//	store := tenant.NewPGStore(admin)
//	alloc := pg.NewAllocator(admin, cfg, log)
//	prov := tenant.NewProvisioner(store, alloc)
//
// # Error Handling
//
// Helpers such as [IsDuplicateDatabaseError] and [IsInvalidCatalogError]
// classify *pgconn.PgError values by SQLSTATE, which is what the allocator
// uses to distinguish "database already exists" from real failures.
package pg
