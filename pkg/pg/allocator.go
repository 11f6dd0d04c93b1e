package pg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

// Allocator creates isolated tenant databases on the admin pool's server and
// applies the baseline schema to them. It implements tenant.Allocator.
//
// The reservation protocol upstream guarantees a single in-process owner per
// attempt, so Allocate never races with itself for one tenant. It still
// tolerates the database already existing: a previous attempt may have died
// between CREATE DATABASE and settling the registry.
type Allocator struct {
	admin *pgxpool.Pool
	cfg   Config
	log   *slog.Logger

	// Goose configuration is package-global, so baseline runs for different
	// tenants must not interleave.
	migrateMu sync.Mutex
}

// NewAllocator creates an allocator on the given admin pool.
func NewAllocator(admin *pgxpool.Pool, cfg Config, log *slog.Logger) *Allocator {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Allocator{admin: admin, cfg: cfg, log: log}
}

// DatabaseName returns the database name for a tenant slug. The slug is
// already validated to the [a-z0-9-] alphabet, so the result is a safe
// identifier once quoted.
func (a *Allocator) DatabaseName(id tenant.ID) string {
	return a.cfg.TenantDatabasePrefix + id.String()
}

// Allocate creates the tenant's database and applies the baseline schema,
// returning the handle to record on the registry.
func (a *Allocator) Allocate(ctx context.Context, id tenant.ID) (tenant.DatabaseRef, error) {
	name := a.DatabaseName(id)

	// CREATE DATABASE cannot run inside a transaction and has no IF NOT
	// EXISTS form, hence the explicit duplicate check on the error.
	_, err := a.admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize())
	switch {
	case err == nil:
		a.log.InfoContext(ctx, "created tenant database",
			slog.String("tenant", id.String()),
			slog.String("database", name))
	case IsDuplicateDatabaseError(err):
		a.log.InfoContext(ctx, "tenant database already exists, reusing",
			slog.String("tenant", id.String()),
			slog.String("database", name))
	default:
		return tenant.DatabaseRef{}, errors.Join(ErrFailedToCreateDatabase, err)
	}

	pool, err := ConnectTo(ctx, a.admin, name)
	if err != nil {
		return tenant.DatabaseRef{}, err
	}
	defer pool.Close()

	a.migrateMu.Lock()
	err = Migrate(ctx, pool, a.cfg.TenantMigrationsPath, a.cfg.MigrationsTable, a.log)
	a.migrateMu.Unlock()
	if err != nil {
		return tenant.DatabaseRef{}, err
	}

	return tenant.DatabaseRef{Database: name}, nil
}

var _ tenant.Allocator = (*Allocator)(nil)
