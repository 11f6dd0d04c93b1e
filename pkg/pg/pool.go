package pg

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

// PoolManager hands out per-tenant connection pools. Downstream handlers read
// the tenant from the request context and select their pool here; pools are
// created lazily on first use and reused for the life of the process.
type PoolManager struct {
	admin *pgxpool.Pool
	store tenant.Store

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewPoolManager creates a pool manager on the admin pool and the tenant
// registry.
func NewPoolManager(admin *pgxpool.Pool, store tenant.Store) *PoolManager {
	return &PoolManager{
		admin: admin,
		store: store,
		pools: make(map[string]*pgxpool.Pool),
	}
}

// Get returns the connection pool for a tenant's database. The tenant must be
// Ready; callers sitting behind the tenancy gateway get that for free.
func (m *PoolManager) Get(ctx context.Context, id tenant.ID) (*pgxpool.Pool, error) {
	rec, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", tenant.ErrTenantNotFound, id)
	}
	if rec.State != tenant.StateReady {
		return nil, fmt.Errorf("%w: %q is %s", tenant.ErrTenantNotReady, id, rec.State)
	}

	// Pool creation is rare; holding the lock across ConnectTo keeps a
	// thundering first request from opening duplicate pools.
	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[rec.DatabaseRef.Database]; ok {
		return pool, nil
	}

	pool, err := ConnectTo(ctx, m.admin, rec.DatabaseRef.Database)
	if err != nil {
		return nil, err
	}
	m.pools[rec.DatabaseRef.Database] = pool
	return pool, nil
}

// Close closes every tenant pool. The admin pool is owned by the caller and
// is left open.
func (m *PoolManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, pool := range m.pools {
		pool.Close()
		delete(m.pools, name)
	}
}
