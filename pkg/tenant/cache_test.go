package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

func readyRecord(id tenant.ID) tenant.Record {
	return tenant.Record{
		ID:          id,
		UUID:        uuid.New(),
		State:       tenant.StateReady,
		DatabaseRef: tenant.DatabaseRef{Database: "leaguedb_" + id.String()},
		CreatedAt:   time.Now().UTC(),
	}
}

func TestMemoryCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("stores and retrieves records", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })

		rec := readyRecord("acme")
		cache.Set(ctx, rec, time.Minute)

		got, ok := cache.Get(ctx, "acme")
		require.True(t, ok)
		assert.Equal(t, rec, got)
	})

	t.Run("expires entries after ttl", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })

		cache.Set(ctx, readyRecord("acme"), 10*time.Millisecond)
		time.Sleep(30 * time.Millisecond)

		_, ok := cache.Get(ctx, "acme")
		assert.False(t, ok)
	})

	t.Run("delete removes entries", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })

		cache.Set(ctx, readyRecord("acme"), time.Minute)
		cache.Delete(ctx, "acme")

		_, ok := cache.Get(ctx, "acme")
		assert.False(t, ok)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewMemoryCache()
		require.NoError(t, cache.Close())
		require.NoError(t, cache.Close())
	})
}

func TestCachedStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("serves ready records from cache", func(t *testing.T) {
		t.Parallel()

		inner := tenant.NewMemoryStore()
		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })
		store := tenant.NewCachedStore(inner, cache, time.Minute)

		_, _, err := store.Reserve(ctx, "acme")
		require.NoError(t, err)
		require.NoError(t, store.MarkReady(ctx, "acme", tenant.DatabaseRef{Database: "leaguedb_acme"}))

		// First read warms the cache from the inner store.
		rec, ok, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tenant.StateReady, rec.State)

		cached, ok := cache.Get(ctx, "acme")
		require.True(t, ok)
		assert.Equal(t, rec, cached)
	})

	t.Run("never caches unsettled records", func(t *testing.T) {
		t.Parallel()

		inner := tenant.NewMemoryStore()
		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })
		store := tenant.NewCachedStore(inner, cache, time.Minute)

		_, _, err := store.Reserve(ctx, "acme")
		require.NoError(t, err)

		rec, ok, err := store.Get(ctx, "acme")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tenant.StateProvisioning, rec.State)

		_, ok = cache.Get(ctx, "acme")
		assert.False(t, ok)
	})

	t.Run("mutations invalidate the cached entry", func(t *testing.T) {
		t.Parallel()

		inner := tenant.NewMemoryStore()
		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })
		store := tenant.NewCachedStore(inner, cache, time.Minute)

		_, _, err := store.Reserve(ctx, "acme")
		require.NoError(t, err)
		require.NoError(t, store.MarkReady(ctx, "acme", tenant.DatabaseRef{Database: "leaguedb_acme"}))

		_, _, err = store.Get(ctx, "acme")
		require.NoError(t, err)

		// Reserve drops the cached entry before touching the inner store.
		_, newly, err := store.Reserve(ctx, "acme")
		require.NoError(t, err)
		assert.False(t, newly)

		_, ok := cache.Get(ctx, "acme")
		assert.False(t, ok)
	})

	t.Run("implements the full reservation protocol", func(t *testing.T) {
		t.Parallel()

		cache := tenant.NewMemoryCache()
		t.Cleanup(func() { _ = cache.Close() })
		store := tenant.NewCachedStore(tenant.NewMemoryStore(), cache, time.Minute)

		_, newly, err := store.Reserve(ctx, "newco")
		require.NoError(t, err)
		assert.True(t, newly)

		_, newly, err = store.Reserve(ctx, "newco")
		require.NoError(t, err)
		assert.False(t, newly)

		require.NoError(t, store.MarkFailed(ctx, "newco", assert.AnError))

		_, newly, err = store.Reserve(ctx, "newco")
		require.NoError(t, err)
		assert.True(t, newly)
	})
}
