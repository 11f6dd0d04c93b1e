package tenant_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

func TestContext(t *testing.T) {
	t.Parallel()

	t.Run("binds and reads identifier", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithID(context.Background(), "acme")

		id, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, tenant.ID("acme"), id)
	})

	t.Run("unbound context reads as unresolved", func(t *testing.T) {
		t.Parallel()

		id, ok := tenant.FromContext(context.Background())
		assert.False(t, ok)
		assert.True(t, id.IsZero())
	})

	t.Run("rebinding the same identifier is a no-op", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithID(context.Background(), "acme")
		same := tenant.WithID(ctx, "acme")
		assert.Equal(t, ctx, same)
	})

	t.Run("rebinding a different identifier panics", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithID(context.Background(), "acme")
		assert.Panics(t, func() {
			tenant.WithID(ctx, "other")
		})
	})

	t.Run("must from context panics when unbound", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			tenant.MustFromContext(context.Background())
		})
	})

	t.Run("bindings are isolated between concurrent requests", func(t *testing.T) {
		t.Parallel()

		ids := []tenant.ID{"acme", "htlyons", "newco", "club42"}

		var wg sync.WaitGroup
		for _, id := range ids {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx := tenant.WithID(context.Background(), id)
				for n := 0; n < 1000; n++ {
					got, ok := tenant.FromContext(ctx)
					assert.True(t, ok)
					assert.Equal(t, id, got)
				}
			}()
		}
		wg.Wait()
	})
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := tenant.LoggerExtractor()

	attr, ok := extract(tenant.WithID(context.Background(), "acme"))
	require.True(t, ok)
	assert.Equal(t, "tenant", attr.Key)
	assert.Equal(t, "acme", attr.Value.String())

	_, ok = extract(context.Background())
	assert.False(t, ok)
}
