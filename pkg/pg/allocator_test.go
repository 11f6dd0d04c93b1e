package pg_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairwaylabs/leaguemanager/pkg/pg"
	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

func TestAllocator_DatabaseName(t *testing.T) {
	t.Parallel()

	alloc := pg.NewAllocator(nil, pg.Config{TenantDatabasePrefix: "leaguedb_"}, nil)

	assert.Equal(t, "leaguedb_acme", alloc.DatabaseName(tenant.ID("acme")))
	assert.Equal(t, "leaguedb_new-co", alloc.DatabaseName(tenant.ID("new-co")))
}
