package pg_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/fairwaylabs/leaguemanager/pkg/pg"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	t.Run("duplicate database", func(t *testing.T) {
		t.Parallel()

		err := fmt.Errorf("create: %w", &pgconn.PgError{Code: "42P04"})
		assert.True(t, pg.IsDuplicateDatabaseError(err))
		assert.False(t, pg.IsInvalidCatalogError(err))
	})

	t.Run("invalid catalog", func(t *testing.T) {
		t.Parallel()

		err := &pgconn.PgError{Code: "3D000"}
		assert.True(t, pg.IsInvalidCatalogError(err))
		assert.False(t, pg.IsDuplicateDatabaseError(err))
	})

	t.Run("duplicate key", func(t *testing.T) {
		t.Parallel()

		assert.True(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
		assert.False(t, pg.IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()

		assert.True(t, pg.IsNotFoundError(fmt.Errorf("query: %w", pgx.ErrNoRows)))
		assert.False(t, pg.IsNotFoundError(errors.New("other")))
	})

	t.Run("nil errors classify as nothing", func(t *testing.T) {
		t.Parallel()

		assert.False(t, pg.IsDuplicateDatabaseError(nil))
		assert.False(t, pg.IsInvalidCatalogError(nil))
		assert.False(t, pg.IsDuplicateKeyError(nil))
		assert.False(t, pg.IsNotFoundError(nil))
	})
}
