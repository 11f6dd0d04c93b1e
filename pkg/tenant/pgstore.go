package tenant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the durable Store implementation backed by the tenant registry
// table in the admin database. Durability matters for restart idempotence: a
// tenant that settled to Ready must never be re-provisioned by a fresh
// process.
//
// Linearizability of Reserve comes from Postgres itself: the insert relies on
// the primary key with ON CONFLICT DO NOTHING, and the Failed re-arm is a
// conditional UPDATE, so exactly one concurrent caller observes newly=true.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore creates a registry store on the given admin pool. The
// tenant_registry table is expected to exist (see the registry migrations).
func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const pgStoreSelect = `
SELECT uuid, state, COALESCE(database_name, ''), created_at, COALESCE(last_error, '')
FROM tenant_registry WHERE slug = $1`

// Get returns the current record for the identifier.
func (s *PGStore) Get(ctx context.Context, id ID) (Record, bool, error) {
	rec := Record{ID: id}
	err := s.db.QueryRow(ctx, pgStoreSelect, id.String()).
		Scan(&rec.UUID, &rec.State, &rec.DatabaseRef.Database, &rec.CreatedAt, &rec.LastError)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("tenant registry get %q: %w", id, err)
	}
	return rec, true, nil
}

// Reserve implements the atomic reservation protocol on top of the registry
// table's primary key.
func (s *PGStore) Reserve(ctx context.Context, id ID) (Record, bool, error) {
	rec := Record{
		ID:        id,
		UUID:      uuid.New(),
		State:     StateProvisioning,
		CreatedAt: time.Now().UTC(),
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO tenant_registry (slug, uuid, state, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO NOTHING`,
		id.String(), rec.UUID, string(rec.State), rec.CreatedAt)
	if err != nil {
		return Record{}, false, fmt.Errorf("tenant registry reserve %q: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return rec, true, nil
	}

	// Existing record. A Failed one is re-armed for a fresh attempt; the
	// conditional update guarantees only one concurrent caller wins it.
	tag, err = s.db.Exec(ctx, `
		UPDATE tenant_registry SET state = $2, last_error = NULL
		WHERE slug = $1 AND state = $3`,
		id.String(), string(StateProvisioning), string(StateFailed))
	if err != nil {
		return Record{}, false, fmt.Errorf("tenant registry re-arm %q: %w", id, err)
	}
	rearmed := tag.RowsAffected() == 1

	rec, ok, err := s.Get(ctx, id)
	if err != nil {
		return Record{}, false, err
	}
	if !ok {
		return Record{}, false, fmt.Errorf("tenant registry reserve %q: record vanished", id)
	}
	return rec, rearmed, nil
}

// MarkReady settles a Provisioning record to Ready.
func (s *PGStore) MarkReady(ctx context.Context, id ID, ref DatabaseRef) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE tenant_registry SET state = $2, database_name = $3, last_error = NULL
		WHERE slug = $1 AND state = $4`,
		id.String(), string(StateReady), ref.Database, string(StateProvisioning))
	if err != nil {
		return fmt.Errorf("tenant registry mark ready %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: mark ready %q", ErrInvalidStateTransition, id)
	}
	return nil
}

// MarkFailed settles a Provisioning record to Failed.
func (s *PGStore) MarkFailed(ctx context.Context, id ID, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE tenant_registry SET state = $2, database_name = NULL, last_error = $3
		WHERE slug = $1 AND state = $4`,
		id.String(), string(StateFailed), msg, string(StateProvisioning))
	if err != nil {
		return fmt.Errorf("tenant registry mark failed %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: mark failed %q", ErrInvalidStateTransition, id)
	}
	return nil
}
