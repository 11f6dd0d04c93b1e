package tenant

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a concurrency-safe registry of tenants and their provisioning
// state. All mutations are linearizable with respect to Reserve: no two
// callers ever both observe newly=true for the same identifier while a
// record is in flight.
type Store interface {
	// Get returns the current record for the identifier without blocking.
	Get(ctx context.Context, id ID) (Record, bool, error)

	// Reserve atomically inserts a Provisioning record if none exists and
	// reports newly=true. If a record already exists in Provisioning or Ready
	// state it is returned with newly=false. A Failed record is re-armed into
	// Provisioning and reported newly=true, granting the caller a fresh
	// provisioning attempt.
	Reserve(ctx context.Context, id ID) (rec Record, newly bool, err error)

	// MarkReady transitions a Provisioning record to Ready with its database
	// handle. Returns ErrInvalidStateTransition if the record does not exist
	// or is not Provisioning.
	MarkReady(ctx context.Context, id ID, ref DatabaseRef) error

	// MarkFailed transitions a Provisioning record to Failed, recording the
	// cause. Returns ErrInvalidStateTransition if the record does not exist
	// or is not Provisioning.
	MarkFailed(ctx context.Context, id ID, cause error) error
}

// MemoryStore is the in-process Store implementation. It is suitable for
// tests and single-instance deployments; production deployments should use
// the durable Postgres-backed store so a restart never re-provisions a
// Ready tenant.
type MemoryStore struct {
	mu      sync.Mutex
	records map[ID]Record
}

// NewMemoryStore creates an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[ID]Record)}
}

// Get returns the current record for the identifier.
func (s *MemoryStore) Get(ctx context.Context, id ID) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	return rec, ok, nil
}

// Reserve implements the atomic reservation protocol.
func (s *MemoryStore) Reserve(ctx context.Context, id ID) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		rec = Record{
			ID:        id,
			UUID:      uuid.New(),
			State:     StateProvisioning,
			CreatedAt: time.Now().UTC(),
		}
		s.records[id] = rec
		return rec, true, nil
	}

	if rec.State == StateFailed {
		rec.State = StateProvisioning
		rec.LastError = ""
		s.records[id] = rec
		return rec, true, nil
	}

	return rec, false, nil
}

// MarkReady settles a Provisioning record to Ready.
func (s *MemoryStore) MarkReady(ctx context.Context, id ID, ref DatabaseRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.State != StateProvisioning {
		return fmt.Errorf("%w: mark ready %q in state %q", ErrInvalidStateTransition, id, rec.State)
	}

	rec.State = StateReady
	rec.DatabaseRef = ref
	rec.LastError = ""
	s.records[id] = rec
	return nil
}

// MarkFailed settles a Provisioning record to Failed.
func (s *MemoryStore) MarkFailed(ctx context.Context, id ID, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.State != StateProvisioning {
		return fmt.Errorf("%w: mark failed %q in state %q", ErrInvalidStateTransition, id, rec.State)
	}

	rec.State = StateFailed
	rec.DatabaseRef = DatabaseRef{}
	if cause != nil {
		rec.LastError = cause.Error()
	}
	s.records[id] = rec
	return nil
}
