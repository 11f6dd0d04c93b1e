package tenant

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxIDLength keeps identifiers DNS-label compatible, since tenant slugs
	// double as subdomains and database name suffixes.
	MaxIDLength = 63
	MinIDLength = 1
)

// idPattern ensures slugs are URL- and DNS-safe: lowercase alphanumeric start,
// hyphens allowed inside.
var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ID is a normalized tenant slug. It uniquely identifies one tenant across the
// system's lifetime. Two IDs are equal iff their normalized string forms match.
type ID string

// String returns the slug form of the identifier.
func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id == ""
}

// Normalize lowercases and trims a raw candidate without validating it.
func Normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NewID normalizes and validates a raw candidate. Malformed candidates are
// rejected, never truncated or repaired.
func NewID(raw string) (ID, error) {
	s := Normalize(raw)
	if len(s) < MinIDLength || len(s) > MaxIDLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	if !idPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	return ID(s), nil
}

// State is the provisioning lifecycle state of a tenant record.
type State string

const (
	StateUnknown      State = "unknown"
	StateProvisioning State = "provisioning"
	StateReady        State = "ready"
	StateFailed       State = "failed"
)

// DatabaseRef is an opaque handle to a tenant's isolated data store.
// It is present on a record iff the record is Ready.
type DatabaseRef struct {
	Database string `json:"database"`
}

// IsZero reports whether the handle is unset.
func (r DatabaseRef) IsZero() bool {
	return r.Database == ""
}

func (r DatabaseRef) String() string {
	return r.Database
}

// Record is the registry entry for a single tenant. Records are owned
// exclusively by a Store; all mutation goes through Store operations.
type Record struct {
	ID          ID          `json:"id"`
	UUID        uuid.UUID   `json:"uuid"`
	State       State       `json:"state"`
	DatabaseRef DatabaseRef `json:"database_ref,omitzero"`
	CreatedAt   time.Time   `json:"created_at"`
	LastError   string      `json:"last_error,omitempty"`
}
