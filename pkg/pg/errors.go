package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrHealthcheckFailed        = errors.New("healthcheck failed, connection is not available")
	ErrFailedToApplyMigrations  = errors.New("failed to apply migrations")
	ErrMigrationsDirNotFound    = errors.New("migrations directory not found")
	ErrMigrationPathNotProvided = errors.New("migration path not provided")
	ErrFailedToCreateDatabase   = errors.New("failed to create tenant database")
)

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling across queries.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

// IsDuplicateDatabaseError detects CREATE DATABASE collisions (SQLSTATE 42P04).
// A colliding create during tenant provisioning means a previous attempt got
// as far as creating the database before the process died; it is not a failure.
func IsDuplicateDatabaseError(err error) bool {
	return hasSQLState(err, "42P04")
}

// IsInvalidCatalogError detects connections to a database that does not exist
// (SQLSTATE 3D000).
func IsInvalidCatalogError(err error) bool {
	return hasSQLState(err, "3D000")
}

// IsDuplicateKeyError detects PostgreSQL unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return hasSQLState(err, "23505")
}

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
