package pg

import "time"

type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`                   // ConnectionString is the connection string to the admin database.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`      // MaxOpenConns is the maximum number of open connections per pool.
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`       // MaxIdleConns is the maximum number of idle connections per pool.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`  // HealthCheckPeriod is the period between pool health checks.
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"` // MaxConnIdleTime is the maximum amount of time a connection may be idle to be reused.
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`  // MaxConnLifetime is the maximum amount of time a connection may be reused.

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the base interval between retry attempts.

	TenantDatabasePrefix   string `env:"PG_TENANT_DB_PREFIX" envDefault:"leaguedb_"`                      // TenantDatabasePrefix is prepended to the tenant slug to form its database name.
	TenantMigrationsPath   string `env:"PG_TENANT_MIGRATIONS_PATH" envDefault:"migrations/tenant"`       // TenantMigrationsPath is the baseline schema applied to every fresh tenant database.
	RegistryMigrationsPath string `env:"PG_REGISTRY_MIGRATIONS_PATH" envDefault:"migrations/registry"`   // RegistryMigrationsPath is the schema of the tenant registry in the admin database.
	MigrationsTable        string `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`             // MigrationsTable is the name of the table used to store the migration version.
}
