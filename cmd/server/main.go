package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/fairwaylabs/leaguemanager/pkg/config"
	"github.com/fairwaylabs/leaguemanager/pkg/httpserver"
	"github.com/fairwaylabs/leaguemanager/pkg/logger"
	"github.com/fairwaylabs/leaguemanager/pkg/pg"
	"github.com/fairwaylabs/leaguemanager/pkg/requestid"
	"github.com/fairwaylabs/leaguemanager/pkg/tenant"
)

type appConfig struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"leaguemanager"`

	BaseDomain        string        `env:"TENANT_BASE_DOMAIN" envDefault:"leaguemanager.app"`
	DefaultTenant     string        `env:"TENANT_DEFAULT" envDefault:"htlyons"`
	TenantWaitTimeout time.Duration `env:"TENANT_WAIT_TIMEOUT" envDefault:"30s"`
	TenantCacheTTL    time.Duration `env:"TENANT_CACHE_TTL" envDefault:"10m"`

	// RedisURL enables the shared record cache; empty falls back to the
	// in-process cache.
	RedisURL string `env:"REDIS_URL"`

	Log  logger.Config
	HTTP httpserver.Config
	PG   pg.Config
}

func main() {
	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.NewFromConfig(cfg.Log,
		logger.WithAttr(slog.String("service", cfg.ServiceName)),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
		),
	)
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	admin, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer admin.Close()

	if err := pg.Migrate(ctx, admin, cfg.PG.RegistryMigrationsPath, cfg.PG.MigrationsTable, log); err != nil {
		return err
	}

	var cache tenant.Cache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		cache = tenant.NewRedisCache(redis.NewClient(opt))
	} else {
		cache = tenant.NewMemoryCache()
	}
	defer cache.Close()

	store := tenant.NewCachedStore(tenant.NewPGStore(admin), cache, cfg.TenantCacheTTL)

	prov := tenant.NewProvisioner(store, pg.NewAllocator(admin, cfg.PG, log),
		tenant.WithWaitTimeout(cfg.TenantWaitTimeout),
		tenant.WithProvisionerLogger(log),
	)

	pools := pg.NewPoolManager(admin, store)
	defer pools.Close()

	defaultTenant, err := tenant.NewID(cfg.DefaultTenant)
	if err != nil {
		return err
	}

	resolver := tenant.NewCompositeResolver(
		tenant.NewHostResolver(cfg.BaseDomain),
		tenant.NewHeaderResolver(""),
		tenant.NewQueryResolver(""),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(tenant.Middleware(resolver, prov,
		tenant.WithDefaultTenant(defaultTenant),
		tenant.WithSkipPaths([]string{"/health"}),
		tenant.WithLogger(log),
	))

	r.Get("/health", healthHandler(pg.Healthcheck(admin)))
	r.Get("/api/whoami", whoamiHandler())
	r.Get("/api/players/count", playerCountHandler(pools))

	return httpserver.New(cfg.HTTP, log).Run(ctx, r)
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func whoamiHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := tenant.MustFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"tenant": id.String()})
	}
}

// playerCountHandler shows the downstream pattern: read the tenant from the
// request context, select its connection pool, query its isolated database.
func playerCountHandler(pools *pg.PoolManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := tenant.MustFromContext(r.Context())

		pool, err := pools.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		var count int
		if err := pool.QueryRow(r.Context(), "SELECT count(*) FROM players").Scan(&count); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"players": count})
	}
}
