// Command castflow serves the application lifecycle API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stageroute/castflow/modules/applications"
	"github.com/stageroute/castflow/pkg/config"
	"github.com/stageroute/castflow/pkg/email"
	"github.com/stageroute/castflow/pkg/httpserver"
	"github.com/stageroute/castflow/pkg/idempotency"
	"github.com/stageroute/castflow/pkg/logger"
	"github.com/stageroute/castflow/pkg/notifications"
	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/pkg/ratelimit"
	"github.com/stageroute/castflow/pkg/rbac"
	"github.com/stageroute/castflow/pkg/redis"
	"github.com/stageroute/castflow/pkg/requestid"
	"github.com/stageroute/castflow/svc/application"
	"github.com/stageroute/castflow/svc/application/pgstore"
)

const serviceName = "castflow"

type Config struct {
	Logger     logger.Config
	Postgres   pg.Config
	Redis      redis.Config
	HTTP       httpserver.Config
	Email      email.Config
	Reconciler application.ReconcilerConfig

	RolesFile       string        `env:"RBAC_ROLES_FILE" envDefault:"roles.yaml"`
	BulkConcurrency int           `env:"BULK_CONCURRENCY" envDefault:"8"`
	BulkRetries     int           `env:"BULK_RETRY_ATTEMPTS" envDefault:"3"`
	DispatchLockTTL time.Duration `env:"DISPATCH_LOCK_TTL" envDefault:"30s"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	IdempotencyLock time.Duration `env:"IDEMPOTENCY_LOCK_TTL" envDefault:"1m"`
	RedisKeyPrefix  string        `env:"REDIS_KEY_PREFIX" envDefault:"castflow:"`
	BulkRateLimit   int           `env:"BULK_RATE_LIMIT" envDefault:"30"`
	BulkRateWindow  time.Duration `env:"BULK_RATE_WINDOW" envDefault:"1m"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return err
	}

	log := logger.New(append(logger.FromConfig(cfg.Logger, serviceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()))...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool, cfg.Postgres, log); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	store := pgstore.New(pool)
	locks := idempotency.NewRedisStore(rdb, cfg.RedisKeyPrefix)

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return fmt.Errorf("email sender: %w", err)
	}
	renderer, err := email.NewRenderer()
	if err != nil {
		return fmt.Errorf("email templates: %w", err)
	}
	manager := notifications.NewManager(store.Notifications(),
		notifications.NewLogDeliverer(log.With(logger.Component("notifications"))),
		notifications.WithManagerLogger(log))

	authz, err := rbac.NewAuthorizer(ctx, rbac.YAMLSource{Path: cfg.RolesFile})
	if err != nil {
		return fmt.Errorf("load roles: %w", err)
	}
	directory := store.Directory()
	perms := rbac.NewCapabilityChecker(authz, rbac.RoleResolverFunc(func(ctx context.Context, id uuid.UUID) (string, error) {
		return directory.RoleOf(ctx, id)
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := application.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	svc, err := application.New(application.Collaborators{
		Repository:  store.Applications(),
		Invites:     store.Invites(),
		Ledger:      store.Ledger(),
		Messenger:   store.Messages(),
		Directory:   directory,
		Permissions: perms,
		Notifier:    application.NewChannelNotifier(manager, sender, renderer, directory),
		Activity:    store.Activities(),
		Journal:     store.Journal(),
		Locker:      locks,
	},
		application.WithLogger(log.With(logger.Component("application"))),
		application.WithMetrics(metrics),
		application.WithDispatchLockTTL(cfg.DispatchLockTTL),
		application.WithBulkConcurrency(cfg.BulkConcurrency),
		application.WithBulkRetry(cfg.BulkRetries, application.DefaultBackoff),
	)
	if err != nil {
		return fmt.Errorf("application service: %w", err)
	}

	reconciler := application.NewReconciler(svc, cfg.Reconciler)
	if err := reconciler.Start(ctx); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := reconciler.Stop(stopCtx); err != nil {
			log.LogAttrs(stopCtx, slog.LevelWarn, "reconciler did not stop cleanly", logger.Error(err))
		}
	}()

	bulkLimiter, err := ratelimit.New(ratelimit.NewRedisStore(rdb, cfg.RedisKeyPrefix+"rl:"), cfg.BulkRateLimit, cfg.BulkRateWindow)
	if err != nil {
		return fmt.Errorf("bulk rate limit: %w", err)
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware, middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Get("/health", httpserver.HealthHandler(log, map[string]httpserver.HealthCheck{
		"postgres": pg.Healthcheck(pool),
		"redis":    redis.Healthcheck(rdb),
	}))
	r.Mount("/", applications.New(svc,
		applications.WithIdempotency(locks),
		applications.WithIdempotencyTTL(cfg.IdempotencyTTL),
		applications.WithIdempotencyLockTTL(cfg.IdempotencyLock),
		applications.WithBulkLimit(ratelimit.Middleware(bulkLimiter, ratelimit.ByHeader("bulk", "X-Actor-ID"), log)),
		applications.WithLogger(log),
	).Handle())

	return httpserver.New(cfg.HTTP, httpserver.WithLogger(log)).Run(ctx, r)
}
