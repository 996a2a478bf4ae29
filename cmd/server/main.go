// Command server runs the fortification audit API. Persistence, caching, and
// the Kafka audit trail are all optional backends: with nothing configured the
// process runs self-contained on in-memory stores.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"fortaudit/internal/authz"
	checklisthandler "fortaudit/internal/checklist/handler"
	checklistservice "fortaudit/internal/checklist/service"
	checkliststore "fortaudit/internal/checklist/store"
	checklistcache "fortaudit/internal/checklist/store/cache"
	"fortaudit/internal/platform/config"
	"fortaudit/internal/platform/httpserver"
	"fortaudit/internal/platform/logger"
	"fortaudit/internal/platform/metrics"
	platformredis "fortaudit/internal/platform/redis"
	"fortaudit/internal/platform/token"
	sessionhandler "fortaudit/internal/session/handler"
	"fortaudit/internal/session/lifecycle"
	sessionservice "fortaudit/internal/session/service"
	sessionstore "fortaudit/internal/session/store"
	httptransport "fortaudit/internal/transport/http"
	"fortaudit/pkg/platform/audit"
	auditkafka "fortaudit/pkg/platform/audit/kafka"
	auditmemory "fortaudit/pkg/platform/audit/store/memory"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		templateStore checkliststore.Store = checkliststore.NewInMemory()
		sessionStore  sessionstore.Store   = sessionstore.NewInMemory()
	)
	routerOpts := []httptransport.Option{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		templateStore = checkliststore.NewPostgres(pool)
		sessionStore = sessionstore.NewPostgres(pool)
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("postgres", func() error {
			return pool.Ping(context.Background())
		}))
		log.Info("using postgres stores")
	}

	redisClient, err := platformredis.New(cfg.RedisAddr)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		templateStore = checklistcache.New(templateStore, redisClient.Client, log)
		routerOpts = append(routerOpts, httptransport.WithHealthCheck("redis", func() error {
			return redisClient.Health(context.Background())
		}))
		log.Info("template cache enabled", "addr", cfg.RedisAddr)
	}

	// Audit trail: Kafka when brokers are configured, in-memory otherwise.
	var sink audit.Sink = auditmemory.New()
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit trail on kafka", "topic", cfg.AuditTopic)
	}
	publisher := audit.NewPublisher(sink)

	m := metrics.New()
	validator := token.NewJWTValidator(cfg.JWTSigningKey)

	templates, err := checklistservice.New(templateStore,
		checklistservice.WithLogger(log),
		checklistservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return err
	}

	sessions, err := sessionservice.New(sessionStore, templateStore, lifecycle.New(authz.NewRoleAuthorizer()),
		sessionservice.WithLogger(log),
		sessionservice.WithMetrics(m),
		sessionservice.WithAuditPublisher(publisher),
		sessionservice.WithTracer(otel.Tracer("fortaudit")),
	)
	if err != nil {
		return err
	}

	sessionHandler := sessionhandler.New(sessions, log, validator)
	routerOpts = append(routerOpts,
		httptransport.WithHandler(checklisthandler.New(templates, log, validator)),
		httptransport.WithHandler(sessionHandler),
		httptransport.WithPublicHandler(sessionHandler),
	)
	router := httptransport.New(log, routerOpts...)

	srv := httpserver.New(cfg.Addr, router.Handler())
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting fortaudit", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
