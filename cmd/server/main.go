package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/spoolworks/atelier/internal"
	"github.com/spoolworks/atelier/internal/events"
	"github.com/spoolworks/atelier/internal/handler"
	"github.com/spoolworks/atelier/internal/lock"
	"github.com/spoolworks/atelier/internal/middleware"
	"github.com/spoolworks/atelier/internal/repository"
	"github.com/spoolworks/atelier/internal/router"
	"github.com/spoolworks/atelier/internal/routes"
	"github.com/spoolworks/atelier/internal/service"
	"github.com/spoolworks/atelier/internal/storage"
	"github.com/spoolworks/atelier/internal/telemetry"
)

func main() {
	ctx := context.Background()
	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := internal.NewLogger(w, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Migrations run over database/sql; the app itself uses a pgx pool.
	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	if err := migrationDB.PingContext(ctx); err != nil {
		migrationDB.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := internal.RunMigrations(migrationDB); err != nil {
		migrationDB.Close()
		return err
	}
	migrationDB.Close()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	previews, err := storage.New(storage.Config{
		Provider:  cfg.Storage.Provider,
		LocalPath: cfg.Storage.LocalPath,
		LocalURL:  cfg.Storage.LocalURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize preview storage: %w", err)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NatsURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NatsURL)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	store := repository.New(pool)
	locks := lock.NewManager(lock.NewRedisBackend(redisClient))
	cartMetrics := telemetry.NewCartMetrics("atelier")
	httpMetrics := middleware.NewMetrics("atelier")

	customizations := service.NewCustomizationService(store, store, previews, logger)
	carts := service.NewCartService(service.CartServiceParams{
		Carts:          store,
		Catalog:        store,
		Customizations: store,
		Attach:         customizations,
		Pricing:        store,
		Locks:          locks,
		Previews:       previews,
		Events:         publisher,
		Metrics:        cartMetrics,
		Logger:         logger,
		Config: service.CartServiceConfig{
			LockTTL:  cfg.Lock.TTL,
			LockWait: cfg.Lock.MaxWait,
			CartTTL:  cfg.CartTTL,
		},
	})

	r := router.New(
		middleware.Recover,
		middleware.WithRequestLogger(logger),
		httpMetrics.Middleware,
	)
	routes.RegisterAPI(r, handler.NewCartHandler(carts, logger), httpMetrics)

	server := &http.Server{
		Addr:         net.JoinHostPort("", fmt.Sprintf("%d", cfg.Port)),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr), slog.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
