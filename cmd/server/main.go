package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/starts-with-effort/dandd-realtime/internal/auth"
	"github.com/starts-with-effort/dandd-realtime/internal/config"
	"github.com/starts-with-effort/dandd-realtime/internal/database"
	"github.com/starts-with-effort/dandd-realtime/internal/hub"
	"github.com/starts-with-effort/dandd-realtime/internal/logging"
	"github.com/starts-with-effort/dandd-realtime/internal/notify"
	"github.com/starts-with-effort/dandd-realtime/internal/redis"
	"github.com/starts-with-effort/dandd-realtime/internal/retry"
	"github.com/starts-with-effort/dandd-realtime/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The database container often comes up after us; retry before giving up.
	policy := retry.Policy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Database not ready, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	pool, err := retry.Do(ctx, policy, func(error) retry.Action { return retry.Retry }, func() (*pgxpool.Pool, error) {
		return database.Connect(ctx, cfg.DatabaseURL)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, connections *hub.Hub, notifier *notify.Notifier, relay *redis.EventRelay) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if relay != nil {
			relay.Close()
		}
		notifier.Stop()
		connections.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	// The Redis relay is optional: without it events reach only the local
	// instance's clients.
	var redisClient *redis.Client
	var relay *redis.EventRelay
	if cfg.RedisURL != "" {
		redisClient = setupRedis(context.Background(), cfg)
		defer func() { _ = redisClient.Close() }()
		relay = redis.NewEventRelay(redisClient, uuid.NewString())
	}

	identityRepo := database.NewIdentityRepo(pool)
	snapshotRepo := database.NewSnapshotRepo(pool, clock)
	validator := auth.NewValidator(cfg.JWTSecret, identityRepo)

	connections := hub.New(clock, cfg.MaxConnections, cfg.SendBufferSize)

	// Pass nil explicitly to avoid a typed-nil interface inside the notifier.
	var notifier *notify.Notifier
	if relay != nil {
		notifier = notify.New(snapshotRepo, connections, relay, cfg.NotifyQueueSize, cfg.NotifyWorkers)
	} else {
		notifier = notify.New(snapshotRepo, connections, nil, cfg.NotifyQueueSize, cfg.NotifyWorkers)
	}
	notifier.Start()

	if relay != nil {
		relay.Subscribe(context.Background(), connections.Broadcast)
	}

	srv := server.NewServer(cfg, connections, notifier, validator, pool, redisClient)

	done := runGracefulShutdown(srv, connections, notifier, relay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
