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

	"github.com/andriawan/siaran/internal/catalog"
	"github.com/andriawan/siaran/internal/config"
	"github.com/andriawan/siaran/internal/domain"
	"github.com/andriawan/siaran/internal/logging"
	"github.com/andriawan/siaran/internal/presence"
	"github.com/andriawan/siaran/internal/relay"
	"github.com/andriawan/siaran/internal/server"
	"github.com/andriawan/siaran/internal/session"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet at this point.
		log.Fatalf("Failed to load configuration: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := catalog.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := catalog.RunMigrationsWithLock(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupPresence(cfg *config.Config) (domain.PresenceStore, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Info("REDIS_URL not set, using in-memory listener presence")
		return presence.NewMemoryStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := presence.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	store := presence.NewRedisStore(client)
	// Listener connections do not survive a restart, so the count starts clean.
	if err := store.Reset(ctx); err != nil {
		slog.Warn("Failed to reset listener count", "error", err)
	}

	return store, client
}

func runGracefulShutdown(srv *server.Server, hub *relay.Hub) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		slog.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}

		hub.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	pool := setupDB(cfg)
	defer pool.Close()

	if err := os.MkdirAll(cfg.RecordingsDir, 0o755); err != nil {
		slog.Error("Failed to create recordings directory", "dir", cfg.RecordingsDir, "error", err)
		os.Exit(1)
	}

	presenceStore, redisClient := setupPresence(cfg)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Error("Failed to close Redis client", "error", err)
			}
		}()
	}

	repo := catalog.NewBroadcastRepo(pool)
	hub := relay.NewHub(clock, int(cfg.MaxListeners))
	machine := session.NewMachine(repo, hub, clock, cfg.RecordingsDir)

	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := machine.Reconcile(ctx); err != nil {
			slog.Error("Failed to reconcile broadcast state", "error", err)
			cancel()
			os.Exit(1)
		}
		cancel()
	}

	srv := server.NewServer(cfg, machine, hub, repo, presenceStore, pool, redisClient, clock)

	done := runGracefulShutdown(srv, hub)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Server exited")
}
