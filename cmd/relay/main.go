package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chronic700/agent-connect/internal/api"
	"github.com/Chronic700/agent-connect/internal/config"
	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/engine"
	"github.com/Chronic700/agent-connect/internal/store"
	ws "github.com/Chronic700/agent-connect/internal/websocket"
	"github.com/Chronic700/agent-connect/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations"); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	dispatcher := dispatch.NewDispatcher(cfg.HTTPTimeout)
	scheduler := dispatch.NewScheduler(cfg.RetryLadder, cfg.MaxRetries)
	applier := worker.NewOutcomeApplier(pgStore, scheduler, logger)
	breaker := engine.NewCircuitBreaker(redisStore.Client(), logger)
	rateLimiter := engine.NewRateLimiter(redisStore.Client(), logger)

	hub := ws.NewHub(logger)
	go hub.Run()

	pool := worker.NewPool(cfg.NumWorkers, logger)
	pool.Start(ctx)

	deliveryWorker := worker.NewDeliveryWorker(pgStore, pgStore, dispatcher, scheduler, applier, breaker, pool, hub, logger)
	go deliveryWorker.Run(ctx, cfg.PollInterval)

	if cfg.FastPathEnabled {
		fastPath := worker.NewFastPath(redisStore.Client(), pgStore, pgStore, dispatcher, scheduler, applier,
			rateLimiter, breaker, hub, 50, logger)
		go func() {
			if err := fastPath.Run(ctx); err != nil {
				logger.Error("fast path stopped", "error", err)
			}
		}()
		logger.Info("presence fast path enabled")
	} else {
		logger.Info("presence fast path disabled, relying on poll interval only")
	}

	router := api.NewRouter(pgStore, redisStore.Client(), hub, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancel()
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
