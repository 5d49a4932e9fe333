package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brroMonta/gifting/config"
	"github.com/brroMonta/gifting/internal/app"
	"github.com/brroMonta/gifting/internal/app/controller"
	"github.com/brroMonta/gifting/internal/app/service"
	"github.com/brroMonta/gifting/internal/db"
	"github.com/brroMonta/gifting/internal/middleware"
	"github.com/brroMonta/gifting/internal/router"
	"github.com/brroMonta/gifting/internal/scheduler"
	ws "github.com/brroMonta/gifting/internal/websocket"
	"github.com/brroMonta/gifting/pkg/logger"
	"github.com/brroMonta/gifting/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	format := "json"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
		format = "console"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      format,
		EnableColor: format == "console",
	})

	logger.Info("Starting Gifting Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	database, err := db.Open(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	if err := db.Migrate(database); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis backs the projection cache and the public rate limiter. Both are
	// skipped when it is disabled or unreachable.
	var (
		cache   service.ProjectionCache
		limiter middleware.RateLimiter
	)
	if cfg.Redis.Enabled {
		client, err := redis.New(&cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache and rate limiting", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			defer client.Close()
			cache = client
			limiter = client
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	services := app.NewServices(database, cfg, cache, hub)

	reconcileScheduler := scheduler.NewReconcileScheduler(services.Reconcile, cfg.Scheduler.ReconcileSpec)
	if err := reconcileScheduler.Start(); err != nil {
		logger.Fatal("Failed to start reconcile scheduler", err)
	}
	defer reconcileScheduler.Stop()

	r := router.NewRouter(
		controller.NewPersonController(services.People),
		controller.NewGiftMapController(services.GiftMaps, cfg.Share.BaseURL),
		controller.NewSharedGiftMapController(services.Shared, hub, cfg.CORS.AllowedOrigins),
		controller.NewURLMetadataController(services.URLMetadata),
		middleware.NewAuthMiddleware(cfg.JWT.Secret),
		limiter,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", err)
	}
	logger.Info("Server stopped successfully", nil)
}
