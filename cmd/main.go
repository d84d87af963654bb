package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roomchat/roomchat-backend/internal/api"
	"github.com/roomchat/roomchat-backend/internal/auth"
	"github.com/roomchat/roomchat-backend/internal/cache"
	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/config"
	"github.com/roomchat/roomchat-backend/internal/db"
	"github.com/roomchat/roomchat-backend/internal/observability"
	"github.com/roomchat/roomchat-backend/internal/outbox"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize OpenTelemetry
	otelCleanup, err := observability.InitOpenTelemetry("roomchat-backend", "1.0.0")
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}
	defer func() {
		if err := otelCleanup(context.Background()); err != nil {
			log.Printf("Error shutting down OpenTelemetry: %v", err)
		}
	}()

	// Initialize structured logger
	logger := utils.NewLogger(cfg.LogLevel)

	// Initialize database
	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(context.Background(), "Failed to initialize database: %v", err)
	}

	// Initialize cache (Redis)
	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		logger.Fatal(context.Background(), "Failed to initialize cache: %v", err)
	}

	// Redis-backed stores
	userSessions := cache.NewUserSessions(redisCache, cfg.UserSessionTTL, cfg.SessionThreshold)
	wsSessions := cache.NewWSSessions(redisCache, cfg.WSSessionTTL)
	presence := cache.NewPresence(redisCache)
	bus := cache.NewBus(redisCache)
	locks := cache.NewLocks(redisCache)

	// Domain services
	hasher := auth.NewHasher()
	userSvc := chat.NewUserService(database, userSessions, wsSessions, hasher, logger)
	roomSvc := chat.NewRoomService(database, logger)
	messageSvc := chat.NewMessageService(database, bus, logger)
	notificationSvc := chat.NewNotificationService(database, logger)
	websocketSvc := chat.NewWebSocketService(database, wsSessions, presence, bus, bus, logger)
	analyticsSvc := chat.NewAnalyticsService(database)

	// Outbox worker and repair job on a shared schedule
	worker := outbox.NewWorker(database, bus, locks, logger, outbox.WorkerConfig{
		BatchSize: cfg.OutboxBatchSize,
		LockTTL:   cfg.OutboxWorkerLockTTL,
		LeaseFor:  cfg.OutboxLease,
	})
	repair := outbox.NewRepairJob(database, locks, logger, outbox.RepairConfig{
		Window:     cfg.RepairWindow,
		BatchSize:  cfg.RepairBatchSize,
		BatchDelay: cfg.RepairBatchDelay,
		LockTTL:    cfg.OutboxRepairLockTTL,
	})

	scheduler := cron.New()
	schedule := cron.Every(cfg.JobInterval)
	scheduler.Schedule(schedule, cron.FuncJob(func() {
		if err := worker.Run(context.Background()); err != nil {
			logger.Error(context.Background(), "Outbox worker run failed: %v", err)
		}
	}))
	scheduler.Schedule(schedule, cron.FuncJob(func() {
		if err := repair.Run(context.Background()); err != nil {
			logger.Error(context.Background(), "Outbox repair run failed: %v", err)
		}
	}))
	scheduler.Start()

	// Setup HTTP router
	router := api.NewRouter(api.Deps{
		Config:        cfg,
		Logger:        logger,
		Database:      database,
		Cache:         redisCache,
		Users:         userSvc,
		Rooms:         roomSvc,
		Messages:      messageSvc,
		Notifications: notificationSvc,
		WebSockets:    websocketSvc,
		Analytics:     analyticsSvc,
		Bus:           bus,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info(context.Background(), "Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(context.Background(), "Server error: %v", err)
		}
	}()

	// Graceful shutdown setup
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Block until a signal is received
	<-sigChan

	gracefulShutdown(context.Background(), logger, server, scheduler, database, redisCache, otelCleanup)

	logger.Info(context.Background(), "Application stopped.")
}

// gracefulShutdown handles the graceful shutdown of all components
func gracefulShutdown(ctx context.Context, logger *utils.Logger, server *http.Server, scheduler *cron.Cron, database *db.Database, redisCache *cache.Cache, otelCleanup func(context.Context) error) {
	logger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// 1. Shut down HTTP server (closes open WebSocket request contexts)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error: %v", err)
	} else {
		logger.Info(ctx, "HTTP server stopped.")
	}

	// 2. Stop the job scheduler and wait for a running cycle to finish
	cronCtx := scheduler.Stop()
	select {
	case <-cronCtx.Done():
		logger.Info(ctx, "Job scheduler stopped.")
	case <-shutdownCtx.Done():
		logger.Error(ctx, "Job scheduler stop timed out.")
	}

	// 3. Close Database connection
	if err := database.Close(); err != nil {
		logger.Error(ctx, "Database close error: %v", err)
	} else {
		logger.Info(ctx, "Database connection closed.")
	}

	// 4. Close Redis cache connection
	if err := redisCache.Close(); err != nil {
		logger.Error(ctx, "Redis cache close error: %v", err)
	} else {
		logger.Info(ctx, "Redis cache connection closed.")
	}

	// 5. Shutdown OpenTelemetry
	if otelCleanup != nil {
		if err := otelCleanup(shutdownCtx); err != nil {
			logger.Error(ctx, "OpenTelemetry shutdown error: %v", err)
		} else {
			logger.Info(ctx, "OpenTelemetry shut down.")
		}
	}

	logger.Info(ctx, "Graceful shutdown complete.")
}
