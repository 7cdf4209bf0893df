package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/srgjo27/roomshare/internal/adapter/handler"
	"github.com/srgjo27/roomshare/internal/adapter/lock"
	"github.com/srgjo27/roomshare/internal/adapter/queue"
	"github.com/srgjo27/roomshare/internal/adapter/repository/postgres"
	"github.com/srgjo27/roomshare/internal/config"
	"github.com/srgjo27/roomshare/internal/core/services"
	"github.com/srgjo27/roomshare/internal/platform/cache"
	"github.com/srgjo27/roomshare/internal/platform/database"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("failed to read .env", "error", err)
	}
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(ctx, cfg.Database(), logger)
	if err != nil {
		logger.Error("failed to connect to db after retries", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting to redis", "addr", cfg.RedisAddr)
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	publisher := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
	defer publisher.Close()

	tx := postgres.NewTransactor(db, cfg.TxAttempts, logger)
	occ := services.NewOccupancy(time.Now)

	roomService := services.NewRoomService(tx, occ, publisher, logger)
	quotaService := services.NewQuotaService(tx, occ, logger)
	allocator := services.NewAllocator(tx, occ,
		lock.NewRedisLocker(redisClient, cfg.AllocationLock),
		publisher,
		services.AllocatorConfig{HostControl: cfg.HostControl},
		logger,
	)
	validator := services.NewValidator(tx, occ)

	go roomService.RunBackgroundSweep(ctx, cfg.SweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	handler.NewRoomHandler(roomService, quotaService, allocator, validator, logger).Register(e)

	e.Server.ReadTimeout = 5 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server startup failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exiting")
}
