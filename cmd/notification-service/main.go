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

	"github.com/hackgods/appointment-lifecycle/internal/api"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/logs"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
	"github.com/hackgods/appointment-lifecycle/internal/relay"
)

func main() {
	cfg, err := config.Load(config.ServiceNotification)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logs.New(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("notification-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notification-service starting up", "http_port", cfg.HTTPPort, "store_driver", cfg.StoreDriver)

	var (
		repo   relay.Repository
		checks []api.Check
	)

	switch cfg.StoreDriver {
	case config.DriverMemory:
		repo = relay.NewMemoryRepository()

	case config.DriverRedis:
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		logger.Info("connected to Redis", "addr", cfg.RedisAddr)

		redisRepo := relay.NewRedisRepository(rdb, logger)
		repo = redisRepo
		checks = append(checks, api.Check{Name: "redis", Critical: true, Ping: redisRepo.Ping})

	default:
		fileRepo, err := relay.NewFileRepository(cfg.DBPath, logger)
		if err != nil {
			return err
		}
		logger.Info("using file store", "path", cfg.DBPath)
		repo = fileRepo
	}

	svc := relay.NewService(repo, relay.NewDispatcher(logger), logger)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewNotificationRouter(api.NotificationRouterConfig{
			Service: svc,
			Logger:  logger,
			Env:     cfg.Env,
			Checks:  checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("notification-service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-rootCtx.Done():
	}

	logger.Info("shutting down notification-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	return nil
}
