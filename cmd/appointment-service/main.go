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
	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/db"
	"github.com/hackgods/appointment-lifecycle/internal/logs"
	"github.com/hackgods/appointment-lifecycle/internal/notify"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

func main() {
	cfg, err := config.Load(config.ServiceAppointment)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := logs.New(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("appointment-service stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("appointment-service starting up",
		"http_port", cfg.HTTPPort,
		"store_driver", cfg.StoreDriver,
		"lock_ttl", cfg.LockTTL,
		"notification_timeout", cfg.NotificationTimeout,
	)

	var checks []api.Check

	repo, closeRepo, err := openRepository(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()
	if pg, ok := repo.(*appointment.PgRepository); ok {
		checks = append(checks, api.Check{Name: "postgres", Critical: true, Ping: pg.Ping})
	}

	var locker redisclient.Locker = redisclient.NoopLocker{}
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		}()
		logger.Info("connected to Redis, status updates are locked per appointment", "addr", cfg.RedisAddr)

		locker = redisclient.NewRedisAppointmentLocker(rdb, cfg.LockTTL)
		checks = append(checks, api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	var emitter notify.Emitter = notify.NoopEmitter{}
	var httpEmitter *notify.HTTPEmitter
	if cfg.EmitterEnabled() {
		httpEmitter = notify.NewHTTPEmitter(cfg.NotificationServiceURL, config.ServiceAppointment, cfg.NotificationTimeout, logger)
		emitter = httpEmitter
	} else {
		logger.Warn("notification emitter disabled")
	}

	svc := appointment.NewService(repo, locker, emitter, logger)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewAppointmentRouter(api.AppointmentRouterConfig{
			Service: svc,
			Logger:  logger,
			Env:     cfg.Env,
			Checks:  checks,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("appointment-service listening", "addr", srv.Addr)
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

	logger.Info("shutting down appointment-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if httpEmitter != nil {
		if err := httpEmitter.Close(shutdownCtx); err != nil {
			logger.Warn("notifications still in flight at shutdown", "error", err)
		}
	}
	return nil
}

func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (appointment.Repository, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return appointment.NewMemoryRepository(), func() {}, nil

	case config.DriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConn})
		if err != nil {
			return nil, nil, err
		}
		repo := appointment.NewPgRepository(pool)
		if err := repo.EnsureSchema(pgCtx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to Postgres")
		return repo, pool.Close, nil

	default:
		repo, err := appointment.NewFileRepository(cfg.DBPath, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file store", "path", cfg.DBPath)
		return repo, func() {}, nil
	}
}

