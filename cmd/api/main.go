package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/devclassik/harmoney-backend-sub000/internal/config"
	"github.com/devclassik/harmoney-backend-sub000/internal/gateway"
	"github.com/devclassik/harmoney-backend-sub000/internal/infra"
	"github.com/devclassik/harmoney-backend-sub000/internal/jobs"
	"github.com/devclassik/harmoney-backend-sub000/internal/logging"
	"github.com/devclassik/harmoney-backend-sub000/internal/notification"
	"github.com/devclassik/harmoney-backend-sub000/internal/routes"
	"github.com/devclassik/harmoney-backend-sub000/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat).With("app", cfg.AppName, "env", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := infra.Migrate(ctx, db); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency and rate limiting disabled")
	}

	var rail gateway.PaymentGateway
	if cfg.Gateway.BaseURL != "" {
		rail = gateway.NewClient(cfg.Gateway, logger)
	} else {
		logger.Warn("GATEWAY_BASE_URL not set, using sandbox gateway")
		rail = gateway.NewSandbox()
	}

	sender := notification.NewLoggerDispatcher(logger)
	dispatcher := jobs.NewQueueDispatcher(sender)

	deps := routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Gateway: rail, Dispatcher: dispatcher}
	services, err := routes.NewServices(deps)
	if err != nil {
		logger.Error("build services", "error", err)
		os.Exit(1)
	}

	stopJobs, err := startBackground(ctx, cfg, db, services, sender, dispatcher, logger)
	if err != nil {
		logger.Error("start background jobs", "error", err)
		os.Exit(1)
	}

	srv, err := server.New(deps, services)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "address", cfg.Address())
		srvErrCh <- srv.Listen()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			stopJobs(context.Background())
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	stopJobs(shutdownCtx)

	logger.Info("server exited cleanly")
}

// startBackground runs notification delivery and the reconciliation sweep: on River
// when Postgres is available, otherwise on an in-process ticker.
func startBackground(ctx context.Context, cfg config.Config, db *pgxpool.Pool, services *routes.Services, sender notification.Dispatcher, dispatcher *jobs.QueueDispatcher, logger *slog.Logger) (func(context.Context), error) {
	if db == nil {
		loopCtx, cancel := context.WithCancel(ctx)
		go jobs.RunSweepLoop(loopCtx, services.Engine, cfg.ReconcileInterval, cfg.ReconcileAfter, logger)
		return func(context.Context) { cancel() }, nil
	}

	client, err := jobs.NewClient(db, jobs.ClientConfig{
		Sender:            sender,
		Sweeper:           services.Engine,
		ReconcileInterval: cfg.ReconcileInterval,
		ReconcileAfter:    cfg.ReconcileAfter,
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	// Stop drives the shutdown; the signal context would abort in-flight jobs.
	if err := client.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, err
	}
	dispatcher.Bind(client)

	return func(stopCtx context.Context) {
		if err := client.Stop(stopCtx); err != nil {
			logger.Warn("stop job client", "error", err)
		}
	}, nil
}
