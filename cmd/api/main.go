package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tracerx/tracerx/internal/config"
	"github.com/tracerx/tracerx/internal/handler"
	"github.com/tracerx/tracerx/internal/infra/postgresql"
	"github.com/tracerx/tracerx/internal/infra/postgresql/migrations"
	infraredis "github.com/tracerx/tracerx/internal/infra/redis"
	"github.com/tracerx/tracerx/internal/ledger"
	"github.com/tracerx/tracerx/internal/observability"
	"github.com/tracerx/tracerx/internal/queue"
	"github.com/tracerx/tracerx/internal/repository"
	"github.com/tracerx/tracerx/internal/service"
	"github.com/tracerx/tracerx/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	mq, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer mq.Close()

	gateway, err := ledger.NewHederaGateway(cfg.HederaNetwork, cfg.OperatorID, cfg.OperatorKey)
	if err != nil {
		logger.Fatal("hedera client initialization failed", zap.Error(err))
	}
	defer gateway.Close()

	mirror, err := ledger.NewMirrorClient(cfg.MirrorNodeURL)
	if err != nil {
		logger.Fatal("mirror client initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	batches := repository.NewGormBatchRepo(db)
	alerts := queue.NewRabbitMQAlertPublisher(mq)

	mintLocks, err := infraredis.NewMintLock(rdb, cfg.MintLockTTL())
	if err != nil {
		logger.Fatal("mint lock initialization failed", zap.Error(err))
	}

	tokenizer, err := service.NewTokenizerService(batches, gateway, mintLocks, alerts, cfg.LedgerTimeout(), logger, metrics)
	if err != nil {
		logger.Fatal("tokenizer service initialization failed", zap.Error(err))
	}

	verifier, err := service.NewVerifierService(batches)
	if err != nil {
		logger.Fatal("verifier service initialization failed", zap.Error(err))
	}

	reconciler, err := service.NewReconciler(batches, mirror, cfg.ReconcileInterval(), logger, metrics)
	if err != nil {
		logger.Fatal("reconciler initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		AppName:      "tracerx-api",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(observability.RequestCorrelation())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("TraceRx batch tokenization API is running")
	})
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterDrugRoutes(app, tokenizer, verifier); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: metrics.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("tracerx api started", zap.Int("port", cfg.APIPort))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("metrics endpoint started", zap.Int("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("reconciler started", zap.Duration("interval", cfg.ReconcileInterval()))
		return reconciler.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown failed", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
