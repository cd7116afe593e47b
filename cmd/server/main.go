package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/broker"
	"shop-service/internal/redisclient"
	"shop-service/internal/service"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const serviceName = "shop-service"

func main() {
	app := &cli.App{
		Name:   serviceName,
		Usage:  "e-commerce backend: catalogue, orders, payments and statistics",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and the order audit worker",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the PostgreSQL schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:   "down",
						Usage:  "revert all migrations",
						Action: migrateDown,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func migrateUp(_ *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer util.SyncLogger()

	if err := store.MigrateUp(cfg.Database.URL); err != nil {
		return err
	}
	util.GetLogger().Info("Migrations applied")
	return nil
}

func migrateDown(_ *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer util.SyncLogger()

	if err := store.MigrateDown(cfg.Database.URL); err != nil {
		return err
	}
	util.GetLogger().Info("Migrations reverted")
	return nil
}

func openRepository(cfg *config.Config, logger *zap.Logger) (store.Repository, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	if cfg.Database.AutoMigrate {
		if err := store.MigrateUp(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		logger.Info("Database schema up to date")
	}

	db, err := store.NewStore(cfg.Database.URL, store.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Info("Database connected")
	return db, func() { _ = db.Close() }, nil
}

func serve(_ *cli.Context) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service", zap.String("env", cfg.Server.Env))

	decimal.MarshalJSONWithoutQuotes = true

	if cfg.Observ.TracingEnabled {
		tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	repo, closeRepo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	checks := map[string]api.Pinger{"database": repo}

	var (
		productCache *service.ProductCache
		idempotency  service.IdempotencyStore
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		logger.Info("Redis connected", zap.String("addr", cfg.Redis.Addr))

		productCache = service.NewProductCache(redisClient, cfg.Redis.ProductCacheTTL)
		idempotency = redisClient
		checks["redis"] = redisClient
	}

	var events service.EventPublisher
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var auditWorker *worker.AuditWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		auditWorker = worker.NewAuditWorker(consumer, repo)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Audit worker stopped", zap.Error(err))
			}
		}()
	}

	svc := api.Services{
		Users:      service.NewUserService(repo),
		Categories: service.NewCategoryService(repo, productCache),
		Products:   service.NewProductService(repo, productCache),
		Orders:     service.NewOrderService(repo, productCache, events, idempotency, cfg.Redis.IdempotencyTTL),
		Statistics: service.NewStatisticsService(repo),
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	api.NewHandler(svc, checks).SetupRoutes(router)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down server", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if auditWorker != nil {
		if err := auditWorker.Stop(); err != nil {
			logger.Warn("Error stopping audit worker", zap.Error(err))
		}
	}

	logger.Info("Server exited")
	return nil
}
