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

	"github.com/go-redis/redis/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customer-records/internal/cache"
	"github.com/umalmyha/customer-records/internal/config"
	"github.com/umalmyha/customer-records/internal/infra"
	"github.com/umalmyha/customer-records/internal/jobs"
	"github.com/umalmyha/customer-records/internal/repository"
	"github.com/umalmyha/customer-records/internal/service"
	"github.com/umalmyha/customer-records/internal/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

const connectTimeout = 10 * time.Second

type resources struct {
	mongoClient *mongo.Client
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
}

func (r *resources) close(logger logrus.FieldLogger) {
	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			logger.Errorf("failed to close connection to redis - %v", err)
		}
	}

	if r.pgPool != nil {
		r.pgPool.Close()
	}

	if r.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()

		if err := r.mongoClient.Disconnect(ctx); err != nil {
			logger.Errorf("failed to disconnect from mongo - %v", err)
		}
	}
}

func main() {
	cfg, err := config.Build()
	if err != nil {
		logrus.Fatalf("failed to build configuration - %v", err)
	}

	logger, err := infra.Logger(cfg.LogCfg)
	if err != nil {
		logrus.Fatalf("failed to build logger - %v", err)
	}

	res := &resources{}
	defer res.close(logger)

	if err := start(cfg, logger, res); err != nil {
		logger.Errorf("shutting down the server, unexpected error occurred - %v", err)
		res.close(logger)
		os.Exit(1)
	}
}

func start(cfg config.Config, logger *logrus.Logger, res *resources) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	// Stores
	customerRepo, photoStorage, err := stores(ctx, cfg, logger, res)
	if err != nil {
		return err
	}

	// Cache
	customerCache := cache.NewNoopCustomerCache()
	if cfg.RedisCfg.Enabled {
		res.redisClient, err = infra.Redis(ctx, cfg.RedisCfg)
		if err != nil {
			return err
		}
		customerCache = cache.NewRedisCustomerCache(res.redisClient, cfg.RedisCfg.TimeToLive)
	}

	// Services
	photoSvc := service.NewPhotoService(photoStorage, cfg.PhotoCfg.MaxSize(), logger)
	customerSvc := service.NewCustomerService(customerRepo, customerCache, photoSvc, logger,
		service.WithMaxPageSize(cfg.ListCfg.MaxPageSize),
	)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := jobs.NewStatisticsExporter(customerSvc, registry, logger, cfg.StatsCfg.RefreshTimeout)
	if err != nil {
		return fmt.Errorf("failed to register statistics metrics - %w", err)
	}

	scheduler, err := jobs.Schedule(cfg.StatsCfg.RefreshSchedule, exporter)
	if err != nil {
		return err
	}
	defer func() {
		<-scheduler.Stop().Done()
	}()

	app, err := infra.Router(cfg, infra.RouterDeps{
		CustomerSvc:  customerSvc,
		PhotoStorage: photoStorage,
		Registry:     registry,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	return serve(app, cfg.HTTPCfg, logger)
}

func stores(
	ctx context.Context,
	cfg config.Config,
	logger logrus.FieldLogger,
	res *resources,
) (repository.CustomerRepository, storage.PhotoStorage, error) {
	var (
		customerRepo repository.CustomerRepository
		mongoDB      *mongo.Database
		err          error
	)

	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		res.mongoClient, err = infra.Mongodb(ctx, cfg.MongoCfg)
		if err != nil {
			return nil, nil, err
		}
		mongoDB = res.mongoClient.Database(cfg.MongoCfg.Database)

		mongoRepo := repository.NewMongoCustomerRepository(mongoDB)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to create customers indexes - %w", err)
		}
		customerRepo = mongoRepo
	case config.StoreDriverPostgres:
		if err := infra.MigratePostgresql(cfg.PostgresCfg); err != nil {
			return nil, nil, err
		}

		res.pgPool, err = infra.Postgresql(ctx, cfg.PostgresCfg)
		if err != nil {
			return nil, nil, err
		}
		customerRepo = repository.NewPostgresCustomerRepository(res.pgPool)
	}

	locator := storage.NewLocator(cfg.PhotoCfg.PublicBaseURL)

	var photoStorage storage.PhotoStorage
	switch cfg.PhotoCfg.Driver {
	case config.PhotoStorageGridFS:
		photoStorage = storage.NewGridFSPhotoStorage(mongoDB, locator, logger)
	case config.PhotoStorageFilesystem:
		photoStorage, err = storage.NewFilesystemPhotoStorage(cfg.PhotoCfg.Path, locator, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	return customerRepo, photoStorage, nil
}

func serve(app *echo.Echo, cfg config.HTTPCfg, logger logrus.FieldLogger) error {
	shutdownCh := make(chan os.Signal, 1)
	errorCh := make(chan error, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("starting server on port %d", cfg.Port)
		errorCh <- app.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	select {
	case <-shutdownCh:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutdown signal has been sent, stopping the server...")
		if err := app.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server gracefully - %w", err)
		}
		return nil
	case err := <-errorCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
