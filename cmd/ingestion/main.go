package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/marketingest/internal/ingestion/application"
	"github.com/wyfcoding/marketingest/internal/ingestion/domain"
	"github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/persistence/mysql"
	persistence_redis "github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/persistence/redis"
	"github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/provider"
	"github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/provider/csvfile"
	"github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/provider/httpapi"
	"github.com/wyfcoding/marketingest/internal/ingestion/infrastructure/quarantine"
	httpserver "github.com/wyfcoding/marketingest/internal/ingestion/interfaces/http"
	"github.com/wyfcoding/marketingest/internal/ingestion/interfaces/progress"
	"github.com/wyfcoding/marketingest/pkg/cache"
	"github.com/wyfcoding/marketingest/pkg/config"
	"github.com/wyfcoding/marketingest/pkg/db"
	"github.com/wyfcoding/marketingest/pkg/logger"
	"github.com/wyfcoding/marketingest/pkg/metrics"
	"github.com/wyfcoding/marketingest/pkg/middleware"
	"github.com/wyfcoding/marketingest/pkg/mq"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/ingestion/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting ingestion service",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. Metrics
	metricsImpl := metrics.New(cfg.ServiceName)
	if cfg.Metrics.Enabled {
		go func() {
			if err := metricsImpl.ExposeHTTP(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				logger.Error(ctx, "Metrics server exited", "error", err)
			}
		}()
	}

	// 4. Database
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to connect database", "error", err)
	}
	defer database.Close()

	// Auto Migrate
	if cfg.Environment == "dev" {
		if err := database.AutoMigrate(mysql.AllModels()...); err != nil {
			logger.Error(ctx, "Failed to migrate database", "error", err)
		}
	}

	// 5. State repository, optionally fronted by Redis
	var states domain.StateRepository = mysql.NewStateRepository(database)
	if cfg.Redis.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to connect redis", "error", err)
		}
		defer redisCache.Close()
		states = persistence_redis.NewCachedStateRepository(states, redisCache)
	}

	// 6. Progress reporting, Kafka publication is optional
	var reporter domain.ProgressReporter = progress.NewLogReporter()
	var kafkaReporter *progress.KafkaReporter
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to create kafka producer", "error", err)
		}
		defer producer.Close()
		kafkaReporter = progress.NewKafkaReporter(producer, cfg.Kafka.ProgressTopic)
		reporter = progress.NewMultiReporter(progress.NewLogReporter(), kafkaReporter)
	}

	// 7. Quarantine sink and providers
	sink, err := quarantine.NewFileSink(cfg.Ingestion.QuarantineDir)
	if err != nil {
		logger.Fatal(ctx, "Failed to create quarantine sink", "error", err)
	}

	registry := provider.NewRegistry()
	registry.Register("httpapi", httpapi.New(
		config.GetEnv("MARKETINGEST_PROVIDER_URL", "http://localhost:9000"),
		os.Getenv("MARKETINGEST_PROVIDER_API_KEY"),
	))
	registry.Register("csvfile", csvfile.New(config.GetEnv("MARKETINGEST_BACKFILL_ROOT", "backfill")))
	logger.Info(ctx, "Providers registered", "providers", registry.Names())

	// 8. Application service
	loader := mysql.NewStorageLoader(database)
	service := application.NewIngestionService(registry, loader, sink, states, reporter, metricsImpl, application.Defaults{
		ChunkSize:      cfg.Ingestion.DefaultChunkSize,
		MaxRetries:     cfg.Ingestion.DefaultMaxRetries,
		BackoffMin:     time.Duration(cfg.Ingestion.BackoffMin) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.Ingestion.BackoffMax) * time.Millisecond,
		InFlightLimit:  cfg.Ingestion.InFlightLimit,
		ExtractTimeout: time.Duration(cfg.Ingestion.ExtractTimeout) * time.Second,
		StoreTimeout:   time.Duration(cfg.Ingestion.StoreTimeout) * time.Second,
	})

	// 9. HTTP interface
	gin.SetMode(gin.ReleaseMode)
	if cfg.Environment == "dev" {
		gin.SetMode(gin.DebugMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogging())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName, "version": cfg.Version})
	})

	handler := httpserver.NewIngestionHandler(service)
	handler.RegisterRoutes(r.Group("/api"))

	// 10. Start with graceful shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	g, gCtx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info(ctx, "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
		// 取消运行中任务并等待编排器落盘最终状态
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Ingestion service shutdown timed out", "error", err)
		}
		if kafkaReporter != nil {
			kafkaReporter.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal(ctx, "Service exited with error", "error", err)
	}
	logger.Info(ctx, "Service stopped")
}
