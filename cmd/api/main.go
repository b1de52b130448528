package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/gocomet/rider-service/internal/api/handlers"
	"github.com/gocomet/rider-service/internal/api/routes"
	"github.com/gocomet/rider-service/internal/bootstrap"
	"github.com/gocomet/rider-service/internal/config"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/internal/repository/memory"
	"github.com/gocomet/rider-service/internal/repository/redisgeo"
	"github.com/gocomet/rider-service/internal/service/availability"
	"github.com/gocomet/rider-service/internal/service/onboarding"
	"github.com/gocomet/rider-service/pkg/auth"
	"github.com/gocomet/rider-service/pkg/cache"
	"github.com/gocomet/rider-service/pkg/database"
	apperrors "github.com/gocomet/rider-service/pkg/errors"
	"github.com/gocomet/rider-service/pkg/events"
	"github.com/gocomet/rider-service/pkg/logger"
	"github.com/gocomet/rider-service/pkg/monitoring"
	"github.com/gocomet/rider-service/pkg/websocket"
)

const poolStatsInterval = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger, err := bootstrap.Logger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting GoComet Rider Service",
		logger.String("env", cfg.Server.Env),
		logger.String("port", cfg.Server.Port),
		logger.String("storage", cfg.Storage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize New Relic
	nrApp, err := monitoring.New(monitoring.Config{
		LicenseKey: cfg.NewRelic.LicenseKey,
		AppName:    cfg.NewRelic.AppName,
		Enabled:    cfg.NewRelic.Enabled,
		LogLevel:   cfg.NewRelic.LogLevel,
	})
	if err != nil {
		appLogger.Warn("Failed to initialize New Relic", logger.Err(err))
		nrApp = monitoring.Disabled()
	} else if nrApp.IsEnabled() {
		appLogger.Info("New Relic APM initialized successfully",
			logger.String("app_name", cfg.NewRelic.AppName),
			logger.Bool("enabled", true))
	} else {
		appLogger.Info("New Relic APM disabled")
	}
	defer nrApp.Shutdown(10 * time.Second)

	// Initialize profile storage
	repo, postgresDB, err := bootstrap.Profiles(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to open profile storage", logger.Err(err))
	}
	if postgresDB != nil {
		defer postgresDB.Close()
		appLogger.Info("Connected to PostgreSQL successfully")
	}

	// Location index and delivery idempotency live in Redis, except for in-memory runs
	var (
		redisClient *redis.Client
		locations   rider.LocationIndex
		deliveries  onboarding.DeliveryGuard
	)
	if cfg.Storage.Driver == config.StorageMemory {
		locations = memory.NewLocationIndex()
		deliveries = memory.NewDeliveryGuard()
		appLogger.Warn("Running with in-memory storage; data is lost on restart")
	} else {
		redisClient, err = bootstrap.Redis(ctx, cfg)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", logger.Err(err))
		}
		defer cache.Close(redisClient)
		locations = redisgeo.NewLocationIndex(redisClient)
		deliveries = redisgeo.NewDeliveryGuard(redisClient, cfg.Stats.IdempotencyTTL)
		appLogger.Info("Connected to Redis successfully")
	}

	// Initialize blob storage
	blobs, err := bootstrap.Blobs(ctx, cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize blob storage", logger.Err(err))
	}

	// Initialize domain event publisher
	var publisher events.Publisher = events.Noop{}
	kafkaCfg := events.KafkaConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.TopicPrefix,
		GroupID:     cfg.Kafka.ConsumerGroup,
	}
	if cfg.Kafka.Enabled && cfg.Features.EnableDomainEvents {
		publisher = events.NewKafkaPublisher(kafkaCfg)
		appLogger.Info("Kafka publisher initialized", logger.Any("brokers", cfg.Kafka.Brokers))
	}
	defer publisher.Close()

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(appLogger)
	go wsHub.Run(ctx)

	var notifier onboarding.Notifier
	if cfg.Features.EnableRealTimeUpdates {
		notifier = wsHub
	}

	// Initialize services
	onboardSvc := onboarding.NewService(onboarding.Dependencies{
		Repository: repo,
		Locations:  locations,
		Blobs:      blobs,
		Publisher:  publisher,
		Notifier:   notifier,
		Deliveries: deliveries,
		Metrics:    nrApp,
		Logger:     appLogger,
	}, onboarding.Config{
		MaxUpdateAttempts: cfg.Stats.MaxUpdateAttempts,
		BlobDeleteTimeout: cfg.BlobStore.DeleteTimeout,
		BlobFolder:        cfg.BlobStore.KeyPrefix,
	})

	availabilitySvc := availability.NewService(repo, locations, nrApp, appLogger, availability.Config{
		DefaultRadiusMeters:       cfg.Availability.DefaultRadiusMeters,
		MaxRadiusMeters:           cfg.Availability.MaxRadiusMeters,
		CandidateBatch:            cfg.Availability.CandidateBatch,
		TopPerformerMinDeliveries: cfg.Availability.TopPerformerMinDeliveries,
		DefaultTopLimit:           cfg.Availability.DefaultTopLimit,
		MaxTopLimit:               cfg.Availability.MaxTopLimit,
	})

	if cfg.Availability.RebuildIndexOnStart {
		indexed, err := availabilitySvc.RebuildIndex(ctx)
		if err != nil {
			appLogger.Error("Failed to rebuild location index", logger.Err(err))
		} else {
			appLogger.Info("Location index rebuilt", logger.Int("riders", indexed))
		}
	}

	// Delivery outcomes from the dispatch system
	if cfg.Kafka.Enabled && cfg.Features.EnableDeliveryConsume {
		go events.Consume(ctx, kafkaCfg, events.TopicDeliveryCompleted, appLogger, onboardSvc.HandleDeliveryEvent, apperrors.IsRetryable)
		appLogger.Info("Delivery consumer started", logger.String("topic", cfg.Kafka.TopicPrefix+events.TopicDeliveryCompleted))
	}

	if nrApp.IsEnabled() {
		go recordPoolStats(ctx, nrApp, postgresDB, redisClient)
	}

	tokens, err := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)
	if err != nil {
		appLogger.Fatal("Failed to initialize token validation", logger.Err(err))
	}

	// Initialize handlers with dependencies
	h := handlers.NewHandlers(onboardSvc, availabilitySvc, wsHub, tokens, appLogger, handlers.UploadConfig{
		MaxFileSize: cfg.Upload.MaxFileSize,
		TempDir:     cfg.Upload.TempDir,
	}, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize)
	h.Checks = map[string]handlers.DependencyCheck{}
	if postgresDB != nil {
		h.Checks["postgres"] = func(ctx context.Context) error { return database.Ping(ctx, postgresDB) }
	}
	if redisClient != nil {
		h.Checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	// Initialize Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.MaxMultipartMemory = cfg.Upload.MaxFileSize

	// Setup all routes
	var nrApplication *newrelic.Application
	if nrApp.IsEnabled() {
		nrApplication = nrApp.Application
	}
	routes.SetupRoutes(router, h, nrApplication, routes.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
	})

	appLogger.Info("Routes configured successfully")

	// Create HTTP server
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		appLogger.Info("Server starting", logger.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", logger.Err(err))
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", logger.Err(err))
	}

	// Let in-flight blob deletions finish before the process exits
	onboardSvc.Wait()

	appLogger.Info("Server stopped gracefully")
}

// recordPoolStats reports connection pool usage until ctx is done
func recordPoolStats(ctx context.Context, nrApp *monitoring.NewRelicApp, db *sql.DB, redisClient *redis.Client) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if db != nil {
				nrApp.RecordDatabasePoolStats(db.Stats())
			}
			if redisClient != nil {
				nrApp.RecordRedisPoolStats(redisClient.PoolStats())
			}
		}
	}
}

var _ onboarding.Notifier = (*websocket.Hub)(nil)
