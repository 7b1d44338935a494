package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"gorm.io/gorm"

	"impex-service/internal/config"
	"impex-service/internal/events"
	"impex-service/internal/handlers"
	"impex-service/internal/impex"
	"impex-service/internal/repository"
	"impex-service/internal/schema"
	"impex-service/internal/validation"
	"impex-service/internal/watcher"
)

// @title Bulk Import API
// @version 1.0.0
// @description Bulk CSV/JSON import and partial-merge updates for product categories and return orders

// @contact.name Impex API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8083
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}
	logger := cfg.NewLogger()

	descriptors := []*schema.Descriptor{schema.NewCategory(), schema.NewReturnOrder()}

	backends, err := openBackends(cfg, logger, descriptors)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	// Initialize NATS events publisher
	var publisher handlers.EventPublisher
	var eventsPublisher *events.Publisher
	if cfg.EventsEnabled {
		subjects := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			subjects = append(subjects, d.Subject())
		}
		eventsPublisher, err = events.NewPublisher(cfg.NATSURL, subjects, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize events publisher (events won't be published)")
		} else {
			publisher = eventsPublisher
			logger.Info("NATS events publisher initialized")
		}
	}

	// One pipeline per record type, sharing the validator
	validate := validation.New()
	pipelines := make([]*impex.Pipeline, 0, len(descriptors))
	for _, d := range descriptors {
		store := repository.NewCachedStore(backends.storeFor(d), backends.redis, d, cfg.CacheTTL, logger.WithField("component", "repository"))
		pipelines = append(pipelines, impex.NewPipeline(d, store, logger.WithField("service", "impex-service"), impex.WithValidator(validate)))
	}

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Content-Length"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck)

	v1 := router.Group("/api/v1")
	for _, p := range pipelines {
		handlers.NewImportHandler(p, publisher, cfg.MaxUploadBytes, logger).RegisterRoutes(v1)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Drop-folder imports
	var dropWatcher *watcher.DropWatcher
	if cfg.ImportWatchDir != "" {
		importers := make([]watcher.Importer, 0, len(pipelines))
		for _, p := range pipelines {
			importers = append(importers, p)
		}
		var wp watcher.EventPublisher
		if eventsPublisher != nil {
			wp = eventsPublisher
		}
		dropWatcher = watcher.New(cfg.ImportWatchDir, importers, wp, logger)
		if err := dropWatcher.Start(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to start drop-folder watcher")
			dropWatcher = nil
		}
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		logger.Infof("Starting impex-service on port %s (store: %s)", cfg.Port, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down impex-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	if dropWatcher != nil {
		dropWatcher.Stop()
		logger.Info("Drop-folder watcher stopped")
	}

	if eventsPublisher != nil {
		eventsPublisher.Close()
		logger.Info("Events publisher closed")
	}

	backends.close(ctx, logger)
	logger.Info("impex-service stopped")
}

// backends holds the open storage connections
type backends struct {
	driver  string
	mongo   *mongo.Client
	mongoDB *mongo.Database
	gormDB  *gorm.DB
	redis   *redis.Client
	logger  *logrus.Entry
}

func openBackends(cfg *config.Config, logger *logrus.Logger, descriptors []*schema.Descriptor) (*backends, error) {
	b := &backends{
		driver: cfg.StoreDriver,
		logger: logger.WithField("component", "repository"),
	}

	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := config.InitMongo(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		b.mongo, b.mongoDB = client, db
		logger.WithField("database", cfg.MongoDatabase).Info("MongoDB connected successfully")
	case config.DriverPostgres:
		collections := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			collections = append(collections, d.Collection())
		}
		db, err := config.InitDB(cfg, logger, collections...)
		if err != nil {
			return nil, err
		}
		b.gormDB = db
	case config.DriverMemory:
		logger.Warn("Using in-memory store, records are lost on restart")
	}

	b.redis = config.InitRedis(context.Background(), cfg, logger)
	return b, nil
}

func (b *backends) storeFor(d *schema.Descriptor) repository.Store {
	switch b.driver {
	case config.DriverMongo:
		return repository.NewMongoStore(b.mongoDB, d, b.logger)
	case config.DriverPostgres:
		return repository.NewGormStore(b.gormDB, d, b.logger)
	default:
		return repository.NewMemoryStore()
	}
}

func (b *backends) close(ctx context.Context, logger *logrus.Logger) {
	if b.mongo != nil {
		if err := b.mongo.Disconnect(ctx); err != nil {
			logger.WithError(err).Warn("Failed to disconnect MongoDB")
		}
	}
	if b.gormDB != nil {
		if sqlDB, err := b.gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if b.redis != nil {
		b.redis.Close()
	}
}
