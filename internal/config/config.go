package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"impex-service/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Store drivers
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	// Server
	Port           string `yaml:"port"`
	Environment    string `yaml:"environment"`
	LogLevel       string `yaml:"log_level"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Storage
	StoreDriver   string `yaml:"store_driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`

	// Database
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"-"`
	DBName     string `yaml:"db_name"`
	DBSSLMode  string `yaml:"db_sslmode"`

	// Cache
	RedisURL string        `yaml:"redis_url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Events
	NATSURL       string `yaml:"nats_url"`
	EventsEnabled bool   `yaml:"events_enabled"`

	// Drop folder
	ImportWatchDir string `yaml:"import_watch_dir"`
}

// Defaults returns the built-in settings
func Defaults() *Config {
	return &Config{
		Port:           "8083",
		Environment:    "development",
		LogLevel:       "info",
		MaxUploadBytes: 32 << 20,
		StoreDriver:    DriverMongo,
		MongoURI:       "mongodb://localhost:27017",
		MongoDatabase:  "impex",
		DBHost:         "localhost",
		DBPort:         5432,
		DBUser:         "postgres",
		DBName:         "impex_db",
		DBSSLMode:      "disable",
		RedisURL:       "redis://localhost:6379",
		CacheTTL:       repository.DefaultRecordCacheTTL,
		NATSURL:        "nats://nats.nats.svc.cluster.local:4222",
		EventsEnabled:  true,
	}
}

// Load builds the configuration from the defaults, the optional YAML file
// named by CONFIG_FILE and finally the environment.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MaxUploadBytes = getEnvInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", cfg.StoreDriver))
	cfg.MongoURI = getEnv("MONGO_URI", cfg.MongoURI)
	cfg.MongoDatabase = getEnv("MONGO_DATABASE", cfg.MongoDatabase)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = int(getEnvInt64("DB_PORT", int64(cfg.DBPort)))
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSLMODE", cfg.DBSSLMode)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = ttl
	}

	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	if v := os.Getenv("EVENTS_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVENTS_ENABLED %q: %w", v, err)
		}
		cfg.EventsEnabled = enabled
	}

	cfg.ImportWatchDir = getEnv("IMPORT_WATCH_DIR", cfg.ImportWatchDir)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML in '%s': %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q (want %s, %s or %s)", c.StoreDriver, DriverMongo, DriverPostgres, DriverMemory)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// NewLogger builds the service logger
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// InitDB opens postgres and migrates one document table per collection
func InitDB(cfg *Config, log *logrus.Logger, collections ...string) (*gorm.DB, error) {
	if cfg.DBPassword == "" {
		cfg.DBPassword = secrets.GetDBPassword()
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := repository.MigrateDocuments(db, collections...); err != nil {
		// Don't fail startup, just log the warning
		log.WithError(err).Warn("Auto-migration failed")
	} else {
		log.Info("Database schema migration completed")
	}

	return db, nil
}

// InitMongo connects to MongoDB and pings the primary
func InitMongo(ctx context.Context, cfg *Config) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(cfg.MongoDatabase), nil
}

// InitRedis returns a connected client, or nil when Redis is unreachable so
// that the stores run without a cache.
func InitRedis(ctx context.Context, cfg *Config, log *logrus.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Failed to parse Redis URL, falling back to localhost")
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisOpts.Password = secrets.GetRedisPassword()
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to Redis (caching will be disabled)")
		_ = client.Close()
		return nil
	}

	log.Info("Redis connected successfully")
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
