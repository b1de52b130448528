package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Storage      StorageConfig
	Redis        RedisConfig
	NewRelic     NewRelicConfig
	JWT          JWTConfig
	Log          LogConfig
	BlobStore    BlobStoreConfig
	Kafka        KafkaConfig
	Availability AvailabilityConfig
	Stats        StatsConfig
	Upload       UploadConfig
	WebSocket    WebSocketConfig
	CORS         CORSConfig
	Features     FeatureFlags
}

type ServerConfig struct {
	Port            string
	Env             string
	Host            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Name           string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
	MaxIdleConns   int
	MaxLifetime    time.Duration
}

type StorageConfig struct {
	Driver string // postgres or memory
}

type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	MaxRetries  int
	PoolSize    int
	MinIdleConn int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

type NewRelicConfig struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

type JWTConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type BlobStoreConfig struct {
	Driver        string // s3 or memory
	Region        string
	Bucket        string
	Endpoint      string
	PublicBaseURL string
	KeyPrefix     string
	DeleteTimeout time.Duration
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicPrefix   string
	ConsumerGroup string
}

type AvailabilityConfig struct {
	DefaultRadiusMeters       float64
	MaxRadiusMeters           float64
	CandidateBatch            int
	TopPerformerMinDeliveries int
	DefaultTopLimit           int
	MaxTopLimit               int
	RebuildIndexOnStart       bool
}

type StatsConfig struct {
	IdempotencyTTL    time.Duration
	MaxUpdateAttempts int
}

type UploadConfig struct {
	MaxFileSize int64
	TempDir     string
}

type WebSocketConfig struct {
	ReadBufferSize    int
	WriteBufferSize   int
	HeartbeatInterval time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type FeatureFlags struct {
	EnableRealTimeUpdates bool
	EnableDomainEvents    bool
	EnableDeliveryConsume bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("SERVER_ENV", "development"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: parseDuration(getEnv("SERVER_SHUTDOWN_TIMEOUT", "30s"), 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvAsInt("DB_PORT", 5432),
			Name:           getEnv("DB_NAME", "riders"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 50),
			MaxIdleConns:   getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 10),
			MaxLifetime:    time.Duration(getEnvAsInt("DB_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StoragePostgres)),
		},
		Redis: RedisConfig{
			Host:        getEnv("REDIS_HOST", "localhost"),
			Port:        getEnv("REDIS_PORT", "6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			MaxRetries:  getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 50),
			MinIdleConn: 10,
			DialTimeout: 5 * time.Second,
			ReadTimeout: 3 * time.Second,
		},
		NewRelic: NewRelicConfig{
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			AppName:    getEnv("NEW_RELIC_APP_NAME", "GoComet-RiderService"),
			Enabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
			LogLevel:   getEnv("NEW_RELIC_LOG_LEVEL", "info"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your_jwt_secret_key_here"),
			Issuer: getEnv("JWT_ISSUER", "rider-service"),
			Expiry: parseDuration(getEnv("JWT_EXPIRY", "24h"), 24*time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", "stdout"),
		},
		BlobStore: BlobStoreConfig{
			Driver:        strings.ToLower(getEnv("BLOB_DRIVER", "s3")),
			Region:        getEnv("BLOB_S3_REGION", "af-south-1"),
			Bucket:        getEnv("BLOB_S3_BUCKET", ""),
			Endpoint:      getEnv("BLOB_S3_ENDPOINT", ""),
			PublicBaseURL: getEnv("BLOB_PUBLIC_BASE_URL", ""),
			KeyPrefix:     getEnv("BLOB_KEY_PREFIX", "riders"),
			DeleteTimeout: parseDuration(getEnv("BLOB_DELETE_TIMEOUT", "30s"), 30*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:       getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", "riders."),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "rider-service"),
		},
		Availability: AvailabilityConfig{
			DefaultRadiusMeters:       getEnvAsFloat64("AVAILABILITY_DEFAULT_RADIUS_METERS", 10000),
			MaxRadiusMeters:           getEnvAsFloat64("AVAILABILITY_MAX_RADIUS_METERS", 50000),
			CandidateBatch:            getEnvAsInt("AVAILABILITY_CANDIDATE_BATCH", 200),
			TopPerformerMinDeliveries: getEnvAsInt("TOP_PERFORMER_MIN_DELIVERIES", 10),
			DefaultTopLimit:           getEnvAsInt("TOP_PERFORMER_DEFAULT_LIMIT", 10),
			MaxTopLimit:               getEnvAsInt("TOP_PERFORMER_MAX_LIMIT", 100),
			RebuildIndexOnStart:       getEnvAsBool("REBUILD_LOCATION_INDEX_ON_START", false),
		},
		Stats: StatsConfig{
			IdempotencyTTL:    time.Duration(getEnvAsInt("STATS_IDEMPOTENCY_TTL_HOURS", 168)) * time.Hour,
			MaxUpdateAttempts: getEnvAsInt("PROFILE_MAX_UPDATE_ATTEMPTS", 3),
		},
		Upload: UploadConfig{
			MaxFileSize: int64(getEnvAsInt("UPLOAD_MAX_FILE_SIZE_MB", 10)) << 20,
			TempDir:     getEnv("UPLOAD_TEMP_DIR", os.TempDir()),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:    getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize:   getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			HeartbeatInterval: time.Duration(getEnvAsInt("WS_HEARTBEAT_INTERVAL_SECONDS", 30)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		},
		Features: FeatureFlags{
			EnableRealTimeUpdates: getEnvAsBool("ENABLE_REAL_TIME_UPDATES", true),
			EnableDomainEvents:    getEnvAsBool("ENABLE_DOMAIN_EVENTS", true),
			EnableDeliveryConsume: getEnvAsBool("ENABLE_DELIVERY_CONSUMER", true),
		},
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
	case StorageMemory:
		if c.Server.Env == "production" {
			return fmt.Errorf("STORAGE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver)
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWT.Secret == "your_jwt_secret_key_here" && c.Server.Env == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.BlobStore.Driver {
	case "s3":
		if c.BlobStore.Bucket == "" {
			return fmt.Errorf("BLOB_S3_BUCKET is required when BLOB_DRIVER=s3")
		}
	case "memory":
	default:
		return fmt.Errorf("BLOB_DRIVER must be \"s3\" or \"memory\", got %q", c.BlobStore.Driver)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	if c.Availability.DefaultRadiusMeters <= 0 || c.Availability.DefaultRadiusMeters > c.Availability.MaxRadiusMeters {
		return fmt.Errorf("AVAILABILITY_DEFAULT_RADIUS_METERS must be positive and at most AVAILABILITY_MAX_RADIUS_METERS")
	}
	if c.Upload.MaxFileSize <= 0 {
		return fmt.Errorf("UPLOAD_MAX_FILE_SIZE_MB must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
