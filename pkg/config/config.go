package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Pipeline PipelineConfig
	OTEL     OTELConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
	Env  string
}

// DatabaseConfig holds feed store (PostgreSQL) configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds distributed cache tier configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// CacheConfig holds tiered cache configuration
type CacheConfig struct {
	LocalCapacity      int
	CleanupInterval    time.Duration
	ResultTTL          time.Duration // assembled recommendations and feed data
	NoDataTTL          time.Duration // "no data found" placeholders
	RemoteGetTimeout   time.Duration
	RemoteMGetTimeout  time.Duration
	RemoteWriteTimeout time.Duration
}

// PipelineConfig bounds the serving pipeline: admission gate, scoring pool,
// per-layer deadlines and batch limits
type PipelineConfig struct {
	GateCapacity    int64
	FetchTimeout    time.Duration
	FeedRecordLimit int

	ScoringWorkers int
	ScoringTimeout time.Duration

	RequestTimeout time.Duration

	MaxBatchSize   int
	BatchChunkSize int

	MaxWarmSize   int
	WarmChunkSize int
	WarmPause     time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Env:  getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "activity_feeds"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),
		},
		Cache: CacheConfig{
			LocalCapacity:      getEnvAsInt("CACHE_LOCAL_CAPACITY", 1000),
			CleanupInterval:    getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
			ResultTTL:          getEnvAsDuration("CACHE_RESULT_TTL", time.Hour),
			NoDataTTL:          getEnvAsDuration("CACHE_NO_DATA_TTL", 5*time.Minute),
			RemoteGetTimeout:   getEnvAsDuration("CACHE_REMOTE_GET_TIMEOUT", 2*time.Second),
			RemoteMGetTimeout:  getEnvAsDuration("CACHE_REMOTE_MGET_TIMEOUT", 3*time.Second),
			RemoteWriteTimeout: getEnvAsDuration("CACHE_REMOTE_WRITE_TIMEOUT", time.Second),
		},
		Pipeline: PipelineConfig{
			GateCapacity:    int64(getEnvAsInt("FETCH_GATE_CAPACITY", 100)),
			FetchTimeout:    getEnvAsDuration("FETCH_TIMEOUT", 5*time.Second),
			FeedRecordLimit: getEnvAsInt("FEED_RECORD_LIMIT", 100),
			ScoringWorkers:  getEnvAsInt("SCORING_WORKERS", runtime.NumCPU()),
			ScoringTimeout:  getEnvAsDuration("SCORING_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
			MaxBatchSize:    getEnvAsInt("MAX_BATCH_SIZE", 100),
			BatchChunkSize:  getEnvAsInt("BATCH_CHUNK_SIZE", 15),
			MaxWarmSize:     getEnvAsInt("MAX_WARM_SIZE", 500),
			WarmChunkSize:   getEnvAsInt("WARM_CHUNK_SIZE", 20),
			WarmPause:       getEnvAsDuration("WARM_PAUSE", 250*time.Millisecond),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "recommendation-service"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
