package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/ksuid"
)

// Supported document store backends
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
)

type Config struct {
	// Document store selection
	DocumentStore string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBLogLevel string

	SQLitePath string

	MongoURI      string
	MongoDatabase string

	ServerPort string
	ServerHost string
	StaticDir  string

	// Auth
	JWTSecret      string
	TokenTTL       time.Duration
	AllowAnonymous bool

	// Presence mirror (disabled when RedisURL is empty)
	RedisURL    string
	PresenceTTL time.Duration
	InstanceID  string

	// Persistence worker pool configuration
	PersistWorkers   int
	PersistQueueSize int
	StoreTimeout     time.Duration

	// Per-connection outbound buffer
	SendBufferSize int

	// Observability
	TracingEnabled bool
	JaegerEndpoint string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DocumentStore: strings.ToLower(getEnv("DOCUMENT_STORE", StorePostgres)),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "collab_editor"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		SQLitePath: getEnv("SQLITE_PATH", "collab.db"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "collab_editor"),

		ServerPort: getEnv("SERVER_PORT", "5000"),
		ServerHost: getEnv("SERVER_HOST", "localhost"),
		StaticDir:  getEnv("STATIC_DIR", "./client"),

		JWTSecret:      getEnv("JWT_SECRET", ""),
		TokenTTL:       time.Duration(getEnvInt("TOKEN_TTL_MINUTES", 60)) * time.Minute,
		AllowAnonymous: getEnvBool("ALLOW_ANONYMOUS", false),

		RedisURL:    getEnv("REDIS_URL", ""),
		PresenceTTL: time.Duration(getEnvInt("PRESENCE_TTL_SECONDS", 120)) * time.Second,
		InstanceID:  getEnv("INSTANCE_ID", ksuid.New().String()),

		PersistWorkers:   getEnvInt("PERSIST_WORKERS", 4),
		PersistQueueSize: getEnvInt("PERSIST_QUEUE_SIZE", 256),
		StoreTimeout:     time.Duration(getEnvInt("STORE_TIMEOUT_SECONDS", 5)) * time.Second,

		SendBufferSize: getEnvInt("SEND_BUFFER_SIZE", 256),

		TracingEnabled: getEnvBool("TRACING_ENABLED", true),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	switch c.DocumentStore {
	case StorePostgres, StoreSQLite, StoreMongo:
	default:
		return fmt.Errorf("unsupported DOCUMENT_STORE %q (want postgres, sqlite or mongo)", c.DocumentStore)
	}

	if c.PersistWorkers < 1 {
		return fmt.Errorf("PERSIST_WORKERS must be at least 1")
	}
	if c.PersistQueueSize < 1 || c.SendBufferSize < 1 {
		return fmt.Errorf("PERSIST_QUEUE_SIZE and SEND_BUFFER_SIZE must be positive")
	}

	return nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.ServerHost, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
