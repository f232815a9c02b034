package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string
	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Admin    AdminConfig
	Outbox   OutboxConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds the discount-policy cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// KafkaConfig holds the order-events stream configuration
type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	ConsumerGroup string
}

// AdminConfig points at the sibling admin service. All calls to it are
// best-effort; Timeout bounds each attempt.
type AdminConfig struct {
	BaseURL string
	Timeout time.Duration
}

// OutboxConfig tunes the background delivery loops
type OutboxConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	MaxRetries      int
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))

	value, err := strconv.Atoi(raw)

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, defaultValue.String())

	value, err := time.ParseDuration(raw)

	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}

// Load reads the configuration from environment variables, after loading an
// optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)

	if err != nil {
		return nil, err
	}

	dbPort, err := getEnvInt("DB_PORT", 5432)

	if err != nil {
		return nil, err
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)

	if err != nil {
		return nil, err
	}

	cacheTTL, err := getEnvDuration("POLICY_CACHE_TTL", 2*time.Minute)

	if err != nil {
		return nil, err
	}

	adminTimeout, err := getEnvDuration("ADMIN_TIMEOUT", 5*time.Second)

	if err != nil {
		return nil, err
	}

	outboxInterval, err := getEnvDuration("OUTBOX_POLL_INTERVAL", 5*time.Second)

	if err != nil {
		return nil, err
	}

	outboxBatch, err := getEnvInt("OUTBOX_BATCH_SIZE", 10)

	if err != nil {
		return nil, err
	}

	outboxRetries, err := getEnvInt("OUTBOX_MAX_RETRIES", 3)

	if err != nil {
		return nil, err
	}

	return &Config{
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      cacheTTL,
		},
		Kafka: KafkaConfig{
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			OrdersTopic:   getEnv("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "storefront-api"),
		},
		Admin: AdminConfig{
			BaseURL: getEnv("ADMIN_BASE_URL", "http://localhost:9090"),
			Timeout: adminTimeout,
		},
		Outbox: OutboxConfig{
			PollingInterval: outboxInterval,
			BatchSize:       outboxBatch,
			MaxRetries:      outboxRetries,
		},
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
