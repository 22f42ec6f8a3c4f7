// Package config reads storefront settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort string
	GRPCPort string
	LogLevel string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CatalogDBPath         string
	CatalogMigrationsPath string

	PostgresHost              string
	PostgresPort              int
	PostgresUser              string
	PostgresPassword          string
	PostgresDB                string
	TestimonialMigrationsPath string

	KafkaBrokers  []string
	CheckoutTopic string

	JWTSecret string
	TokenTTL  time.Duration

	SessionIdleTTL         time.Duration
	SessionCleanupInterval time.Duration
	CookieSecure           bool

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
}

// Load reads the given env files (".env" when none are named) and then the
// process environment. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var errs []error
	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "fruitopia"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0, &errs),

		CatalogDBPath:         getEnv("CATALOG_DB_PATH", "./fruitopia.db"),
		CatalogMigrationsPath: getEnv("CATALOG_MIGRATIONS_PATH", "./internal/catalog/migrations"),

		PostgresHost:              getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:              getEnvInt("POSTGRES_PORT", 5432, &errs),
		PostgresUser:              getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:          getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:                getEnv("POSTGRES_DB", "fruitopia"),
		TestimonialMigrationsPath: getEnv("TESTIMONIAL_MIGRATIONS_PATH", "./internal/testimonial/migrations"),

		KafkaBrokers:  getEnvList("KAFKA_BROKERS"),
		CheckoutTopic: getEnv("CHECKOUT_TOPIC", "checkout-events"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour, &errs),

		SessionIdleTTL:         getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute, &errs),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Minute, &errs),
		CookieSecure:           getEnvBool("COOKIE_SECURE", false, &errs),

		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second, &errs),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
		MaxRequestBodySize: 1 << 20, // 1MB
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool, errs *[]error) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return b
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
