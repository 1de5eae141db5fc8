// Package config loads server configuration from the environment, optionally
// seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Shivanand-hulikatti/event-presale/internal/database"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// RateLimit configures the Redis token bucket guarding admission endpoints.
type RateLimit struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// Redis holds connection settings for the rate limiter.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Config is the full server configuration.
type Config struct {
	Env         string
	Port        string
	LogLevel    string
	StoreDriver string
	DataDir     string
	Database    database.Config
	CORSOrigins []string
	AdminSecret string
	// EnforceTimeWindows makes register and purchase re-check their windows
	// against the server clock.
	EnforceTimeWindows bool
	Redis              Redis
	RateLimit          RateLimit
	AMQPURL            string
	SeedFile           string
}

// IsProduction reports whether internal error detail must be withheld.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	env := getEnv("APP_ENV", "development")
	defaultOrigins := "http://localhost:5173,http://localhost:5174"
	if env == "production" {
		defaultOrigins = ""
	}

	return Config{
		Env:         env,
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StoreDriver: getEnv("STORE_DRIVER", StoreFile),
		DataDir:     getEnv("DATA_DIR", "./data"),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "presale"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", defaultOrigins)),
		AdminSecret:        getEnv("ADMIN_JWT_SECRET", "dev-secret-key-change-in-production"),
		EnforceTimeWindows: getEnvAsBool("ENFORCE_TIME_WINDOWS", false),
		Redis: Redis{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimit: RateLimit{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Capacity:       getEnvAsInt("RATE_LIMIT_CAPACITY", 20),
			RefillTokens:   getEnvAsInt("RATE_LIMIT_REFILL_TOKENS", 5),
			RefillInterval: getEnvAsDuration("RATE_LIMIT_REFILL_INTERVAL", time.Second),
			TTL:            getEnvAsDuration("RATE_LIMIT_TTL", 10*time.Minute),
		},
		AMQPURL:  getEnv("AMQP_URL", ""),
		SeedFile: getEnv("SEED_FILE", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid integer, using default")
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid boolean, using default")
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", v).Msg("invalid duration, using default")
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
