package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, StoreFile, cfg.StoreDriver)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5174"}, cfg.CORSOrigins)
	assert.False(t, cfg.EnforceTimeWindows)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", StorePostgres)
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("ENFORCE_TIME_WINDOWS", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_LIMIT_CAPACITY", "not-a-number")
	t.Setenv("RATE_LIMIT_TTL", "90s")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.EnforceTimeWindows)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 20, cfg.RateLimit.Capacity)
	assert.Equal(t, 90*time.Second, cfg.RateLimit.TTL)
}
