package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.Equal(t, 10240, cfg.MessageMaxSize)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}
