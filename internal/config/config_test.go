package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.ActionTimeout())
	assert.Equal(t, 5*time.Second, cfg.DisplayTimeout())
	assert.Equal(t, 10*time.Second, cfg.LowAvailabilityAfter())
	assert.Equal(t, 15*time.Second, cfg.BotFallbackAfter())
	assert.Equal(t, 500*time.Millisecond, cfg.StartingGrace())
	assert.Equal(t, time.Second, cfg.RateLimitWindow())
	assert.Equal(t, 10, cfg.RateLimitBudget)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KOIKOI_ACTION_TIMEOUT_SEC", "7")
	t.Setenv("KOIKOI_RATE_LIMIT_BUDGET", "not-a-number")

	cfg := LoadFromEnv()
	assert.Equal(t, 7*time.Second, cfg.ActionTimeout())
	assert.Equal(t, 10, cfg.RateLimitBudget, "bad value falls back to default")
}

func TestValidateRequiresHandoffSecretInProduction(t *testing.T) {
	cfg := &Config{Env: "production"}
	require.Error(t, cfg.Validate())

	cfg.HandoffSecret = "s3cret"
	require.NoError(t, cfg.Validate())

	dev := &Config{Env: "development"}
	require.NoError(t, dev.Validate())
}
