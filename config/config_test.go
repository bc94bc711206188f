package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/.env")
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", cfg.RedisAddr)
	require.Equal(t, 5*time.Second, cfg.LockTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GAMECORE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("GAMECORE_TURN_TIMEOUT_SECONDS", "45")

	cfg, err := Load("/nonexistent/path/.env")
	require.NoError(t, err)
	require.Equal(t, "redis.internal:6380", cfg.RedisAddr)
	require.Equal(t, 45, cfg.TurnTimeoutSeconds)

	os.Unsetenv("GAMECORE_REDIS_ADDR")
	os.Unsetenv("GAMECORE_TURN_TIMEOUT_SECONDS")
}
