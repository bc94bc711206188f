// Package config loads the server's environment-driven settings,
// following a .env-plus-environment-variables convention via
// github.com/joho/godotenv.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every environment-tunable knob the core needs. Values
// are reference defaults from the concurrency model (§5) unless
// overridden.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockTTL         time.Duration
	LockWaitTimeout time.Duration

	TurnTimeoutSeconds int

	CacheSize int
}

// Load reads a .env file if present (missing is not an error, mirroring
// godotenv's typical dev-convenience usage) and then overlays process
// environment variables, which always take precedence.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	cfg := &Config{
		RedisAddr:           getEnv("GAMECORE_REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("GAMECORE_REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("GAMECORE_REDIS_DB", 0),
		LockTTL:             getEnvDuration("GAMECORE_LOCK_TTL", 5*time.Second),
		LockWaitTimeout:     getEnvDuration("GAMECORE_LOCK_WAIT_TIMEOUT", 2*time.Second),
		TurnTimeoutSeconds:  getEnvInt("GAMECORE_TURN_TIMEOUT_SECONDS", 30),
		CacheSize:           getEnvInt("GAMECORE_CACHE_SIZE", 1024),
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
