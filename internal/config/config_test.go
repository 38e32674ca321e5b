package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "PORT", "APP_ENV", "JWT_SECRET", "STORE_DRIVER", "STATS_CACHE_TTL", "GEMINI_API_KEY", "CORS_ORIGINS")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 60*time.Second, cfg.StatsCacheTTL)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "development falls back to a dev secret")
	assert.False(t, cfg.AIEnabled())
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:4173"}, cfg.AllowedOrigins)
}

func TestLoad_ProductionRequiresJWTSecret(t *testing.T) {
	clearEnv(t, "JWT_SECRET")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("JWT_SECRET", "x")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "x", cfg.Auth.JWTSecret)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":            "eighty",
		"STATS_CACHE_TTL": "soon",
		"STORE_DRIVER":    "postgres",
		"RATE_LIMIT_RPS":  "fast",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_OutOfRangeValues(t *testing.T) {
	cases := []struct{ key, value string }{
		{"STREAM_INTERVAL", "0s"},
		{"STREAM_HEARTBEAT", "-1s"},
		{"STATS_CACHE_TTL", "0s"},
		{"TOKEN_TTL", "-24h"},
		{"AI_RETRY_DELAY", "0s"},
		{"AI_MAX_RETRIES", "-1"},
		{"AI_MAX_RETRIES", "64"},
		{"RATE_LIMIT_RPS", "0"},
		{"RATE_LIMIT_BURST", "0"},
	}
	for _, c := range cases {
		t.Run(c.key+"="+c.value, func(t *testing.T) {
			t.Setenv(c.key, c.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.key)
		})
	}
}

func TestLoad_RetryBounds(t *testing.T) {
	for _, v := range []string{"0", "10"} {
		t.Setenv("AI_MAX_RETRIES", v)
		_, err := Load()
		assert.NoError(t, err, v)
	}
}

func TestString_MasksSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "top-secret")
	t.Setenv("GEMINI_API_KEY", "key-123")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.String()
	assert.NotContains(t, s, "top-secret")
	assert.NotContains(t, s, "key-123")
	assert.Contains(t, s, "AI: true")
}
