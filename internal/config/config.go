package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort int
	Env        string
	LogLevel   string

	Auth      AuthConfig
	Store     StoreConfig
	AI        AIConfig
	Admin     AdminConfig
	Stream    StreamConfig
	RateLimit RateLimitConfig

	RedisURL       string // Empty keeps the cache in-process
	NatsURL        string // Empty disables the NATS mirror
	StatsCacheTTL  time.Duration
	BountyCron     string
	AllowedOrigins []string
}

// AuthConfig contains token settings.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string // "sqlite" or "mongo"
	DatabasePath  string
	MongoURI      string
	MongoDatabase string
}

// AIConfig contains the generative AI client settings.
type AIConfig struct {
	APIKey      string
	VisionModel string
	TTSModel    string
	ImageModel  string
	Voice       string
	MaxRetries  int
	RetryDelay  time.Duration
}

// AdminConfig describes the account seeded at startup.
type AdminConfig struct {
	Email    string
	Username string
	Password string
}

// StreamConfig controls the mock telemetry generator.
type StreamConfig struct {
	Interval  time.Duration
	Heartbeat time.Duration
}

// RateLimitConfig controls the per-client limiter on auth and AI routes.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

const devJWTSecret = "rockhound-dev-secret-change-me"

// MaxAIRetries bounds AI_MAX_RETRIES.
const MaxAIRetries = 10

// Load loads configuration from environment variables or sets defaults.
// A .env file in the working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getEnvInt("AI_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	burst, err := getEnvInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	rps, err := getEnvFloat("RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, err
	}

	durations := map[string]time.Duration{
		"TOKEN_TTL":        24 * time.Hour,
		"AI_RETRY_DELAY":   2 * time.Second,
		"STATS_CACHE_TTL":  60 * time.Second,
		"STREAM_INTERVAL":  3 * time.Second,
		"STREAM_HEARTBEAT": 15 * time.Second,
	}
	for key, fallback := range durations {
		d, err := getEnvDuration(key, fallback)
		if err != nil {
			return nil, err
		}
		if d <= 0 {
			return nil, fmt.Errorf("invalid duration for %s: must be positive, got %s", key, d)
		}
		durations[key] = d
	}
	if maxRetries < 0 || maxRetries > MaxAIRetries {
		return nil, fmt.Errorf("invalid integer for AI_MAX_RETRIES: must be between 0 and %d, got %d", MaxAIRetries, maxRetries)
	}
	if rps <= 0 {
		return nil, fmt.Errorf("invalid number for RATE_LIMIT_RPS: must be positive, got %g", rps)
	}
	if burst < 1 {
		return nil, fmt.Errorf("invalid integer for RATE_LIMIT_BURST: must be at least 1, got %d", burst)
	}

	cfg := &Config{
		ServerPort: port,
		Env:        strings.ToLower(getEnv("APP_ENV", "development")),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  durations["TOKEN_TTL"],
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			DatabasePath:  getEnv("DATABASE_PATH", "./rockhound.db"),
			MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase: getEnv("MONGO_DATABASE", "rockhound"),
		},
		AI: AIConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			VisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
			TTSModel:    getEnv("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
			ImageModel:  getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
			Voice:       getEnv("GEMINI_VOICE", "Kore"),
			MaxRetries:  maxRetries,
			RetryDelay:  durations["AI_RETRY_DELAY"],
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@rockhound.com"),
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Password: getEnv("ADMIN_PASSWORD", "admin"),
		},
		Stream: StreamConfig{
			Interval:  durations["STREAM_INTERVAL"],
			Heartbeat: durations["STREAM_HEARTBEAT"],
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		RedisURL:       getEnv("REDIS_URL", ""),
		NatsURL:        getEnv("NATS_URL", ""),
		StatsCacheTTL:  durations["STATS_CACHE_TTL"],
		BountyCron:     getEnv("BOUNTY_CRON", "5 0 * * *"),
		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173,http://localhost:4173")),
	}

	if cfg.Store.Driver != "sqlite" && cfg.Store.Driver != "mongo" {
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required in production")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AIEnabled reports whether an API key for the AI service is configured.
func (c *Config) AIEnabled() bool {
	return c.AI.APIKey != ""
}

// String returns a string representation of the config with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Env: %s, Store: %s, AI: %t, Redis: %t, NATS: %t}",
		c.ServerPort, c.Env, c.Store.Driver, c.AIEnabled(), c.RedisURL != "", c.NatsURL != "")
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return n, nil
	}
	return fallback, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return fallback, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return fallback, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
