package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
)

// Config holds all runtime configuration for the siren backend.
type Config struct {
	Port        string
	DatabaseURL string

	LogLevel string
	LogFile  string

	AllowedOrigins []string
	SessionTTL     time.Duration

	// Relay settings
	DefaultLanguage          string
	ClearPlayingOnDisconnect bool
	PersistTimeout           time.Duration
	PingPeriod               time.Duration
	PongWait                 time.Duration
	SendBuffer               int

	// HTTP trigger limits (per client IP)
	TriggerRateLimit float64
	TriggerRateBurst int

	// Honor X-Forwarded-For / X-Real-IP. Only safe behind a proxy that
	// overwrites them.
	TrustProxyHeaders bool

	// When set, triggers must carry an HMAC signature and delivery id.
	TriggerWebhookSecret string
}

var defaultOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
}

// Load reads configuration from .env.local (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		slog.Debug("no .env.local loaded", "error", err)
	}

	cfg := &Config{
		Port:                     getEnvOrDefault("PORT", "5050"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		LogLevel:                 getEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:                  getEnvOrDefault("LOG_FILE", "logs/siren-backend.log"),
		AllowedOrigins:           getEnvListOrDefault("CORS_ALLOWED_ORIGINS", defaultOrigins),
		SessionTTL:               getEnvDurationOrDefault("SESSION_TTL", 6*time.Hour),
		DefaultLanguage:          getEnvOrDefault("RELAY_DEFAULT_LANGUAGE", "hi"),
		ClearPlayingOnDisconnect: getEnvBoolOrDefault("RELAY_CLEAR_PLAYING_ON_DISCONNECT", false),
		PersistTimeout:           getEnvDurationOrDefault("RELAY_PERSIST_TIMEOUT", 0),
		PingPeriod:               getEnvDurationOrDefault("RELAY_PING_PERIOD", 2*time.Second),
		PongWait:                 getEnvDurationOrDefault("RELAY_PONG_WAIT", 5*time.Second),
		SendBuffer:               getEnvIntOrDefault("RELAY_SEND_BUFFER", 256),
		TriggerRateLimit:         getEnvFloatOrDefault("TRIGGER_RATE_LIMIT", 5),
		TriggerRateBurst:         getEnvIntOrDefault("TRIGGER_RATE_BURST", 10),
		TriggerWebhookSecret:     os.Getenv("TRIGGER_WEBHOOK_SECRET"),
		TrustProxyHeaders:        getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),
	}

	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("config: DATABASE_URL is empty")
	case c.SendBuffer <= 0:
		return errors.New("config: RELAY_SEND_BUFFER must be positive")
	case c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod:
		return errors.New("config: RELAY_PONG_WAIT must exceed RELAY_PING_PERIOD")
	case c.TriggerRateLimit <= 0 || c.TriggerRateBurst <= 0:
		return errors.New("config: trigger rate limit and burst must be positive")
	}
	if _, err := language.Parse(c.DefaultLanguage); err != nil {
		return fmt.Errorf("config: RELAY_DEFAULT_LANGUAGE %q is not a language tag: %w", c.DefaultLanguage, err)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloatOrDefault(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
