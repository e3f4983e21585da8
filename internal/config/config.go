// Package config provides configuration for the me-machine API.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the API configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Record store settings
	StoreDriver string // "sqlite" or "supabase"
	SQLitePath  string

	// Supabase settings (record store + identity)
	SupabaseURL string
	SupabaseKey string

	// Completion service settings
	OpenAIBaseURL string
	OpenAIAPIKey  string
	Model         string
	MaxTokens     int
	Temperature   float64

	// Identity token cache
	CacheDriver   string // "memory" or "redis"
	RedisAddr     string
	TokenCacheTTL time.Duration

	// Turn processing
	TurnTimeout   time.Duration
	CheckInWindow int // most-recent check-ins loaded for context

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	BinaryFrames   bool // serve binary envelopes on /ws-bin

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8000),
		StoreDriver:    getEnv("STORE_DRIVER", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "file:memachine.db?cache=shared&mode=rwc"),
		SupabaseURL:    getEnv("SUPABASE_URL", ""),
		SupabaseKey:    getEnv("SUPABASE_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		Model:          getEnv("OPENAI_MODEL", "gpt-4"),
		MaxTokens:      getEnvInt("OPENAI_MAX_TOKENS", 500),
		Temperature:    getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		CacheDriver:    getEnv("TOKEN_CACHE_DRIVER", "memory"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		TokenCacheTTL:  time.Duration(getEnvInt("TOKEN_CACHE_TTL_MS", 300000)) * time.Millisecond,
		TurnTimeout:    time.Duration(getEnvInt("TURN_TIMEOUT_MS", 120000)) * time.Millisecond,
		CheckInWindow:  getEnvInt("CHECK_IN_WINDOW", 7),
		PingInterval:   time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WriteTimeout:   time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		ReadTimeout:    time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 300000)) * time.Millisecond,
		MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 65536)),
		BinaryFrames:   getEnvBool("WS_BINARY_ENABLED", true),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
