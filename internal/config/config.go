package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

type Config struct {
	Environment  string
	LogLevel     slog.Level
	RedisURL     string
	DataDir      string
	TickInterval time.Duration // cadence of the scheduler tick loop
	ActionDelay  time.Duration // settle delay between actions in one firing
}

func Load() *Config {
	return &Config{
		Environment:  getEnv("ENVIRONMENT", "development"),
		LogLevel:     parseLogLevel(getEnv("LOG_LEVEL", "info")),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		TickInterval: parseDuration(getEnv("TICK_INTERVAL", "1s"), time.Second),
		ActionDelay:  parseDuration(getEnv("ACTION_DELAY", "1200ms"), 1200*time.Millisecond),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
