package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings read from the environment.
// Every field has a default when its variable is unset.
type Config struct {
	// PipeBase is the base path of the polybar command FIFO (default: /tmp/platetimer.pipe).
	// The process id is appended to make it unique.
	PipeBase string

	// LogLevel is one of "debug", "info", "warn", "error" (default: "info")
	LogLevel string

	// LogDir enables a rotated log file in this directory when set (default: stdout only)
	LogDir string

	// TickInterval is the length of one countdown tick (default: 1s)
	TickInterval time.Duration

	// Polybar enables the status-bar bridge instead of opening the window (default: false)
	Polybar bool
}

// Load reads the configuration from PLATETIMER_* environment variables.
func Load() *Config {
	cfg := &Config{
		PipeBase:     getEnvOrDefault("PLATETIMER_PIPE", "/tmp/platetimer.pipe"),
		LogLevel:     strings.ToLower(getEnvOrDefault("PLATETIMER_LOG_LEVEL", "info")),
		LogDir:       getEnvOrDefault("PLATETIMER_LOG_DIR", ""),
		TickInterval: getEnvDurationOrDefault("PLATETIMER_TICK", time.Second),
		Polybar:      getEnvBoolOrDefault("PLATETIMER_POLYBAR", false),
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		cfg.LogLevel = "info"
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go duration strings like "250ms" or "1s".
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
