// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// FillPollSchedule is the cron expression driving fill detection
	FillPollSchedule string

	Rebalancing RebalancingConfig
}

// RebalancingConfig holds the recommendation tuning knobs
type RebalancingConfig struct {
	MinPositionSize  float64
	MaxSingleTrade   float64
	MaxPerGap        int
	MinConfidence    float64
	MaxAllocationPct float64
	EventRetention   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("OPTSENTRY_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("OPTSENTRY_PORT", 8001),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		FillPollSchedule: getEnv("FILL_POLL_SCHEDULE", "@every 15s"),
		Rebalancing: RebalancingConfig{
			MinPositionSize:  getEnvAsFloat("REBALANCE_MIN_POSITION_SIZE", 500),
			MaxSingleTrade:   getEnvAsFloat("REBALANCE_MAX_SINGLE_TRADE", 5000),
			MaxPerGap:        getEnvAsInt("REBALANCE_MAX_PER_GAP", 3),
			MinConfidence:    getEnvAsFloat("REBALANCE_MIN_CONFIDENCE", 0.3),
			MaxAllocationPct: getEnvAsFloat("REBALANCE_MAX_ALLOCATION_PCT", 50),
			EventRetention:   getEnvAsInt("REBALANCE_EVENT_RETENTION", 200),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Rebalancing.MaxAllocationPct <= 0 || c.Rebalancing.MaxAllocationPct > 100 {
		return fmt.Errorf("REBALANCE_MAX_ALLOCATION_PCT must be in (0,100], got %.2f", c.Rebalancing.MaxAllocationPct)
	}
	if c.Rebalancing.EventRetention < 1 {
		return fmt.Errorf("REBALANCE_EVENT_RETENTION must be at least 1")
	}
	if c.Rebalancing.MaxPerGap < 1 {
		return fmt.Errorf("REBALANCE_MAX_PER_GAP must be at least 1")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
