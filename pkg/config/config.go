package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds configuration for the backtester CLI.
// ⭐ SSOT: every environment variable is read here, and only here.
//
// This governs the outer program only. The simulation core
// (internal/backtest.Engine.Run) never reads the environment; it takes a
// fully-built Config/Constraints value as an explicit argument.
type Config struct {
	Env string // development, staging, production

	// Default price CSV, overridable by --prices. ReturnFile is loaded
	// but not read by cmd/backtester, which derives returns from prices.
	PriceFile  string
	ReturnFile string

	// Default strategy-config file, overridable by --config.
	StrategyConfigPath string

	// RSC sizing.
	CacheCapacity int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables (and an optional
// .env file, tried at a handful of conventional locations).
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		PriceFile:          getEnv("BACKTESTER_PRICE_FILE", ""),
		ReturnFile:         getEnv("BACKTESTER_RETURN_FILE", ""),
		StrategyConfigPath: getEnv("BACKTESTER_STRATEGY_CONFIG", ""),

		CacheCapacity: getEnvAsInt("BACKTESTER_CACHE_CAPACITY", 1000),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks that required configuration values are sane.
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("BACKTESTER_CACHE_CAPACITY must be > 0")
	}
	return nil
}

// loadEnvFile tries to load .env from a few conventional locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths, filepath.Join(exeDir, ".env"))
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
