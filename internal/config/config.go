package config

import (
	"os"
	"strconv"
	"time"

	"geocausal/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig
	Data       DataConfig
	Database   DatabaseConfig
	Estimation EstimationConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DataConfig holds data source paths
type DataConfig struct {
	PanelFile   string // country-year indicator spreadsheet
	ResultsFile string // precomputed causal_results table
	CATEFile    string // precomputed per-row conditional effects
}

// DatabaseConfig holds the optional postgres result store settings
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// EstimationConfig holds estimation tunables
type EstimationConfig struct {
	MinSampleSize int
	FitTimeout    time.Duration
	Seed          int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		},
		Data: DataConfig{
			PanelFile:   getEnvOrDefault("PANEL_FILE", "data.xlsx"),
			ResultsFile: getEnvOrDefault("RESULTS_FILE", ""),
			CATEFile:    getEnvOrDefault("CATE_FILE", ""),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Estimation: EstimationConfig{
			MinSampleSize: getEnvIntOrDefault("MIN_SAMPLE_SIZE", 10),
			FitTimeout:    getEnvDurationOrDefault("FIT_TIMEOUT", 2*time.Minute),
			Seed:          int64(getEnvIntOrDefault("SEED", 42)),
		},
	}
	config.Database.Enabled = config.Database.URL != ""

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Data.PanelFile == "" {
		return errors.ConfigInvalid("PANEL_FILE is required")
	}
	if config.Estimation.MinSampleSize < 2 {
		return errors.ConfigInvalid("MIN_SAMPLE_SIZE must be at least 2")
	}
	if config.Estimation.FitTimeout <= 0 {
		return errors.ConfigInvalid("FIT_TIMEOUT must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
