package config

import (
	"os"
	"strconv"

	"biascope/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Ops        OpsConfig
	Evaluation EvaluationConfig
	Report     ReportConfig
}

// DatabaseConfig holds clinical-store connection settings
type DatabaseConfig struct {
	URL     string
	Host    string
	Port    int
	Name    string
	User    string
	SSLMode string
}

// ServerConfig holds API server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// OpsConfig holds the operational endpoint settings
type OpsConfig struct {
	Port         string
	PprofEnabled bool
}

// EvaluationConfig holds engine defaults
type EvaluationConfig struct {
	Workers       int
	MinSampleSize int
	Bins          int
	BinStrategy   string
}

// ReportConfig holds report export settings
type ReportConfig struct {
	ExcelFile string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Host:    getEnvOrDefault("DB_HOST", ""),
			Port:    getEnvIntOrDefault("DB_PORT", 5432),
			Name:    getEnvOrDefault("DB_NAME", ""),
			User:    getEnvOrDefault("DB_USER", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Ops: OpsConfig{
			Port:         getEnvOrDefault("OPS_PORT", "6060"),
			PprofEnabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
		},
		Evaluation: EvaluationConfig{
			Workers:       getEnvIntOrDefault("EVAL_WORKERS", 4),
			MinSampleSize: getEnvIntOrDefault("EVAL_MIN_SAMPLE", 2),
			Bins:          getEnvIntOrDefault("EVAL_BINS", 10),
			BinStrategy:   getEnvOrDefault("EVAL_BIN_STRATEGY", "equal_width"),
		},
		Report: ReportConfig{
			ExcelFile: getEnvOrDefault("REPORT_XLSX", ""),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("DATABASE_URL is required")
	}
	if config.Evaluation.Bins < 2 {
		return errors.ConfigInvalid("EVAL_BINS must be at least 2")
	}
	if config.Evaluation.Workers < 1 {
		return errors.ConfigInvalid("EVAL_WORKERS must be positive")
	}
	switch config.Evaluation.BinStrategy {
	case "equal_width", "quantile":
	default:
		return errors.ConfigInvalid("EVAL_BIN_STRATEGY must be equal_width or quantile")
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

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
