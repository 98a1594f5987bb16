/**
 * Configuration for the labelcompose worker and CLI
 *
 * Loads configuration from environment variables matching .env.labelcompose
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Catalog sources
const (
	CatalogSourceFile  = "file"
	CatalogSourceRedis = "redis"
	CatalogSourceDemo  = "demo"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue, status tracking and catalog store)
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// Queue configuration
	QueueName         string
	WorkerConcurrency int
	MaxRetries        int
	ProcessingTimeout time.Duration

	// Processing configuration
	MaxFileSize  int64
	OutputDir    string
	OCRLanguages string
	RenderDPI    int

	// Product catalog
	CatalogSource   string
	CatalogFile     string
	CatalogRedisKey string

	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "labelcompose"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxRetries:        getEnvAsIntOrDefault("MAX_RETRIES", 3),
		ProcessingTimeout: time.Duration(getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 120000)) * time.Millisecond, // 2 minutes
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 16777216),                                    // 16MB
		OutputDir:         getEnvOrDefault("OUTPUT_DIR", "outputs"),
		OCRLanguages:      getEnvOrDefault("OCR_LANGUAGES", "por+eng"),
		RenderDPI:         getEnvAsIntOrDefault("RENDER_DPI", 150),
		CatalogSource:     strings.ToLower(getEnvOrDefault("CATALOG_SOURCE", CatalogSourceDemo)),
		CatalogFile:       getEnvOrDefault("CATALOG_FILE", "produtos.yaml"),
		CatalogRedisKey:   getEnvOrDefault("CATALOG_REDIS_KEY", "labelcompose:catalog"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings every entry point needs
func (c *Config) Validate() error {
	if c.MaxFileSize < 1024 || c.MaxFileSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.RenderDPI < 36 || c.RenderDPI > 600 {
		return fmt.Errorf("RENDER_DPI must be between 36 and 600, got %d", c.RenderDPI)
	}

	if strings.TrimSpace(c.OCRLanguages) == "" {
		return fmt.Errorf("OCR_LANGUAGES must not be empty")
	}

	switch c.CatalogSource {
	case CatalogSourceDemo:
	case CatalogSourceFile:
		if c.CatalogFile == "" {
			return fmt.Errorf("CATALOG_FILE is required when CATALOG_SOURCE=file")
		}
	case CatalogSourceRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CATALOG_SOURCE=redis")
		}
		if c.CatalogRedisKey == "" {
			return fmt.Errorf("CATALOG_REDIS_KEY is required when CATALOG_SOURCE=redis")
		}
	default:
		return fmt.Errorf("CATALOG_SOURCE must be one of file, redis, demo, got %q", c.CatalogSource)
	}

	return nil
}

// ValidateWorker checks the additional settings of the queue worker
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxRetries < 0 || c.MaxRetries > 25 {
		return fmt.Errorf("MAX_RETRIES must be between 0 and 25, got %d", c.MaxRetries)
	}

	if c.ProcessingTimeout < time.Second {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %s", c.ProcessingTimeout)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
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

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
