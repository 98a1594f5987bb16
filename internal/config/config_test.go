package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "DATABASE_URL", "QUEUE_NAME", "WORKER_CONCURRENCY", "PROCESSING_TIMEOUT",
		"MAX_FILE_SIZE", "OUTPUT_DIR", "OCR_LANGUAGES", "RENDER_DPI", "CATALOG_SOURCE", "CATALOG_FILE", "CATALOG_REDIS_KEY"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxFileSize != 16*1024*1024 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.OCRLanguages != "por+eng" || cfg.RenderDPI != 150 || cfg.CatalogSource != CatalogSourceDemo {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProcessingTimeout != 2*time.Minute {
		t.Errorf("ProcessingTimeout = %s", cfg.ProcessingTimeout)
	}
	if err := cfg.ValidateWorker(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("ValidateWorker() without database = %v", err)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CATALOG_SOURCE", "Redis")
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("PROCESSING_TIMEOUT", "5000")
	t.Setenv("DATABASE_URL", "postgres://localhost/labels")
	t.Setenv("RENDER_DPI", "not-a-number")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.CatalogSource != CatalogSourceRedis || cfg.WorkerConcurrency != 8 || cfg.ProcessingTimeout != 5*time.Second {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RenderDPI != 150 {
		t.Errorf("invalid RENDER_DPI should fall back to the default, got %d", cfg.RenderDPI)
	}
	if err := cfg.ValidateWorker(); err != nil {
		t.Errorf("ValidateWorker() = %v", err)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{MaxFileSize: 1 << 20, RenderDPI: 150, OCRLanguages: "por", CatalogSource: CatalogSourceDemo}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"tiny file limit", func(c *Config) { c.MaxFileSize = 10 }, "MAX_FILE_SIZE"},
		{"dpi too high", func(c *Config) { c.RenderDPI = 1200 }, "RENDER_DPI"},
		{"no languages", func(c *Config) { c.OCRLanguages = " " }, "OCR_LANGUAGES"},
		{"unknown catalog", func(c *Config) { c.CatalogSource = "s3" }, "CATALOG_SOURCE"},
		{"file without path", func(c *Config) { c.CatalogSource = CatalogSourceFile }, "CATALOG_FILE"},
		{"redis without key", func(c *Config) { c.CatalogSource = CatalogSourceRedis; c.RedisURL = "redis://x" }, "CATALOG_REDIS_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
