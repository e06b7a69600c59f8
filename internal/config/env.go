package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override YAML values.
const (
	EnvNewsAPIKey       = "NEWSAPI_KEY"
	EnvSentimentService = "SENTIMENT_SERVICE_URL"
	EnvModelService     = "MODEL_SERVICE_URL"
	EnvLogLevel         = "TRADESIM_LOG_LEVEL"
	EnvMetricsAddr      = "TRADESIM_METRICS_ADDR"
	EnvStoragePath      = "TRADESIM_DB"
)

// LoadEnv populates the process environment from dotenv files. Without
// arguments it reads ./.env if present; named files must exist.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// ApplyEnv overrides secrets and endpoints from the environment.
func (c *Config) ApplyEnv() {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.News.APIKey, EnvNewsAPIKey)
	set(&c.Sentiment.ServiceURL, EnvSentimentService)
	set(&c.Classifier.ServiceURL, EnvModelService)
	set(&c.App.LogLevel, EnvLogLevel)
	set(&c.App.MetricsAddr, EnvMetricsAddr)
	set(&c.Storage.Path, EnvStoragePath)
}

// LoadWithEnv loads path, applies environment overrides and defaults, then validates.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
