package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "tradesim-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if cfg.App.LogFormat != "console" {
		t.Fatalf("unexpected App.LogFormat: %s", cfg.App.LogFormat)
	}
	if len(cfg.Market.Symbols) != 2 || cfg.Market.Symbols[0] != "AAPL" {
		t.Fatalf("unexpected symbols %+v", cfg.Market.Symbols)
	}
	if cfg.Market.Provider != "csv" || cfg.Market.CSVDir != "testdata/prices" {
		t.Fatalf("unexpected market %+v", cfg.Market)
	}
	if cfg.News.Query("AAPL") != "Apple" || cfg.News.Query("MSFT") != "MSFT" {
		t.Fatalf("unexpected news queries %+v", cfg.News.Queries)
	}
	if !cfg.Sentiment.Labels {
		t.Fatalf("expected label scoring enabled")
	}
	if cfg.Classifier.SplitRatio != 0.75 {
		t.Fatalf("unexpected split ratio %.2f", cfg.Classifier.SplitRatio)
	}
	if cfg.Strategy.Params.ShortWindow != 5 || cfg.Strategy.Params.LongWindow != 20 {
		t.Fatalf("unexpected windows %+v", cfg.Strategy.Params)
	}
	if cfg.Strategy.Params.SentimentThreshold != -0.3 {
		t.Fatalf("unexpected sentiment threshold %.2f", cfg.Strategy.Params.SentimentThreshold)
	}
	if cfg.Backtest.InitialCash != 50000 {
		t.Fatalf("expected initial cash 50000, got %.2f", cfg.Backtest.InitialCash)
	}
	if cfg.Storage.Path != "out/tradesim.db" {
		t.Fatalf("unexpected storage path %s", cfg.Storage.Path)
	}

	start, end, err := cfg.Market.Range()
	if err != nil {
		t.Fatalf("Range error: %v", err)
	}
	if start.Format("2006-01-02") != "2024-01-02" || end.Format("2006-01-02") != "2024-06-28" {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.Backtest.InitialCash = 12345
	cfg.Strategy.Mode = "classifier"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load saved config: %v", err)
	}
	if again.Backtest.InitialCash != 12345 || again.Strategy.Mode != "classifier" {
		t.Fatalf("round trip lost values: %+v", again.Backtest)
	}
	if again.News.Queries["AAPL"] != "Apple" {
		t.Fatalf("round trip lost news queries")
	}
	if err := Save(path, nil); err == nil {
		t.Fatalf("expected error saving nil config")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Backtest.InitialCash != 100000 {
		t.Fatalf("expected initial cash 100000, got %.2f", cfg.Backtest.InitialCash)
	}
	p := cfg.Strategy.Params
	if p.ShortWindow != 40 || p.LongWindow != 100 {
		t.Fatalf("expected 40/100 windows, got %d/%d", p.ShortWindow, p.LongWindow)
	}
	if p.SentimentThreshold != -0.2 || p.ProbabilityThreshold != 0.5 || p.DownAction != "sell" {
		t.Fatalf("unexpected strategy defaults %+v", p)
	}
	if cfg.News.PageSize != 100 || cfg.News.MaxPages != 5 || cfg.News.Language != "en" {
		t.Fatalf("unexpected news defaults %+v", cfg.News)
	}
	if cfg.Classifier.SplitRatio != 0.8 {
		t.Fatalf("unexpected split ratio %.2f", cfg.Classifier.SplitRatio)
	}
	if cfg.Market.Provider != "yahoo" || cfg.Market.Symbols[0] != "AAPL" {
		t.Fatalf("unexpected market defaults %+v", cfg.Market)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	cfg.Market.Provider = "bloomberg"
	cfg.Strategy.Params.ShortWindow = 100
	cfg.Backtest.InitialCash = -1
	cfg.Market.Start = "2024-05-01"
	cfg.Market.End = "2024-01-01"

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"market.provider", "short_window", "initial_cash", "inverted"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestValidateModeRequirements(t *testing.T) {
	var cfg Config
	cfg.Strategy.Mode = "sentiment"
	cfg.ApplyDefaults()
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "news.api_key") || !strings.Contains(err.Error(), "sentiment.service_url") {
		t.Fatalf("expected sentiment requirements, got %v", err)
	}

	cfg.Strategy.Mode = "xgboost"
	cfg.Classifier.Source = "csv"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "predictions_dir") {
		t.Fatalf("expected classifier requirements, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv(EnvNewsAPIKey, "from-env")
	t.Setenv(EnvSentimentService, "http://scorer:8000")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	cfg.ApplyEnv()
	if cfg.News.APIKey != "from-env" || cfg.Sentiment.ServiceURL != "http://scorer:8000" {
		t.Fatalf("env overrides not applied: %+v %+v", cfg.News, cfg.Sentiment)
	}
	if cfg.App.LogLevel != "debug" {
		t.Fatalf("empty env must not override, got %s", cfg.App.LogLevel)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("TRADESIM_TEST_ONLY_KEY=abc\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("TRADESIM_TEST_ONLY_KEY") })
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv error: %v", err)
	}
	if os.Getenv("TRADESIM_TEST_ONLY_KEY") != "abc" {
		t.Fatalf("expected variable loaded from env file")
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error for missing explicit env file")
	}
}

func TestLoadWithEnv(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadWithEnv error: %v", err)
	}
	if cfg.News.PageSize != 100 || cfg.Strategy.Params.DownAction != "hold" {
		t.Fatalf("defaults not merged: %+v", cfg.Strategy.Params)
	}
}
