// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tradesim-go/internal/market"
	"tradesim-go/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	// LogFormat is json (default) or console.
	LogFormat string `yaml:"log_format"`
}

// Market selects the price history provider and the symbols to simulate.
type Market struct {
	Provider       string   `yaml:"provider"`
	Symbols        []string `yaml:"symbols"`
	Start          string   `yaml:"start"`
	End            string   `yaml:"end"`
	Interval       string   `yaml:"interval"`
	CSVDir         string   `yaml:"csv_dir"`
	YahooBaseURL   string   `yaml:"yahoo_base_url"`
	BinanceBaseURL string   `yaml:"binance_base_url"`
	StreamURL      string   `yaml:"stream_url"`
	StreamInterval string   `yaml:"stream_interval"`
}

// Range parses Start and End; an empty bound is returned as the zero time.
func (m Market) Range() (time.Time, time.Time, error) {
	start, err := parseDate(m.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("market.start: %w", err)
	}
	end, err := parseDate(m.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("market.end: %w", err)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("market range %s..%s is inverted", m.Start, m.End)
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// News configures the headline source used by the sentiment strategy.
type News struct {
	// Source is newsapi or rss.
	Source   string `yaml:"source"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
	SortBy   string `yaml:"sort_by"`
	PageSize int    `yaml:"page_size"`
	MaxPages int    `yaml:"max_pages"`
	MaxItems int    `yaml:"max_items"`
	// Queries maps a symbol to its search query; unmapped symbols search for themselves.
	Queries map[string]string `yaml:"queries"`
}

// Query returns the search query for symbol.
func (n News) Query(symbol string) string {
	if q, ok := n.Queries[symbol]; ok && strings.TrimSpace(q) != "" {
		return q
	}
	return symbol
}

// Sentiment configures the headline scoring service.
type Sentiment struct {
	ServiceURL  string `yaml:"service_url"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	// Labels collapses scores to +1/-1/0 before daily averaging.
	Labels bool `yaml:"labels"`
}

// Classifier configures where up-move probabilities come from.
type Classifier struct {
	// Source is http or csv.
	Source         string  `yaml:"source"`
	ServiceURL     string  `yaml:"service_url"`
	PredictionsDir string  `yaml:"predictions_dir"`
	SplitRatio     float64 `yaml:"split_ratio"`
	TimeoutSecs    int     `yaml:"timeout_secs"`
}

// StrategyParams groups tunable knobs for a strategy implementation.
type StrategyParams struct {
	ShortWindow          int     `yaml:"short_window"`
	LongWindow           int     `yaml:"long_window"`
	SentimentThreshold   float64 `yaml:"sentiment_threshold"`
	ProbabilityThreshold float64 `yaml:"probability_threshold"`
	// DownAction is sell or hold.
	DownAction string `yaml:"down_action"`
}

// Strategy specifies which strategy is active along with the parameter bundle.
type Strategy struct {
	Mode   string         `yaml:"mode"`
	Params StrategyParams `yaml:"params"`
}

// Backtest captures simulation and export settings.
type Backtest struct {
	InitialCash float64 `yaml:"initial_cash"`
	// KeepWarmup simulates the leading rows whose indicators are undefined
	// instead of dropping them.
	KeepWarmup  bool   `yaml:"keep_warmup"`
	ExportDir   string `yaml:"export_dir"`
	FillsPath   string `yaml:"fills_path"`
	Parallelism int    `yaml:"parallelism"`
}

// Storage points at the SQLite database; an empty path disables persistence.
type Storage struct {
	Path string `yaml:"path"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App        App        `yaml:"app"`
	Market     Market     `yaml:"market"`
	News       News       `yaml:"news"`
	Sentiment  Sentiment  `yaml:"sentiment"`
	Classifier Classifier `yaml:"classifier"`
	Strategy   Strategy   `yaml:"strategy"`
	Backtest   Backtest   `yaml:"backtest"`
	Storage    Storage    `yaml:"storage"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tradesim"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.LogFormat == "" {
		c.App.LogFormat = "json"
	}
	if c.Market.Provider == "" {
		c.Market.Provider = market.ProviderYahoo
	}
	c.Market.Provider = strings.ToLower(c.Market.Provider)
	if len(c.Market.Symbols) == 0 {
		c.Market.Symbols = []string{"AAPL"}
	}
	if c.Market.Interval == "" {
		c.Market.Interval = "1d"
	}
	if c.Market.CSVDir == "" {
		c.Market.CSVDir = "data"
	}
	if c.Market.StreamInterval == "" {
		c.Market.StreamInterval = "1m"
	}
	if c.News.Source == "" {
		c.News.Source = "newsapi"
	}
	c.News.Source = strings.ToLower(c.News.Source)
	if c.News.Language == "" {
		c.News.Language = "en"
	}
	if c.News.SortBy == "" {
		c.News.SortBy = "publishedAt"
	}
	if c.News.PageSize <= 0 {
		c.News.PageSize = 100
	}
	if c.News.MaxPages <= 0 {
		c.News.MaxPages = 5
	}
	if c.News.MaxItems <= 0 {
		c.News.MaxItems = 100
	}
	if c.Sentiment.TimeoutSecs <= 0 {
		c.Sentiment.TimeoutSecs = 30
	}
	if c.Classifier.Source == "" {
		c.Classifier.Source = "http"
	}
	c.Classifier.Source = strings.ToLower(c.Classifier.Source)
	if c.Classifier.SplitRatio == 0 {
		c.Classifier.SplitRatio = 0.8
	}
	if c.Classifier.TimeoutSecs <= 0 {
		c.Classifier.TimeoutSecs = 60
	}
	if c.Strategy.Mode == "" {
		c.Strategy.Mode = strategy.ModeCrossover
	}
	p := &c.Strategy.Params
	if p.ShortWindow == 0 {
		p.ShortWindow = 40
	}
	if p.LongWindow == 0 {
		p.LongWindow = 100
	}
	if p.SentimentThreshold == 0 {
		p.SentimentThreshold = -0.2
	}
	if p.ProbabilityThreshold == 0 {
		p.ProbabilityThreshold = 0.5
	}
	if p.DownAction == "" {
		p.DownAction = "sell"
	}
	p.DownAction = strings.ToLower(p.DownAction)
	if c.Backtest.InitialCash == 0 {
		c.Backtest.InitialCash = 100000
	}
	if c.Backtest.Parallelism <= 0 {
		c.Backtest.Parallelism = 4
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Market.Provider {
	case market.ProviderStub, market.ProviderYahoo, market.ProviderBinance, market.ProviderCSV:
	default:
		add("market.provider %q is not one of stub, yahoo, binance, csv", c.Market.Provider)
	}
	if len(c.Market.Symbols) == 0 {
		add("market.symbols is empty")
	}
	for i, s := range c.Market.Symbols {
		if strings.TrimSpace(s) == "" {
			add("market.symbols[%d] is blank", i)
		}
	}
	if _, _, err := c.Market.Range(); err != nil {
		errs = append(errs, err)
	}

	mode := strategy.NormalizeMode(c.Strategy.Mode)
	if mode == "" {
		add("strategy.mode %q is not one of crossover, sentiment, classifier", c.Strategy.Mode)
	}
	p := c.Strategy.Params
	if p.ShortWindow <= 0 || p.LongWindow <= 0 {
		add("strategy windows must be positive, got %d/%d", p.ShortWindow, p.LongWindow)
	} else if p.ShortWindow >= p.LongWindow {
		add("strategy.params.short_window %d must be below long_window %d", p.ShortWindow, p.LongWindow)
	}
	if p.ProbabilityThreshold <= 0 || p.ProbabilityThreshold >= 1 {
		add("strategy.params.probability_threshold %v must be in (0, 1)", p.ProbabilityThreshold)
	}
	if p.SentimentThreshold < -1 || p.SentimentThreshold > 1 {
		add("strategy.params.sentiment_threshold %v must be in [-1, 1]", p.SentimentThreshold)
	}
	if p.DownAction != "sell" && p.DownAction != "hold" {
		add("strategy.params.down_action %q must be sell or hold", p.DownAction)
	}

	if c.Backtest.InitialCash <= 0 || math.IsInf(c.Backtest.InitialCash, 0) || math.IsNaN(c.Backtest.InitialCash) {
		add("backtest.initial_cash %v must be positive", c.Backtest.InitialCash)
	}

	if mode == strategy.ModeSentiment {
		switch c.News.Source {
		case "newsapi":
			if c.News.APIKey == "" {
				add("news.api_key (or NEWSAPI_KEY) is required for the newsapi source")
			}
		case "rss":
		default:
			add("news.source %q is not one of newsapi, rss", c.News.Source)
		}
		if c.Sentiment.ServiceURL == "" {
			add("sentiment.service_url (or SENTIMENT_SERVICE_URL) is required for the sentiment strategy")
		}
	}
	if mode == strategy.ModeClassifier {
		switch c.Classifier.Source {
		case "http":
			if c.Classifier.ServiceURL == "" {
				add("classifier.service_url (or MODEL_SERVICE_URL) is required for the http source")
			}
		case "csv":
			if c.Classifier.PredictionsDir == "" {
				add("classifier.predictions_dir is required for the csv source")
			}
		default:
			add("classifier.source %q is not one of http, csv", c.Classifier.Source)
		}
		if c.Classifier.SplitRatio <= 0 || c.Classifier.SplitRatio >= 1 {
			add("classifier.split_ratio %v must be in (0, 1)", c.Classifier.SplitRatio)
		}
	}
	return errors.Join(errs...)
}
