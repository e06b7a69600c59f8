// Package market hosts price history providers and live bar streams.
package market

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tradesim-go/internal/metrics"
	"tradesim-go/internal/signal"
)

const (
	// ProviderStub generates deterministic synthetic daily closes (tests/offline work).
	ProviderStub = "stub"
	// ProviderYahoo reads daily closes from the Yahoo Finance chart API.
	ProviderYahoo = "yahoo"
	// ProviderBinance reads klines from the Binance public REST API.
	ProviderBinance = "binance"
	// ProviderCSV reads <dir>/<symbol>.csv files with Date and Close columns.
	ProviderCSV = "csv"
)

const (
	defaultYahooBaseURL   = "https://query2.finance.yahoo.com"
	defaultBinanceBaseURL = "https://api.binance.com"
	defaultInterval       = "1d"
)

// ErrNoData is returned when a provider yields no usable points for the range.
var ErrNoData = errors.New("no price data")

// History loads a chronologically ordered close series for one symbol.
type History struct {
	provider       string
	log            zerolog.Logger
	client         *http.Client
	yahooBaseURL   string
	binanceBaseURL string
	interval       string
	csvDir         string
}

// Option configures History construction parameters.
type Option func(*History)

// WithYahooBaseURL points the yahoo provider at another host.
func WithYahooBaseURL(base string) Option {
	return func(h *History) {
		if base != "" {
			h.yahooBaseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithBinanceBaseURL points the binance provider at another host.
func WithBinanceBaseURL(base string) Option {
	return func(h *History) {
		if base != "" {
			h.binanceBaseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithInterval overrides the bar interval requested from remote providers.
func WithInterval(interval string) Option {
	return func(h *History) {
		if interval != "" {
			h.interval = interval
		}
	}
}

// WithCSVDir sets the directory the csv provider reads from.
func WithCSVDir(dir string) Option {
	return func(h *History) {
		h.csvDir = dir
	}
}

// WithHTTPClient swaps the HTTP client used by remote providers.
func WithHTTPClient(c *http.Client) Option {
	return func(h *History) {
		if c != nil {
			h.client = c
		}
	}
}

// NewHistory constructs a history loader backed by the requested provider.
func NewHistory(provider string, log zerolog.Logger, opts ...Option) *History {
	if provider == "" {
		provider = ProviderStub
	}
	h := &History{
		provider:       strings.ToLower(provider),
		log:            log,
		client:         &http.Client{Timeout: 20 * time.Second},
		yahooBaseURL:   defaultYahooBaseURL,
		binanceBaseURL: defaultBinanceBaseURL,
		interval:       defaultInterval,
		csvDir:         ".",
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Provider returns the normalized provider name.
func (h *History) Provider() string {
	return h.provider
}

// Fetch returns the closes for symbol between start and end. A zero start or
// end leaves that side of the range open where the provider allows it.
func (h *History) Fetch(ctx context.Context, symbol string, start, end time.Time) (signal.PriceSeries, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("history: empty symbol")
	}
	var (
		points signal.PriceSeries
		err    error
	)
	switch h.provider {
	case ProviderYahoo:
		points, err = h.fetchYahoo(ctx, symbol, start, end)
	case ProviderBinance:
		points, err = h.fetchBinance(ctx, symbol, start, end)
	case ProviderCSV:
		points, err = h.fetchCSV(symbol, start, end)
	default:
		points = stubSeries(symbol, start, end)
	}
	if err != nil {
		return nil, fmt.Errorf("%s history for %s: %w", h.provider, symbol, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s history for %s: %w", h.provider, symbol, ErrNoData)
	}
	if err := points.Validate(); err != nil {
		return nil, fmt.Errorf("%s history for %s: %w", h.provider, symbol, err)
	}
	metrics.HistoryPointsTotal.WithLabelValues(h.provider).Add(float64(len(points)))
	h.log.Debug().Str("provider", h.provider).Str("symbol", symbol).Int("points", len(points)).Msg("loaded price history")
	return points, nil
}

func inRange(ts, start, end time.Time) bool {
	if !start.IsZero() && ts.Before(start) {
		return false
	}
	if !end.IsZero() && ts.After(end) {
		return false
	}
	return true
}

func dayOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
