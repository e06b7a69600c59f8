// Package strategy turns indicator, sentiment and model outputs into per-bar actions.
package strategy

import (
	"errors"
	"strings"

	"tradesim-go/internal/indicator"
	"tradesim-go/internal/signal"
)

// Strategy modes accepted by Build.
const (
	ModeCrossover  = "crossover"
	ModeSentiment  = "sentiment"
	ModeClassifier = "classifier"
)

var (
	// ErrMissingInput is returned when a strategy lacks the series it depends on.
	ErrMissingInput = errors.New("strategy input missing")
	// ErrMisaligned is returned when an auxiliary series is not aligned with the closes.
	ErrMisaligned = errors.New("strategy input not aligned with closes")
)

// Inputs bundles the series a strategy may read. All are aligned with Closes.
type Inputs struct {
	Closes []float64
	// Sentiment holds one daily score per close; days without news are 0.
	Sentiment []float64
	// Probabilities holds the model's probability of an up move per close.
	Probabilities indicator.Line
}

// Plan is the action series plus the number of leading rows whose inputs
// were undefined. Those rows are always Hold.
type Plan struct {
	Actions []signal.Action
	Warmup  int
}

// Strategy defines behaviour shared by strategy implementations.
type Strategy interface {
	Name() string
	Plan(in Inputs) (Plan, error)
}

// Params expresses tunable knobs required by strategy constructors.
type Params struct {
	ShortWindow          int
	LongWindow           int
	SentimentThreshold   float64
	ProbabilityThreshold float64
	DownAction           signal.Action
}

// Build returns a strategy implementation matching the configured mode.
func Build(mode string, params Params) Strategy {
	switch NormalizeMode(mode) {
	case ModeSentiment:
		return NewSentimentGate(params.ShortWindow, params.LongWindow, params.SentimentThreshold)
	case ModeClassifier:
		return NewClassifier(params.ProbabilityThreshold, params.DownAction)
	default:
		return NewCrossover(params.ShortWindow, params.LongWindow)
	}
}

// NormalizeMode maps aliases onto the canonical mode names.
func NormalizeMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "crossover", "ma", "sma", "ma_cross":
		return ModeCrossover
	case "sentiment", "news", "sentiment_gate":
		return ModeSentiment
	case "classifier", "ml", "xgboost", "model":
		return ModeClassifier
	}
	return ""
}

// positionActions converts a 0/1 position series into actions by differencing
// consecutive rows. Rows before defined, and the first defined row, are Hold.
func positionActions(position []bool, defined int) []signal.Action {
	actions := make([]signal.Action, len(position))
	for i := defined + 1; i < len(position); i++ {
		switch {
		case position[i] && !position[i-1]:
			actions[i] = signal.Buy
		case !position[i] && position[i-1]:
			actions[i] = signal.Sell
		}
	}
	return actions
}

// TrimWarmup drops the first n rows from both series.
func TrimWarmup(points signal.PriceSeries, actions []signal.Action, n int) (signal.PriceSeries, []signal.Action) {
	if n <= 0 {
		return points, actions
	}
	if n > len(points) {
		n = len(points)
	}
	if n > len(actions) {
		n = len(actions)
	}
	return points[n:], actions[n:]
}
