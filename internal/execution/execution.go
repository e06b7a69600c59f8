// Package execution describes simulated fills and the logger-backed sink that reports them.
package execution

import (
	"time"

	"tradesim-go/internal/metrics"

	"github.com/rs/zerolog"
)

// Side enumerates fill directions.
type Side string

const (
	// Buy converts cash into shares.
	Buy Side = "BUY"
	// Sell converts shares back into cash.
	Sell Side = "SELL"
)

// Fill records one all-in or all-out conversion at a given bar.
type Fill struct {
	Index  int       `json:"index"`
	Ts     time.Time `json:"ts"`
	Symbol string    `json:"symbol"`
	Side   Side      `json:"side"`
	Qty    float64   `json:"qty"`
	Price  float64   `json:"price"`
	Cash   float64   `json:"cash"`
	Shares float64   `json:"shares"`
}

// Notional returns the traded amount in cash terms.
func (f Fill) Notional() float64 { return f.Qty * f.Price }

// Sink receives fills as the simulator produces them.
type Sink interface {
	Record(Fill)
}

// Executor logs fills in a readable form and counts them.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Record logs the fill and bumps the fill counter.
func (executor *Executor) Record(fill Fill) {
	metrics.FillsTotal.WithLabelValues(fill.Symbol, string(fill.Side)).Inc()
	executor.log.Info().
		Str("date", fill.Ts.Format(time.DateOnly)).
		Str("sym", fill.Symbol).
		Float64("qty", fill.Qty).
		Float64("px", fill.Price).
		Msg(string(fill.Side))
}

// MultiSink fans a fill out to several sinks in order.
type MultiSink []Sink

// Record forwards to every non-nil sink.
func (m MultiSink) Record(fill Fill) {
	for _, s := range m {
		if s != nil {
			s.Record(fill)
		}
	}
}
