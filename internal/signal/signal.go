// Package signal standardizes the price and action payloads shared between data ingestion, strategies and the simulator.
package signal

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Action is the discrete instruction attached to one price point.
type Action uint8

const (
	// Hold leaves the position untouched. It is the zero value so undefined rows are never traded.
	Hold Action = iota
	// Buy converts all cash into shares.
	Buy
	// Sell converts all shares into cash.
	Sell
)

// String renders the action in its wire form.
func (a Action) String() string {
	switch a {
	case Hold:
		return "HOLD"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Action(%d)", uint8(a))
	}
}

// Valid reports whether a is one of Hold, Buy or Sell.
func (a Action) Valid() bool { return a <= Sell }

// ParseAction accepts HOLD, BUY or SELL in any case. An empty string is Hold.
func ParseAction(s string) (Action, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "HOLD":
		return Hold, nil
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	}
	return Hold, fmt.Errorf("unknown action %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid action %d", uint8(a))
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PricePoint is one close observation.
type PricePoint struct {
	Ts    time.Time `json:"ts"`
	Price float64   `json:"price"`
}

// PriceSeries is ordered by timestamp ascending with one point per period.
type PriceSeries []PricePoint

var (
	// ErrUnordered is returned when timestamps are not strictly increasing.
	ErrUnordered = errors.New("price series not strictly ascending")
	// ErrBadPrice is returned for zero, negative or non-finite prices.
	ErrBadPrice = errors.New("price must be positive and finite")
)

// ValidPrice reports whether px is positive and finite.
func ValidPrice(px float64) bool {
	return !math.IsNaN(px) && !math.IsInf(px, 0) && px > 0
}

// Validate checks ordering, uniqueness and price sanity.
func (s PriceSeries) Validate() error {
	for i, p := range s {
		if !ValidPrice(p.Price) {
			return fmt.Errorf("point %d (%s): %w", i, p.Ts.Format(time.DateOnly), ErrBadPrice)
		}
		if i > 0 && !p.Ts.After(s[i-1].Ts) {
			return fmt.Errorf("point %d (%s): %w", i, p.Ts.Format(time.DateOnly), ErrUnordered)
		}
	}
	return nil
}

// Closes returns the bare prices.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// Times returns the timestamps.
func (s PriceSeries) Times() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Ts
	}
	return out
}

// Bar is a closed candle delivered by a streaming source.
type Bar struct {
	Symbol string
	Close  float64
	Ts     time.Time
}
