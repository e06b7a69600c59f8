package backtest

import (
	"errors"
	"fmt"
	"math"
	"time"

	"tradesim-go/internal/execution"
	"tradesim-go/internal/signal"
)

// Price and ordering failures share their sentinels with signal.PriceSeries.Validate.
var (
	ErrEmptySeries    = errors.New("empty price series")
	ErrLengthMismatch = errors.New("price and action series differ in length")
	ErrInvalidCash    = errors.New("initial cash must be positive and finite")
	ErrInvalidPrice   = signal.ErrBadPrice
	ErrInvalidAction  = errors.New("unknown action")
	ErrUnordered      = signal.ErrUnordered
)

// InputError pins a validation failure to the offending index.
type InputError struct {
	Index int
	Err   error
}

func (e *InputError) Error() string { return fmt.Sprintf("index %d: %v", e.Index, e.Err) }

func (e *InputError) Unwrap() error { return e.Err }

// Options configures a simulation run.
type Options struct {
	Symbol      string
	InitialCash float64
	// Sink receives every fill as it happens; nil disables reporting.
	Sink execution.Sink
}

// Step is the position after processing one index.
type Step struct {
	Index  int           `json:"index"`
	Ts     time.Time     `json:"ts"`
	Price  float64       `json:"price"`
	Action signal.Action `json:"action"`
	Cash   float64       `json:"cash"`
	Shares float64       `json:"shares"`
	Value  float64       `json:"value"`
}

// Result is the output of Simulate. It is not modified afterwards.
type Result struct {
	Symbol      string
	InitialCash float64
	Steps       []Step
	Fills       []execution.Fill
}

// Values returns the portfolio value series.
func (r *Result) Values() []float64 {
	out := make([]float64, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Value
	}
	return out
}

// FinalValue returns the last portfolio value.
func (r *Result) FinalValue() float64 {
	if len(r.Steps) == 0 {
		return r.InitialCash
	}
	return r.Steps[len(r.Steps)-1].Value
}

// Simulate replays prices and actions in index order and returns the value
// series together with the fills. Inputs are validated in full before the
// first step, so an error never comes with a partial result.
func Simulate(opts Options, prices signal.PriceSeries, actions []signal.Action) (*Result, error) {
	if err := validateCash(opts.InitialCash); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrEmptySeries
	}
	if len(prices) != len(actions) {
		return nil, fmt.Errorf("%w: %d prices, %d actions", ErrLengthMismatch, len(prices), len(actions))
	}
	if err := validatePrices(prices); err != nil {
		return nil, err
	}
	for i, a := range actions {
		if !a.Valid() {
			return nil, &InputError{Index: i, Err: ErrInvalidAction}
		}
	}

	result := &Result{
		Symbol:      opts.Symbol,
		InitialCash: opts.InitialCash,
		Steps:       make([]Step, 0, len(prices)),
	}
	portfolio := NewPortfolio(opts.Symbol, opts.InitialCash, opts.Sink)
	for i, point := range prices {
		if fill, ok := portfolio.Step(i, point.Ts, point.Price, actions[i]); ok {
			result.Fills = append(result.Fills, fill)
		}
		state := portfolio.State()
		result.Steps = append(result.Steps, Step{
			Index:  i,
			Ts:     point.Ts,
			Price:  point.Price,
			Action: actions[i],
			Cash:   state.Cash,
			Shares: state.Shares,
			Value:  portfolio.Value(point.Price),
		})
	}
	return result, nil
}

// BuyAndHold is the passive reference curve: all capital invested at the
// first price and never traded again.
func BuyAndHold(initialCash float64, prices []float64) ([]float64, error) {
	if err := validateCash(initialCash); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrEmptySeries
	}
	for i, px := range prices {
		if !signal.ValidPrice(px) {
			return nil, &InputError{Index: i, Err: ErrInvalidPrice}
		}
	}
	out := make([]float64, len(prices))
	for i, px := range prices {
		out[i] = initialCash * px / prices[0]
	}
	return out, nil
}

func validateCash(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) || c <= 0 {
		return ErrInvalidCash
	}
	return nil
}

func validatePrices(prices signal.PriceSeries) error {
	for i, p := range prices {
		if !signal.ValidPrice(p.Price) {
			return &InputError{Index: i, Err: ErrInvalidPrice}
		}
		if i > 0 && !p.Ts.After(prices[i-1].Ts) {
			return &InputError{Index: i, Err: ErrUnordered}
		}
	}
	return nil
}
