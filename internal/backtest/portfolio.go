// Package backtest replays price and action series through a single-asset, all-or-nothing cash/shares position.
package backtest

import (
	"time"

	"tradesim-go/internal/execution"
	"tradesim-go/internal/signal"
)

// Portfolio tracks cash and shares for one simulation run. It is owned by a
// single run and mutated only through Step; at most one of cash and shares is
// non-zero once the first trade has happened.
type Portfolio struct {
	symbol      string
	initialCash float64
	cash        float64
	shares      float64
	sink        execution.Sink
}

// State is a read-only view of the position after a step.
type State struct {
	Cash   float64
	Shares float64
}

// NewPortfolio starts fully in cash. sink may be nil.
func NewPortfolio(symbol string, initialCash float64, sink execution.Sink) *Portfolio {
	return &Portfolio{
		symbol:      symbol,
		initialCash: initialCash,
		cash:        initialCash,
		sink:        sink,
	}
}

// InitialCash returns the starting bankroll.
func (p *Portfolio) InitialCash() float64 { return p.initialCash }

// State returns the current cash and shares.
func (p *Portfolio) State() State { return State{Cash: p.cash, Shares: p.shares} }

// Invested reports whether the position currently holds shares.
func (p *Portfolio) Invested() bool { return p.shares > 0 }

// Value marks the position at price.
func (p *Portfolio) Value(price float64) float64 { return p.cash + p.shares*price }

// Step applies action at price and returns the fill, if any. It reads nothing
// beyond its arguments. Buy while invested and Sell while in cash are no-ops,
// as is any action at a non-positive or non-finite price.
func (p *Portfolio) Step(index int, ts time.Time, price float64, action signal.Action) (execution.Fill, bool) {
	var fill execution.Fill
	switch {
	case !signal.ValidPrice(price):
		return execution.Fill{}, false
	case action == signal.Buy && p.shares == 0 && p.cash > 0:
		qty := p.cash / price
		p.shares = qty
		p.cash = 0
		fill = execution.Fill{Side: execution.Buy, Qty: qty}
	case action == signal.Sell && p.shares > 0:
		qty := p.shares
		p.cash = qty * price
		p.shares = 0
		fill = execution.Fill{Side: execution.Sell, Qty: qty}
	default:
		return execution.Fill{}, false
	}

	fill.Index = index
	fill.Ts = ts
	fill.Symbol = p.symbol
	fill.Price = price
	fill.Cash = p.cash
	fill.Shares = p.shares
	if p.sink != nil {
		p.sink.Record(fill)
	}
	return fill, true
}
