package pipeline

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"tradesim-go/internal/backtest"
	"tradesim-go/internal/execution"
	"tradesim-go/internal/metrics"
	"tradesim-go/internal/signal"
	"tradesim-go/internal/strategy"
)

// Paper trades closed bars as they arrive, one crossover and one portfolio
// per symbol, each seeded with the same initial cash.
type Paper struct {
	log         zerolog.Logger
	short, long int
	initialCash float64
	sink        execution.Sink
	books       map[string]*paperBook
}

type paperBook struct {
	cross     *strategy.OnlineCrossover
	portfolio *backtest.Portfolio
	last      float64
	bars      int
}

// NewPaper builds a live session; sink receives every fill and may be nil.
func NewPaper(short, long int, initialCash float64, sink execution.Sink, log zerolog.Logger) *Paper {
	return &Paper{
		log:         log,
		short:       short,
		long:        long,
		initialCash: initialCash,
		sink:        sink,
		books:       make(map[string]*paperBook),
	}
}

// OnBar advances the symbol's crossover and applies the resulting action.
// Bars with a non-positive or non-finite close are logged and dropped.
func (p *Paper) OnBar(bar signal.Bar) (execution.Fill, bool) {
	sym := strings.ToUpper(bar.Symbol)
	if !signal.ValidPrice(bar.Close) {
		p.log.Warn().Str("symbol", sym).Float64("close", bar.Close).Msg("dropping bar with invalid close")
		return execution.Fill{}, false
	}
	book, ok := p.books[sym]
	if !ok {
		book = &paperBook{
			cross:     strategy.NewOnlineCrossover(p.short, p.long),
			portfolio: backtest.NewPortfolio(sym, p.initialCash, p.sink),
		}
		p.books[sym] = book
	}
	action := book.cross.Push(bar.Close)
	fill, filled := book.portfolio.Step(book.bars, bar.Ts, bar.Close, action)
	book.bars++
	book.last = bar.Close
	metrics.FinalValue.WithLabelValues(sym, "paper").Set(book.portfolio.Value(bar.Close))
	if filled {
		p.log.Info().Str("symbol", sym).Str("side", string(fill.Side)).Float64("price", bar.Close).Msg("paper fill")
	}
	return fill, filled
}

// Value marks symbol at its last close; unknown symbols report zero.
func (p *Paper) Value(symbol string) float64 {
	book, ok := p.books[strings.ToUpper(symbol)]
	if !ok {
		return 0
	}
	return book.portfolio.Value(book.last)
}

// Run consumes bars until ctx is done or bars is closed.
func (p *Paper) Run(ctx context.Context, bars <-chan signal.Bar) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case bar, ok := <-bars:
			if !ok {
				return nil
			}
			p.OnBar(bar)
		}
	}
}
