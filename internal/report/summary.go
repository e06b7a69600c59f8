// Package report summarizes simulation results and exports them as tables.
package report

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"tradesim-go/internal/backtest"
)

var hundred = decimal.NewFromInt(100)

// Summary condenses one run. Money is rounded to cents, percentages to two places.
type Summary struct {
	RunID            string          `json:"run_id,omitempty"`
	Symbol           string          `json:"symbol"`
	Strategy         string          `json:"strategy"`
	Start            time.Time       `json:"start"`
	End              time.Time       `json:"end"`
	Bars             int             `json:"bars"`
	Fills            int             `json:"fills"`
	InitialCash      decimal.Decimal `json:"initial_cash"`
	FinalValue       decimal.Decimal `json:"final_value"`
	BuyAndHold       decimal.Decimal `json:"buy_and_hold"`
	StrategyReturn   decimal.Decimal `json:"strategy_return_pct"`
	BuyAndHoldReturn decimal.Decimal `json:"buy_and_hold_return_pct"`
	Excess           decimal.Decimal `json:"excess_return_pct"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown_pct"`
}

// Summarize builds a Summary from a result and its buy-and-hold baseline.
func Summarize(strategy string, res *backtest.Result, buyAndHold []float64) (Summary, error) {
	if res == nil || len(res.Steps) == 0 {
		return Summary{}, errors.New("summarize: empty result")
	}
	if len(buyAndHold) != len(res.Steps) {
		return Summary{}, fmt.Errorf("summarize: %d baseline values for %d steps", len(buyAndHold), len(res.Steps))
	}
	initial := decimal.NewFromFloat(res.InitialCash)
	final := decimal.NewFromFloat(res.FinalValue())
	bh := decimal.NewFromFloat(buyAndHold[len(buyAndHold)-1])

	s := Summary{
		Symbol:      res.Symbol,
		Strategy:    strategy,
		Start:       res.Steps[0].Ts,
		End:         res.Steps[len(res.Steps)-1].Ts,
		Bars:        len(res.Steps),
		Fills:       len(res.Fills),
		InitialCash: initial.Round(2),
		FinalValue:  final.Round(2),
		BuyAndHold:  bh.Round(2),
	}
	s.StrategyReturn = pctChange(initial, final)
	s.BuyAndHoldReturn = pctChange(initial, bh)
	s.Excess = s.StrategyReturn.Sub(s.BuyAndHoldReturn)
	s.MaxDrawdown = decimal.NewFromFloat(MaxDrawdown(res.Values())).Mul(hundred).Round(2)
	return s, nil
}

func pctChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Div(from).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction.
func MaxDrawdown(values []float64) float64 {
	var peak, worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// PrintSummary writes the three headline figures of a run.
func PrintSummary(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w,
		"%s [%s]\nInitial capital:        %s\nFinal strategy value:   %s\nFinal buy & hold value: %s\n",
		s.Symbol, s.Strategy, s.InitialCash.StringFixed(2), s.FinalValue.StringFixed(2), s.BuyAndHold.StringFixed(2))
	return err
}

// PrintTable writes one aligned row per summary.
func PrintTable(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tSTRATEGY\tBARS\tFILLS\tINITIAL\tFINAL\tB&H\tRET%\tB&H%\tEXCESS%\tMAXDD%\t")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Symbol, s.Strategy, s.Bars, s.Fills,
			s.InitialCash.StringFixed(2), s.FinalValue.StringFixed(2), s.BuyAndHold.StringFixed(2),
			s.StrategyReturn.StringFixed(2), s.BuyAndHoldReturn.StringFixed(2),
			s.Excess.StringFixed(2), s.MaxDrawdown.StringFixed(2))
	}
	return tw.Flush()
}
