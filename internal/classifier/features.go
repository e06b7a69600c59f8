// Package classifier prepares technical feature rows for an up/down model,
// fetches its probabilities and scores its predictions.
package classifier

import (
	"math"

	"tradesim-go/internal/indicator"
)

// FeatureNames is the column order of every feature row.
var FeatureNames = []string{
	"rsi", "macd", "macd_signal", "bb_high", "bb_low",
	"return_1d", "return_2d", "return_3d",
}

// Matrix holds one feature row per close. Rows below Warmup contain NaN.
type Matrix struct {
	Names  []string
	Rows   [][]float64
	Warmup int
}

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// Features computes RSI(14), MACD(12,26,9) line and signal, Bollinger(20,2)
// bands and 1/2/3-day returns for each close.
func Features(closes []float64) Matrix {
	rsi := indicator.RSI(closes, 14)
	macd := indicator.MACD(closes, 12, 26, 9)
	bb := indicator.Bollinger(closes, 20, 2)
	r1 := indicator.PctChange(closes, 1)
	r2 := indicator.PctChange(closes, 2)
	r3 := indicator.PctChange(closes, 3)

	cols := []indicator.Line{rsi, macd.MACD, macd.Signal, bb.Upper, bb.Lower, r1, r2, r3}
	warmup := indicator.JointWarmup(cols...)
	if warmup > len(closes) {
		warmup = len(closes)
	}
	rows := make([][]float64, len(closes))
	for i := range rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			if v, ok := c.At(i); ok {
				row[j] = v
			} else {
				row[j] = math.NaN()
			}
		}
		rows[i] = row
	}
	return Matrix{Names: FeatureNames, Rows: rows, Warmup: warmup}
}

// Targets labels row i with 1 when closes[i+1] > closes[i], else 0. The last
// close has no successor, so the result has len(closes)-1 entries.
func Targets(closes []float64) []int {
	if len(closes) < 2 {
		return nil
	}
	out := make([]int, len(closes)-1)
	for i := range out {
		if closes[i+1] > closes[i] {
			out[i] = 1
		}
	}
	return out
}

// DefaultSplitRatio is the share of usable rows used for training.
const DefaultSplitRatio = 0.8

// SplitIndex returns the number of training rows out of n, in chronological
// order. Ratios outside (0, 1) fall back to DefaultSplitRatio.
func SplitIndex(n int, ratio float64) int {
	if n <= 0 {
		return 0
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = DefaultSplitRatio
	}
	return int(ratio * float64(n))
}

// Window locates the train and test rows within a close series of length n.
// Rows [TrainStart, TestStart) train the model, [TestStart, End) are scored
// and traded. End excludes the final close, which has no target.
type Window struct {
	TrainStart int
	TestStart  int
	End        int
}

// Train returns the number of training rows.
func (w Window) Train() int { return w.TestStart - w.TrainStart }

// Test returns the number of test rows.
func (w Window) Test() int { return w.End - w.TestStart }

// Layout splits the rows that have both features and a target.
func Layout(n, warmup int, ratio float64) Window {
	end := n - 1
	if end < 0 {
		end = 0
	}
	if warmup > end {
		warmup = end
	}
	return Window{
		TrainStart: warmup,
		TestStart:  warmup + SplitIndex(end-warmup, ratio),
		End:        end,
	}
}
