// Package indicator computes technical indicators over close series.
//
// Every batch indicator returns a Line whose first Warmup values are
// undefined. Callers test Defined(i) instead of probing for NaN.
package indicator

import "math"

// Line is an indicator output aligned 1:1 with its input.
type Line struct {
	Values []float64
	Warmup int
}

// Len returns the number of values.
func (l Line) Len() int { return len(l.Values) }

// Defined reports whether index i carries a real value.
func (l Line) Defined(i int) bool { return i >= l.Warmup && i < len(l.Values) }

// At returns the value at i and whether it is defined.
func (l Line) At(i int) (float64, bool) {
	if !l.Defined(i) {
		return 0, false
	}
	return l.Values[i], true
}

func undefinedLine(n, warmup int) Line {
	if warmup > n {
		warmup = n
	}
	values := make([]float64, n)
	for i := 0; i < warmup; i++ {
		values[i] = math.NaN()
	}
	return Line{Values: values, Warmup: warmup}
}

// JointWarmup returns the first index at which all lines are defined.
func JointWarmup(lines ...Line) int {
	w := 0
	for _, l := range lines {
		if l.Warmup > w {
			w = l.Warmup
		}
	}
	return w
}
