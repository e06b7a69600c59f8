package indicator

import "math"

// RSI computes the relative strength index with Wilder smoothing
// (alpha = 1/window). The first bar has no change and counts as a zero gain
// and loss, so the averages start at index 0 and RSI is defined from
// index window-1 onward.
func RSI(closes []float64, window int) Line {
	if window <= 0 {
		window = 14
	}
	n := len(closes)
	up := make([]float64, n)
	down := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			up[i] = d
		} else {
			down[i] = -d
		}
	}
	alpha := 1 / float64(window)
	avgUp := smooth(up, 0, window, alpha)
	avgDown := smooth(down, 0, window, alpha)

	line := undefinedLine(n, window-1)
	for i := line.Warmup; i < n; i++ {
		if avgDown.Values[i] == 0 {
			line.Values[i] = 100
			continue
		}
		rs := avgUp.Values[i] / avgDown.Values[i]
		line.Values[i] = 100 - 100/(1+rs)
	}
	return line
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD   Line
	Signal Line
	Hist   Line
}

// MACD computes the difference of two EMAs and its signal EMA.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	if fast <= 0 {
		fast = 12
	}
	if slow <= 0 {
		slow = 26
	}
	if signal <= 0 {
		signal = 9
	}
	fastLine := EMA(closes, fast)
	slowLine := EMA(closes, slow)

	n := len(closes)
	macd := undefinedLine(n, JointWarmup(fastLine, slowLine))
	for i := macd.Warmup; i < n; i++ {
		macd.Values[i] = fastLine.Values[i] - slowLine.Values[i]
	}
	sig := emaFrom(macd.Values, macd.Warmup, signal)
	hist := undefinedLine(n, sig.Warmup)
	for i := hist.Warmup; i < n; i++ {
		hist.Values[i] = macd.Values[i] - sig.Values[i]
	}
	return MACDResult{MACD: macd, Signal: sig, Hist: hist}
}

// Bands holds Bollinger middle, upper and lower lines.
type Bands struct {
	Mid   Line
	Upper Line
	Lower Line
}

// Bollinger computes bands at dev population standard deviations around the SMA.
func Bollinger(closes []float64, window int, dev float64) Bands {
	if window <= 0 {
		window = 20
	}
	if dev <= 0 {
		dev = 2
	}
	mid := SMA(closes, window)
	n := len(closes)
	upper := undefinedLine(n, mid.Warmup)
	lower := undefinedLine(n, mid.Warmup)
	for i := mid.Warmup; i < n; i++ {
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			d := closes[j] - mid.Values[i]
			ss += d * d
		}
		std := math.Sqrt(ss / float64(window))
		upper.Values[i] = mid.Values[i] + dev*std
		lower.Values[i] = mid.Values[i] - dev*std
	}
	return Bands{Mid: mid, Upper: upper, Lower: lower}
}

// PctChange returns the k-period fractional change.
func PctChange(closes []float64, k int) Line {
	if k <= 0 {
		k = 1
	}
	line := undefinedLine(len(closes), k)
	for i := k; i < len(closes); i++ {
		line.Values[i] = (closes[i] - closes[i-k]) / closes[i-k]
	}
	return line
}
