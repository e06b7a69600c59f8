package indicator

// SMA computes the simple moving average. The first window-1 values are undefined.
func SMA(closes []float64, window int) Line {
	if window <= 0 {
		window = 1
	}
	line := undefinedLine(len(closes), window-1)
	var sum float64
	for i, c := range closes {
		sum += c
		if i >= window {
			sum -= closes[i-window]
		}
		if i >= window-1 {
			line.Values[i] = sum / float64(window)
		}
	}
	return line
}

// EMA computes an exponential moving average with alpha = 2/(span+1), seeded
// with the first value and undefined until span observations have been seen.
func EMA(values []float64, span int) Line {
	return emaFrom(values, 0, span)
}

// emaFrom runs the recursion starting at start, treating earlier values as
// missing. The result is defined from start+span-1.
func emaFrom(values []float64, start, span int) Line {
	if span <= 0 {
		span = 1
	}
	return smooth(values, start, span, 2/float64(span+1))
}

// smooth is the adjust=false exponential recursion shared by EMA and RSI.
func smooth(values []float64, start, minPeriods int, alpha float64) Line {
	line := undefinedLine(len(values), start+minPeriods-1)
	if start >= len(values) {
		return line
	}
	prev := values[start]
	for i := start; i < len(values); i++ {
		if i > start {
			prev = alpha*values[i] + (1-alpha)*prev
		}
		if i >= line.Warmup {
			line.Values[i] = prev
		}
	}
	return line
}

// RollingMean is a streaming fixed-window mean for bar-by-bar use.
type RollingMean struct {
	window int
	buf    []float64
	next   int
	filled bool
	sum    float64
}

// NewRollingMean builds a rolling mean over window observations.
func NewRollingMean(window int) *RollingMean {
	if window <= 0 {
		window = 1
	}
	return &RollingMean{window: window, buf: make([]float64, window)}
}

// Push adds an observation and returns the mean once the window is full.
func (r *RollingMean) Push(v float64) (float64, bool) {
	if r.filled {
		r.sum -= r.buf[r.next]
	}
	r.buf[r.next] = v
	r.sum += v
	r.next++
	if r.next == r.window {
		r.next = 0
		r.filled = true
	}
	if !r.filled {
		return 0, false
	}
	return r.sum / float64(r.window), true
}

// Ready reports whether the window is full.
func (r *RollingMean) Ready() bool { return r.filled }
