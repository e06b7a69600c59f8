package indicator

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSMA(t *testing.T) {
	line := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if line.Warmup != 2 {
		t.Fatalf("expected warmup 2, got %d", line.Warmup)
	}
	if line.Defined(1) {
		t.Fatalf("index 1 should be undefined")
	}
	want := map[int]float64{2: 2, 3: 3, 4: 4}
	for i, v := range want {
		got, ok := line.At(i)
		if !ok || !approx(got, v) {
			t.Fatalf("SMA[%d] = %v (%v), want %v", i, got, ok, v)
		}
	}
}

func TestSMAShortInput(t *testing.T) {
	line := SMA([]float64{1, 2}, 5)
	if line.Defined(0) || line.Defined(1) {
		t.Fatalf("no value should be defined when input is shorter than the window")
	}
}

func TestEMA(t *testing.T) {
	line := EMA([]float64{1, 2, 3}, 3)
	if line.Warmup != 2 {
		t.Fatalf("expected warmup 2, got %d", line.Warmup)
	}
	// alpha = 0.5: 1 -> 1.5 -> 2.25
	if got, _ := line.At(2); !approx(got, 2.25) {
		t.Fatalf("EMA[2] = %v, want 2.25", got)
	}
}

func TestRSIBounds(t *testing.T) {
	rising := []float64{1, 2, 3, 4, 5, 6, 7}
	line := RSI(rising, 3)
	if line.Warmup != 2 {
		t.Fatalf("expected warmup 2, got %d", line.Warmup)
	}
	if got, _ := line.At(6); got != 100 {
		t.Fatalf("monotonic rise should give RSI 100, got %v", got)
	}

	mixed := []float64{10, 11, 10.5, 11.5, 11, 12, 11.8, 12.4}
	line = RSI(mixed, 3)
	// Averages seeded at bar 0 with zero gain and loss: up 2/9, down 1/6.
	if got, ok := line.At(2); !ok || !approx(got, 400.0/7) {
		t.Fatalf("RSI[2] = %v (defined %v), want %v", got, ok, 400.0/7)
	}
	if line.Defined(1) {
		t.Fatalf("RSI must be undefined before window-1")
	}
	for i := line.Warmup; i < line.Len(); i++ {
		if v := line.Values[i]; v < 0 || v > 100 {
			t.Fatalf("RSI[%d] out of range: %v", i, v)
		}
	}
}

func TestMACDWarmup(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	res := MACD(closes, 12, 26, 9)
	if res.MACD.Warmup != 25 {
		t.Fatalf("expected macd warmup 25, got %d", res.MACD.Warmup)
	}
	if res.Signal.Warmup != 33 {
		t.Fatalf("expected signal warmup 33, got %d", res.Signal.Warmup)
	}
	if v, ok := res.MACD.At(59); !ok || v <= 0 {
		t.Fatalf("rising series should have positive macd, got %v", v)
	}
	if _, ok := res.Hist.At(33); !ok {
		t.Fatalf("histogram should be defined with the signal line")
	}
}

func TestBollinger(t *testing.T) {
	bands := Bollinger([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8, 2)
	mid, ok := bands.Mid.At(7)
	if !ok || !approx(mid, 5) {
		t.Fatalf("unexpected mid %v", mid)
	}
	// population std of the sample is 2
	if up, _ := bands.Upper.At(7); !approx(up, 9) {
		t.Fatalf("unexpected upper %v", up)
	}
	if lo, _ := bands.Lower.At(7); !approx(lo, 1) {
		t.Fatalf("unexpected lower %v", lo)
	}
}

func TestPctChange(t *testing.T) {
	line := PctChange([]float64{10, 11, 12.1}, 1)
	if line.Defined(0) {
		t.Fatalf("first change must be undefined")
	}
	if v, _ := line.At(2); !approx(v, 0.1) {
		t.Fatalf("unexpected change %v", v)
	}
	if v, _ := PctChange([]float64{10, 11, 12}, 2).At(2); !approx(v, 0.2) {
		t.Fatalf("unexpected 2-period change %v", v)
	}
}

func TestRollingMeanMatchesSMA(t *testing.T) {
	closes := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	batch := SMA(closes, 3)
	rm := NewRollingMean(3)
	for i, c := range closes {
		v, ok := rm.Push(c)
		if ok != batch.Defined(i) {
			t.Fatalf("readiness differs at %d", i)
		}
		if ok && !approx(v, batch.Values[i]) {
			t.Fatalf("streaming mean %v != batch %v at %d", v, batch.Values[i], i)
		}
	}
	if !rm.Ready() {
		t.Fatalf("expected ready")
	}
}

func TestJointWarmup(t *testing.T) {
	if JointWarmup(Line{Warmup: 3}, Line{Warmup: 7}, Line{}) != 7 {
		t.Fatalf("unexpected joint warmup")
	}
}
