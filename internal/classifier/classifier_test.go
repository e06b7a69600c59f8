package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func wave(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 5*math.Sin(float64(i)/3) + 0.1*float64(i)
	}
	return out
}

func days(n int) []time.Time {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i)
	}
	return out
}

func TestFeaturesWarmup(t *testing.T) {
	closes := wave(60)
	m := Features(closes)
	if m.Len() != 60 || len(m.Names) != len(FeatureNames) {
		t.Fatalf("unexpected shape %d x %d", m.Len(), len(m.Names))
	}
	// MACD signal needs 26 + 9 - 1 closes.
	if m.Warmup != 33 {
		t.Fatalf("expected warmup 33, got %d", m.Warmup)
	}
	if !math.IsNaN(m.Rows[m.Warmup-1][2]) {
		t.Fatalf("macd_signal should be undefined before warmup")
	}
	for j, v := range m.Rows[m.Warmup] {
		if math.IsNaN(v) {
			t.Fatalf("feature %s undefined at warmup", m.Names[j])
		}
	}
	row := m.Rows[40]
	if row[3] <= row[4] {
		t.Fatalf("bb_high must exceed bb_low, got %v <= %v", row[3], row[4])
	}
	wantR1 := (closes[40] - closes[39]) / closes[39]
	if math.Abs(row[5]-wantR1) > 1e-12 {
		t.Fatalf("return_1d = %v, want %v", row[5], wantR1)
	}
}

func TestTargets(t *testing.T) {
	got := Targets([]float64{1, 2, 2, 1, 3})
	want := []int{1, 0, 0, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %d targets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("target %d: got %d want %d", i, got[i], want[i])
		}
	}
	if Targets([]float64{1}) != nil {
		t.Fatalf("single close has no target")
	}
}

func TestSplitAndLayout(t *testing.T) {
	if SplitIndex(100, 0.8) != 80 || SplitIndex(10, 0) != 8 || SplitIndex(0, 0.8) != 0 {
		t.Fatalf("unexpected split index")
	}
	w := Layout(60, 33, 0.8)
	if w.TrainStart != 33 || w.End != 59 || w.TestStart != 33+20 {
		t.Fatalf("unexpected window %+v", w)
	}
	if w.Train() != 20 || w.Test() != 6 {
		t.Fatalf("unexpected sizes train=%d test=%d", w.Train(), w.Test())
	}
	if short := Layout(10, 33, 0.8); short.Test() != 0 {
		t.Fatalf("short series must have empty test window, got %+v", short)
	}
}

func TestHTTPPredictor(t *testing.T) {
	closes := wave(60)
	m := Features(closes)
	w := Layout(len(closes), m.Warmup, 0.8)
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Rows) != w.End-w.TrainStart || len(req.Targets) != w.Train() || req.TrainRows != w.Train() {
			t.Errorf("unexpected payload rows=%d targets=%d train=%d", len(req.Rows), len(req.Targets), req.TrainRows)
		}
		if len(req.Dates) != len(req.Rows) || req.Dates[0] != "2024-02-03" {
			t.Errorf("unexpected dates %v", req.Dates[:1])
		}
		probs := make([]float64, len(req.Rows)-req.TrainRows)
		for i := range probs {
			probs[i] = 0.7
		}
		_ = json.NewEncoder(rw).Encode(predictResponse{Probabilities: probs})
	}))
	defer server.Close()

	p := NewHTTPPredictor(server.URL, time.Second)
	probs, err := p.Predict(context.Background(), Request{
		Symbol: "AAPL", Times: days(len(closes)), Features: m, Targets: Targets(closes), Window: w,
	})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if len(probs) != w.Test() {
		t.Fatalf("expected %d probabilities, got %d", w.Test(), len(probs))
	}
}

func TestHTTPPredictorRejectsWrongLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`{"probabilities":[0.5]}`))
	}))
	defer server.Close()

	closes := wave(60)
	m := Features(closes)
	req := Request{Symbol: "AAPL", Times: days(60), Features: m, Targets: Targets(closes), Window: Layout(60, m.Warmup, 0.8)}
	if _, err := NewHTTPPredictor(server.URL, time.Second).Predict(context.Background(), req); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestCSVPredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preds.csv")
	content := "date,probability\n2024-01-04,0.9\n2024-01-05,0.2\n2024-01-06,0.6\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	preds, err := LoadCSVPredictions(path)
	if err != nil {
		t.Fatalf("LoadCSVPredictions error: %v", err)
	}
	w := Window{TrainStart: 0, TestStart: 3, End: 6}
	probs, err := preds.Predict(context.Background(), Request{Symbol: "AAPL", Times: days(7), Window: w})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	want := []float64{0.9, 0.2, 0.6}
	for i := range want {
		if probs[i] != want[i] {
			t.Fatalf("prob %d: got %v want %v", i, probs[i], want[i])
		}
	}

	w.End = 7
	if _, err := preds.Predict(context.Background(), Request{Symbol: "AAPL", Times: days(7), Window: w}); !errors.Is(err, ErrMissingPrediction) {
		t.Fatalf("expected ErrMissingPrediction, got %v", err)
	}
}

func TestLoadCSVPredictionsNeedsColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	_ = os.WriteFile(path, []byte("day,score\n2024-01-01,1\n"), 0o644)
	if _, err := LoadCSVPredictions(path); err == nil {
		t.Fatalf("expected column error")
	}
}

func TestProbabilityLine(t *testing.T) {
	w := Window{TrainStart: 1, TestStart: 3, End: 5}
	line, err := ProbabilityLine(w, []float64{0.4, 0.8})
	if err != nil {
		t.Fatalf("ProbabilityLine error: %v", err)
	}
	if line.Len() != 5 || line.Warmup != 3 {
		t.Fatalf("unexpected line %+v", line)
	}
	if v, ok := line.At(4); !ok || v != 0.8 {
		t.Fatalf("expected 0.8 at 4, got %v %v", v, ok)
	}
	if line.Defined(2) {
		t.Fatalf("training rows must be undefined")
	}
	if _, err := ProbabilityLine(w, []float64{0.1}); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestEvaluate(t *testing.T) {
	e, err := Evaluate(Labels([]float64{0.9, 0.1, 0.6, 0.4, 0.5}, 0.5), []int{1, 0, 0, 1, 1})
	if err != nil {
		t.Fatalf("Evaluate error: %v", err)
	}
	if e.TP != 2 || e.TN != 1 || e.FP != 1 || e.FN != 1 || e.N != 5 {
		t.Fatalf("unexpected confusion %+v", e)
	}
	if math.Abs(e.Accuracy-0.6) > 1e-12 {
		t.Fatalf("unexpected accuracy %v", e.Accuracy)
	}
	if c := e.Confusion(); c[0][0] != 1 || c[1][1] != 2 {
		t.Fatalf("unexpected matrix %v", c)
	}
	if _, err := Evaluate([]int{1}, nil); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestDirPredictions(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "AAPL.csv"), []byte("date,prediction\n2024-01-02,1\n2024-01-03,0\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	w := Window{TrainStart: 0, TestStart: 1, End: 3}
	probs, err := DirPredictions{Dir: dir}.Predict(context.Background(), Request{Symbol: "AAPL", Times: days(3), Window: w})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if len(probs) != 2 || probs[0] != 1 || probs[1] != 0 {
		t.Fatalf("unexpected probabilities %v", probs)
	}
	if _, err := (DirPredictions{Dir: dir}).Predict(context.Background(), Request{Symbol: "MSFT", Times: days(3), Window: w}); err == nil {
		t.Fatalf("expected error for missing symbol file")
	}
}
