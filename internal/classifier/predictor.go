package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrMissingPrediction is returned when a predictor has no value for a test row.
var ErrMissingPrediction = errors.New("prediction missing")

// Request carries everything a model needs to score the test rows.
type Request struct {
	Symbol   string
	Times    []time.Time
	Features Matrix
	Targets  []int
	Window   Window
}

// Predictor returns the probability of an up move for each test row,
// i.e. Window.Test() values in chronological order.
type Predictor interface {
	Predict(ctx context.Context, req Request) ([]float64, error)
}

// HTTPPredictor posts the labelled training rows and unlabelled test rows to
// an external model service at POST /predict.
type HTTPPredictor struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPredictor builds a predictor against baseURL.
func NewHTTPPredictor(baseURL string, timeout time.Duration) *HTTPPredictor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPPredictor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Symbol    string      `json:"symbol"`
	Features  []string    `json:"features"`
	Dates     []string    `json:"dates"`
	Rows      [][]float64 `json:"rows"`
	Targets   []int       `json:"targets"`
	TrainRows int         `json:"train_rows"`
}

type predictResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

// Predict sends rows [TrainStart, End); targets are sent for training rows only.
func (p *HTTPPredictor) Predict(ctx context.Context, req Request) ([]float64, error) {
	w := req.Window
	if w.Test() <= 0 {
		return nil, nil
	}
	if w.End > req.Features.Len() || w.End > len(req.Times) || w.TestStart > len(req.Targets) {
		return nil, fmt.Errorf("predict %s: window %+v exceeds inputs", req.Symbol, w)
	}
	payload := predictRequest{
		Symbol:    req.Symbol,
		Features:  req.Features.Names,
		Rows:      req.Features.Rows[w.TrainStart:w.End],
		Targets:   req.Targets[w.TrainStart:w.TestStart],
		TrainRows: w.Train(),
	}
	payload.Dates = make([]string, 0, w.End-w.TrainStart)
	for _, ts := range req.Times[w.TrainStart:w.End] {
		payload.Dates = append(payload.Dates, ts.Format(time.DateOnly))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("model service returned %d", resp.StatusCode)
	}
	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Probabilities) != w.Test() {
		return nil, fmt.Errorf("model service returned %d probabilities for %d test rows", len(out.Probabilities), w.Test())
	}
	return out.Probabilities, nil
}

// CSVPredictions serves precomputed probabilities keyed by date.
type CSVPredictions struct {
	byDate map[string]float64
}

// LoadCSVPredictions reads a file with a date column and a probability
// column (or a 0/1 prediction column).
func LoadCSVPredictions(path string) (*CSVPredictions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open predictions: %w", err)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f, dataframe.WithTypes(map[string]series.Type{"date": series.String}))
	if df.Err != nil {
		return nil, fmt.Errorf("parse predictions: %w", df.Err)
	}
	valueCol := ""
	for _, name := range df.Names() {
		if name == "probability" || name == "prediction" {
			valueCol = name
			break
		}
	}
	if valueCol == "" || !hasColumn(df.Names(), "date") {
		return nil, fmt.Errorf("predictions need date and probability columns, got %v", df.Names())
	}
	dates := df.Col("date").Records()
	values := df.Col(valueCol).Float()
	byDate := make(map[string]float64, len(dates))
	for i, d := range dates {
		d = strings.TrimSpace(d)
		if len(d) >= len(time.DateOnly) {
			d = d[:len(time.DateOnly)]
		}
		byDate[d] = values[i]
	}
	return &CSVPredictions{byDate: byDate}, nil
}

// Predict implements Predictor.
func (c *CSVPredictions) Predict(_ context.Context, req Request) ([]float64, error) {
	w := req.Window
	if w.Test() <= 0 {
		return nil, nil
	}
	if w.End > len(req.Times) {
		return nil, fmt.Errorf("predict %s: window %+v exceeds inputs", req.Symbol, w)
	}
	out := make([]float64, 0, w.Test())
	for _, ts := range req.Times[w.TestStart:w.End] {
		day := ts.Format(time.DateOnly)
		p, ok := c.byDate[day]
		if !ok || math.IsNaN(p) {
			return nil, fmt.Errorf("%w for %s on %s", ErrMissingPrediction, req.Symbol, day)
		}
		out = append(out, p)
	}
	return out, nil
}

func hasColumn(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

// DirPredictions loads <Dir>/<symbol>.csv on each request.
type DirPredictions struct {
	Dir string
}

// Predict implements Predictor.
func (d DirPredictions) Predict(ctx context.Context, req Request) ([]float64, error) {
	preds, err := LoadCSVPredictions(filepath.Join(d.Dir, req.Symbol+".csv"))
	if err != nil {
		return nil, err
	}
	return preds.Predict(ctx, req)
}
