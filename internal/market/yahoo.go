package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradesim-go/internal/signal"
)

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooChartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// closes prefers adjusted closes when Yahoo returns them.
func (r yahooChartResult) closes() []*float64 {
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == len(r.Timestamp) {
		return r.Indicators.AdjClose[0].AdjClose
	}
	if len(r.Indicators.Quote) > 0 {
		return r.Indicators.Quote[0].Close
	}
	return nil
}

func (h *History) fetchYahoo(ctx context.Context, symbol string, start, end time.Time) (signal.PriceSeries, error) {
	if end.IsZero() {
		end = time.Now()
	}
	var period1 int64
	if !start.IsZero() {
		period1 = start.Unix()
	}
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(period1, 10))
	// period2 is exclusive upstream; include the end day.
	q.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", h.interval)
	q.Set("events", "history")
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", h.yahooBaseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) tradesim")
	req.Header.Set("Accept", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart api returned status %d", resp.StatusCode)
	}

	var payload yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("chart api error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	result := payload.Chart.Result[0]
	closes := result.closes()
	if len(closes) != len(result.Timestamp) {
		return nil, fmt.Errorf("chart api returned %d timestamps for %d closes", len(result.Timestamp), len(closes))
	}

	out := make(signal.PriceSeries, 0, len(closes))
	for i, c := range closes {
		// Null closes mark halted or not-yet-settled sessions.
		if c == nil || *c <= 0 {
			continue
		}
		ts := dayOf(time.Unix(result.Timestamp[i], 0))
		if !inRange(ts, dayOf(start), dayOf(end)) {
			continue
		}
		if n := len(out); n > 0 && !ts.After(out[n-1].Ts) {
			continue
		}
		out = append(out, signal.PricePoint{Ts: ts, Price: *c})
	}
	return out, nil
}
