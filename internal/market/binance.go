package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradesim-go/internal/signal"
)

const binanceKlineLimit = 1000

// kline is the subset of a Binance kline row used here.
type kline struct {
	OpenTime  time.Time
	Close     float64
	CloseTime time.Time
}

// parseKlineRow decodes [openTime, open, high, low, close, volume, closeTime, ...].
func parseKlineRow(raw []json.RawMessage) (kline, error) {
	if len(raw) < 7 {
		return kline{}, fmt.Errorf("kline row has %d fields", len(raw))
	}
	var openMs, closeMs int64
	if err := json.Unmarshal(raw[0], &openMs); err != nil {
		return kline{}, fmt.Errorf("open time: %w", err)
	}
	if err := json.Unmarshal(raw[6], &closeMs); err != nil {
		return kline{}, fmt.Errorf("close time: %w", err)
	}
	var closeStr string
	if err := json.Unmarshal(raw[4], &closeStr); err != nil {
		return kline{}, fmt.Errorf("close price: %w", err)
	}
	px, err := strconv.ParseFloat(closeStr, 64)
	if err != nil {
		return kline{}, fmt.Errorf("close price: %w", err)
	}
	return kline{OpenTime: time.UnixMilli(openMs).UTC(), Close: px, CloseTime: time.UnixMilli(closeMs).UTC()}, nil
}

func (h *History) fetchBinance(ctx context.Context, symbol string, start, end time.Time) (signal.PriceSeries, error) {
	symbol = strings.ToUpper(symbol)
	var out signal.PriceSeries
	cursor := start
	for {
		batch, rows, err := h.binanceKlines(ctx, symbol, cursor, end)
		if err != nil {
			return nil, err
		}
		for _, k := range batch {
			if n := len(out); n > 0 && !k.OpenTime.After(out[n-1].Ts) {
				continue
			}
			out = append(out, signal.PricePoint{Ts: k.OpenTime, Price: k.Close})
		}
		if rows < binanceKlineLimit || len(batch) == 0 {
			return out, nil
		}
		cursor = batch[len(batch)-1].OpenTime.Add(time.Millisecond)
		if !end.IsZero() && cursor.After(end) {
			return out, nil
		}
	}
}

// binanceKlines returns the parsed klines of one page and the raw row count.
func (h *History) binanceKlines(ctx context.Context, symbol string, start, end time.Time) ([]kline, int, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", h.interval)
	q.Set("limit", strconv.Itoa(binanceKlineLimit))
	if !start.IsZero() {
		q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	}
	if !end.IsZero() {
		q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.binanceBaseURL+"/api/v3/klines?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("klines returned status %d", resp.StatusCode)
	}

	var rows [][]json.RawMessage
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&rows); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	out := make([]kline, 0, len(rows))
	for i, row := range rows {
		k, err := parseKlineRow(row)
		if err != nil {
			h.log.Warn().Err(err).Int("row", i).Msg("skipping malformed kline")
			continue
		}
		out = append(out, k)
	}
	return out, len(rows), nil
}
