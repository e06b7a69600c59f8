package market

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"tradesim-go/internal/signal"
)

// closeColumns lists accepted close column headers in order of preference.
var closeColumns = []string{"Adj Close", "Close", "close", "price"}

var dateColumns = []string{"Date", "date", "timestamp"}

func (h *History) fetchCSV(symbol string, start, end time.Time) (signal.PriceSeries, error) {
	path := filepath.Join(h.csvDir, symbol+".csv")
	return ReadCSV(path, start, end)
}

// ReadCSV loads a price file with a date column and a close column. Rows
// with an unparsable date or a non-positive close are skipped; the result is
// sorted and restricted to [start, end].
func ReadCSV(path string, start, end time.Time) (signal.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	types := make(map[string]series.Type, len(dateColumns))
	for _, c := range dateColumns {
		types[c] = series.String
	}
	df := dataframe.ReadCSV(f, dataframe.WithTypes(types))
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}
	dateCol, ok := pickColumn(df.Names(), dateColumns)
	if !ok {
		return nil, fmt.Errorf("csv %s: no date column", filepath.Base(path))
	}
	closeCol, ok := pickColumn(df.Names(), closeColumns)
	if !ok {
		return nil, fmt.Errorf("csv %s: no close column", filepath.Base(path))
	}

	dates := df.Col(dateCol).Records()
	closes := df.Col(closeCol).Float()
	out := make(signal.PriceSeries, 0, len(dates))
	for i, raw := range dates {
		ts, err := parseDay(raw)
		if err != nil || !(closes[i] > 0) {
			continue
		}
		if !inRange(ts, dayOf(start), dayOf(end)) {
			continue
		}
		out = append(out, signal.PricePoint{Ts: ts, Price: closes[i]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Ts.Before(out[j].Ts) })
	return dedupeDays(out), nil
}

func pickColumn(names, candidates []string) (string, bool) {
	have := make(map[string]struct{}, len(names))
	for _, n := range names {
		have[n] = struct{}{}
	}
	for _, c := range candidates {
		if _, ok := have[c]; ok {
			return c, true
		}
	}
	return "", false
}

// parseDay accepts YYYY-MM-DD optionally followed by a time component.
func parseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) < len(time.DateOnly) {
		return time.Time{}, fmt.Errorf("short date %q", raw)
	}
	return time.Parse(time.DateOnly, raw[:len(time.DateOnly)])
}

// dedupeDays keeps the last row per timestamp of a sorted series.
func dedupeDays(in signal.PriceSeries) signal.PriceSeries {
	out := in[:0]
	for _, p := range in {
		if n := len(out); n > 0 && out[n-1].Ts.Equal(p.Ts) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
