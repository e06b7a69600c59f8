package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"tradesim-go/internal/backtest"
	"tradesim-go/internal/sentiment"
)

// Row is one exported bar.
type Row struct {
	Ts         time.Time
	Price      float64
	Action     string
	Value      float64
	BuyAndHold float64
}

// Rows pairs each simulation step with its baseline value.
func Rows(res *backtest.Result, buyAndHold []float64) ([]Row, error) {
	if len(buyAndHold) != len(res.Steps) {
		return nil, fmt.Errorf("rows: %d baseline values for %d steps", len(buyAndHold), len(res.Steps))
	}
	out := make([]Row, len(res.Steps))
	for i, st := range res.Steps {
		out[i] = Row{
			Ts:         st.Ts,
			Price:      st.Price,
			Action:     st.Action.String(),
			Value:      st.Value,
			BuyAndHold: buyAndHold[i],
		}
	}
	return out, nil
}

// WriteCSV writes timestamp, price, action, value and buy_and_hold columns.
func WriteCSV(path string, rows []Row) error {
	ts := make([]string, len(rows))
	prices := make([]float64, len(rows))
	actions := make([]string, len(rows))
	values := make([]float64, len(rows))
	bh := make([]float64, len(rows))
	for i, r := range rows {
		ts[i] = r.Ts.Format(time.DateOnly)
		prices[i] = r.Price
		actions[i] = r.Action
		values[i] = r.Value
		bh[i] = r.BuyAndHold
	}
	df := dataframe.New(
		series.New(ts, series.String, "timestamp"),
		series.New(prices, series.Float, "price"),
		series.New(actions, series.String, "action"),
		series.New(values, series.Float, "value"),
		series.New(bh, series.Float, "buy_and_hold"),
	)
	return writeFrame(path, df)
}

// WriteSentimentCSV writes the daily sentiment series as date, score, count.
func WriteSentimentCSV(path string, daily []sentiment.DailyScore) error {
	dates := make([]string, len(daily))
	scores := make([]float64, len(daily))
	counts := make([]int, len(daily))
	for i, d := range daily {
		dates[i] = d.Date
		scores[i] = d.Score
		counts[i] = d.Count
	}
	df := dataframe.New(
		series.New(dates, series.String, "date"),
		series.New(scores, series.Float, "score"),
		series.New(counts, series.Int, "count"),
	)
	return writeFrame(path, df)
}

func writeFrame(path string, df dataframe.DataFrame) error {
	if df.Err != nil {
		return fmt.Errorf("build frame: %w", df.Err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
