package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tradesim-go/internal/sentiment"
)

func openTemp(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "tradesim.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDailySentimentUpsert(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	first := []sentiment.DailyScore{
		{Date: "2024-07-02", Score: 0.4, Count: 3},
		{Date: "2024-07-01", Score: -0.3, Count: 1},
	}
	if err := db.SaveDailySentiment(ctx, "AAPL", first); err != nil {
		t.Fatalf("SaveDailySentiment error: %v", err)
	}
	if err := db.SaveDailySentiment(ctx, "AAPL", []sentiment.DailyScore{{Date: "2024-07-02", Score: 0.1, Count: 5}}); err != nil {
		t.Fatalf("SaveDailySentiment upsert error: %v", err)
	}
	if err := db.SaveDailySentiment(ctx, "MSFT", []sentiment.DailyScore{{Date: "2024-07-01", Score: 0.9, Count: 1}}); err != nil {
		t.Fatalf("SaveDailySentiment error: %v", err)
	}

	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	got, err := db.DailySentiment(ctx, "AAPL", from, to)
	if err != nil {
		t.Fatalf("DailySentiment error: %v", err)
	}
	if len(got) != 2 || got[0].Date != "2024-07-01" {
		t.Fatalf("unexpected rows %+v", got)
	}
	if got[1].Score != 0.1 || got[1].Count != 5 {
		t.Fatalf("upsert not applied: %+v", got[1])
	}

	none, err := db.DailySentiment(ctx, "AAPL", to.AddDate(0, 1, 0), to.AddDate(0, 2, 0))
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty range, got %+v %v", none, err)
	}
}

func TestRuns(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	for i, sym := range []string{"AAPL", "MSFT", "AAPL"} {
		run := Run{
			ID:          sym + "-" + string(rune('a'+i)),
			Symbol:      sym,
			Strategy:    "sma_40_100",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			Bars:        250,
			InitialCash: 100000,
			FinalValue:  100000 + float64(i)*1000,
			BuyAndHold:  110000,
			Fills:       i,
		}
		if err := db.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun error: %v", err)
		}
	}

	aapl, err := db.Runs(ctx, "AAPL", 0)
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if len(aapl) != 2 || aapl[0].ID != "AAPL-c" || aapl[1].ID != "AAPL-a" {
		t.Fatalf("unexpected runs %+v", aapl)
	}
	if !aapl[0].StartedAt.Equal(base.Add(2*time.Hour)) || aapl[0].FinalValue != 102000 {
		t.Fatalf("unexpected round trip %+v", aapl[0])
	}

	all, err := db.Runs(ctx, "", 2)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 runs with limit, got %d %v", len(all), err)
	}

	if err := db.SaveRun(ctx, Run{ID: "AAPL-a", Symbol: "AAPL", Strategy: "x", StartedAt: base}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}
