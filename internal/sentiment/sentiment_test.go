package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tradesim-go/internal/news"
	"tradesim-go/internal/signal"
)

func TestClassify(t *testing.T) {
	cases := map[float64]Label{0.05: Positive, 0.8: Positive, -0.05: Negative, 0.049: Neutral, 0: Neutral}
	for score, want := range cases {
		if got := Classify(score); got != want {
			t.Fatalf("Classify(%v) = %s, want %s", score, got, want)
		}
	}
	if Positive.Value() != 1 || Negative.Value() != -1 || Neutral.Value() != 0 {
		t.Fatalf("unexpected label values")
	}
}

func TestHTTPScorer(t *testing.T) {
	var (
		mu       sync.Mutex
		lastText string
	)
	seen := func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastText
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		lastText = req.Text
		mu.Unlock()
		label := "neutral"
		switch {
		case strings.Contains(req.Text, "beats"):
			label = "positive"
		case strings.Contains(req.Text, "misses"):
			label = "negative"
		}
		_ = json.NewEncoder(w).Encode(analyzeResponse{Label: label, Score: 0.9})
	}))
	defer server.Close()

	scorer := NewHTTPScorer(server.URL, time.Second)
	ctx := context.Background()

	if s, err := scorer.Score(ctx, "Apple beats estimates"); err != nil || s != 0.9 {
		t.Fatalf("positive: got %v, %v", s, err)
	}
	if s, err := scorer.Score(ctx, "Apple misses estimates"); err != nil || s != -0.9 {
		t.Fatalf("negative: got %v, %v", s, err)
	}
	if s, err := scorer.Score(ctx, "Apple holds event"); err != nil || s != 0 {
		t.Fatalf("neutral: got %v, %v", s, err)
	}

	before := seen()
	if s, err := scorer.Score(ctx, "   "); err != nil || s != 0 {
		t.Fatalf("blank: got %v, %v", s, err)
	}
	if seen() != before {
		t.Fatalf("blank text must not reach the service")
	}

	if _, err := scorer.Score(ctx, strings.Repeat("é", 600)); err != nil {
		t.Fatalf("long text: %v", err)
	}
	if n := utf8.RuneCountInString(seen()); n != maxTextRunes {
		t.Fatalf("expected text truncated to %d runes, got %d", maxTextRunes, n)
	}
}

func TestHTTPScorerStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewHTTPScorer(server.URL, time.Second).Score(context.Background(), "text"); err == nil {
		t.Fatalf("expected error on 503")
	}
}

type mapScorer map[string]float64

func (m mapScorer) Score(_ context.Context, text string) (float64, error) {
	if v, ok := m[text]; ok {
		return v, nil
	}
	return 0, errors.New("unknown text")
}

func TestDailyAndAlign(t *testing.T) {
	headlines := []news.Headline{
		{Date: "2024-07-02", Title: "a"},
		{Date: "2024-07-02", Title: "b"},
		{Date: "2024-07-01", Title: "c"},
		{Date: "2024-07-01", Title: "broken"},
	}
	scorer := mapScorer{"a": 0.6, "b": -0.2, "c": -0.5}
	daily, err := Daily(context.Background(), scorer, headlines, zerolog.Nop())
	if err != nil {
		t.Fatalf("Daily error: %v", err)
	}
	if len(daily) != 2 || daily[0].Date != "2024-07-01" || daily[1].Date != "2024-07-02" {
		t.Fatalf("unexpected daily %+v", daily)
	}
	if daily[0].Score != -0.5 || daily[0].Count != 1 {
		t.Fatalf("failed headline should be skipped, got %+v", daily[0])
	}
	if math.Abs(daily[1].Score-0.2) > 1e-9 {
		t.Fatalf("unexpected mean %v", daily[1].Score)
	}

	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	points := signal.PriceSeries{
		{Ts: day, Price: 1},
		{Ts: day.AddDate(0, 0, 1), Price: 1},
		{Ts: day.AddDate(0, 0, 2), Price: 1},
	}
	aligned := Align(daily, points)
	if aligned[0] != -0.5 || math.Abs(aligned[1]-0.2) > 1e-9 || aligned[2] != 0 {
		t.Fatalf("unexpected alignment %v", aligned)
	}
}

func TestLabelScorer(t *testing.T) {
	ls := LabelScorer{Scorer: mapScorer{"up": 0.3, "flat": 0.01, "down": -0.4}}
	for text, want := range map[string]float64{"up": 1, "flat": 0, "down": -1} {
		got, err := ls.Score(context.Background(), text)
		if err != nil || got != want {
			t.Fatalf("%s: got %v, %v", text, got, err)
		}
	}
}

func TestDailyHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Daily(ctx, mapScorer{"a": 1}, []news.Headline{{Date: "2024-07-01", Title: "a"}}, zerolog.Nop())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
