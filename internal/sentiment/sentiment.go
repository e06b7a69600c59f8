// Package sentiment scores headlines and aggregates the scores per trading day.
package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"tradesim-go/internal/news"
	"tradesim-go/internal/signal"
)

// Scorer returns a polarity score in [-1, 1] for a piece of text.
type Scorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// Label buckets a score into positive, negative or neutral.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// LabelThreshold is the absolute score separating neutral from a polar label.
const LabelThreshold = 0.05

// Classify maps a compound score onto a label.
func Classify(score float64) Label {
	switch {
	case score >= LabelThreshold:
		return Positive
	case score <= -LabelThreshold:
		return Negative
	default:
		return Neutral
	}
}

// Value returns +1, -1 or 0.
func (l Label) Value() float64 {
	switch l {
	case Positive:
		return 1
	case Negative:
		return -1
	}
	return 0
}

// LabelScorer collapses another scorer's output to +1, -1 or 0, so daily
// means become the net share of positive headlines.
type LabelScorer struct {
	Scorer Scorer
}

// Score implements Scorer.
func (l LabelScorer) Score(ctx context.Context, text string) (float64, error) {
	raw, err := l.Scorer.Score(ctx, text)
	if err != nil {
		return 0, err
	}
	return Classify(raw).Value(), nil
}

const maxTextRunes = 512

// HTTPScorer calls an external classification service exposing POST /analyze.
type HTTPScorer struct {
	baseURL string
	client  *http.Client
}

// NewHTTPScorer builds a scorer against baseURL.
func NewHTTPScorer(baseURL string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score returns +score for a positive label, -score for a negative one and 0
// otherwise. Blank text scores 0 without a request.
func (s *HTTPScorer) Score(ctx context.Context, text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	text = truncateRunes(text, maxTextRunes)

	body, err := json.Marshal(analyzeRequest{Text: text})
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("sentiment service returned %d", resp.StatusCode)
	}
	var out analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	switch Label(strings.ToLower(out.Label)) {
	case Positive:
		return out.Score, nil
	case Negative:
		return -out.Score, nil
	}
	return 0, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// DailyScore is the mean headline score of one calendar day.
type DailyScore struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
	Count int     `json:"count"`
}

// Daily scores every headline title and averages per day, ordered by date.
// A failing headline is logged and skipped.
func Daily(ctx context.Context, scorer Scorer, headlines []news.Headline, log zerolog.Logger) ([]DailyScore, error) {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, h := range headlines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, err := scorer.Score(ctx, h.Title)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Str("title", h.Title).Msg("sentiment scoring failed")
			continue
		}
		sums[h.Date] += score
		counts[h.Date]++
	}
	out := make([]DailyScore, 0, len(sums))
	for date, sum := range sums {
		out = append(out, DailyScore{Date: date, Score: sum / float64(counts[date]), Count: counts[date]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// Align returns one score per price point; days without headlines score 0.
func Align(daily []DailyScore, points signal.PriceSeries) []float64 {
	byDate := make(map[string]float64, len(daily))
	for _, d := range daily {
		byDate[d.Date] = d.Score
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = byDate[p.Ts.UTC().Format(time.DateOnly)]
	}
	return out
}
