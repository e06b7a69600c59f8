package signal

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseAction(t *testing.T) {
	cases := map[string]Action{
		"":      Hold,
		"hold":  Hold,
		"BUY":   Buy,
		" sell": Sell,
	}
	for in, expected := range cases {
		got, err := ParseAction(in)
		if err != nil {
			t.Fatalf("ParseAction(%q) error: %v", in, err)
		}
		if got != expected {
			t.Fatalf("ParseAction(%q) = %s, want %s", in, got, expected)
		}
	}
	if _, err := ParseAction("short"); err == nil {
		t.Fatalf("expected error for unknown action")
	}
}

func TestActionZeroValueIsHold(t *testing.T) {
	var a Action
	if a != Hold {
		t.Fatalf("zero value should be Hold, got %s", a)
	}
	if Action(7).Valid() {
		t.Fatalf("out of range action should be invalid")
	}
}

func TestActionJSON(t *testing.T) {
	payload, err := json.Marshal(struct{ A Action }{Sell})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(payload) != `{"A":"SELL"}` {
		t.Fatalf("unexpected json %s", payload)
	}
	var decoded struct{ A Action }
	if err := json.Unmarshal([]byte(`{"A":"buy"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.A != Buy {
		t.Fatalf("expected BUY, got %s", decoded.A)
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	good := PriceSeries{{Ts: day, Price: 10}, {Ts: day.AddDate(0, 0, 1), Price: 11}}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := PriceSeries{{Ts: day, Price: 10}, {Ts: day, Price: 11}}
	if err := dup.Validate(); !errors.Is(err, ErrUnordered) {
		t.Fatalf("expected ErrUnordered, got %v", err)
	}

	for _, px := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		bad := PriceSeries{{Ts: day, Price: px}}
		if err := bad.Validate(); !errors.Is(err, ErrBadPrice) {
			t.Fatalf("price %v: expected ErrBadPrice, got %v", px, err)
		}
	}
}

func TestPriceSeriesCloses(t *testing.T) {
	day := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	s := PriceSeries{{Ts: day, Price: 10}, {Ts: day.AddDate(0, 0, 1), Price: 12}}
	closes := s.Closes()
	if len(closes) != 2 || closes[1] != 12 {
		t.Fatalf("unexpected closes %v", closes)
	}
	if !s.Times()[1].Equal(day.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected times")
	}
}

func TestValidPrice(t *testing.T) {
	for _, px := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if ValidPrice(px) {
			t.Fatalf("price %v must be rejected", px)
		}
	}
	if !ValidPrice(0.0001) || !ValidPrice(57000.5) {
		t.Fatalf("positive finite prices must be accepted")
	}
}
