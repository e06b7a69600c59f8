package market

import (
	"hash/fnv"
	"math"
	"time"

	"tradesim-go/internal/signal"
)

const stubDefaultDays = 365

// stubSeries produces weekday closes that oscillate around a symbol-specific
// base with a slow drift, so crossovers occur at predictable points.
func stubSeries(symbol string, start, end time.Time) signal.PriceSeries {
	if end.IsZero() {
		end = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	end = dayOf(end)
	if start.IsZero() {
		start = end.AddDate(0, 0, -stubDefaultDays)
	}
	start = dayOf(start)

	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum32()
	base := 50 + float64(seed%150)
	phase := float64(seed%31) / 5

	var out signal.PriceSeries
	i := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		x := float64(i)
		px := base + 0.02*x + 0.08*base*math.Sin(x/9+phase) + 0.02*base*math.Sin(x/2.3)
		out = append(out, signal.PricePoint{Ts: d, Price: math.Round(px*100) / 100})
		i++
	}
	return out
}
