package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Completed simulation runs"},
		[]string{"strategy"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_fills_total", Help: "Simulated buy/sell fills"},
		[]string{"symbol", "side"},
	)
	HistoryPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "history_points_total", Help: "Price points loaded from history providers"},
		[]string{"provider"},
	)
	HeadlinesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "news_headlines_total", Help: "Headlines fetched from news sources"},
		[]string{"source"},
	)
	FinalValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "backtest_final_value", Help: "Final portfolio value of the last run"},
		[]string{"symbol", "strategy"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, FillsTotal, HistoryPointsTotal, HeadlinesTotal, FinalValue)
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
