package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"

	"tradesim-go/internal/backtest"
	"tradesim-go/internal/config"
	"tradesim-go/internal/execution"
	"tradesim-go/internal/market"
	"tradesim-go/internal/metrics"
	"tradesim-go/internal/pipeline"
	sig "tradesim-go/internal/signal"
	"tradesim-go/internal/util"
)

func main() {
	log := util.NewLogger("info")

	if err := config.LoadEnv(); err != nil {
		log.Fatal().Err(err).Msg("load env")
	}
	cfg, err := config.LoadWithEnv("internal/config/config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	log = util.NewLogger(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stream := market.NewKlineStream(cfg.Market.Symbols, log,
		market.WithStreamURL(cfg.Market.StreamURL),
		market.WithStreamInterval(cfg.Market.StreamInterval),
	)
	bars := make(chan sig.Bar, 1024)

	go func() {
		if err := stream.Run(ctx, bars); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("stream stopped")
			cancel()
		}
	}()

	sinks := execution.MultiSink{execution.NewExecutor(log)}
	if cfg.Backtest.FillsPath != "" {
		recorder, err := backtest.NewJSONLRecorder(cfg.Backtest.FillsPath, "paper")
		if err != nil {
			log.Fatal().Err(err).Msg("open fills log")
		}
		defer recorder.Close()
		sinks = append(sinks, recorder)
	}

	p := cfg.Strategy.Params
	paper := pipeline.NewPaper(p.ShortWindow, p.LongWindow, cfg.Backtest.InitialCash, sinks, log)

	log.Info().Strs("symbols", stream.Symbols()).Str("url", stream.URL()).Msg("paper engine started")
	_ = paper.Run(ctx, bars)
	for _, sym := range stream.Symbols() {
		log.Info().Str("symbol", sym).Float64("value", paper.Value(sym)).Msg("final paper value")
	}
	log.Info().Msg("shutting down")
}
