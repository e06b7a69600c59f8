// Package pipeline wires history, news, sentiment, model probabilities,
// strategies and the simulator into one run per symbol.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradesim-go/internal/backtest"
	"tradesim-go/internal/classifier"
	"tradesim-go/internal/config"
	"tradesim-go/internal/execution"
	"tradesim-go/internal/indicator"
	"tradesim-go/internal/market"
	"tradesim-go/internal/metrics"
	"tradesim-go/internal/news"
	"tradesim-go/internal/report"
	"tradesim-go/internal/sentiment"
	"tradesim-go/internal/signal"
	"tradesim-go/internal/storage"
	"tradesim-go/internal/strategy"
)

// ErrInsufficientHistory is returned when no tradable rows remain after warm-up.
var ErrInsufficientHistory = errors.New("not enough history for strategy warm-up")

// HistorySource loads closes for a symbol.
type HistorySource interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (signal.PriceSeries, error)
}

// Outcome is everything one run produced.
type Outcome struct {
	RunID      string
	Symbol     string
	Strategy   string
	Summary    report.Summary
	Result     *backtest.Result
	BuyAndHold []float64
	Daily      []sentiment.DailyScore
	Evaluation *classifier.Evaluation
}

// Runner executes simulations for the configured strategy.
type Runner struct {
	cfg       *config.Config
	log       zerolog.Logger
	strat     strategy.Strategy
	mode      string
	history   HistorySource
	news      news.Source
	scorer    sentiment.Scorer
	predictor classifier.Predictor
	db        *storage.Database
	ledger    *backtest.Ledger
	newID     func() string
	now       func() time.Time
}

// Option configures Runner construction parameters.
type Option func(*Runner)

// WithHistory replaces the configured history provider.
func WithHistory(h HistorySource) Option {
	return func(r *Runner) { r.history = h }
}

// WithNews replaces the configured headline source.
func WithNews(src news.Source) Option {
	return func(r *Runner) { r.news = src }
}

// WithScorer replaces the configured sentiment scorer.
func WithScorer(s sentiment.Scorer) Option {
	return func(r *Runner) { r.scorer = s }
}

// WithPredictor replaces the configured probability source.
func WithPredictor(p classifier.Predictor) Option {
	return func(r *Runner) { r.predictor = p }
}

// WithStorage persists sentiment and runs in db.
func WithStorage(db *storage.Database) Option {
	return func(r *Runner) { r.db = db }
}

// WithIDs overrides run id generation.
func WithIDs(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// New builds a Runner from cfg; cfg must already carry defaults.
func New(cfg *config.Config, log zerolog.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: nil config")
	}
	p := cfg.Strategy.Params
	down := signal.Sell
	if p.DownAction == "hold" {
		down = signal.Hold
	}
	r := &Runner{
		cfg:  cfg,
		log:  log,
		mode: strategy.NormalizeMode(cfg.Strategy.Mode),
		strat: strategy.Build(cfg.Strategy.Mode, strategy.Params{
			ShortWindow:          p.ShortWindow,
			LongWindow:           p.LongWindow,
			SentimentThreshold:   p.SentimentThreshold,
			ProbabilityThreshold: p.ProbabilityThreshold,
			DownAction:           down,
		}),
		ledger: backtest.NewLedger(256),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	if r.mode == "" {
		r.mode = strategy.ModeCrossover
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.history == nil {
		r.history = market.NewHistory(cfg.Market.Provider, log,
			market.WithInterval(cfg.Market.Interval),
			market.WithCSVDir(cfg.Market.CSVDir),
			market.WithYahooBaseURL(cfg.Market.YahooBaseURL),
			market.WithBinanceBaseURL(cfg.Market.BinanceBaseURL),
		)
	}
	if r.mode == strategy.ModeSentiment {
		if r.news == nil {
			r.news = newsSource(cfg.News, log)
		}
		if r.scorer == nil {
			if cfg.Sentiment.ServiceURL == "" {
				return nil, errors.New("pipeline: sentiment strategy needs a scorer service url")
			}
			r.scorer = sentiment.NewHTTPScorer(cfg.Sentiment.ServiceURL, time.Duration(cfg.Sentiment.TimeoutSecs)*time.Second)
		}
		if cfg.Sentiment.Labels {
			r.scorer = sentiment.LabelScorer{Scorer: r.scorer}
		}
	}
	if r.mode == strategy.ModeClassifier && r.predictor == nil {
		switch cfg.Classifier.Source {
		case "csv":
			r.predictor = classifier.DirPredictions{Dir: cfg.Classifier.PredictionsDir}
		default:
			if cfg.Classifier.ServiceURL == "" {
				return nil, errors.New("pipeline: classifier strategy needs a model service url")
			}
			r.predictor = classifier.NewHTTPPredictor(cfg.Classifier.ServiceURL, time.Duration(cfg.Classifier.TimeoutSecs)*time.Second)
		}
	}
	return r, nil
}

func newsSource(cfg config.News, log zerolog.Logger) news.Source {
	if cfg.Source == "rss" {
		return news.NewRSS(cfg.BaseURL, cfg.MaxItems, log)
	}
	return news.NewNewsAPI(cfg.APIKey, log,
		news.WithBaseURL(cfg.BaseURL),
		news.WithPaging(cfg.PageSize, cfg.MaxPages),
		news.WithQueryDefaults(cfg.Language, cfg.SortBy),
	)
}

// Strategy returns the active strategy.
func (r *Runner) Strategy() strategy.Strategy { return r.strat }

// Ledger returns the fills of every run executed by this Runner.
func (r *Runner) Ledger() *backtest.Ledger { return r.ledger }

// Run performs one full simulation for symbol.
func (r *Runner) Run(ctx context.Context, symbol string) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	symbol = strings.TrimSpace(symbol)
	out := &Outcome{RunID: r.newID(), Symbol: symbol, Strategy: r.strat.Name()}
	log := r.log.With().Str("run_id", out.RunID).Str("symbol", symbol).Str("strategy", out.Strategy).Logger()
	started := r.now()

	start, end, err := r.cfg.Market.Range()
	if err != nil {
		return nil, err
	}
	points, err := r.history.Fetch(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w", symbol, ErrInsufficientHistory)
	}
	log.Info().Int("points", len(points)).Msg("history loaded")

	inputs := strategy.Inputs{Closes: points.Closes()}
	switch r.mode {
	case strategy.ModeSentiment:
		daily, err := r.dailySentiment(ctx, symbol, points, log)
		if err != nil {
			return nil, err
		}
		out.Daily = daily
		inputs.Sentiment = sentiment.Align(daily, points)
	case strategy.ModeClassifier:
		trimmed, probs, eval, err := r.probabilities(ctx, symbol, points)
		if err != nil {
			return nil, err
		}
		points = trimmed
		inputs.Closes = points.Closes()
		inputs.Probabilities = probs
		out.Evaluation = &eval
		log.Info().Float64("accuracy", eval.Accuracy).Int("test_rows", eval.N).Msg(eval.String())
	}

	plan, err := r.strat.Plan(inputs)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", symbol, err)
	}
	actions := plan.Actions
	if !r.cfg.Backtest.KeepWarmup {
		points, actions = strategy.TrimWarmup(points, actions, plan.Warmup)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%s: %w (%d rows)", symbol, ErrInsufficientHistory, plan.Warmup)
	}

	sinks := execution.MultiSink{execution.NewExecutor(log), r.ledger}
	var recorder *backtest.JSONLRecorder
	if path := r.cfg.Backtest.FillsPath; path != "" {
		recorder, err = backtest.NewJSONLRecorder(path, out.RunID)
		if err != nil {
			return nil, fmt.Errorf("open fills log: %w", err)
		}
		sinks = append(sinks, recorder)
	}

	res, err := backtest.Simulate(backtest.Options{
		Symbol:      symbol,
		InitialCash: r.cfg.Backtest.InitialCash,
		Sink:        sinks,
	}, points, actions)
	if recorder != nil {
		if cerr := recorder.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("write fills log: %w", cerr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("simulate %s: %w", symbol, err)
	}
	bh, err := backtest.BuyAndHold(r.cfg.Backtest.InitialCash, points.Closes())
	if err != nil {
		return nil, fmt.Errorf("buy and hold %s: %w", symbol, err)
	}
	summary, err := report.Summarize(out.Strategy, res, bh)
	if err != nil {
		return nil, err
	}
	summary.RunID = out.RunID
	out.Result, out.BuyAndHold, out.Summary = res, bh, summary

	if err := r.export(out); err != nil {
		return nil, err
	}
	if r.db != nil {
		err := r.db.SaveRun(ctx, storage.Run{
			ID:          out.RunID,
			Symbol:      symbol,
			Strategy:    out.Strategy,
			StartedAt:   started,
			Bars:        summary.Bars,
			InitialCash: res.InitialCash,
			FinalValue:  res.FinalValue(),
			BuyAndHold:  bh[len(bh)-1],
			Fills:       len(res.Fills),
		})
		if err != nil {
			return nil, err
		}
	}

	metrics.RunsTotal.WithLabelValues(out.Strategy).Inc()
	metrics.FinalValue.WithLabelValues(symbol, out.Strategy).Set(res.FinalValue())
	log.Info().
		Str("final_value", summary.FinalValue.StringFixed(2)).
		Str("buy_and_hold", summary.BuyAndHold.StringFixed(2)).
		Int("fills", summary.Fills).
		Dur("elapsed", r.now().Sub(started)).
		Msg("run complete")
	return out, nil
}

// dailySentiment reads cached scores from storage or scores fresh headlines.
func (r *Runner) dailySentiment(ctx context.Context, symbol string, points signal.PriceSeries, log zerolog.Logger) ([]sentiment.DailyScore, error) {
	from, to := points[0].Ts, points[len(points)-1].Ts
	if r.db != nil {
		cached, err := r.db.DailySentiment(ctx, symbol, from, to)
		if err != nil {
			return nil, err
		}
		if len(cached) > 0 {
			log.Debug().Int("days", len(cached)).Msg("using cached sentiment")
			return cached, nil
		}
	}
	headlines, err := r.news.Headlines(ctx, r.cfg.News.Query(symbol), from, to)
	if err != nil {
		return nil, fmt.Errorf("headlines %s: %w", symbol, err)
	}
	log.Info().Int("headlines", len(headlines)).Msg("headlines fetched")
	daily, err := sentiment.Daily(ctx, r.scorer, headlines, log)
	if err != nil {
		return nil, err
	}
	if r.db != nil && len(daily) > 0 {
		if err := r.db.SaveDailySentiment(ctx, symbol, daily); err != nil {
			return nil, err
		}
	}
	return daily, nil
}

// probabilities asks the predictor for the test rows and truncates the
// series to the rows that have a target.
func (r *Runner) probabilities(ctx context.Context, symbol string, points signal.PriceSeries) (signal.PriceSeries, indicator.Line, classifier.Evaluation, error) {
	closes := points.Closes()
	features := classifier.Features(closes)
	targets := classifier.Targets(closes)
	window := classifier.Layout(len(closes), features.Warmup, r.cfg.Classifier.SplitRatio)
	if window.Test() <= 0 {
		return nil, indicator.Line{}, classifier.Evaluation{}, fmt.Errorf("%s: %w (%d rows)", symbol, ErrInsufficientHistory, len(closes))
	}
	probs, err := r.predictor.Predict(ctx, classifier.Request{
		Symbol:   symbol,
		Times:    points.Times(),
		Features: features,
		Targets:  targets,
		Window:   window,
	})
	if err != nil {
		return nil, indicator.Line{}, classifier.Evaluation{}, fmt.Errorf("predict %s: %w", symbol, err)
	}
	line, err := classifier.ProbabilityLine(window, probs)
	if err != nil {
		return nil, indicator.Line{}, classifier.Evaluation{}, err
	}
	eval, err := classifier.Evaluate(
		classifier.Labels(probs, r.cfg.Strategy.Params.ProbabilityThreshold),
		targets[window.TestStart:window.End],
	)
	if err != nil {
		return nil, indicator.Line{}, classifier.Evaluation{}, err
	}
	return points[:window.End], line, eval, nil
}

func (r *Runner) export(out *Outcome) error {
	dir := r.cfg.Backtest.ExportDir
	if dir == "" {
		return nil
	}
	rows, err := report.Rows(out.Result, out.BuyAndHold)
	if err != nil {
		return err
	}
	if err := report.WriteCSV(filepath.Join(dir, out.Symbol+"_"+out.Strategy+".csv"), rows); err != nil {
		return err
	}
	if len(out.Daily) > 0 {
		if err := report.WriteSentimentCSV(filepath.Join(dir, out.Symbol+"_sentiment.csv"), out.Daily); err != nil {
			return err
		}
	}
	return nil
}

// RunAll runs every symbol independently, at most Backtest.Parallelism at a
// time. Outcomes keep the order of symbols; failed symbols are nil and their
// errors are joined.
func (r *Runner) RunAll(ctx context.Context, symbols []string) ([]*Outcome, error) {
	limit := r.cfg.Backtest.Parallelism
	if limit <= 0 {
		limit = 1
	}
	outcomes := make([]*Outcome, len(symbols))
	errs := make([]error, len(symbols))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			}
			defer func() { <-sem }()
			outcome, err := r.Run(ctx, sym)
			if err != nil {
				r.log.Error().Err(err).Str("symbol", sym).Msg("run failed")
				errs[i] = fmt.Errorf("%s: %w", sym, err)
				return
			}
			outcomes[i] = outcome
		}(i, sym)
	}
	wg.Wait()
	return outcomes, errors.Join(errs...)
}

// Summaries collects the summaries of successful outcomes.
func Summaries(outcomes []*Outcome) []report.Summary {
	out := make([]report.Summary, 0, len(outcomes))
	for _, o := range outcomes {
		if o != nil {
			out = append(out, o.Summary)
		}
	}
	return out
}
