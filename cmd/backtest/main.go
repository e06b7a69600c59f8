// backtest - replay strategies over historical prices
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tradesim-go/internal/config"
	"tradesim-go/internal/metrics"
	"tradesim-go/internal/pipeline"
	"tradesim-go/internal/report"
	"tradesim-go/internal/storage"
	"tradesim-go/internal/util"
)

var (
	version    = "0.1.0"
	configPath string
	envFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest crossover, sentiment and classifier strategies",
		Long: `backtest replays daily closes through an all-in/all-out portfolio
and compares the strategy against buy and hold.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to the YAML config")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Dotenv file with secrets (defaults to ./.env when present)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("backtest version %s\n", version)
		},
	}
}

func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadEnv(files...); err != nil {
		return nil, err
	}
	return config.LoadWithEnv(configPath)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.App.LogFormat == "console" {
		return util.NewConsoleLogger(cfg.App.LogLevel, os.Stderr)
	}
	return util.NewLogger(cfg.App.LogLevel)
}

func runCmd() *cobra.Command {
	var (
		symbols []string
		mode    string
		cash    float64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured strategy for every symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(symbols) > 0 {
				cfg.Market.Symbols = symbols
			}
			if mode != "" {
				cfg.Strategy.Mode = mode
			}
			if cash > 0 {
				cfg.Backtest.InitialCash = cash
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if cfg.App.MetricsAddr != "" {
				srv := metrics.Serve(cfg.App.MetricsAddr)
				defer srv.Close()
				log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
			}

			var opts []pipeline.Option
			if cfg.Storage.Path != "" {
				db, err := storage.Open(cfg.Storage.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				opts = append(opts, pipeline.WithStorage(db))
			}

			runner, err := pipeline.New(cfg, log, opts...)
			if err != nil {
				return err
			}
			log.Info().Strs("symbols", cfg.Market.Symbols).Str("strategy", runner.Strategy().Name()).Msg("backtest started")

			outcomes, runErr := runner.RunAll(ctx, cfg.Market.Symbols)
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				if o == nil {
					continue
				}
				fmt.Fprintf(out, "\n== %s (%s) ==\n", o.Symbol, o.Strategy)
				if err := report.PrintSummary(out, o.Summary); err != nil {
					return err
				}
				if o.Evaluation != nil {
					fmt.Fprintf(out, "Test accuracy: %.4f over %d rows\n", o.Evaluation.Accuracy, o.Evaluation.N)
					fmt.Fprintln(out, o.Evaluation.String())
				}
			}
			if summaries := pipeline.Summaries(outcomes); len(summaries) > 1 {
				fmt.Fprintln(out)
				if err := report.PrintTable(out, summaries); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVarP(&symbols, "symbols", "s", nil, "Symbols to simulate (overrides market.symbols)")
	cmd.Flags().StringVar(&mode, "mode", "", "Strategy mode: crossover, sentiment or classifier")
	cmd.Flags().Float64Var(&cash, "cash", 0, "Initial cash (overrides backtest.initial_cash)")
	return cmd
}

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs [symbol]",
		Short: "List stored runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Path == "" {
				return fmt.Errorf("storage.path is not configured")
			}
			db, err := storage.Open(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			symbol := ""
			if len(args) > 0 {
				symbol = strings.ToUpper(args[0])
			}
			runs, err := db.Runs(cmd.Context(), symbol, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tSYMBOL\tSTRATEGY\tBARS\tFILLS\tFINAL\tBUY&HOLD")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\t%.2f\n",
					r.StartedAt.Format(time.DateTime), r.Symbol, r.Strategy, r.Bars, r.Fills, r.FinalValue, r.BuyAndHold)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	return cmd
}
