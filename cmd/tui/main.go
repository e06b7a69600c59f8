package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"tradesim-go/internal/config"
	"tradesim-go/internal/pipeline"
	"tradesim-go/internal/report"
	"tradesim-go/internal/util"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	if err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load env: %v\n", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== TradeSim Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit cash and strategy")
		fmt.Println("3) Edit symbols and date range")
		fmt.Println("4) Save config")
		fmt.Println("5) Run backtest")
		fmt.Println("6) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editStrategy(reader, cfg)
		case "3":
			editMarket(reader, cfg)
		case "4":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "5":
			runBacktest(cfg)
		case "6":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	p := cfg.Strategy.Params
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Initial cash: $%.2f\n", cfg.Backtest.InitialCash)
	fmt.Printf("Provider: %s | range %s..%s\n", cfg.Market.Provider, cfg.Market.Start, cfg.Market.End)
	fmt.Println("Symbols:", strings.Join(cfg.Market.Symbols, ", "))
	fmt.Printf("Strategy: %s | windows %d/%d\n", cfg.Strategy.Mode, p.ShortWindow, p.LongWindow)
	fmt.Printf("Sentiment threshold: %.2f | probability threshold: %.2f | down action: %s\n",
		p.SentimentThreshold, p.ProbabilityThreshold, p.DownAction)
	fmt.Printf("Keep warm-up rows: %t | export dir: %s\n", cfg.Backtest.KeepWarmup, cfg.Backtest.ExportDir)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Cash / Strategy ---")
	cfg.Backtest.InitialCash = promptFloat(reader, "Initial cash", cfg.Backtest.InitialCash)
	cfg.Strategy.Mode = promptString(reader, "Mode (crossover, sentiment, classifier)", cfg.Strategy.Mode)
	p := &cfg.Strategy.Params
	p.ShortWindow = int(promptFloat(reader, "Short window", float64(p.ShortWindow)))
	p.LongWindow = int(promptFloat(reader, "Long window", float64(p.LongWindow)))
	p.SentimentThreshold = promptFloat(reader, "Sentiment threshold", p.SentimentThreshold)
	p.ProbabilityThreshold = promptFloat(reader, "Probability threshold", p.ProbabilityThreshold)
	p.DownAction = promptString(reader, "Down action (sell, hold)", p.DownAction)
}

func editMarket(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Market ---")
	fmt.Printf("Current symbols: %s\n", strings.Join(cfg.Market.Symbols, ", "))
	fmt.Print("Enter symbols comma-separated (blank to keep): ")
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Market.Symbols = nil
		for _, part := range strings.Split(strings.TrimSpace(line), ",") {
			if trimmed := strings.ToUpper(strings.TrimSpace(part)); trimmed != "" {
				cfg.Market.Symbols = append(cfg.Market.Symbols, trimmed)
			}
		}
	}
	cfg.Market.Provider = promptString(reader, "Provider (yahoo, binance, csv, stub)", cfg.Market.Provider)
	cfg.Market.Start = promptString(reader, "Start date (YYYY-MM-DD)", cfg.Market.Start)
	cfg.Market.End = promptString(reader, "End date (YYYY-MM-DD)", cfg.Market.End)
}

func runBacktest(cfg *config.Config) {
	run := *cfg
	run.ApplyEnv()
	run.ApplyDefaults()
	if err := run.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config invalid:\n%v\n", err)
		return
	}

	fmt.Println("Running backtest (Ctrl+C to abort)...")
	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := util.NewConsoleLogger(run.App.LogLevel, os.Stderr)
	runner, err := pipeline.New(&run, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build runner: %v\n", err)
		return
	}
	outcomes, err := runner.RunAll(ctx, run.Market.Symbols)
	if err != nil {
		fmt.Fprintf(os.Stderr, "some runs failed: %v\n", err)
	}
	if summaries := pipeline.Summaries(outcomes); len(summaries) > 0 {
		fmt.Println()
		_ = report.PrintTable(os.Stdout, summaries)
	}
}

func promptString(reader *bufio.Reader, label, current string) string {
	fmt.Printf("%s [%s]: ", label, current)
	line, _ := reader.ReadString('\n')
	if line = strings.TrimSpace(line); line == "" {
		return current
	}
	return line
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
