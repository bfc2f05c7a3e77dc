package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/config"
	"github.com/use-agent/pricehist/export"
	"github.com/use-agent/pricehist/models"
	"github.com/use-agent/pricehist/scraper"
	"github.com/use-agent/pricehist/webhook"
)

var version = "dev"

var (
	configFile string
	outputFile string
	outputFmt  string
	itemDelay  time.Duration
	showUI     bool
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pricehist [TICKER|URL ...]",
		Short:   "Extract multi-year daily price history for SGX tickers",
		Version: version,
		Long: `pricehist opens the price-history page of each ticker in a real browser,
selects the longest range, scrolls until every row is rendered and exports
the normalized daily records.

Inputs are taken from the arguments, else from the "tickers" list of the
config file, else a built-in default list.`,
		Example: `  # Default tickers, xlsx workbook in the working directory
  pricehist

  # Explicit symbols, one CSV file per ticker
  pricehist D05.SI O39.SI -f csv -o out/

  # A full history URL, with a visible browser
  pricehist --showui "https://sg.finance.yahoo.com/quote/U11.SI/history"

  # Run the HTTP API
  pricehist serve --port 8080`,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVar(&showUI, "showui", false, "Show browser UI (overrides HEADLESS)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); defaults to PRICEHIST_LOG_LEVEL")
	rootCmd.PersistentFlags().DurationVar(&itemDelay, "delay", 0, "Minimum pause between two inputs (default from PRICEHIST_ITEM_DELAY)")

	rootCmd.Flags().StringVar(&configFile, "config", "", "Tickers file with tickers and ticker_names (default config.json)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (xlsx, json) or directory (csv); timestamped name when empty")
	rootCmd.Flags().StringVarP(&outputFmt, "format", "f", "", "Output format (xlsx, csv, json)")

	rootCmd.AddCommand(newServeCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if showUI {
		cfg.Browser.Headless = false
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("delay") {
		cfg.Extract.ItemDelay = itemDelay
	}
	return cfg
}

func run(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	if configFile != "" {
		cfg.Output.ConfigFile = configFile
	}
	if outputFile != "" {
		cfg.Output.Path = outputFile
	}
	if outputFmt != "" {
		cfg.Output.Format = outputFmt
	}

	logger := initLogger(cfg.Log)

	file, err := config.LoadFile(cfg.Output.ConfigFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("no tickers file, using arguments or defaults", "path", cfg.Output.ConfigFile)
	case err != nil:
		logger.Warn("tickers file unreadable, using arguments or defaults", "path", cfg.Output.ConfigFile, "error", err)
	}
	var names map[string]string
	if file != nil {
		names = file.TickerNames
	}

	inputs := config.ResolveInputs(args, file)
	logger.Info("pricehist starting",
		"inputs", len(inputs),
		"headless", cfg.Browser.Headless,
		"format", cfg.Output.Format,
	)

	session, err := browser.Launch(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		return err
	}
	sc, err := scraper.New(session, cfg.Extract, logger)
	if err != nil {
		session.Close()
		return err
	}
	defer sc.Close()

	report := sc.RunInputs(cmd.Context(), inputs, func(done int, r *models.ExtractionResult) {
		logger.Info("progress", "done", done, "total", len(inputs), "ticker", r.Ticker, "status", r.Status)
	})

	now := time.Now()
	if cfg.Webhook.URL != "" {
		notifier := webhook.NewNotifier(cfg.Webhook.Secret, logger)
		jobID := "cli-" + now.Format("20060102_150405")
		if err := notifier.DeliverRetry(cmd.Context(), cfg.Webhook.URL, webhook.NewBatchCompleted(jobID, report, now)); err != nil {
			logger.Warn("batch webhook not delivered", "error", err)
		}
	}

	paths, err := writeReport(cfg.Output, report, names, now)
	if err != nil {
		logger.Error("no output written", "format", cfg.Output.Format, "failed", report.Failed, "error", err)
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "Output written to: %s\n", p)
	}
	logger.Info("pricehist finished", "succeeded", report.Succeeded, "failed", len(report.Failed))
	return nil
}

var errNoRecords = errors.New("no input produced any records")

// writeReport exports the batch. A batch in which every input failed has no
// data to write and returns errNoRecords without creating any file.
func writeReport(out config.OutputConfig, report *models.BatchReport, names map[string]string, now time.Time) ([]string, error) {
	if report.Fatal() {
		return nil, errNoRecords
	}
	return export.Save(out.Format, out.Path, report, names, now)
}

// initLogger configures slog based on the LogConfig and returns the logger.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
