package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/divanscraper/internal/config"
	"github.com/IshaanNene/divanscraper/internal/engine"
	"github.com/IshaanNene/divanscraper/internal/fetcher"
	"github.com/IshaanNene/divanscraper/internal/observability"
	"github.com/IshaanNene/divanscraper/internal/storage"
	"github.com/IshaanNene/divanscraper/internal/types"
)

// fixedOutputPath is where the --fixed preset writes its table.
const fixedOutputPath = "data/divan_products_FIXED.csv"

var (
	outputPath  string
	backend     string
	fetcherType string
	minPrice    int64
	verify      bool
	fixed       bool
	stealthMode bool
	printRows   bool
)

// crawlCmd creates the "crawl" subcommand.
func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [url...]",
		Short: "Crawl listing pages and write the product table",
		Long: `Crawl the configured start URLs (or the URLs given as arguments) in order,
rewriting the output table after every page and once more at the end.`,
		RunE: runCrawl,
	}

	addSessionFlags(cmd)
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "fetcher: http, browser")
	cmd.Flags().BoolVar(&stealthMode, "stealth", false, "apply stealth patches in browser mode")
	return cmd
}

// parseCmd creates the "parse" subcommand for saved HTML pages.
func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file.html>...",
		Short: "Extract products from saved listing pages",
		Long: `Run the same extraction and filtering over local HTML files. Relative
product links are resolved against site.origin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runParse,
	}

	addSessionFlags(cmd)
	cmd.Flags().BoolVar(&printRows, "print", false, "print each record to stdout")
	return cmd
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "output CSV path")
	cmd.Flags().StringVar(&backend, "backend", "", "selector backend: css, xpath")
	cmd.Flags().Int64Var(&minPrice, "min-price", -1, "minimum admitted price, at least 1000 (-1 = config value)")
	cmd.Flags().BoolVar(&verify, "verify", false, "stat the output file after every write")
	cmd.Flags().BoolVar(&fixed, "fixed", false, "write to "+fixedOutputPath+" and verify every write")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		if len(args) > 0 {
			cfg.Site.StartURLs = args
		}
		if fetcherType != "" {
			cfg.Fetcher.Type = fetcherType
		}
		if stealthMode {
			cfg.Fetcher.Stealth = true
		}
	})
	if err != nil {
		return err
	}
	return runSession(cmd.Context(), cfg, logger, nil)
}

func runParse(cmd *cobra.Command, args []string) error {
	seeds := make([]string, 0, len(args))
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
		seeds = append(seeds, u.String())
	}

	cfg, logger, err := loadConfig(func(cfg *config.Config) {
		cfg.Site.StartURLs = seeds
		cfg.Fetcher.Type = "file"
	})
	if err != nil {
		return err
	}

	var onRecord engine.RecordCallback
	if printRows {
		onRecord = func(rec types.Record) {
			fmt.Printf("%s\t%s\t%s\n", rec.Name, rec.FormattedPrice, rec.URL)
		}
	}
	return runSession(cmd.Context(), cfg, logger, onRecord)
}

// loadConfig loads the config file, applies command-specific overrides and
// the shared flags, validates the result and builds the logger.
func loadConfig(override func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	override(cfg)
	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// applyCLIOverrides applies the shared session flags to the config.
func applyCLIOverrides(cfg *config.Config) {
	if fixed {
		cfg.Storage.OutputPath = fixedOutputPath
		cfg.Storage.VerifyAfterWrite = true
	}
	if outputPath != "" {
		cfg.Storage.OutputPath = outputPath
	}
	if verify {
		cfg.Storage.VerifyAfterWrite = true
	}
	if backend != "" {
		cfg.Selectors.Backend = backend
	}
	if minPrice >= 0 {
		cfg.Pipeline.MinPrice = minPrice
	}
}

// runSession wires the components, runs the crawl and reports the result.
// SIGINT and SIGTERM end the crawl early; the final write still happens.
func runSession(parent context.Context, cfg *config.Config, logger *slog.Logger, onRecord engine.RecordCallback) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	f, err := fetcher.New(cfg.Fetcher, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	eng.SetFetcher(f)

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		f.Close()
		return fmt.Errorf("create storage: %w", err)
	}
	eng.SetStorage(store)

	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		eng.SetMetrics(metrics)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer metrics.Shutdown(srv)
	}

	if onRecord != nil {
		eng.OnRecord(onRecord)
	}

	start := time.Now()
	err = eng.Run(ctx)
	elapsed := time.Since(start)
	stats := eng.Stats().Snapshot()

	if errors.Is(err, context.Canceled) {
		logger.Warn("crawl interrupted, partial results saved", "output", cfg.Storage.OutputPath)
	} else if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	fmt.Printf("\nCrawl complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("   Pages:     %v fetched, %v failed\n", stats["pages_fetched"], stats["pages_failed"])
	fmt.Printf("   Cards:     %v found\n", stats["cards_found"])
	fmt.Printf("   Records:   %v kept, %v dropped\n", stats["records_kept"], stats["records_dropped"])
	fmt.Printf("   Flushes:   %v ok, %v failed\n", stats["flushes_ok"], stats["flushes_failed"])
	fmt.Printf("   Output:    %s\n", cfg.Storage.OutputPath)
	return nil
}
