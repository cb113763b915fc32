package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/divanscraper/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "divan",
		Short: "divan.ru product listing scraper",
		Long: `divan collects product cards from divan.ru category listings and writes
them to a CSV table.

Each listing page is fetched, its product cards are read (name, price,
link), cheap or unpriced products are filtered out, and the full table is
rewritten after every page and once more when the crawl ends.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("divan %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			q := cfg.Selectors.Active()
			fmt.Printf("Site:\n")
			fmt.Printf("  Origin:            %s\n", cfg.Site.Origin)
			fmt.Printf("  Start URLs:        %s\n", strings.Join(cfg.Site.StartURLs, ", "))
			fmt.Printf("  Allowed Domains:   %s\n", strings.Join(cfg.Site.AllowedDomains, ", "))
			fmt.Printf("  Category:          %s\n", cfg.Site.Category)
			fmt.Printf("\nSelectors (%s):\n", cfg.Selectors.Backend)
			fmt.Printf("  Card:              %s\n", q.Card)
			fmt.Printf("  Price:             %s\n", q.Price)
			fmt.Printf("  Link:              %s\n", q.Link)
			fmt.Printf("\nFilter:\n")
			fmt.Printf("  Min Price:         %d\n", cfg.Pipeline.MinPrice)
			fmt.Printf("  Min Name Length:   %d\n", cfg.Extract.MinNameLength)
			fmt.Printf("  Excluded Texts:    %d configured\n", len(cfg.Extract.ExcludedTexts))
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Request Timeout:   %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Output Path:       %s\n", cfg.Storage.OutputPath)
			fmt.Printf("  Verify After Write: %v\n", cfg.Storage.VerifyAfterWrite)
			fmt.Printf("  Mongo Mirror:      %v\n", cfg.Storage.Mongo.Enabled)
			fmt.Printf("  Redis Mirror:      %v\n", cfg.Storage.Redis.Enabled)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}
