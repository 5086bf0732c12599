package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DeepStalk/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deepstalk",
		Short: "DeepStalk — deep research web crawler",
		Long: `DeepStalk turns a natural-language query into a structured research report.

It searches the web, crawls the results two levels deep, scores every page
for relevance, and distills a summary plus key findings.

Features:
  • Search-seeded two-level BFS crawl with per-host politeness
  • Deterministic lexical relevance scoring and summarization
  • Optional LLM-backed summarization (Ollama, OpenAI-compatible, custom)
  • JSON, JSONL, and MongoDB result archives
  • Paginated PDF reports
  • Embeddable REST API and Prometheus-style metrics`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(researchCmd())
	rootCmd.AddCommand(serveCmd())
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
			fmt.Printf("DeepStalk %s\n", config.Version)
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
			fmt.Printf("Research:\n")
			fmt.Printf("  Max Initial Results:  %d\n", cfg.Research.MaxInitialResults)
			fmt.Printf("  Max Level-2 Per Page: %d\n", cfg.Research.MaxLevel2PerPage)
			fmt.Printf("  Max Total Pages:      %d\n", cfg.Research.MaxTotalPages)
			fmt.Printf("  Overall Deadline:     %s\n", cfg.Research.OverallDeadline)
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Provider:             %s\n", cfg.Search.Provider)
			if cfg.Search.BaseURL != "" {
				fmt.Printf("  Base URL:             %s\n", cfg.Search.BaseURL)
			}
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Request Timeout:      %s\n", cfg.Fetcher.RequestTimeout)
			fmt.Printf("  Max Concurrency:      %d\n", cfg.Fetcher.MaxConcurrency)
			fmt.Printf("  Per-Host Interval:    %s\n", cfg.Fetcher.PerHostMinInterval)
			fmt.Printf("  Max Retries:          %d\n", cfg.Fetcher.MaxRetries)
			fmt.Printf("  Max Bytes Per Page:   %d\n", cfg.Fetcher.MaxBytesPerPage)
			fmt.Printf("  User Agent:           %s\n", cfg.Fetcher.UserAgent)
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Enabled:              %v\n", cfg.AI.Enabled)
			if cfg.AI.Enabled {
				fmt.Printf("  Provider:             %s\n", cfg.AI.Provider)
				fmt.Printf("  Model:                %s\n", cfg.AI.Model)
			}
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Backend:              %s\n", cfg.Storage.Backend)
			fmt.Printf("  Output Dir:           %s\n", cfg.Storage.OutputDir)
			fmt.Printf("\nReport:\n")
			fmt.Printf("  PDF:                  %v\n", cfg.Report.PDF)
			fmt.Printf("  Top Sources:          %d\n", cfg.Report.TopSources)
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:              %v\n", cfg.Metrics.Enabled)
			if cfg.Metrics.Enabled {
				fmt.Printf("  Port:                 %d\n", cfg.Metrics.Port)
			}
			return nil
		},
	}
}

// setupLogger builds the process logger from the logging section, with
// the --verbose flag forcing debug level.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
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

	out := os.Stderr
	if cfg.Logging.Output == "stdout" {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}
