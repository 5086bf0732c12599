package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/observability"
	"github.com/IshaanNene/DeepStalk/internal/report"
	"github.com/IshaanNene/DeepStalk/internal/storage"
	"github.com/IshaanNene/DeepStalk/pkg/deepstalk"
)

var (
	researchMaxResults  int
	researchLevel2      int
	researchMaxPages    int
	researchDeadline    time.Duration
	researchTimeout     time.Duration
	researchConcurrency int
	researchDelay       time.Duration
	researchProvider    string
	researchSearxURL    string
	researchOutput      string
	researchBackend     string
	researchPDF         bool
	researchAI          bool
)

// researchCmd creates the "research" subcommand.
func researchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research [query]",
		Short: "Run a deep research crawl for a query",
		Long: `Search the web for the query, crawl the results and the pages they link
to, score everything for relevance, and produce a summary with key
findings. Results are archived per the storage configuration; a PDF
report is written when --pdf is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runResearch,
	}

	cmd.Flags().IntVarP(&researchMaxResults, "max-results", "m", 0, "max search hits to crawl (0 = config default)")
	cmd.Flags().IntVar(&researchLevel2, "level2-per-page", -1, "max level-2 links per page (-1 = config default)")
	cmd.Flags().IntVar(&researchMaxPages, "max-pages", -1, "global page cap across both levels (-1 = config default)")
	cmd.Flags().DurationVar(&researchDeadline, "deadline", 0, "overall run deadline (0 = config default)")
	cmd.Flags().DurationVar(&researchTimeout, "timeout", 0, "per-request timeout (0 = config default)")
	cmd.Flags().IntVarP(&researchConcurrency, "concurrency", "n", 0, "concurrent fetch workers (0 = config default)")
	cmd.Flags().DurationVar(&researchDelay, "delay", -1, "min spacing between fetches to the same host (-1 = config default)")
	cmd.Flags().StringVar(&researchProvider, "provider", "", "search provider: duckduckgo or searxng")
	cmd.Flags().StringVar(&researchSearxURL, "searx-url", "", "SearxNG base URL (searxng provider)")
	cmd.Flags().StringVarP(&researchOutput, "output", "o", "", "output directory for archives and reports")
	cmd.Flags().StringVarP(&researchBackend, "format", "f", "", "storage backends, comma-separated: json, jsonl, mongodb, none")
	cmd.Flags().BoolVar(&researchPDF, "pdf", false, "write a PDF report")
	cmd.Flags().BoolVar(&researchAI, "ai", false, "use the configured LLM for summarization")

	return cmd
}

// runResearch executes the research command.
func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyResearchOverrides(cfg)
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger := setupLogger(cfg)

	client, err := deepstalk.NewWithConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		client.SetMetrics(metrics)
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	store, err := storage.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	// SIGINT/SIGTERM cancel the run; whatever was collected is still
	// synthesized and saved.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🔍 Researching: %s\n", query)

	result, err := client.Run(ctx, query)
	if err != nil {
		return err
	}

	if err := store.Save(context.Background(), result); err != nil {
		logger.Error("failed to archive result", "error", err)
	}

	var pdfPath string
	if cfg.Report.PDF {
		pdfPath = filepath.Join(cfg.Storage.OutputDir, storage.ResultFileName(result.Query, result.FinishedAt, "pdf"))
		gen := report.NewPDFGenerator(cfg.Report, logger)
		if err := gen.Generate(result, pdfPath); err != nil {
			logger.Error("failed to write pdf report", "error", err)
			pdfPath = ""
		}
	}

	fmt.Printf("\n✅ Research complete in %.1fs\n", result.ElapsedSeconds)
	fmt.Printf("   Pages:    %d crawled (%d level-1, %d level-2), %d failed\n",
		result.TotalPagesCrawled, len(result.Level1Pages), len(result.Level2Pages), len(result.Failures))
	fmt.Printf("   Links:    %d discovered\n", result.TotalLinksDiscovered)
	fmt.Printf("\n📋 Summary:\n   %s\n", result.Summary)

	if len(result.KeyFindings) > 0 {
		fmt.Printf("\n🔑 Key findings:\n")
		for i, finding := range result.KeyFindings {
			fmt.Printf("   %d. %s\n", i+1, finding)
		}
	}
	if pdfPath != "" {
		fmt.Printf("\n📄 Report: %s\n", pdfPath)
	}

	return nil
}

// applyResearchOverrides maps command-line flags onto the config.
func applyResearchOverrides(cfg *config.Config) {
	if researchMaxResults > 0 {
		cfg.Research.MaxInitialResults = researchMaxResults
	}
	if researchLevel2 >= 0 {
		cfg.Research.MaxLevel2PerPage = researchLevel2
	}
	if researchMaxPages >= 0 {
		cfg.Research.MaxTotalPages = researchMaxPages
	}
	if researchDeadline > 0 {
		cfg.Research.OverallDeadline = researchDeadline
	}
	if researchTimeout > 0 {
		cfg.Fetcher.RequestTimeout = researchTimeout
	}
	if researchConcurrency > 0 {
		cfg.Fetcher.MaxConcurrency = researchConcurrency
	}
	if researchDelay >= 0 {
		cfg.Fetcher.PerHostMinInterval = researchDelay
	}
	if researchProvider != "" {
		cfg.Search.Provider = researchProvider
	}
	if researchSearxURL != "" {
		cfg.Search.BaseURL = researchSearxURL
	}
	if researchOutput != "" {
		cfg.Storage.OutputDir = researchOutput
	}
	if researchBackend != "" {
		cfg.Storage.Backend = strings.ToLower(researchBackend)
	}
	if researchPDF {
		cfg.Report.PDF = true
	}
	if researchAI {
		cfg.AI.Enabled = true
	}
}
