package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/DeepStalk/internal/api"
	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/observability"
	"github.com/IshaanNene/DeepStalk/internal/storage"
	"github.com/IshaanNene/DeepStalk/internal/types"
	"github.com/IshaanNene/DeepStalk/pkg/deepstalk"
)

var servePort int

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the research pipeline behind a REST API",
		Long: `Start an HTTP server exposing the research pipeline:

  POST /api/research  — run a query, returns the JSON result
  GET  /api/health    — liveness check
  GET  /api/stats     — cumulative pipeline counters

Results are archived per the storage configuration as they complete.`,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePort, "port", "p", 8080, "HTTP listen port")
	return cmd
}

// runServe executes the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger := setupLogger(cfg)

	client, err := deepstalk.NewWithConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	metrics := observability.NewMetrics(logger)
	client.SetMetrics(metrics)
	if cfg.Metrics.Enabled {
		if err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		}
	}

	store, err := storage.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer store.Close()

	server := api.NewServer(servePort, logger)
	server.SetResearcher(&pipelineRunner{client: client, store: store, logger: logger})
	server.SetMetrics(metrics)
	if err := server.Start(); err != nil {
		return fmt.Errorf("start api server: %w", err)
	}

	fmt.Printf("🚀 DeepStalk API listening on :%d\n", servePort)
	fmt.Printf("   POST /api/research  {\"query\": \"...\"}\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	return nil
}

// pipelineRunner adapts the SDK client to the API's Researcher seat and
// archives completed results.
type pipelineRunner struct {
	client *deepstalk.Client
	store  storage.Storage
	logger *slog.Logger
}

func (r *pipelineRunner) Research(ctx context.Context, query string, opts *api.RunOptions) (*types.ResearchResult, error) {
	var runOpts []deepstalk.Option
	if opts != nil {
		if opts.MaxInitialResults > 0 {
			runOpts = append(runOpts, deepstalk.WithMaxResults(opts.MaxInitialResults))
		}
		if opts.MaxLevel2PerPage > 0 {
			runOpts = append(runOpts, deepstalk.WithMaxLevel2PerPage(opts.MaxLevel2PerPage))
		}
		if opts.MaxTotalPages > 0 {
			runOpts = append(runOpts, deepstalk.WithMaxTotalPages(opts.MaxTotalPages))
		}
		if opts.OverallDeadlineSec > 0 {
			runOpts = append(runOpts, deepstalk.WithDeadline(time.Duration(opts.OverallDeadlineSec)*time.Second))
		}
	}

	result, err := r.client.Run(ctx, query, runOpts...)
	if err != nil {
		return nil, err
	}

	if saveErr := r.store.Save(context.Background(), result); saveErr != nil {
		r.logger.Error("failed to archive result", "query", query, "error", saveErr)
	}
	return result, nil
}
