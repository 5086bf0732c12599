// Package deepstalk provides a public SDK for embedding the research
// pipeline as a library.
//
// Example usage:
//
//	client, err := deepstalk.New(
//	    deepstalk.WithMaxResults(10),
//	    deepstalk.WithDeadline(60*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.Run(context.Background(), "quantum error correction")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary)
package deepstalk

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/ai"
	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/fetcher"
	"github.com/IshaanNene/DeepStalk/internal/observability"
	"github.com/IshaanNene/DeepStalk/internal/planner"
	"github.com/IshaanNene/DeepStalk/internal/search"
	"github.com/IshaanNene/DeepStalk/internal/synthesizer"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// Client runs research queries. A Client is safe for concurrent use; each
// Run builds its own planner, frontier, and visited set.
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option configures a Client.
type Option func(*config.Config)

// WithMaxResults caps how many search hits seed the crawl.
func WithMaxResults(n int) Option {
	return func(c *config.Config) { c.Research.MaxInitialResults = n }
}

// WithMaxLevel2PerPage caps how many outlinks each level-1 page may
// contribute.
func WithMaxLevel2PerPage(n int) Option {
	return func(c *config.Config) { c.Research.MaxLevel2PerPage = n }
}

// WithMaxTotalPages sets a global page cap across both levels (0 means
// unlimited).
func WithMaxTotalPages(n int) Option {
	return func(c *config.Config) { c.Research.MaxTotalPages = n }
}

// WithDeadline sets the overall wall-clock budget for a run.
func WithDeadline(d time.Duration) Option {
	return func(c *config.Config) { c.Research.OverallDeadline = d }
}

// WithConcurrency sets the number of concurrent fetch workers.
func WithConcurrency(n int) Option {
	return func(c *config.Config) { c.Fetcher.MaxConcurrency = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config.Config) { c.Fetcher.RequestTimeout = d }
}

// WithPerHostInterval sets the politeness spacing between fetches to the
// same host.
func WithPerHostInterval(d time.Duration) Option {
	return func(c *config.Config) { c.Fetcher.PerHostMinInterval = d }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Fetcher.UserAgent = ua }
}

// WithSearchProvider selects the search backend ("duckduckgo" or
// "searxng"). baseURL is required for searxng and ignored otherwise.
func WithSearchProvider(name, baseURL string) Option {
	return func(c *config.Config) {
		c.Search.Provider = name
		c.Search.BaseURL = baseURL
	}
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// New creates a Client from the default configuration plus options. The
// configuration is validated before any network activity.
func New(opts ...Option) (*Client, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewWithConfig(cfg, nil)
}

// NewWithConfig creates a Client from a fully built configuration. A nil
// logger gets one derived from the logging section.
func NewWithConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		level := slog.LevelInfo
		if cfg.Logging.Level == "debug" {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return &Client{cfg: cfg, logger: logger}, nil
}

// SetMetrics attaches a metrics registry shared across runs. Optional.
func (c *Client) SetMetrics(m *observability.Metrics) {
	c.metrics = m
}

// Config returns the client's configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}

// Run executes one research query. Per-call options apply to this run
// only. The returned error covers configuration and wiring problems;
// search and fetch failures are absorbed into the result.
func (c *Client) Run(ctx context.Context, query string, opts ...Option) (*types.ResearchResult, error) {
	cfg := c.cfg
	if len(opts) > 0 {
		clone := *c.cfg
		cfg = &clone
		for _, opt := range opts {
			opt(cfg)
		}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	provider, err := search.New(cfg, c.logger)
	if err != nil {
		return nil, err
	}

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, c.logger)
	if err != nil {
		return nil, err
	}
	defer httpFetcher.Close()

	p, err := planner.New(cfg, c.logger)
	if err != nil {
		return nil, err
	}
	p.SetProvider(provider)
	p.SetFetcher(httpFetcher)
	if c.metrics != nil {
		p.SetMetrics(c.metrics)
	}

	if cfg.AI.Enabled {
		llm := ai.NewLLMClient(ai.LLMConfigFrom(cfg.AI), c.logger)
		synth := synthesizer.New(c.logger)
		synth.SetSummarizer(ai.NewResearchSummarizer(llm, c.logger))
		p.SetSynthesizer(synth)
	}

	return p.Run(ctx, query)
}
