// Package search turns a research query into an initial set of web hits.
//
// Providers return ranked hits; the planner treats their order as the
// seed order of the crawl. A provider failure is not fatal to a run, it
// just produces an empty result set.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/types"
)

// ErrNoResults marks a search that succeeded but matched nothing. The
// planner surfaces it the same way as a provider error.
var ErrNoResults = errors.New("search returned no results")

// Provider is a search backend that seeds a research run.
type Provider interface {
	// Search returns up to limit hits for the query, best first.
	Search(ctx context.Context, query string, limit int) ([]types.SearchHit, error)
	// Name identifies the provider in logs and errors.
	Name() string
}

// New builds the provider selected in the configuration.
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Search.Provider {
	case "duckduckgo":
		return NewDuckDuckGo(cfg, logger), nil
	case "searxng":
		return NewSearxNG(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %q", cfg.Search.Provider)
	}
}
