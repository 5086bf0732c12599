package fetcher

import (
	"context"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

// Fetcher retrieves pages for the crawl. Implementations never return an
// error alongside the outcome: every attempt produces exactly one
// FetchOutcome whose Status classifies success or the failure mode.
type Fetcher interface {
	// Fetch retrieves the content at the task's URL. The context is the
	// run context; the per-request timeout is applied internally.
	Fetch(ctx context.Context, task *types.CrawlTask) *types.FetchOutcome

	// Close releases any resources held by the fetcher.
	Close() error
}
