package planner

import (
	"sync/atomic"
	"time"
)

// Stats tracks counters for a research run.
type Stats struct {
	SearchHits      atomic.Int64
	FetchAttempts   atomic.Int64
	PagesOK         atomic.Int64
	PagesFailed     atomic.Int64
	PagesRetried    atomic.Int64
	URLsEnqueued    atomic.Int64
	URLsFiltered    atomic.Int64
	LinksDiscovered atomic.Int64
	BytesDownloaded atomic.Int64
	ActiveWorkers   atomic.Int32
	StartTime       time.Time
}

// Snapshot returns a copy of stats safe for reading.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"search_hits":      s.SearchHits.Load(),
		"fetch_attempts":   s.FetchAttempts.Load(),
		"pages_ok":         s.PagesOK.Load(),
		"pages_failed":     s.PagesFailed.Load(),
		"pages_retried":    s.PagesRetried.Load(),
		"urls_enqueued":    s.URLsEnqueued.Load(),
		"urls_filtered":    s.URLsFiltered.Load(),
		"links_discovered": s.LinksDiscovered.Load(),
		"bytes_downloaded": s.BytesDownloaded.Load(),
		"active_workers":   s.ActiveWorkers.Load(),
		"elapsed":          time.Since(s.StartTime).String(),
	}
}
