package observability

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
)

// Metrics tracks operational metrics across research runs. Counters are
// cumulative for the process lifetime, so a long-lived server can be
// scraped across many runs.
type Metrics struct {
	// Run metrics
	RunsTotal     atomic.Int64
	SearchesTotal atomic.Int64
	SearchHits    atomic.Int64

	// Fetch metrics
	FetchAttempts   atomic.Int64
	PagesCrawled    atomic.Int64
	PagesFailed     atomic.Int64
	PagesRetried    atomic.Int64
	BytesDownloaded atomic.Int64

	// Crawl metrics
	LinksDiscovered atomic.Int64
	ActiveWorkers   atomic.Int32
	FrontierDepth   atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"deepstalk_runs_total", "Total research runs executed", "counter", m.RunsTotal.Load()},
		{"deepstalk_searches_total", "Total search provider calls", "counter", m.SearchesTotal.Load()},
		{"deepstalk_search_hits_total", "Total search hits returned", "counter", m.SearchHits.Load()},
		{"deepstalk_fetch_attempts_total", "Total page fetch attempts", "counter", m.FetchAttempts.Load()},
		{"deepstalk_pages_crawled_total", "Total pages fetched and extracted", "counter", m.PagesCrawled.Load()},
		{"deepstalk_pages_failed_total", "Total pages that produced no content", "counter", m.PagesFailed.Load()},
		{"deepstalk_pages_retried_total", "Total fetch retries", "counter", m.PagesRetried.Load()},
		{"deepstalk_bytes_downloaded_total", "Total page bytes downloaded", "counter", m.BytesDownloaded.Load()},
		{"deepstalk_links_discovered_total", "Total outlinks discovered on crawled pages", "counter", m.LinksDiscovered.Load()},
		{"deepstalk_active_workers", "Currently active crawl workers", "gauge", int64(m.ActiveWorkers.Load())},
		{"deepstalk_frontier_depth", "Current frontier queue depth", "gauge", m.FrontierDepth.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server.
func (m *Metrics) StartServer(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	m.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.logger.Error("metrics server error", "error", err)
		}
	}()

	return nil
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs_total":       m.RunsTotal.Load(),
		"searches_total":   m.SearchesTotal.Load(),
		"search_hits":      m.SearchHits.Load(),
		"fetch_attempts":   m.FetchAttempts.Load(),
		"pages_crawled":    m.PagesCrawled.Load(),
		"pages_failed":     m.PagesFailed.Load(),
		"pages_retried":    m.PagesRetried.Load(),
		"bytes_downloaded": m.BytesDownloaded.Load(),
		"links_discovered": m.LinksDiscovered.Load(),
		"active_workers":   int64(m.ActiveWorkers.Load()),
		"frontier_depth":   m.FrontierDepth.Load(),
	}
}
