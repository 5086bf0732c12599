package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/api"
	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/report"
	"github.com/IshaanNene/DeepStalk/internal/storage"
	"github.com/IshaanNene/DeepStalk/internal/types"
	"github.com/IshaanNene/DeepStalk/pkg/deepstalk"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixtureSite serves a small crawlable site: two level-1 pages about solar
// panels, one of which links to two level-2 pages plus a broken link.
func fixtureSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/solar", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Solar Basics</title></head><body>
<p>Solar panels convert sunlight into electricity through photovoltaic cells.
Modern solar panels reach efficiencies above twenty percent in production.
Installing solar panels reduces grid dependence for most households.</p>
<nav><a href="/login">Login</a></nav>
<p><a href="/inverters">How inverters work</a>
<a href="/storage">Battery storage for solar</a>
<a href="/missing">dead link</a></p>
</body></html>`)
	})
	mux.HandleFunc("/costs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Panel Costs</title></head><body>
<p>The cost of solar panels fell sharply over the last decade.
Panel pricing now competes with fossil generation in most markets.</p>
</body></html>`)
	})
	mux.HandleFunc("/inverters", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Inverters</title></head><body>
<p>Inverters turn the direct current from solar panels into alternating current.</p>
</body></html>`)
	})
	mux.HandleFunc("/storage", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Batteries</title></head><body>
<p>Battery systems store surplus energy that solar panels produce at noon.</p>
</body></html>`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Login</title></head><body><form></form></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// searxFixture serves a SearxNG-compatible JSON API pointing at the site.
func searxFixture(t *testing.T, site *httptest.Server) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"results": [
			{"url": %q, "title": "Solar Basics", "content": "How solar panels work"},
			{"url": %q, "title": "Panel Costs", "content": "What solar panels cost"}
		]}`, site.URL+"/solar", site.URL+"/costs")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, searx *httptest.Server) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Search.Provider = "searxng"
	cfg.Search.BaseURL = searx.URL
	cfg.Fetcher.PerHostMinInterval = 0
	cfg.Fetcher.RequestTimeout = 5 * time.Second
	cfg.Fetcher.MaxConcurrency = 4
	cfg.Research.OverallDeadline = 30 * time.Second
	cfg.Storage.Backend = "none"
	cfg.Storage.OutputDir = t.TempDir()
	return cfg
}

func checkInvariants(t *testing.T, result *types.ResearchResult) {
	t.Helper()

	if got := len(result.Level1Pages) + len(result.Level2Pages); got != result.TotalPagesCrawled {
		t.Errorf("total_pages_crawled = %d, page lists sum to %d", result.TotalPagesCrawled, got)
	}

	seen := make(map[string]bool)
	level1 := make(map[string]bool)
	for _, p := range result.Level1Pages {
		if seen[p.URL] {
			t.Errorf("duplicate URL across result: %s", p.URL)
		}
		seen[p.URL] = true
		level1[p.URL] = true
	}
	for _, p := range result.Level2Pages {
		if seen[p.URL] {
			t.Errorf("duplicate URL across result: %s", p.URL)
		}
		seen[p.URL] = true
		if !level1[p.ParentURL] {
			t.Errorf("level-2 page %s has parent %s not in level-1 list", p.URL, p.ParentURL)
		}
	}
	for _, f := range result.Failures {
		if seen[f.URL] {
			t.Errorf("failed URL %s also appears as a page", f.URL)
		}
	}
}

func TestFullPipelineThroughSDK(t *testing.T) {
	site := fixtureSite(t)
	searx := searxFixture(t, site)

	client, err := deepstalk.NewWithConfig(testConfig(t, searx), testLogger)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	result, err := client.Run(context.Background(), "solar panels")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkInvariants(t, result)

	if len(result.InitialHits) != 2 {
		t.Fatalf("expected 2 initial hits, got %d", len(result.InitialHits))
	}
	if len(result.Level1Pages) != 2 {
		t.Fatalf("expected 2 level-1 pages, got %d", len(result.Level1Pages))
	}
	// All four anchors on /solar are admitted: /inverters, /storage, and
	// /login fetch fine, /missing 404s.
	if len(result.Level2Pages) != 3 {
		t.Errorf("expected 3 level-2 pages, got %d: %+v", len(result.Level2Pages), result.Level2Pages)
	}
	if len(result.Failures) != 1 || result.Failures[0].ErrorKind != types.KindHTTP4xx {
		t.Errorf("expected a single http-4xx failure, got %+v", result.Failures)
	}

	if !strings.HasPrefix(result.Summary, "Research on 'solar panels' surveyed") {
		t.Errorf("summary missing lead sentence: %q", result.Summary)
	}
	if len(result.KeyFindings) == 0 {
		t.Error("expected key findings")
	}
	if !strings.Contains(result.KeyFindings[0], "Solar Basics") {
		t.Errorf("best finding should reference the most relevant page, got %q", result.KeyFindings[0])
	}
	if result.TotalLinksDiscovered < 4 {
		t.Errorf("total_links_discovered = %d, want at least the 4 anchors on /solar", result.TotalLinksDiscovered)
	}
}

func TestRunOverridesConstrainCrawl(t *testing.T) {
	site := fixtureSite(t)
	searx := searxFixture(t, site)

	client, err := deepstalk.NewWithConfig(testConfig(t, searx), testLogger)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	result, err := client.Run(context.Background(), "solar panels",
		deepstalk.WithMaxResults(1),
		deepstalk.WithMaxLevel2PerPage(1),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	checkInvariants(t, result)

	if len(result.Level1Pages) != 1 {
		t.Errorf("expected 1 level-1 page, got %d", len(result.Level1Pages))
	}
	if got := len(result.Level2Pages) + countLevel(result.Failures, 2); got > 1 {
		t.Errorf("level-2 attempts = %d, cap was 1", got)
	}
}

func countLevel(failures []types.Failure, level int) int {
	n := 0
	for _, f := range failures {
		if f.Level == level {
			n++
		}
	}
	return n
}

func TestEmptySearchYieldsDegradedResult(t *testing.T) {
	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer searx.Close()

	client, err := deepstalk.NewWithConfig(testConfig(t, searx), testLogger)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	result, err := client.Run(context.Background(), "zxcvbnm_nonsense_42")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalPagesCrawled != 0 || len(result.InitialHits) != 0 {
		t.Errorf("expected empty result, got %+v", result)
	}
	if result.Summary != "" {
		t.Errorf("summary should be empty, got %q", result.Summary)
	}
	if len(result.KeyFindings) != 1 || !strings.Contains(result.KeyFindings[0], "search-failure") {
		t.Errorf("expected a single search-failure finding, got %v", result.KeyFindings)
	}
}

func TestResultArchiveAndReport(t *testing.T) {
	site := fixtureSite(t)
	searx := searxFixture(t, site)

	cfg := testConfig(t, searx)
	cfg.Storage.Backend = "json"

	client, err := deepstalk.NewWithConfig(cfg, testLogger)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	result, err := client.Run(context.Background(), "solar panels")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	store, err := storage.New(cfg, testLogger)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if err := store.Save(context.Background(), result); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Storage.OutputDir, "deep_research_solar_panels_*.json"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one archived result, got %v (err %v)", matches, err)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	var decoded types.ResearchResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("archive not valid JSON: %v", err)
	}
	if decoded.Query != "solar panels" {
		t.Errorf("archived query = %q", decoded.Query)
	}

	pdfPath := filepath.Join(cfg.Storage.OutputDir, storage.ResultFileName(result.Query, result.FinishedAt, "pdf"))
	gen := report.NewPDFGenerator(cfg.Report, testLogger)
	if err := gen.Generate(result, pdfPath); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if info, err := os.Stat(pdfPath); err != nil || info.Size() < 1024 {
		t.Errorf("pdf report missing or too small: %v", err)
	}
}

func TestResearchAPIEndToEnd(t *testing.T) {
	site := fixtureSite(t)
	searx := searxFixture(t, site)

	client, err := deepstalk.NewWithConfig(testConfig(t, searx), testLogger)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}

	server := api.NewServer(0, testLogger)
	server.SetResearcher(&sdkRunner{client: client})

	payload := `{"query": "solar panels", "max_initial_results": 1}`
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/research", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("research endpoint returned %d: %s", rec.Code, rec.Body.String())
	}
	var result types.ResearchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("response not a ResearchResult: %v", err)
	}
	checkInvariants(t, &result)
	if len(result.Level1Pages) != 1 {
		t.Errorf("override ignored: %d level-1 pages", len(result.Level1Pages))
	}
}

// sdkRunner adapts the SDK client to the API's Researcher seat, mirroring
// the serve command's wiring.
type sdkRunner struct {
	client *deepstalk.Client
}

func (r *sdkRunner) Research(ctx context.Context, query string, opts *api.RunOptions) (*types.ResearchResult, error) {
	var runOpts []deepstalk.Option
	if opts != nil && opts.MaxInitialResults > 0 {
		runOpts = append(runOpts, deepstalk.WithMaxResults(opts.MaxInitialResults))
	}
	return r.client.Run(ctx, query, runOpts...)
}
