// Package planner orchestrates a research run: it seeds the frontier from
// search hits, drives the two-level crawl through a worker pool, and owns
// the visited set, the page accumulator, and the failure ledger.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/config"
	"github.com/IshaanNene/DeepStalk/internal/extractor"
	"github.com/IshaanNene/DeepStalk/internal/fetcher"
	"github.com/IshaanNene/DeepStalk/internal/observability"
	"github.com/IshaanNene/DeepStalk/internal/scorer"
	"github.com/IshaanNene/DeepStalk/internal/search"
	"github.com/IshaanNene/DeepStalk/internal/synthesizer"
	"github.com/IshaanNene/DeepStalk/internal/types"
	"github.com/IshaanNene/DeepStalk/internal/urlutil"
)

// Planner coordinates one research run. Build it, set a provider and a
// fetcher, call Run once. The frontier and visited set are single-use.
type Planner struct {
	cfg       *config.Config
	logger    *slog.Logger
	provider  search.Provider
	fetcher   fetcher.Fetcher
	extractor *extractor.Extractor
	scorer    *scorer.Scorer
	synth     *synthesizer.Synthesizer
	metrics   *observability.Metrics

	frontier  *Frontier
	visited   *Visited
	stats     *Stats
	scheduler *Scheduler

	query         *types.Query
	pagesAdmitted atomic.Int64

	mu         sync.Mutex
	level1     []*types.ScoredPage
	level2     []*types.ScoredPage
	failures   []types.Failure
	totalLinks int
}

// New creates a Planner with the default extractor, scorer, and
// deterministic synthesizer. The search provider and fetcher must be set
// before Run.
func New(cfg *config.Config, logger *slog.Logger) (*Planner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	p := &Planner{
		cfg:       cfg,
		logger:    logger.With("component", "planner"),
		extractor: extractor.New(logger),
		scorer:    scorer.New(logger),
		synth:     synthesizer.New(logger),
		frontier:  NewFrontier(),
		visited:   NewVisited(1024),
		stats:     &Stats{},
	}
	p.scheduler = NewScheduler(p)
	return p, nil
}

// SetProvider sets the search provider that seeds the run.
func (p *Planner) SetProvider(provider search.Provider) {
	p.provider = provider
}

// SetFetcher sets the fetcher implementation.
func (p *Planner) SetFetcher(f fetcher.Fetcher) {
	p.fetcher = f
}

// SetSynthesizer replaces the default synthesizer, e.g. with one backed
// by an LLM summarizer.
func (p *Planner) SetSynthesizer(s *synthesizer.Synthesizer) {
	p.synth = s
}

// SetMetrics attaches a metrics registry. Optional.
func (p *Planner) SetMetrics(m *observability.Metrics) {
	p.metrics = m
}

// Stats returns the run's counters.
func (p *Planner) Stats() *Stats {
	return p.stats
}

// Run executes the research pipeline for the query and returns a complete
// result. Failures along the way (search errors, fetch errors, the
// deadline) are absorbed into the result; the returned error is reserved
// for unusable input or an unconfigured planner.
func (p *Planner) Run(ctx context.Context, rawQuery string) (*types.ResearchResult, error) {
	rawQuery = strings.TrimSpace(rawQuery)
	if rawQuery == "" {
		return nil, types.ErrEmptyQuery
	}
	if p.provider == nil {
		return nil, fmt.Errorf("no search provider configured")
	}
	if p.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}

	p.query = types.NewQuery(rawQuery)
	startedAt := time.Now()
	p.stats.StartTime = startedAt

	// A zero deadline is an already-spent budget, not "no deadline".
	runCtx, cancel := context.WithTimeout(ctx, p.cfg.Research.OverallDeadline)
	defer cancel()

	p.logger.Info("research run starting",
		"query", rawQuery,
		"terms", p.query.Terms,
		"provider", p.provider.Name(),
		"deadline", p.cfg.Research.OverallDeadline,
	)

	hits, searchErr := p.provider.Search(runCtx, rawQuery, p.cfg.Research.MaxInitialResults)
	switch {
	case searchErr != nil:
		p.logger.Error("search failed", "provider", p.provider.Name(), "error", searchErr)
		hits = nil
	case len(hits) == 0:
		p.logger.Warn("search returned no results", "provider", p.provider.Name(), "query", rawQuery)
		searchErr = search.ErrNoResults
	}
	if len(hits) > p.cfg.Research.MaxInitialResults {
		hits = hits[:p.cfg.Research.MaxInitialResults]
	}
	p.stats.SearchHits.Store(int64(len(hits)))
	if p.metrics != nil {
		p.metrics.SearchesTotal.Add(1)
		p.metrics.SearchHits.Add(int64(len(hits)))
	}

	// A failed or empty search ends the run; there is nothing to crawl.
	if searchErr == nil {
		p.seedLevel1(hits)

		p.scheduler.Start(runCtx)
		p.scheduler.Wait()

		// Whatever is still queued at the deadline was admitted but never
		// attempted; it must be accounted for.
		if runCtx.Err() != nil {
			for _, task := range p.frontier.Drain() {
				p.recordFailure(task, types.StatusSkipped, types.KindDeadline, 0)
			}
		}
	}

	finishedAt := time.Now()

	if p.metrics != nil {
		p.metrics.RunsTotal.Add(1)
		p.metrics.FetchAttempts.Add(p.stats.FetchAttempts.Load())
		p.metrics.PagesRetried.Add(p.stats.PagesRetried.Load())
		p.metrics.BytesDownloaded.Add(p.stats.BytesDownloaded.Load())
		p.metrics.LinksDiscovered.Add(p.stats.LinksDiscovered.Load())
	}

	p.mu.Lock()
	level1 := p.level1
	level2 := p.level2
	failures := p.failures
	totalLinks := p.totalLinks
	p.mu.Unlock()

	result := p.synth.Compose(ctx, &synthesizer.Input{
		Query:      p.query,
		Hits:       hits,
		Level1:     level1,
		Level2:     level2,
		Failures:   failures,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		TotalLinks: totalLinks,
		SearchErr:  searchErr,
	})

	p.logger.Info("research run complete",
		"pages", result.TotalPagesCrawled,
		"level1", len(result.Level1Pages),
		"level2", len(result.Level2Pages),
		"failures", len(result.Failures),
		"elapsed", finishedAt.Sub(startedAt),
	)

	return result, nil
}

// seedLevel1 admits the search hits in rank order. Hits that cannot be
// normalized are dropped; they still appear in the result's initial_hits.
func (p *Planner) seedLevel1(hits []types.SearchHit) {
	for i, hit := range hits {
		normalized, err := urlutil.Normalize(hit.URL)
		if err != nil {
			p.stats.URLsFiltered.Add(1)
			p.logger.Debug("dropping unusable search hit", "url", hit.URL, "error", err)
			continue
		}
		rank := hit.Rank
		if rank <= 0 {
			rank = i + 1
		}
		p.admit(normalized, 1, rank, "", hit.Snippet)
	}
}

// admit reserves a page budget slot, claims the URL in the visited set,
// and enqueues the task. Exactly one of the callers racing on the same
// URL wins; the cap is never exceeded.
func (p *Planner) admit(normalizedURL string, level, rank int, parentURL, snippet string) bool {
	if max := p.cfg.Research.MaxTotalPages; max > 0 {
		for {
			cur := p.pagesAdmitted.Load()
			if cur >= int64(max) {
				p.stats.URLsFiltered.Add(1)
				return false
			}
			if p.pagesAdmitted.CompareAndSwap(cur, cur+1) {
				break
			}
		}
	}

	if !p.visited.Add(normalizedURL) {
		if p.cfg.Research.MaxTotalPages > 0 {
			p.pagesAdmitted.Add(-1)
		}
		p.stats.URLsFiltered.Add(1)
		return false
	}

	task, err := types.NewCrawlTask(normalizedURL, level, rank)
	if err != nil {
		if p.cfg.Research.MaxTotalPages > 0 {
			p.pagesAdmitted.Add(-1)
		}
		return false
	}
	task.ParentURL = parentURL
	task.Snippet = snippet

	// The frontier closes when the run deadline fires; a task admitted in
	// that window still has to show up in the ledger.
	if !p.frontier.Push(task) {
		p.recordFailure(task, types.StatusSkipped, types.KindDeadline, 0)
		return false
	}
	p.stats.URLsEnqueued.Add(1)
	return true
}

// addPage records a successfully crawled page.
func (p *Planner) addPage(scored *types.ScoredPage) {
	if p.metrics != nil {
		p.metrics.PagesCrawled.Add(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if scored.Level == 1 {
		p.level1 = append(p.level1, scored)
		p.totalLinks += len(scored.Outlinks)
		p.stats.LinksDiscovered.Add(int64(len(scored.Outlinks)))
	} else {
		p.level2 = append(p.level2, scored)
	}
}

// recordFailure appends one entry to the failure ledger. Callers invoke
// it exactly once per admitted URL that produced no page.
func (p *Planner) recordFailure(task *types.CrawlTask, status types.FetchStatus, kind string, httpCode int) {
	p.stats.PagesFailed.Add(1)
	if p.metrics != nil {
		p.metrics.PagesFailed.Add(1)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, types.Failure{
		URL:       task.URLString(),
		Level:     task.Level,
		Status:    string(status),
		HTTPCode:  httpCode,
		ErrorKind: kind,
	})
}

// expandLevel2 admits up to max_level2_per_page outlinks of a level-1
// page. Cross-domain links are preferred, then same-domain links whose
// anchor or path mentions a query term, then the rest; document order
// breaks ties within a class.
func (p *Planner) expandLevel2(page *types.Page) {
	limit := p.cfg.Research.MaxLevel2PerPage
	if limit <= 0 {
		return
	}

	parentDomain := urlutil.RegistrableDomain(page.Host())

	type candidate struct {
		link  types.Outlink
		class int
	}
	var candidates []candidate
	for _, link := range page.Outlinks {
		if link.URL == page.URL {
			continue
		}
		if p.visited.Seen(link.URL) {
			continue
		}
		candidates = append(candidates, candidate{link: link, class: p.classifyOutlink(parentDomain, link)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].class < candidates[j].class
	})

	// Children inherit the parent's search-hit rank so relevance ties
	// across parents resolve in hit order; within a parent the frontier's
	// insertion sequence preserves preference order.
	admitted := 0
	for _, c := range candidates {
		if admitted >= limit {
			break
		}
		if p.admit(c.link.URL, 2, page.Rank, page.URL, "") {
			admitted++
		}
	}
}

func (p *Planner) classifyOutlink(parentDomain string, link types.Outlink) int {
	u, err := url.Parse(link.URL)
	if err != nil {
		return 2
	}
	if urlutil.RegistrableDomain(u.Host) != parentDomain {
		return 0
	}
	if p.query.ContainsTerm(link.Anchor) || p.query.ContainsTerm(u.Path) {
		return 1
	}
	return 2
}
