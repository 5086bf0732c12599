package planner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/DeepStalk/internal/types"
)

// retryBaseDelay is doubled per attempt: 500ms, 1s, 2s, ...
const retryBaseDelay = 500 * time.Millisecond

// Scheduler manages worker goroutines that dequeue from the frontier and
// dispatch fetches.
type Scheduler struct {
	planner     *Planner
	logger      *slog.Logger
	wg          sync.WaitGroup
	idleWorkers atomic.Int32
	done        chan struct{}
}

// NewScheduler creates a new Scheduler.
func NewScheduler(p *Planner) *Scheduler {
	return &Scheduler{
		planner: p,
		logger:  p.logger.With("component", "scheduler"),
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool and idle monitor.
func (s *Scheduler) Start(ctx context.Context) {
	concurrency := s.planner.cfg.Fetcher.MaxConcurrency
	s.logger.Debug("starting worker pool", "workers", concurrency)

	for i := 0; i < concurrency; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	// Start idle monitor to detect when all work is done
	go s.idleMonitor(ctx, concurrency)
}

// Wait blocks until all workers are done.
func (s *Scheduler) Wait() {
	s.wg.Wait()
	close(s.done)
}

// idleMonitor checks if all workers are idle and the frontier is empty.
// When this condition holds for a sustained period, it closes the
// frontier. Level-2 expansion happens inside task processing, so an idle
// pool with an empty queue really means no more work can appear.
func (s *Scheduler) idleMonitor(ctx context.Context, concurrency int) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	idleStreak := 0

	for {
		select {
		case <-ctx.Done():
			s.planner.frontier.Close()
			return
		case <-s.done:
			return
		case <-ticker.C:
			idle := int(s.idleWorkers.Load())
			queueLen := s.planner.frontier.Len()

			if idle >= concurrency && queueLen == 0 {
				idleStreak++
				// Require 3 consecutive idle checks (~600ms) to confirm completion
				if idleStreak >= 3 {
					s.logger.Debug("all workers idle and frontier empty, crawl complete")
					s.planner.frontier.Close()
					return
				}
			} else {
				idleStreak = 0
			}
		}
	}
}

// worker is a single crawl worker goroutine.
func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	logger := s.logger.With("worker_id", id)

	for {
		// Mark as idle while waiting for work
		s.idleWorkers.Add(1)

		// Try to dequeue with short polling
		var task *types.CrawlTask
		for {
			task = s.planner.frontier.TryPop()
			if task != nil {
				break
			}

			// Frontier closed means no more work is coming
			if s.planner.frontier.IsClosed() {
				s.idleWorkers.Add(-1)
				return
			}

			select {
			case <-ctx.Done():
				s.idleWorkers.Add(-1)
				return
			default:
			}

			// Brief sleep before next poll attempt
			time.Sleep(50 * time.Millisecond)
		}

		s.idleWorkers.Add(-1)

		s.planner.stats.ActiveWorkers.Add(1)
		s.processTask(ctx, logger, task)
		s.planner.stats.ActiveWorkers.Add(-1)
	}
}

// processTask handles a single task: fetch, extract, score, expand.
func (s *Scheduler) processTask(ctx context.Context, logger *slog.Logger, task *types.CrawlTask) {
	logger = logger.With("url", task.URLString(), "level", task.Level)
	p := s.planner

	p.stats.FetchAttempts.Add(1)
	outcome := p.fetcher.Fetch(ctx, task)
	if !outcome.OK() {
		s.handleFetchFailure(ctx, logger, task, outcome)
		return
	}

	p.stats.PagesOK.Add(1)
	p.stats.BytesDownloaded.Add(int64(len(outcome.Body)))
	logger.Debug("fetched", "status", outcome.HTTPCode, "size", len(outcome.Body), "duration", outcome.Elapsed)

	page, err := p.extractor.Extract(task, outcome)
	if err != nil {
		logger.Warn("extract failed", "error", err)
		p.recordFailure(task, types.StatusExtract, types.KindExtract, 0)
		return
	}

	p.addPage(p.scorer.Score(p.query, page))

	if task.Level == 1 {
		p.expandLevel2(page)
	}
}

// handleFetchFailure retries transient failures with exponential backoff,
// and records the failure once the budget is spent. Server errors get at
// most one retry; timeouts and transient network errors get the full
// configured budget.
func (s *Scheduler) handleFetchFailure(ctx context.Context, logger *slog.Logger, task *types.CrawlTask, outcome *types.FetchOutcome) {
	p := s.planner

	if outcome.Retryable && task.RetryCount < s.retryBudget(outcome) && ctx.Err() == nil {
		task.RetryCount++
		delay := retryBaseDelay << (task.RetryCount - 1)
		if outcome.RetryAfter > delay {
			delay = outcome.RetryAfter
		}

		p.stats.PagesRetried.Add(1)
		logger.Warn("retrying fetch",
			"retry", task.RetryCount,
			"delay", delay,
			"error", outcome.Err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
			if p.frontier.Push(task) {
				return
			}
			// Frontier closed under us; fall through to the ledger.
		case <-ctx.Done():
			timer.Stop()
			// Deadline hit during backoff: record the original failure.
		}
	}

	logger.Debug("fetch failed permanently",
		"status", string(outcome.Status),
		"kind", outcome.ErrorKind,
		"retries", task.RetryCount,
	)
	p.recordFailure(task, outcome.Status, outcome.ErrorKind, outcome.HTTPCode)
}

// retryBudget caps retries by failure class.
func (s *Scheduler) retryBudget(outcome *types.FetchOutcome) int {
	maxRetries := s.planner.cfg.Fetcher.MaxRetries
	if outcome.ErrorKind == types.KindHTTP5xx && maxRetries > 1 {
		return 1
	}
	return maxRetries
}
