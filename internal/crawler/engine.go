package crawler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

// EngineOptions bound one crawl invocation.
type EngineOptions struct {
	MaxPages      int
	Delay         time.Duration
	FailureBudget int
	PlatformHint  Platform
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		MaxPages:      50,
		Delay:         time.Second,
		FailureBudget: 5,
		PlatformHint:  PlatformGeneric,
	}
}

// CrawlResult is the outcome of one crawl. A crawl that hits a budget
// ceiling still completes with whatever it gathered.
type CrawlResult struct {
	Products     []models.RawProduct
	PagesCrawled int
	FailedPages  int
	Platform     Platform
	Cancelled    bool
}

// Engine walks a site's link graph breadth-first within page, delay,
// failure and cancellation budgets, extracting products along the way.
// One Engine drives exactly one crawl.
type Engine struct {
	fetcher   Fetcher
	extractor *Extractor
	opts      EngineOptions
	sink      ProgressSink
	logger    *slog.Logger
	cancelled atomic.Bool
}

func NewEngine(fetcher Fetcher, opts EngineOptions, sink ProgressSink, logger *slog.Logger) *Engine {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 50
	}
	if opts.FailureBudget <= 0 {
		opts.FailureBudget = 5
	}
	if opts.PlatformHint == "" {
		opts.PlatformHint = PlatformGeneric
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Engine{
		fetcher:   fetcher,
		extractor: NewExtractor(logger),
		opts:      opts,
		sink:      sink,
		logger:    logger.With("component", "crawl_engine"),
	}
}

// Cancel requests cooperative termination and tears the fetcher down so
// an in-flight fetch aborts instead of running to completion.
func (e *Engine) Cancel() {
	if e.cancelled.CompareAndSwap(false, true) {
		e.fetcher.Close()
	}
}

// Crawl runs the frontier loop from startURL. Page-level fetch errors
// are reported and counted, never fatal; the fetcher is always released
// when the loop exits.
func (e *Engine) Crawl(ctx context.Context, startURL string) (*CrawlResult, error) {
	defer e.fetcher.Close()

	e.sink.Publish(ProgressEvent{Status: ProgressStarting})

	frontier := []string{startURL}
	queued := map[string]struct{}{startURL: {}}
	visited := make(map[string]struct{})

	platform := e.opts.PlatformHint
	detected := false

	var accumulated []models.RawProduct
	pagesCrawled := 0
	failedPages := 0

	for len(frontier) > 0 && pagesCrawled < e.opts.MaxPages && failedPages < e.opts.FailureBudget {
		if e.cancelled.Load() || ctx.Err() != nil {
			break
		}

		next := frontier[0]
		frontier = frontier[1:]

		if _, ok := visited[next]; ok {
			continue
		}
		visited[next] = struct{}{}

		page, err := e.fetcher.FetchPage(ctx, next)
		if err != nil {
			failedPages++
			e.logger.Warn("page fetch failed", "url", next, "error", err, "failed_pages", failedPages)
			e.sink.Publish(ProgressEvent{
				Status:        ProgressError,
				Message:       err.Error(),
				PagesCrawled:  pagesCrawled,
				ProductsFound: len(accumulated),
			})
			e.sleep(ctx)
			continue
		}

		if !detected {
			platform = DetectPlatform(page.HTML)
			detected = true
			e.logger.Info("detected platform", "platform", platform, "url", next)
		}

		products := e.extractor.Extract(page.Document, page.URL, platform)
		accumulated = append(accumulated, products...)
		pagesCrawled++

		for _, link := range DiscoverLinks(page.Document, page.URL, platform) {
			if _, seen := visited[link]; seen {
				continue
			}
			if _, inQueue := queued[link]; inQueue {
				continue
			}
			queued[link] = struct{}{}
			frontier = append(frontier, link)
		}

		e.sink.Publish(ProgressEvent{
			Status:        ProgressCrawling,
			PagesCrawled:  pagesCrawled,
			ProductsFound: len(accumulated),
		})

		e.sleep(ctx)
	}

	deduped := Deduplicate(accumulated)
	cancelled := e.cancelled.Load() || ctx.Err() != nil

	status := ProgressCompleted
	if cancelled {
		status = ProgressCancelled
	}
	e.sink.Publish(ProgressEvent{
		Status:        status,
		PagesCrawled:  pagesCrawled,
		ProductsFound: len(deduped),
	})

	e.logger.Info("crawl finished",
		"pages", pagesCrawled,
		"failed_pages", failedPages,
		"products", len(deduped),
		"cancelled", cancelled,
	)

	return &CrawlResult{
		Products:     deduped,
		PagesCrawled: pagesCrawled,
		FailedPages:  failedPages,
		Platform:     platform,
		Cancelled:    cancelled,
	}, nil
}

// sleep applies the mandatory inter-request delay. It always runs after
// a page attempt, success or failure, to keep load on the target site
// bounded.
func (e *Engine) sleep(ctx context.Context) {
	if e.opts.Delay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(e.opts.Delay):
	}
}
