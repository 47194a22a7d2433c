package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nobody-27-27/EcomCompare/internal/crawler"
	"github.com/nobody-27-27/EcomCompare/internal/database"
	"github.com/nobody-27-27/EcomCompare/internal/events"
	"github.com/nobody-27-27/EcomCompare/internal/models"
)

// Runner drives a crawl for one website end to end: job bookkeeping,
// status transitions, progress fan-out and the final product snapshot.
type Runner struct {
	db        *database.DB
	manager   *crawler.Manager
	publisher *events.Publisher
	logger    *slog.Logger

	mu       sync.Mutex
	starting map[string]struct{}
}

func NewRunner(db *database.DB, manager *crawler.Manager, publisher *events.Publisher, logger *slog.Logger) *Runner {
	return &Runner{
		db:        db,
		manager:   manager,
		publisher: publisher,
		logger:    logger.With("component", "crawl_runner"),
		starting:  make(map[string]struct{}),
	}
}

// ErrCrawlActive mirrors the manager's sentinel for callers that only
// import this package.
var ErrCrawlActive = crawler.ErrCrawlActive

// StartCrawl begins a crawl for the website and returns the job record
// immediately; the crawl itself runs in the background. The website's
// slot is reserved before any row is written, so concurrent starts for
// the same website see ErrCrawlActive rather than a doomed job.
func (r *Runner) StartCrawl(ctx context.Context, websiteID string) (*models.CrawlJob, error) {
	if err := r.reserve(websiteID); err != nil {
		return nil, err
	}

	website, err := r.db.GetWebsite(ctx, websiteID)
	if err != nil {
		r.release(websiteID)
		return nil, err
	}

	job, err := r.db.CreateCrawlJob(ctx, websiteID)
	if err != nil {
		r.release(websiteID)
		return nil, err
	}

	if err := r.db.UpdateWebsiteStatus(ctx, websiteID, models.WebsiteStatusCrawling); err != nil {
		r.logger.Error("failed to mark website crawling", "website", websiteID, "error", err)
	}

	go r.run(context.WithoutCancel(ctx), website, job)

	return job, nil
}

// reserve claims the website's crawl slot. The slot stays held until
// the background run settles, covering the window before the manager
// registers the engine.
func (r *Runner) reserve(websiteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, pending := r.starting[websiteID]; pending {
		return ErrCrawlActive
	}
	if r.manager.IsActive(websiteID) {
		return ErrCrawlActive
	}
	r.starting[websiteID] = struct{}{}
	return nil
}

func (r *Runner) release(websiteID string) {
	r.mu.Lock()
	delete(r.starting, websiteID)
	r.mu.Unlock()
}

// CancelCrawl cancels the active crawl for the website, if any, and
// forces the persisted statuses to their terminal cancelled state.
func (r *Runner) CancelCrawl(ctx context.Context, websiteID string) bool {
	found := r.manager.CancelCrawl(websiteID)
	if err := r.db.UpdateWebsiteStatus(ctx, websiteID, models.WebsiteStatusCancelled); err != nil {
		r.logger.Error("failed to mark website cancelled", "website", websiteID, "error", err)
	}
	return found
}

func (r *Runner) run(ctx context.Context, website *models.Website, job *models.CrawlJob) {
	defer r.release(website.ID)

	sink := r.progressSink(website.ID, job.ID)

	result, err := r.manager.StartCrawl(ctx, website.ID, website.URL, website.CrawlStrategy, sink)
	if err != nil {
		r.logger.Error("crawl failed", "website", website.ID, "job", job.ID, "error", err)
		if markErr := r.db.MarkCrawlJobFailed(ctx, job.ID, err.Error()); markErr != nil {
			r.logger.Error("failed to mark job failed", "job", job.ID, "error", markErr)
		}
		if statusErr := r.db.UpdateWebsiteStatus(ctx, website.ID, models.WebsiteStatusFailed); statusErr != nil {
			r.logger.Error("failed to mark website failed", "website", website.ID, "error", statusErr)
		}
		return
	}

	count, err := r.db.CreateProducts(ctx, website.ID, result.Products)
	if err != nil {
		r.logger.Error("failed to persist products", "website", website.ID, "error", err)
		if markErr := r.db.MarkCrawlJobFailed(ctx, job.ID, err.Error()); markErr != nil {
			r.logger.Error("failed to mark job failed", "job", job.ID, "error", markErr)
		}
		r.db.UpdateWebsiteStatus(ctx, website.ID, models.WebsiteStatusFailed)
		return
	}

	if err := r.db.MarkCrawlJobCompleted(ctx, job.ID, result.PagesCrawled, count); err != nil {
		r.logger.Error("failed to mark job completed", "job", job.ID, "error", err)
	}

	status := models.WebsiteStatusCompleted
	if result.Cancelled {
		status = models.WebsiteStatusCancelled
	}
	if err := r.db.UpdateWebsiteStatus(ctx, website.ID, status); err != nil {
		r.logger.Error("failed to update website status", "website", website.ID, "error", err)
	}

	r.logger.Info("crawl run finished",
		"website", website.ID,
		"job", job.ID,
		"pages", result.PagesCrawled,
		"products", count,
		"cancelled", result.Cancelled,
	)
}

// progressSink fans each event out to redis and mirrors the progress
// counters onto the job row. Both paths are fire-and-forget; the crawl
// loop never waits on redis or the database.
func (r *Runner) progressSink(websiteID, jobID string) crawler.ProgressSink {
	publish := r.publisher.SinkFor(websiteID)
	return crawler.ProgressFunc(func(event crawler.ProgressEvent) {
		publish.Publish(event)
		if event.Status != crawler.ProgressCrawling && event.Status != crawler.ProgressError {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.db.UpdateCrawlJobProgress(ctx, jobID, event.PagesCrawled, event.ProductsFound); err != nil {
				r.logger.Warn("failed to update job progress", "job", jobID, "error", err)
			}
		}()
	})
}
