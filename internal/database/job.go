package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

const jobColumns = `id, website_id, status, crawled_pages, total_products, error_message, started_at, completed_at`

// CreateCrawlJob opens a job record for a crawl that is starting now.
func (db *DB) CreateCrawlJob(ctx context.Context, websiteID string) (*models.CrawlJob, error) {
	job := &models.CrawlJob{
		ID:        uuid.New().String(),
		WebsiteID: websiteID,
		Status:    models.JobStatusRunning,
		StartedAt: time.Now(),
	}

	query := `
		INSERT INTO crawl_jobs (id, website_id, status, started_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := db.pool.Exec(ctx, query, job.ID, job.WebsiteID, job.Status, job.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to create crawl job: %w", err)
	}
	return job, nil
}

func (db *DB) GetCrawlJob(ctx context.Context, id string) (*models.CrawlJob, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM crawl_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetLatestCrawlJob returns the most recent job for a website.
func (db *DB) GetLatestCrawlJob(ctx context.Context, websiteID string) (*models.CrawlJob, error) {
	query := `SELECT ` + jobColumns + ` FROM crawl_jobs WHERE website_id = $1 ORDER BY started_at DESC LIMIT 1`
	return scanJob(db.pool.QueryRow(ctx, query, websiteID))
}

// UpdateCrawlJobProgress records per-page progress while a job runs.
func (db *DB) UpdateCrawlJobProgress(ctx context.Context, id string, crawledPages, totalProducts int) error {
	query := `UPDATE crawl_jobs SET crawled_pages = $2, total_products = $3 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, crawledPages, totalProducts)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// MarkCrawlJobCompleted finalizes a job with its product count.
func (db *DB) MarkCrawlJobCompleted(ctx context.Context, id string, crawledPages, totalProducts int) error {
	query := `
		UPDATE crawl_jobs SET status = $2, crawled_pages = $3, total_products = $4, completed_at = $5
		WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, models.JobStatusCompleted, crawledPages, totalProducts, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}

// MarkCrawlJobFailed finalizes a job with its error message.
func (db *DB) MarkCrawlJobFailed(ctx context.Context, id string, message string) error {
	query := `UPDATE crawl_jobs SET status = $2, error_message = $3, completed_at = $4 WHERE id = $1`
	_, err := db.pool.Exec(ctx, query, id, models.JobStatusFailed, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (*models.CrawlJob, error) {
	var job models.CrawlJob
	var errMsg *string
	err := row.Scan(&job.ID, &job.WebsiteID, &job.Status, &job.CrawledPages, &job.TotalProducts, &errMsg, &job.StartedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl job: %w", err)
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	return &job, nil
}
