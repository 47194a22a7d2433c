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

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateURL is returned when a website URL is already registered.
var ErrDuplicateURL = errors.New("website url already exists")

const websiteColumns = `id, url, name, role, crawl_strategy, status, last_crawled_at, created_at`

// CreateWebsite registers a website. URLs are unique across the table.
func (db *DB) CreateWebsite(ctx context.Context, w *models.Website) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.Role == "" {
		w.Role = models.RoleCompetitor
	}
	if w.CrawlStrategy == "" {
		w.CrawlStrategy = models.StrategyAuto
	}
	if w.Status == "" {
		w.Status = models.WebsiteStatusPending
	}

	query := `
		INSERT INTO websites (id, url, name, role, crawl_strategy, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (url) DO NOTHING
		RETURNING created_at`

	err := db.pool.QueryRow(ctx, query,
		w.ID, w.URL, w.Name, w.Role, w.CrawlStrategy, w.Status,
	).Scan(&w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrDuplicateURL
	}
	if err != nil {
		return fmt.Errorf("failed to create website: %w", err)
	}
	return nil
}

func (db *DB) GetWebsite(ctx context.Context, id string) (*models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1`
	return db.scanWebsite(db.pool.QueryRow(ctx, query, id))
}

func (db *DB) ListWebsites(ctx context.Context) ([]models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites ORDER BY created_at`
	return db.queryWebsites(ctx, query)
}

func (db *DB) ListWebsitesByRole(ctx context.Context, role models.WebsiteRole) ([]models.Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE role = $1 ORDER BY created_at`
	return db.queryWebsites(ctx, query, role)
}

// SetSourceWebsite marks one website as the source store. Any previous
// source is demoted to competitor in the same transaction.
func (db *DB) SetSourceWebsite(ctx context.Context, id string) error {
	return db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE websites SET role = $1 WHERE role = $2 AND id <> $3`,
			models.RoleCompetitor, models.RoleSource, id,
		); err != nil {
			return fmt.Errorf("failed to demote previous source: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE websites SET role = $1 WHERE id = $2`,
			models.RoleSource, id,
		)
		if err != nil {
			return fmt.Errorf("failed to set source: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateWebsiteStatus records a crawl status transition. Terminal
// crawl states also stamp last_crawled_at.
func (db *DB) UpdateWebsiteStatus(ctx context.Context, id string, status models.WebsiteStatus) error {
	query := `UPDATE websites SET status = $2 WHERE id = $1`
	args := []interface{}{id, status}

	if status == models.WebsiteStatusCompleted || status == models.WebsiteStatusFailed || status == models.WebsiteStatusCancelled {
		query = `UPDATE websites SET status = $2, last_crawled_at = $3 WHERE id = $1`
		args = append(args, time.Now())
	}

	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update website status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWebsite removes a website; its products and their matches go
// with it via cascade.
func (db *DB) DeleteWebsite(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete website: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) queryWebsites(ctx context.Context, query string, args ...interface{}) ([]models.Website, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list websites: %w", err)
	}
	defer rows.Close()

	var websites []models.Website
	for rows.Next() {
		var w models.Website
		if err := rows.Scan(&w.ID, &w.URL, &w.Name, &w.Role, &w.CrawlStrategy, &w.Status, &w.LastCrawledAt, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan website: %w", err)
		}
		websites = append(websites, w)
	}
	return websites, rows.Err()
}

func (db *DB) scanWebsite(row pgx.Row) (*models.Website, error) {
	var w models.Website
	err := row.Scan(&w.ID, &w.URL, &w.Name, &w.Role, &w.CrawlStrategy, &w.Status, &w.LastCrawledAt, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get website: %w", err)
	}
	return &w, nil
}
