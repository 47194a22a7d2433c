package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

const matchColumns = `id, source_product_id, competitor_product_id, match_type, match_score, is_confirmed, created_at`

// UpsertMatches persists a matching run in one batch. An existing match
// for the same product pair is overwritten, not duplicated.
func (db *DB) UpsertMatches(ctx context.Context, matches []models.ProductMatch) error {
	if len(matches) == 0 {
		return nil
	}

	return db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range matches {
			id := m.ID
			if id == "" {
				id = uuid.New().String()
			}
			batch.Queue(
				`INSERT INTO product_matches (id, source_product_id, competitor_product_id, match_type, match_score, is_confirmed)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (source_product_id, competitor_product_id) DO UPDATE SET
					match_type = EXCLUDED.match_type,
					match_score = EXCLUDED.match_score,
					is_confirmed = EXCLUDED.is_confirmed`,
				id, m.SourceProductID, m.CompetitorProductID, m.MatchType, m.MatchScore, m.IsConfirmed,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to upsert match: %w", err)
			}
		}
		return nil
	})
}

// CreateManualMatch records a user-made match. Manual matches are
// confirmed on creation and overwrite any automatic match of the pair.
func (db *DB) CreateManualMatch(ctx context.Context, sourceProductID, competitorProductID string) (*models.ProductMatch, error) {
	match := models.ProductMatch{
		ID:                  uuid.New().String(),
		SourceProductID:     sourceProductID,
		CompetitorProductID: competitorProductID,
		MatchType:           models.MatchManual,
		IsConfirmed:         true,
	}
	if err := db.UpsertMatches(ctx, []models.ProductMatch{match}); err != nil {
		return nil, err
	}
	return &match, nil
}

func (db *DB) ListMatches(ctx context.Context) ([]models.ProductMatch, error) {
	query := `SELECT ` + matchColumns + ` FROM product_matches ORDER BY created_at, id`
	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []models.ProductMatch
	for rows.Next() {
		var m models.ProductMatch
		if err := rows.Scan(&m.ID, &m.SourceProductID, &m.CompetitorProductID, &m.MatchType, &m.MatchScore, &m.IsConfirmed, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ConfirmMatch flags a fuzzy match as user-verified.
func (db *DB) ConfirmMatch(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `UPDATE product_matches SET is_confirmed = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to confirm match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeleteMatch(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM product_matches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PriceComparison pairs a match with both products' prices and the
// differential between them.
type PriceComparison struct {
	Match             models.ProductMatch `json:"match"`
	SourceProduct     models.Product      `json:"source_product"`
	CompetitorProduct models.Product      `json:"competitor_product"`
	PriceDifference   *float64            `json:"price_difference,omitempty"`
	PercentDifference *float64            `json:"percent_difference,omitempty"`
}

// ListPriceComparisons joins every match with its two products and
// computes price differentials where both sides carry a price.
func (db *DB) ListPriceComparisons(ctx context.Context) ([]PriceComparison, error) {
	query := `
		SELECT m.id, m.source_product_id, m.competitor_product_id, m.match_type, m.match_score, m.is_confirmed, m.created_at,
		       s.id, s.website_id, s.name, s.price, s.sku, s.image_url, s.product_url, s.created_at,
		       c.id, c.website_id, c.name, c.price, c.sku, c.image_url, c.product_url, c.created_at
		FROM product_matches m
		JOIN products s ON s.id = m.source_product_id
		JOIN products c ON c.id = m.competitor_product_id
		ORDER BY m.created_at, m.id`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list price comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []PriceComparison
	for rows.Next() {
		var pc PriceComparison
		var sSKU, sImage, sLink, cSKU, cImage, cLink *string
		err := rows.Scan(
			&pc.Match.ID, &pc.Match.SourceProductID, &pc.Match.CompetitorProductID,
			&pc.Match.MatchType, &pc.Match.MatchScore, &pc.Match.IsConfirmed, &pc.Match.CreatedAt,
			&pc.SourceProduct.ID, &pc.SourceProduct.WebsiteID, &pc.SourceProduct.Name, &pc.SourceProduct.Price,
			&sSKU, &sImage, &sLink, &pc.SourceProduct.CreatedAt,
			&pc.CompetitorProduct.ID, &pc.CompetitorProduct.WebsiteID, &pc.CompetitorProduct.Name, &pc.CompetitorProduct.Price,
			&cSKU, &cImage, &cLink, &pc.CompetitorProduct.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price comparison: %w", err)
		}
		applyOptional(&pc.SourceProduct, sSKU, sImage, sLink)
		applyOptional(&pc.CompetitorProduct, cSKU, cImage, cLink)

		if pc.SourceProduct.Price != nil && pc.CompetitorProduct.Price != nil && *pc.SourceProduct.Price != 0 {
			diff := *pc.CompetitorProduct.Price - *pc.SourceProduct.Price
			pct := diff / *pc.SourceProduct.Price * 100
			pc.PriceDifference = &diff
			pc.PercentDifference = &pct
		}
		comparisons = append(comparisons, pc)
	}
	return comparisons, rows.Err()
}
