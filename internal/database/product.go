package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

const productColumns = `id, website_id, name, price, sku, image_url, product_url, created_at`

// CreateProducts bulk-inserts the crawl snapshot for a website. The
// previous snapshot is deleted in the same transaction, so each crawl
// fully replaces the website's products.
func (db *DB) CreateProducts(ctx context.Context, websiteID string, products []models.RawProduct) (int, error) {
	var inserted int
	err := db.Transaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM products WHERE website_id = $1`, websiteID); err != nil {
			return fmt.Errorf("failed to clear previous snapshot: %w", err)
		}

		batch := &pgx.Batch{}
		for _, p := range products {
			if p.Name == "" {
				continue
			}
			batch.Queue(
				`INSERT INTO products (id, website_id, name, price, sku, image_url, product_url)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New().String(), websiteID, p.Name, p.Price,
				nullable(p.SKU), nullable(p.ImageURL), nullable(p.ProductURL),
			)
			inserted++
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert product: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func (db *DB) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	var p models.Product
	var sku, image, link *string
	err := row.Scan(&p.ID, &p.WebsiteID, &p.Name, &p.Price, &sku, &image, &link, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	applyOptional(&p, sku, image, link)
	return &p, nil
}

func (db *DB) ListProductsByWebsite(ctx context.Context, websiteID string) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE website_id = $1 ORDER BY created_at, id`
	return db.queryProducts(ctx, query, websiteID)
}

// ListProductsByRole returns the products of every website holding the
// given role. This is how the matching engine reads its two partitions.
func (db *DB) ListProductsByRole(ctx context.Context, role models.WebsiteRole) ([]models.Product, error) {
	query := `
		SELECT p.id, p.website_id, p.name, p.price, p.sku, p.image_url, p.product_url, p.created_at
		FROM products p
		JOIN websites w ON w.id = p.website_id
		WHERE w.role = $1
		ORDER BY p.created_at, p.id`
	return db.queryProducts(ctx, query, role)
}

func (db *DB) DeleteProduct(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProductsForWebsite drops a website's product snapshot.
func (db *DB) DeleteProductsForWebsite(ctx context.Context, websiteID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM products WHERE website_id = $1`, websiteID)
	if err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return nil
}

func (db *DB) queryProducts(ctx context.Context, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		var sku, image, link *string
		if err := rows.Scan(&p.ID, &p.WebsiteID, &p.Name, &p.Price, &sku, &image, &link, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		applyOptional(&p, sku, image, link)
		products = append(products, p)
	}
	return products, rows.Err()
}

func applyOptional(p *models.Product, sku, image, link *string) {
	if sku != nil {
		p.SKU = *sku
	}
	if image != nil {
		p.ImageURL = *image
	}
	if link != nil {
		p.ProductURL = *link
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
