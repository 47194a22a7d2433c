package models

import (
	"time"
)

// WebsiteRole distinguishes the store we sell from and the stores we watch.
type WebsiteRole string

const (
	RoleSource     WebsiteRole = "source"
	RoleCompetitor WebsiteRole = "competitor"
)

// CrawlStrategy selects how pages for a website are fetched.
type CrawlStrategy string

const (
	StrategyAuto     CrawlStrategy = "auto"
	StrategyStatic   CrawlStrategy = "static"
	StrategyRendered CrawlStrategy = "rendered"
)

// WebsiteStatus tracks the crawl lifecycle of a website.
type WebsiteStatus string

const (
	WebsiteStatusPending   WebsiteStatus = "pending"
	WebsiteStatusCrawling  WebsiteStatus = "crawling"
	WebsiteStatusCompleted WebsiteStatus = "completed"
	WebsiteStatusFailed    WebsiteStatus = "failed"
	WebsiteStatusCancelled WebsiteStatus = "cancelled"
)

type Website struct {
	ID            string        `json:"id"`
	URL           string        `json:"url"`
	Name          string        `json:"name"`
	Role          WebsiteRole   `json:"role"`
	CrawlStrategy CrawlStrategy `json:"crawl_strategy"`
	Status        WebsiteStatus `json:"status"`
	LastCrawledAt *time.Time    `json:"last_crawled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// RawProduct is what the crawler extracts from a page before persistence.
// Name is the only required field; everything else is best effort.
type RawProduct struct {
	Name       string   `json:"name"`
	Price      *float64 `json:"price,omitempty"`
	SKU        string   `json:"sku,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	ProductURL string   `json:"product_url,omitempty"`
}

type Product struct {
	ID         string    `json:"id"`
	WebsiteID  string    `json:"website_id"`
	Name       string    `json:"name"`
	Price      *float64  `json:"price,omitempty"`
	SKU        string    `json:"sku,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	ProductURL string    `json:"product_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CrawlJobStatus tracks a single crawl run.
type CrawlJobStatus string

const (
	JobStatusRunning   CrawlJobStatus = "running"
	JobStatusCompleted CrawlJobStatus = "completed"
	JobStatusFailed    CrawlJobStatus = "failed"
)

type CrawlJob struct {
	ID            string         `json:"id"`
	WebsiteID     string         `json:"website_id"`
	Status        CrawlJobStatus `json:"status"`
	CrawledPages  int            `json:"crawled_pages"`
	TotalProducts int            `json:"total_products"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// MatchType describes which signal produced a product match.
type MatchType string

const (
	MatchSKUExact   MatchType = "sku_exact"
	MatchSKUPartial MatchType = "sku_partial"
	MatchNameExact  MatchType = "name_exact"
	MatchNameFuzzy  MatchType = "name_fuzzy"
	MatchManual     MatchType = "manual"
	MatchNone       MatchType = "none"
)

type ProductMatch struct {
	ID                  string    `json:"id"`
	SourceProductID     string    `json:"source_product_id"`
	CompetitorProductID string    `json:"competitor_product_id"`
	MatchType           MatchType `json:"match_type"`
	MatchScore          *float64  `json:"match_score,omitempty"`
	IsConfirmed         bool      `json:"is_confirmed"`
	CreatedAt           time.Time `json:"created_at"`
}
