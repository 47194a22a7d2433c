package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nobody-27-27/EcomCompare/internal/database"
	"github.com/nobody-27-27/EcomCompare/internal/jobs"
	"github.com/nobody-27-27/EcomCompare/internal/matching"
	"github.com/nobody-27-27/EcomCompare/internal/models"
)

type Handlers struct {
	db      *database.DB
	runner  *jobs.Runner
	matcher *matching.Engine
	opts    matching.Options
	logger  *slog.Logger
}

func NewHandlers(db *database.DB, runner *jobs.Runner, matcher *matching.Engine, opts matching.Options, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:      db,
		runner:  runner,
		matcher: matcher,
		opts:    opts,
		logger:  logger,
	}
}

// CreateWebsiteRequest registers a store for crawling.
type CreateWebsiteRequest struct {
	URL           string `json:"url"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	CrawlStrategy string `json:"crawl_strategy"`
}

// CreateWebsite registers a new source or competitor website.
func (h *Handlers) CreateWebsite(w http.ResponseWriter, r *http.Request) {
	var req CreateWebsiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		h.respondError(w, http.StatusBadRequest, "url must start with http:// or https://")
		return
	}

	role := models.WebsiteRole(req.Role)
	if role == "" {
		role = models.RoleCompetitor
	}
	if role != models.RoleSource && role != models.RoleCompetitor {
		h.respondError(w, http.StatusBadRequest, "role must be source or competitor")
		return
	}

	strategy := models.CrawlStrategy(req.CrawlStrategy)
	if strategy == "" {
		strategy = models.StrategyAuto
	}
	switch strategy {
	case models.StrategyAuto, models.StrategyStatic, models.StrategyRendered:
	default:
		h.respondError(w, http.StatusBadRequest, "crawl_strategy must be auto, static or rendered")
		return
	}

	website := &models.Website{
		URL:           req.URL,
		Name:          req.Name,
		Role:          role,
		CrawlStrategy: strategy,
	}
	if err := h.db.CreateWebsite(r.Context(), website); err != nil {
		if errors.Is(err, database.ErrDuplicateURL) {
			h.respondError(w, http.StatusConflict, "website url already registered")
			return
		}
		h.logger.Error("failed to create website", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create website")
		return
	}

	h.respondJSON(w, http.StatusCreated, website)
}

// ListWebsites returns all registered websites, optionally filtered by role.
func (h *Handlers) ListWebsites(w http.ResponseWriter, r *http.Request) {
	var (
		websites []models.Website
		err      error
	)
	if role := r.URL.Query().Get("role"); role != "" {
		websites, err = h.db.ListWebsitesByRole(r.Context(), models.WebsiteRole(role))
	} else {
		websites, err = h.db.ListWebsites(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list websites", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list websites")
		return
	}
	h.respondJSON(w, http.StatusOK, websites)
}

// GetWebsite returns one website by id.
func (h *Handlers) GetWebsite(w http.ResponseWriter, r *http.Request) {
	website, err := h.db.GetWebsite(r.Context(), chi.URLParam(r, "websiteID"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "website not found")
			return
		}
		h.logger.Error("failed to get website", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get website")
		return
	}
	h.respondJSON(w, http.StatusOK, website)
}

// SetSourceWebsite promotes a website to be the single source store.
func (h *Handlers) SetSourceWebsite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	if err := h.db.SetSourceWebsite(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "website not found")
			return
		}
		h.logger.Error("failed to set source website", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to set source website")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DeleteWebsite removes a website and its products.
func (h *Handlers) DeleteWebsite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	if err := h.db.DeleteWebsite(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "website not found")
			return
		}
		h.logger.Error("failed to delete website", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to delete website")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartCrawl kicks off a background crawl for the website.
func (h *Handlers) StartCrawl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	job, err := h.runner.StartCrawl(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, jobs.ErrCrawlActive):
			h.respondError(w, http.StatusConflict, "crawl already running for this website")
		case errors.Is(err, database.ErrNotFound):
			h.respondError(w, http.StatusNotFound, "website not found")
		default:
			h.logger.Error("failed to start crawl", "error", err, "website", id)
			h.respondError(w, http.StatusInternalServerError, "failed to start crawl")
		}
		return
	}
	h.respondJSON(w, http.StatusAccepted, job)
}

// CancelCrawl stops the active crawl for the website.
func (h *Handlers) CancelCrawl(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	if !h.runner.CancelCrawl(r.Context(), id) {
		h.respondError(w, http.StatusNotFound, "no active crawl for this website")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// GetCrawlStatus returns the latest crawl job for the website.
func (h *Handlers) GetCrawlStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	job, err := h.db.GetLatestCrawlJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "no crawl jobs for this website")
			return
		}
		h.logger.Error("failed to get crawl status", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to get crawl status")
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

// ListProducts returns the crawled products of one website.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	products, err := h.db.ListProductsByWebsite(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list products", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	h.respondJSON(w, http.StatusOK, products)
}

// DeleteProduct removes a single product and any matches it is part of.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if err := h.db.DeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to delete product", "error", err, "product", id)
		h.respondError(w, http.StatusInternalServerError, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearProducts drops a website's whole product snapshot.
func (h *Handlers) ClearProducts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "websiteID")
	if _, err := h.db.GetWebsite(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "website not found")
			return
		}
		h.logger.Error("failed to get website", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to clear products")
		return
	}
	if err := h.db.DeleteProductsForWebsite(r.Context(), id); err != nil {
		h.logger.Error("failed to clear products", "error", err, "website", id)
		h.respondError(w, http.StatusInternalServerError, "failed to clear products")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunMatchingRequest tunes one matching run.
type RunMatchingRequest struct {
	MinSimilarity         *float64 `json:"min_similarity"`
	MaxMatchesPerProduct  *int     `json:"max_matches_per_product"`
	AllowDuplicateMatches *bool    `json:"allow_duplicate_matches"`
}

// RunMatching scores all source products against all competitor products.
func (h *Handlers) RunMatching(w http.ResponseWriter, r *http.Request) {
	opts := h.opts
	if r.Body != nil && r.ContentLength != 0 {
		var req RunMatchingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.MinSimilarity != nil {
			opts.MinSimilarity = *req.MinSimilarity
		}
		if req.MaxMatchesPerProduct != nil {
			opts.MaxMatchesPerProduct = *req.MaxMatchesPerProduct
		}
		if req.AllowDuplicateMatches != nil {
			opts.AllowDuplicateMatches = *req.AllowDuplicateMatches
		}
	}

	result, err := h.matcher.RunMatching(r.Context(), opts)
	if err != nil {
		switch {
		case errors.Is(err, matching.ErrNoSourceProducts), errors.Is(err, matching.ErrNoCompetitorProducts):
			h.respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("matching run failed", "error", err)
			h.respondError(w, http.StatusInternalServerError, "matching run failed")
		}
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

// GetSuggestedMatches returns scored competitor candidates for one product.
func (h *Handlers) GetSuggestedMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	suggestions, err := h.matcher.GetSuggestedMatches(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get suggested matches", "error", err, "product", id)
		h.respondError(w, http.StatusInternalServerError, "failed to get suggested matches")
		return
	}
	h.respondJSON(w, http.StatusOK, suggestions)
}

// CreateManualMatchRequest links two products by hand.
type CreateManualMatchRequest struct {
	SourceProductID     string `json:"source_product_id"`
	CompetitorProductID string `json:"competitor_product_id"`
}

// CreateManualMatch records a human-made product match.
func (h *Handlers) CreateManualMatch(w http.ResponseWriter, r *http.Request) {
	var req CreateManualMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SourceProductID == "" || req.CompetitorProductID == "" {
		h.respondError(w, http.StatusBadRequest, "source_product_id and competitor_product_id are required")
		return
	}

	// Resolve both sides up front so a dangling id reads as a 404
	// instead of a foreign key violation.
	for _, id := range []string{req.SourceProductID, req.CompetitorProductID} {
		if _, err := h.db.GetProduct(r.Context(), id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				h.respondError(w, http.StatusNotFound, "product not found: "+id)
				return
			}
			h.logger.Error("failed to load product for manual match", "error", err, "product", id)
			h.respondError(w, http.StatusInternalServerError, "failed to create manual match")
			return
		}
	}

	match, err := h.db.CreateManualMatch(r.Context(), req.SourceProductID, req.CompetitorProductID)
	if err != nil {
		h.logger.Error("failed to create manual match", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to create manual match")
		return
	}
	h.respondJSON(w, http.StatusCreated, match)
}

// ListMatches returns all stored product matches.
func (h *Handlers) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.db.ListMatches(r.Context())
	if err != nil {
		h.logger.Error("failed to list matches", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list matches")
		return
	}
	h.respondJSON(w, http.StatusOK, matches)
}

// ConfirmMatch marks a match as human-verified.
func (h *Handlers) ConfirmMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	if err := h.db.ConfirmMatch(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "match not found")
			return
		}
		h.logger.Error("failed to confirm match", "error", err, "match", id)
		h.respondError(w, http.StatusInternalServerError, "failed to confirm match")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

// DeleteMatch removes a match.
func (h *Handlers) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	if err := h.db.DeleteMatch(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "match not found")
			return
		}
		h.logger.Error("failed to delete match", "error", err, "match", id)
		h.respondError(w, http.StatusInternalServerError, "failed to delete match")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPriceComparisons returns the matched-pair price report.
func (h *Handlers) ListPriceComparisons(w http.ResponseWriter, r *http.Request) {
	comparisons, err := h.db.ListPriceComparisons(r.Context())
	if err != nil {
		h.logger.Error("failed to list price comparisons", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list price comparisons")
		return
	}
	h.respondJSON(w, http.StatusOK, comparisons)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
