package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

var (
	// ErrNoSourceProducts means the source store has nothing to match from.
	ErrNoSourceProducts = errors.New("no source products to match")
	// ErrNoCompetitorProducts means there is nothing to match against.
	ErrNoCompetitorProducts = errors.New("no competitor products to match against")
)

// ProductStore is the read side the matching engine needs.
type ProductStore interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProductsByRole(ctx context.Context, role models.WebsiteRole) ([]models.Product, error)
}

// MatchStore persists match assignments. Upserting the same product pair
// twice overwrites the earlier record.
type MatchStore interface {
	UpsertMatches(ctx context.Context, matches []models.ProductMatch) error
}

// Options bound one matching run.
type Options struct {
	MinSimilarity         float64
	MaxMatchesPerProduct  int
	AllowDuplicateMatches bool
}

func DefaultOptions() Options {
	return Options{
		MinSimilarity:        0.6,
		MaxMatchesPerProduct: 5,
	}
}

// RunResult reports one matching run.
type RunResult struct {
	MatchesFound int                   `json:"matches_found"`
	Matches      []models.ProductMatch `json:"matches"`
}

// Suggestion is a scored competitor candidate for the manual-match UI.
type Suggestion struct {
	Product   models.Product   `json:"product"`
	Score     float64          `json:"score"`
	MatchType models.MatchType `json:"match_type"`
}

// Engine assigns competitor products to source products. Assignment is
// greedy in source-product order; a contested competitor goes to the
// first source product that claims it.
type Engine struct {
	products ProductStore
	matches  MatchStore
	scoring  ScoreOptions
	logger   *slog.Logger
}

func NewEngine(products ProductStore, matches MatchStore, logger *slog.Logger) *Engine {
	return &Engine{
		products: products,
		matches:  matches,
		scoring:  DefaultScoreOptions(),
		logger:   logger.With("component", "matching_engine"),
	}
}

// RunMatching scores every source product against every competitor
// product and persists the admitted assignments in one batch. Both
// partitions must be non-empty; an empty side is a configuration error
// reported before any scoring work.
func (e *Engine) RunMatching(ctx context.Context, opts Options) (*RunResult, error) {
	if opts.MaxMatchesPerProduct <= 0 {
		opts.MaxMatchesPerProduct = 5
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.6
	}

	sources, err := e.products.ListProductsByRole(ctx, models.RoleSource)
	if err != nil {
		return nil, fmt.Errorf("failed to load source products: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoSourceProducts
	}

	competitors, err := e.products.ListProductsByRole(ctx, models.RoleCompetitor)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor products: %w", err)
	}
	if len(competitors) == 0 {
		return nil, ErrNoCompetitorProducts
	}

	scoring := e.scoring
	scoring.MinSimilarity = opts.MinSimilarity

	consumed := make(map[string]struct{})
	var assigned []models.ProductMatch

	for _, source := range sources {
		candidates := e.rankCandidates(source, competitors, scoring)

		taken := 0
		for _, c := range candidates {
			if taken >= opts.MaxMatchesPerProduct {
				break
			}
			// No qualifying signal means no match, even when a price
			// bonus pushes the raw score over the threshold.
			if c.MatchType == models.MatchNone {
				continue
			}
			if c.MatchType != models.MatchSKUExact && c.Score < opts.MinSimilarity {
				continue
			}
			if !opts.AllowDuplicateMatches {
				if _, used := consumed[c.Product.ID]; used {
					continue
				}
			}

			score := c.Score
			assigned = append(assigned, models.ProductMatch{
				SourceProductID:     source.ID,
				CompetitorProductID: c.Product.ID,
				MatchType:           c.MatchType,
				MatchScore:          &score,
				IsConfirmed:         c.MatchType == models.MatchSKUExact,
			})
			if !opts.AllowDuplicateMatches {
				consumed[c.Product.ID] = struct{}{}
			}
			taken++
		}
	}

	if len(assigned) > 0 {
		if err := e.matches.UpsertMatches(ctx, assigned); err != nil {
			return nil, fmt.Errorf("failed to persist matches: %w", err)
		}
	}

	e.logger.Info("matching run complete",
		"sources", len(sources),
		"competitors", len(competitors),
		"matches", len(assigned),
	)

	return &RunResult{MatchesFound: len(assigned), Matches: assigned}, nil
}

// GetSuggestedMatches returns the top-scored competitor candidates for
// one source product, unfiltered by threshold, for manual matching.
func (e *Engine) GetSuggestedMatches(ctx context.Context, sourceProductID string, limit int) ([]Suggestion, error) {
	if limit <= 0 {
		limit = 10
	}

	source, err := e.products.GetProduct(ctx, sourceProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source product: %w", err)
	}

	competitors, err := e.products.ListProductsByRole(ctx, models.RoleCompetitor)
	if err != nil {
		return nil, fmt.Errorf("failed to load competitor products: %w", err)
	}

	candidates := e.rankCandidates(*source, competitors, e.scoring)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// rankCandidates scores all competitors against one source product and
// sorts them by score, descending and stable so ties keep input order.
func (e *Engine) rankCandidates(source models.Product, competitors []models.Product, scoring ScoreOptions) []Suggestion {
	candidates := make([]Suggestion, 0, len(competitors))
	for _, competitor := range competitors {
		sim := Score(source, competitor, scoring)
		candidates = append(candidates, Suggestion{
			Product:   competitor,
			Score:     sim.Value,
			MatchType: sim.MatchType,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
