package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

type fakeProductStore struct {
	sources     []models.Product
	competitors []models.Product
}

func (s *fakeProductStore) GetProduct(_ context.Context, id string) (*models.Product, error) {
	for _, p := range append(append([]models.Product{}, s.sources...), s.competitors...) {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("product not found")
}

func (s *fakeProductStore) ListProductsByRole(_ context.Context, role models.WebsiteRole) ([]models.Product, error) {
	if role == models.RoleSource {
		return s.sources, nil
	}
	return s.competitors, nil
}

type fakeMatchStore struct {
	upserted []models.ProductMatch
	calls    int
	err      error
}

func (s *fakeMatchStore) UpsertMatches(_ context.Context, matches []models.ProductMatch) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, matches...)
	return nil
}

func testEngine(products *fakeProductStore, matches *fakeMatchStore) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(products, matches, logger)
}

func sourceProduct(id, name, sku string, p *float64) models.Product {
	return models.Product{ID: id, WebsiteID: "source-site", Name: name, SKU: sku, Price: p}
}

func competitorProduct(id, name, sku string, p *float64) models.Product {
	return models.Product{ID: id, WebsiteID: "competitor-site", Name: name, SKU: sku, Price: p}
}

func TestRunMatchingSKUExact(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Trail Running Shoe", "TRS-42", price(89.95)),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Trailrunner Shoe 42", "trs-42", price(84.50)),
			competitorProduct("c2", "Ceramic Coffee Mug", "MUG-1", price(12)),
		},
	}
	matches := &fakeMatchStore{}

	result, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 1, result.MatchesFound)
	m := result.Matches[0]
	assert.Equal(t, "s1", m.SourceProductID)
	assert.Equal(t, "c1", m.CompetitorProductID)
	assert.Equal(t, models.MatchSKUExact, m.MatchType)
	require.NotNil(t, m.MatchScore)
	assert.Equal(t, 1.0, *m.MatchScore)
	// SKU matches are trusted without review.
	assert.True(t, m.IsConfirmed)

	assert.Equal(t, result.Matches, matches.upserted)
}

func TestRunMatchingNameMatchesUnconfirmed(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Desk Lamp Black", "", price(39)),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Desk Lamp Black", "", price(41)),
		},
	}
	matches := &fakeMatchStore{}

	result, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
	require.NoError(t, err)

	require.Equal(t, 1, result.MatchesFound)
	m := result.Matches[0]
	assert.Equal(t, models.MatchNameExact, m.MatchType)
	assert.False(t, m.IsConfirmed)
}

func TestRunMatchingEmptySides(t *testing.T) {
	t.Run("no source products", func(t *testing.T) {
		products := &fakeProductStore{
			competitors: []models.Product{competitorProduct("c1", "Anything", "", nil)},
		}
		matches := &fakeMatchStore{}

		_, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
		assert.ErrorIs(t, err, ErrNoSourceProducts)
		assert.Zero(t, matches.calls)
	})

	t.Run("no competitor products", func(t *testing.T) {
		products := &fakeProductStore{
			sources: []models.Product{sourceProduct("s1", "Anything", "", nil)},
		}
		matches := &fakeMatchStore{}

		_, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
		assert.ErrorIs(t, err, ErrNoCompetitorProducts)
		assert.Zero(t, matches.calls)
	})
}

func TestRunMatchingBelowThresholdPersistsNothing(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Trail Running Shoe", "", nil),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Ceramic Coffee Mug", "", nil),
		},
	}
	matches := &fakeMatchStore{}

	result, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, result.MatchesFound)
	assert.Zero(t, matches.calls)
}

func TestRunMatchingRequiresQualifyingSignal(t *testing.T) {
	// Equal prices push the raw score over the threshold, but with no
	// SKU and a name similarity below the minimum there is no signal
	// to type the match with; nothing may be persisted.
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Steel Garden Rake Tool", "", price(25)),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Steel Garden Chair", "", price(25)),
		},
	}
	matches := &fakeMatchStore{}

	result, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, result.MatchesFound)
	assert.Zero(t, matches.calls)

	for _, m := range matches.upserted {
		assert.NotEqual(t, models.MatchNone, m.MatchType)
	}
}

func TestRunMatchingCompetitorConsumedOnce(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Desk Lamp", "", nil),
			sourceProduct("s2", "Desk Lamp", "", nil),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Desk Lamp", "", nil),
		},
	}
	matches := &fakeMatchStore{}
	engine := testEngine(products, matches)

	result, err := engine.RunMatching(context.Background(), DefaultOptions())
	require.NoError(t, err)
	// The first source product claims the only competitor.
	require.Equal(t, 1, result.MatchesFound)
	assert.Equal(t, "s1", result.Matches[0].SourceProductID)

	opts := DefaultOptions()
	opts.AllowDuplicateMatches = true
	result, err = engine.RunMatching(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MatchesFound)
}

func TestRunMatchingRespectsCap(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Desk Lamp", "", nil),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Desk Lamp", "", nil),
			competitorProduct("c2", "Desk Lamp", "", nil),
			competitorProduct("c3", "Desk Lamp", "", nil),
		},
	}
	matches := &fakeMatchStore{}

	opts := DefaultOptions()
	opts.MaxMatchesPerProduct = 2

	result, err := testEngine(products, matches).RunMatching(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MatchesFound)
}

func TestRunMatchingPersistError(t *testing.T) {
	products := &fakeProductStore{
		sources:     []models.Product{sourceProduct("s1", "Desk Lamp", "L-1", nil)},
		competitors: []models.Product{competitorProduct("c1", "Desk Lamp", "L-1", nil)},
	}
	matches := &fakeMatchStore{err: errors.New("connection refused")}

	_, err := testEngine(products, matches).RunMatching(context.Background(), DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetSuggestedMatches(t *testing.T) {
	products := &fakeProductStore{
		sources: []models.Product{
			sourceProduct("s1", "Trail Running Shoe", "", price(89.95)),
		},
		competitors: []models.Product{
			competitorProduct("c1", "Ceramic Coffee Mug", "", price(12)),
			competitorProduct("c2", "Trail Running Shoe", "", price(88)),
			competitorProduct("c3", "Running Shoe Trail", "", price(92)),
		},
	}
	engine := testEngine(products, &fakeMatchStore{})

	suggestions, err := engine.GetSuggestedMatches(context.Background(), "s1", 10)
	require.NoError(t, err)
	require.Len(t, suggestions, 3)

	// Sorted by score, best first; low scorers are listed, not filtered.
	assert.Equal(t, "c2", suggestions[0].Product.ID)
	assert.Equal(t, "c1", suggestions[2].Product.ID)
	for i := 1; i < len(suggestions); i++ {
		assert.GreaterOrEqual(t, suggestions[i-1].Score, suggestions[i].Score)
	}

	limited, err := engine.GetSuggestedMatches(context.Background(), "s1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetSuggestedMatchesUnknownProduct(t *testing.T) {
	engine := testEngine(&fakeProductStore{}, &fakeMatchStore{})
	_, err := engine.GetSuggestedMatches(context.Background(), "ghost", 5)
	assert.Error(t, err)
}
