package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ecomcompare", cfg.Database.Name)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 50, cfg.Crawler.MaxPages)
	assert.Equal(t, time.Second, cfg.Crawler.Delay)
	assert.Equal(t, 5*time.Minute, cfg.Crawler.MaxCrawlTime)
	assert.True(t, cfg.Crawler.RenderedAvailable)
	assert.InDelta(t, 0.6, cfg.Matching.MinSimilarity, 0.0001)
	assert.Equal(t, 5, cfg.Matching.MaxMatchesPerProduct)
	assert.False(t, cfg.Matching.AllowDuplicateMatches)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CRAWLER_MAX_PAGES", "10")
	t.Setenv("CRAWLER_DELAY", "250ms")
	t.Setenv("CRAWLER_RENDERED_AVAILABLE", "false")
	t.Setenv("MATCHING_MIN_SIMILARITY", "0.8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Crawler.MaxPages)
	assert.Equal(t, 250*time.Millisecond, cfg.Crawler.Delay)
	assert.False(t, cfg.Crawler.RenderedAvailable)
	assert.InDelta(t, 0.8, cfg.Matching.MinSimilarity, 0.0001)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("CRAWLER_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Crawler.Delay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero max pages",
			mutate: func(c *Config) { c.Crawler.MaxPages = 0 },
		},
		{
			name:   "zero failure budget",
			mutate: func(c *Config) { c.Crawler.FailureBudget = 0 },
		},
		{
			name:   "similarity above one",
			mutate: func(c *Config) { c.Matching.MinSimilarity = 1.5 },
		},
		{
			name:   "zero matches per product",
			mutate: func(c *Config) { c.Matching.MaxMatchesPerProduct = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
