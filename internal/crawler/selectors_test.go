package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected Platform
	}{
		{
			name:     "Shopify CDN reference",
			html:     `<html><head><link href="https://cdn.shopify.com/s/files/theme.css"></head></html>`,
			expected: PlatformShopify,
		},
		{
			name:     "WooCommerce plugin assets",
			html:     `<script src="/wp-content/plugins/woocommerce/assets/js/frontend.js"></script>`,
			expected: PlatformWooCommerce,
		},
		{
			name:     "Magento init attribute",
			html:     `<div data-mage-init='{"slider": {}}'></div>`,
			expected: PlatformMagento,
		},
		{
			name:     "Unrecognized markup",
			html:     `<html><body><div class="shop">hello</div></body></html>`,
			expected: PlatformGeneric,
		},
		{
			name:     "Empty page",
			html:     "",
			expected: PlatformGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.html))
		})
	}
}

func TestSelectorsFor(t *testing.T) {
	shopify := SelectorsFor(PlatformShopify)
	assert.NotEmpty(t, shopify.ProductContainer)
	assert.NotEmpty(t, shopify.Pagination)

	// Unknown platforms fall back to the generic set.
	unknown := SelectorsFor(Platform("bigcommerce"))
	assert.Equal(t, SelectorsFor(PlatformGeneric), unknown)
}
