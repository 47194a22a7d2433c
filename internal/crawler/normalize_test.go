package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected float64
		isNil    bool
	}{
		{
			name:     "European format with thousands separator",
			text:     "€ 1.234,56",
			expected: 1234.56,
		},
		{
			name:     "US format with thousands separator",
			text:     "$1,234.56",
			expected: 1234.56,
		},
		{
			name:     "Plain dollar price",
			text:     "$19.99",
			expected: 19.99,
		},
		{
			name:     "Lone comma with two decimals",
			text:     "19,99 EUR",
			expected: 19.99,
		},
		{
			name:     "Lone comma as thousands separator",
			text:     "1,234",
			expected: 1234,
		},
		{
			name:     "Multiple commas are thousands separators",
			text:     "1,234,567",
			expected: 1234567,
		},
		{
			name:     "Integer amount in surrounding text",
			text:     "Price: 42",
			expected: 42,
		},
		{
			name:  "Empty string",
			text:  "",
			isNil: true,
		},
		{
			name:  "No digits at all",
			text:  "call for price",
			isNil: true,
		},
		{
			name:  "Separators without digits",
			text:  ".,",
			isNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParsePrice(tt.text)
			if tt.isNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.InDelta(t, tt.expected, *result, 0.0001)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Punctuation and casing",
			input:    "  Blue T-Shirt (XL)!  ",
			expected: "blue t shirt xl",
		},
		{
			name:     "Collapses internal whitespace",
			input:    "Red\t\tWidget   Pro",
			expected: "red widget pro",
		},
		{
			name:     "Keeps unicode letters and digits",
			input:    "Größe 42 Schuhe",
			expected: "größe 42 schuhe",
		},
		{
			name:     "Empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "Only punctuation",
			input:    "---!!!",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestExtractSKU(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "Data attribute on the container",
			html:     `<div class="product" data-sku="ABC-123"><h3>Widget</h3></div>`,
			expected: "ABC-123",
		},
		{
			name:     "Data attribute on a descendant",
			html:     `<div class="product"><a data-product-id="P-77">Widget</a></div>`,
			expected: "P-77",
		},
		{
			name:     "Labeled SKU text",
			html:     `<div class="product"><span class="sku">SKU: AB-12</span></div>`,
			expected: "AB-12",
		},
		{
			name:     "Article number label",
			html:     `<div class="product"><span class="product-sku">Art. Nr. 99_X</span></div>`,
			expected: "99_X",
		},
		{
			name:     "Itemprop sku",
			html:     `<div class="product"><span itemprop="sku">ZX900</span></div>`,
			expected: "ZX900",
		},
		{
			name:     "No SKU anywhere",
			html:     `<div class="product"><h3>Widget</h3><span class="price">9.99</span></div>`,
			expected: "",
		},
		{
			name:     "Free text in sku element is rejected",
			html:     `<div class="product"><span class="sku">ask us about availability</span></div>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ExtractSKU(doc.Find(".product")))
		})
	}
}
