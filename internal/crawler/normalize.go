package crawler

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	priceCharsRe  = regexp.MustCompile(`[^0-9.,]`)
	nonWordRe     = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	skuLabelRe    = regexp.MustCompile(`(?i)^.*?(?:sku|art\.?\s*(?:no|nr)\.?|item\s*(?:no|number)|ref)\s*[:#.]?\s*`)
	skuTokenRe    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)
	skuAttributes = []string{"data-sku", "data-product-id", "data-variant-id", "data-item-id"}
)

// ParsePrice extracts a price from free-form text in either the
// "1.234,56" or the "1,234.56" convention. Returns nil when no
// parseable amount is present.
func ParsePrice(text string) *float64 {
	cleaned := priceCharsRe.ReplaceAllString(text, "")
	if cleaned == "" {
		return nil
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The later separator is the decimal point, the other one groups thousands.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// A lone comma is decimal only when exactly two digits follow it.
		if len(cleaned)-lastComma-1 == 2 && strings.Count(cleaned, ",") == 1 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}

	return &value
}

// NormalizeName lowercases a product name, replaces punctuation with
// spaces and collapses runs of whitespace, so names from different
// stores compare on their words alone.
func NormalizeName(text string) string {
	lowered := strings.ToLower(text)
	lowered = nonWordRe.ReplaceAllString(lowered, " ")
	lowered = whitespaceRe.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(lowered)
}

// ExtractSKU looks for a SKU on the element or its descendants: first via
// the common data attributes, then by stripping a "SKU:"-style label from
// the text of SKU-labeled sub-elements.
func ExtractSKU(sel *goquery.Selection) string {
	var sku string

	for _, attr := range skuAttributes {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	sel.Find("*").EachWithBreak(func(_ int, desc *goquery.Selection) bool {
		for _, attr := range skuAttributes {
			if v, ok := desc.Attr(attr); ok && strings.TrimSpace(v) != "" {
				sku = strings.TrimSpace(v)
				return false
			}
		}
		return true
	})
	if sku != "" {
		return sku
	}

	sel.Find(".sku, .product-sku, [class*=sku], [itemprop=sku]").EachWithBreak(func(_ int, desc *goquery.Selection) bool {
		text := strings.TrimSpace(desc.Text())
		if text == "" {
			return true
		}
		candidate := strings.TrimSpace(skuLabelRe.ReplaceAllString(text, ""))
		if candidate != "" && skuTokenRe.MatchString(candidate) {
			sku = candidate
			return false
		}
		return true
	})

	return sku
}
