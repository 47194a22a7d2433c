package crawler

import (
	"strings"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

// Deduplicate merges raw products sharing an identity key: SKU when
// present, else product URL, else normalized name. The first record seen
// for a key is canonical; later duplicates only backfill fields the
// canonical record is missing. Output keeps first-seen order.
func Deduplicate(products []models.RawProduct) []models.RawProduct {
	index := make(map[string]int, len(products))
	out := make([]models.RawProduct, 0, len(products))

	for _, p := range products {
		key := identityKey(p)
		if key == "" {
			continue
		}

		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, p)
			continue
		}

		canonical := &out[i]
		if canonical.Price == nil && p.Price != nil {
			canonical.Price = p.Price
		}
		if canonical.SKU == "" && p.SKU != "" {
			canonical.SKU = p.SKU
		}
		if canonical.ImageURL == "" && p.ImageURL != "" {
			canonical.ImageURL = p.ImageURL
		}
		if canonical.ProductURL == "" && p.ProductURL != "" {
			canonical.ProductURL = p.ProductURL
		}
	}

	return out
}

func identityKey(p models.RawProduct) string {
	if sku := strings.TrimSpace(p.SKU); sku != "" {
		return "sku:" + strings.ToLower(sku)
	}
	if u := strings.TrimSpace(p.ProductURL); u != "" {
		return "url:" + u
	}
	if name := NormalizeName(p.Name); name != "" {
		return "name:" + name
	}
	return ""
}
