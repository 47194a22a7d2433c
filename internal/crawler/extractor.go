package crawler

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

// Extractor turns a fetched page into raw product records. Embedded
// structured data (schema.org Product JSON-LD) wins over selector
// scraping because it survives theme redesigns.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// Extract returns the products found on a page. Records without a name
// are dropped; an empty result is not an error.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string, hint Platform) []models.RawProduct {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}

	if products := e.extractStructured(doc, base); len(products) > 0 {
		e.logger.Debug("extracted structured product data", "url", pageURL, "count", len(products))
		return products
	}

	products := e.extractWithSelectors(doc, base, SelectorsFor(hint))
	if len(products) == 0 && hint != PlatformGeneric {
		products = e.extractWithSelectors(doc, base, SelectorsFor(PlatformGeneric))
	}
	return products
}

// jsonLDProduct mirrors the subset of schema.org Product we care about.
type jsonLDProduct struct {
	Type            json.RawMessage `json:"@type"`
	Graph           []jsonLDProduct `json:"@graph"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	MPN             string          `json:"mpn"`
	Image           json.RawMessage `json:"image"`
	URL             string          `json:"url"`
	Offers          json.RawMessage `json:"offers"`
	ItemListElement []struct {
		Item *jsonLDProduct `json:"item"`
	} `json:"itemListElement"`
}

type jsonLDOffer struct {
	Price    json.RawMessage `json:"price"`
	LowPrice json.RawMessage `json:"lowPrice"`
}

func (e *Extractor) extractStructured(doc *goquery.Document, base *url.URL) []models.RawProduct {
	var products []models.RawProduct

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var nodes []jsonLDProduct
		if strings.HasPrefix(raw, "[") {
			if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
				return
			}
		} else {
			var node jsonLDProduct
			if err := json.Unmarshal([]byte(raw), &node); err != nil {
				return
			}
			nodes = []jsonLDProduct{node}
		}

		for _, node := range nodes {
			products = append(products, e.collectJSONLD(node, base)...)
		}
	})

	return products
}

func (e *Extractor) collectJSONLD(node jsonLDProduct, base *url.URL) []models.RawProduct {
	var out []models.RawProduct

	for _, g := range node.Graph {
		out = append(out, e.collectJSONLD(g, base)...)
	}
	for _, el := range node.ItemListElement {
		if el.Item != nil {
			out = append(out, e.collectJSONLD(*el.Item, base)...)
		}
	}

	if !isProductType(node.Type) || strings.TrimSpace(node.Name) == "" {
		return out
	}

	p := models.RawProduct{Name: strings.TrimSpace(node.Name)}
	if node.SKU != "" {
		p.SKU = node.SKU
	} else if node.MPN != "" {
		p.SKU = node.MPN
	}
	p.Price = offerPrice(node.Offers)
	p.ImageURL = resolveURL(base, firstString(node.Image))
	p.ProductURL = resolveURL(base, node.URL)

	return append(out, p)
}

func isProductType(raw json.RawMessage) bool {
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return strings.EqualFold(single, "Product")
	}
	var multi []string
	if json.Unmarshal(raw, &multi) == nil {
		for _, t := range multi {
			if strings.EqualFold(t, "Product") {
				return true
			}
		}
	}
	return false
}

// offerPrice reads the first offer's price, or lowPrice for aggregate
// offers. Offers appear as a single object or an array; prices as
// numbers or strings.
func offerPrice(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}

	var offers []jsonLDOffer
	var offer jsonLDOffer
	if err := json.Unmarshal(raw, &offer); err == nil {
		offers = []jsonLDOffer{offer}
	} else if err := json.Unmarshal(raw, &offers); err != nil || len(offers) == 0 {
		return nil
	}

	for _, o := range offers {
		if p := rawPrice(o.Price); p != nil {
			return p
		}
		if p := rawPrice(o.LowPrice); p != nil {
			return p
		}
	}
	return nil
}

func rawPrice(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var num float64
	if json.Unmarshal(raw, &num) == nil {
		return &num
	}
	var str string
	if json.Unmarshal(raw, &str) == nil {
		return ParsePrice(str)
	}
	return nil
}

func firstString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return list[0]
	}
	// image can also be an ImageObject
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.URL
	}
	return ""
}

func (e *Extractor) extractWithSelectors(doc *goquery.Document, base *url.URL, set SelectorSet) []models.RawProduct {
	containers := firstMatching(doc.Selection, set.ProductContainer)
	if containers == nil {
		return nil
	}

	var products []models.RawProduct
	containers.Each(func(_ int, container *goquery.Selection) {
		name := firstText(container, set.Name)
		if name == "" {
			if title, ok := firstAttr(container, set.Name, "title"); ok {
				name = title
			}
		}
		if name == "" {
			return
		}

		p := models.RawProduct{Name: name}

		if priceText := firstText(container, set.Price); priceText != "" {
			p.Price = ParsePrice(priceText)
		}

		p.SKU = ExtractSKU(container)

		if src, ok := imageSource(container, set.Image); ok {
			p.ImageURL = resolveURL(base, src)
		}
		if href, ok := firstAttr(container, set.Link, "href"); ok {
			p.ProductURL = resolveURL(base, href)
		} else if href, ok := container.Find("a[href]").First().Attr("href"); ok {
			p.ProductURL = resolveURL(base, href)
		}

		products = append(products, p)
	})

	return products
}

// firstMatching returns the matches of the first selector that yields
// at least one element.
func firstMatching(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func firstText(container *goquery.Selection, selectors []string) string {
	if found := firstMatching(container, selectors); found != nil {
		return strings.TrimSpace(found.First().Text())
	}
	return ""
}

func firstAttr(container *goquery.Selection, selectors []string, attr string) (string, bool) {
	if found := firstMatching(container, selectors); found != nil {
		if v, ok := found.First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// imageSource handles lazy-loading attributes alongside plain src.
func imageSource(container *goquery.Selection, selectors []string) (string, bool) {
	img := firstMatching(container, selectors)
	if img == nil {
		img = container.Find("img")
		if img.Length() == 0 {
			return "", false
		}
	}
	first := img.First()
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-original"} {
		if v, ok := first.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

func resolveURL(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}
