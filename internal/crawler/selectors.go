package crawler

import "strings"

// Platform identifies the shop software a site runs on. Detection is a
// cheap signature test against raw markup; Generic is both the fallback
// platform and the fallback selector set.
type Platform string

const (
	PlatformGeneric     Platform = "generic"
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
)

// SelectorSet holds ordered CSS selector lists per extraction field.
// Within a field the first selector yielding at least one match wins.
type SelectorSet struct {
	ProductContainer []string
	Name             []string
	Price            []string
	SKU              []string
	Image            []string
	Link             []string
	Pagination       []string
}

var selectorCatalog = map[Platform]SelectorSet{
	PlatformShopify: {
		ProductContainer: []string{".product-card", ".grid__item .card", ".product-item", "[data-product-id]"},
		Name:             []string{".product-card__title", ".card__heading", ".product-item__title", "h3 a", "h2 a"},
		Price:            []string{".price__current", ".price-item--regular", ".product-card__price", ".price"},
		SKU:              []string{"[data-sku]", ".product-sku"},
		Image:            []string{".product-card__image img", ".card__media img", "img"},
		Link:             []string{"a[href*='/products/']", "a"},
		Pagination:       []string{".pagination a", "a[href*='page=']", "link[rel=next]"},
	},
	PlatformWooCommerce: {
		ProductContainer: []string{"li.product", ".products .product", ".wc-block-grid__product"},
		Name:             []string{".woocommerce-loop-product__title", ".wc-block-grid__product-title", "h2"},
		Price:            []string{".price .woocommerce-Price-amount", ".price ins .amount", ".price"},
		SKU:              []string{"[data-product_sku]", ".sku"},
		Image:            []string{".attachment-woocommerce_thumbnail", "img"},
		Link:             []string{"a.woocommerce-LoopProduct-link", "a"},
		Pagination:       []string{".woocommerce-pagination a.page-numbers", "a.next.page-numbers"},
	},
	PlatformMagento: {
		ProductContainer: []string{".product-item", ".products-grid .item", "li.item.product"},
		Name:             []string{".product-item-name a", ".product-item-link", ".product.name a"},
		Price:            []string{".price-box .price", "[data-price-type=finalPrice] .price", ".special-price .price"},
		SKU:              []string{"[data-product-sku]", ".sku .value"},
		Image:            []string{".product-image-photo", "img"},
		Link:             []string{"a.product-item-link", "a.product-item-photo", "a"},
		Pagination:       []string{".pages a.page", "a.action.next"},
	},
	PlatformGeneric: {
		ProductContainer: []string{"[itemtype*='schema.org/Product']", ".product", ".product-item", ".product-card", "article.product", "[class*=product-grid] > *", "[class*=product-list] > *"},
		Name:             []string{"[itemprop=name]", ".product-title", ".product-name", "h3", "h2", "a[title]"},
		Price:            []string{"[itemprop=price]", ".price", ".product-price", "[class*=price]"},
		SKU:              []string{"[itemprop=sku]", "[data-sku]", ".sku"},
		Image:            []string{"[itemprop=image]", "img"},
		Link:             []string{"a[href]"},
		Pagination:       []string{"a[rel=next]", ".pagination a", "a[href*='page=']", "a[href*='/page/']"},
	},
}

// platformSignatures are vendor-specific markup fragments. Checked in
// order; first hit wins.
var platformSignatures = []struct {
	platform Platform
	needles  []string
}{
	{PlatformShopify, []string{"cdn.shopify.com", "Shopify.theme", "shopify-section"}},
	{PlatformWooCommerce, []string{"wp-content/plugins/woocommerce", "woocommerce-page", "wc-block-grid"}},
	{PlatformMagento, []string{"Magento_", "mage/requirejs", "data-mage-init"}},
}

// SelectorsFor returns the selector set for a platform, falling back to
// the generic set for unknown values.
func SelectorsFor(p Platform) SelectorSet {
	if set, ok := selectorCatalog[p]; ok {
		return set
	}
	return selectorCatalog[PlatformGeneric]
}

// DetectPlatform sniffs raw page markup for vendor signatures. It only
// needs to run once per crawl, on the first fetched page.
func DetectPlatform(html string) Platform {
	for _, sig := range platformSignatures {
		for _, needle := range sig.needles {
			if strings.Contains(html, needle) {
				return sig.platform
			}
		}
	}
	return PlatformGeneric
}

// ListingPathPatterns are URL path fragments that identify category and
// listing pages. The set folds in the locale variants seen in the wild;
// it is exported so deployments can append their own.
var ListingPathPatterns = []string{
	"/collections/", "/collection/",
	"/category/", "/categories/", "/categoria/", "/categorie/", "/kategorie/",
	"/shop/", "/store/", "/boutique/",
	"/products/", "/produkte/", "/produits/", "/productos/",
	"/catalog/", "/catalogue/", "/katalog/",
	"/page/", "?page=", "&page=",
}
