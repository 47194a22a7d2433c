package crawler

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractStructuredData(t *testing.T) {
	html := `<html><head>
	<script type="application/ld+json">
	{
		"@type": "Product",
		"name": "Trail Running Shoe",
		"sku": "TRS-42",
		"image": ["/img/trs-42.jpg"],
		"url": "/products/trail-running-shoe",
		"offers": {"@type": "Offer", "price": "89.95", "priceCurrency": "EUR"}
	}
	</script>
	</head><body>
		<div class="product"><span class="product-title">Selector Decoy</span></div>
	</body></html>`

	extractor := NewExtractor(testLogger())
	products := extractor.Extract(mustDoc(t, html), "https://shop.example/collections/shoes", PlatformGeneric)

	// Structured data wins over selector scraping.
	require.Len(t, products, 1)
	p := products[0]
	assert.Equal(t, "Trail Running Shoe", p.Name)
	assert.Equal(t, "TRS-42", p.SKU)
	require.NotNil(t, p.Price)
	assert.InDelta(t, 89.95, *p.Price, 0.0001)
	assert.Equal(t, "https://shop.example/img/trs-42.jpg", p.ImageURL)
	assert.Equal(t, "https://shop.example/products/trail-running-shoe", p.ProductURL)
}

func TestExtractStructuredItemList(t *testing.T) {
	html := `<script type="application/ld+json">
	{
		"@type": "ItemList",
		"itemListElement": [
			{"item": {"@type": "Product", "name": "Alpha", "offers": [{"price": 10}, {"price": 12}]}},
			{"item": {"@type": "Product", "name": "Beta", "mpn": "MPN-9", "offers": {"lowPrice": "7,50"}}},
			{"item": {"@type": "WebPage", "name": "Not a product"}}
		]
	}
	</script>`

	extractor := NewExtractor(testLogger())
	products := extractor.Extract(mustDoc(t, html), "https://shop.example/", PlatformGeneric)

	require.Len(t, products, 2)
	assert.Equal(t, "Alpha", products[0].Name)
	require.NotNil(t, products[0].Price)
	assert.InDelta(t, 10, *products[0].Price, 0.0001)

	assert.Equal(t, "Beta", products[1].Name)
	assert.Equal(t, "MPN-9", products[1].SKU)
	require.NotNil(t, products[1].Price)
	assert.InDelta(t, 7.50, *products[1].Price, 0.0001)
}

func TestExtractWithPlatformSelectors(t *testing.T) {
	html := `<html><body><ul class="products">
		<li class="product">
			<a class="woocommerce-LoopProduct-link" href="/product/garden-hose/">
				<img src="/img/hose.jpg" alt="">
				<h2 class="woocommerce-loop-product__title">Garden Hose 20m</h2>
				<span class="price"><span class="woocommerce-Price-amount">24,90&nbsp;€</span></span>
			</a>
			<span class="sku">SKU: GH-20</span>
		</li>
		<li class="product">
			<a class="woocommerce-LoopProduct-link" href="/product/watering-can/">
				<h2 class="woocommerce-loop-product__title">Watering Can</h2>
			</a>
		</li>
	</ul></body></html>`

	extractor := NewExtractor(testLogger())
	products := extractor.Extract(mustDoc(t, html), "https://garten.example/shop/", PlatformWooCommerce)

	require.Len(t, products, 2)

	hose := products[0]
	assert.Equal(t, "Garden Hose 20m", hose.Name)
	require.NotNil(t, hose.Price)
	assert.InDelta(t, 24.90, *hose.Price, 0.0001)
	assert.Equal(t, "GH-20", hose.SKU)
	assert.Equal(t, "https://garten.example/img/hose.jpg", hose.ImageURL)
	assert.Equal(t, "https://garten.example/product/garden-hose/", hose.ProductURL)

	can := products[1]
	assert.Equal(t, "Watering Can", can.Name)
	assert.Nil(t, can.Price)
	assert.Empty(t, can.SKU)
}

func TestExtractFallsBackToGenericSelectors(t *testing.T) {
	html := `<div class="product">
		<span class="product-title">Desk Lamp</span>
		<span class="price">$39.00</span>
	</div>`

	extractor := NewExtractor(testLogger())

	// Wrong platform hint still finds products through the generic set.
	products := extractor.Extract(mustDoc(t, html), "https://shop.example/", PlatformShopify)
	require.Len(t, products, 1)
	assert.Equal(t, "Desk Lamp", products[0].Name)
	require.NotNil(t, products[0].Price)
	assert.InDelta(t, 39.00, *products[0].Price, 0.0001)
}

func TestExtractDropsNamelessRecords(t *testing.T) {
	html := `<div class="product"><span class="price">$5.00</span></div>
		<div class="product"><span class="product-title">Named</span></div>`

	extractor := NewExtractor(testLogger())
	products := extractor.Extract(mustDoc(t, html), "https://shop.example/", PlatformGeneric)

	require.Len(t, products, 1)
	assert.Equal(t, "Named", products[0].Name)
}

func TestExtractEmptyPage(t *testing.T) {
	extractor := NewExtractor(testLogger())
	products := extractor.Extract(mustDoc(t, "<html><body></body></html>"), "https://shop.example/", PlatformGeneric)
	assert.Empty(t, products)
}
