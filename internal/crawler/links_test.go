package crawler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDiscoverLinks(t *testing.T) {
	html := `<html><body>
		<nav class="pagination"><a href="?page=2">2</a><a href="?page=3">3</a></nav>
		<a href="/collections/shirts">Shirts</a>
		<a href="/collections/shirts#top">Shirts anchor</a>
		<a href="https://other-store.example/collections/shoes">External</a>
		<a href="mailto:info@shop.example">Mail</a>
		<a href="javascript:void(0)">JS</a>
		<a href="/about">About</a>
	</body></html>`

	doc := mustDoc(t, html)
	links := DiscoverLinks(doc, "https://shop.example/collections/all", PlatformGeneric)

	// Pagination links come before listing links.
	require.NotEmpty(t, links)
	assert.Equal(t, "https://shop.example/collections/all?page=2", links[0])
	assert.Equal(t, "https://shop.example/collections/all?page=3", links[1])
	assert.Contains(t, links, "https://shop.example/collections/shirts")

	for _, link := range links {
		assert.True(t, strings.HasPrefix(link, "https://shop.example/"), "unexpected host: %s", link)
		assert.NotContains(t, link, "#")
		assert.NotContains(t, link, "/about")
	}
}

func TestDiscoverLinksDeduplicates(t *testing.T) {
	html := `<body>
		<a href="/collections/shirts">one</a>
		<a href="/collections/shirts">two</a>
		<a href="/collections/shirts#reviews">three</a>
	</body>`

	links := DiscoverLinks(mustDoc(t, html), "https://shop.example/", PlatformGeneric)
	assert.Equal(t, []string{"https://shop.example/collections/shirts"}, links)
}

func TestDiscoverLinksCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<body>")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, `<a href="/category/c%d">c%d</a>`, i, i)
	}
	b.WriteString("</body>")

	links := DiscoverLinks(mustDoc(t, b.String()), "https://shop.example/", PlatformGeneric)
	assert.Len(t, links, maxDiscoveredLinks)
}

func TestDiscoverLinksBadBaseURL(t *testing.T) {
	links := DiscoverLinks(mustDoc(t, `<a href="/collections/x">x</a>`), "://not-a-url", PlatformGeneric)
	assert.Nil(t, links)
}
