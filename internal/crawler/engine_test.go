package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves canned HTML per URL and fails everything else.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
	closed  bool
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) FetchPage(_ context.Context, pageURL string) (*Page, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, pageURL)
	html, ok := f.pages[pageURL]
	f.mu.Unlock()

	if !ok {
		return nil, errors.New("not found")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, HTML: html, Document: doc}, nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// recordingSink collects every published event.
type recordingSink struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (s *recordingSink) Publish(event ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

func productPage(names ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, n := range names {
		fmt.Fprintf(&b, `<div class="product"><span class="product-title">%s</span><span class="price">9.99</span></div>`, n)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func fastOptions() EngineOptions {
	opts := DefaultEngineOptions()
	opts.Delay = 0
	return opts
}

func TestEngineCrawlSinglePage(t *testing.T) {
	start := "https://shop.example/collections/all"
	fetcher := newFakeFetcher(map[string]string{
		start: productPage("Widget", "Widget", "Gadget"),
	})
	sink := &recordingSink{}

	engine := NewEngine(fetcher, fastOptions(), sink, testLogger())
	result, err := engine.Crawl(context.Background(), start)

	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesCrawled)
	assert.Equal(t, 0, result.FailedPages)
	assert.False(t, result.Cancelled)
	// Duplicates on the same page collapse into one record.
	require.Len(t, result.Products, 2)
	assert.Equal(t, "Widget", result.Products[0].Name)
	assert.Equal(t, "Gadget", result.Products[1].Name)

	assert.True(t, fetcher.closed)

	require.GreaterOrEqual(t, len(sink.events), 3)
	assert.Equal(t, ProgressStarting, sink.events[0].Status)
	assert.Equal(t, ProgressCrawling, sink.events[1].Status)
	last := sink.events[len(sink.events)-1]
	assert.Equal(t, ProgressCompleted, last.Status)
	assert.Equal(t, 1, last.PagesCrawled)
	assert.Equal(t, 2, last.ProductsFound)
}

func TestEngineFollowsDiscoveredLinks(t *testing.T) {
	start := "https://shop.example/collections/all"
	page2 := "https://shop.example/collections/all?page=2"
	pages := map[string]string{
		start: productPage("Widget") +
			`<a class="pagination" href="?page=2">next</a><div class="pagination"><a href="?page=2">2</a></div>`,
		page2: productPage("Gadget"),
	}
	fetcher := newFakeFetcher(pages)

	engine := NewEngine(fetcher, fastOptions(), NopSink{}, testLogger())
	result, err := engine.Crawl(context.Background(), start)

	require.NoError(t, err)
	assert.Equal(t, 2, result.PagesCrawled)
	assert.Equal(t, []string{start, page2}, fetcher.fetched)
	assert.Len(t, result.Products, 2)
}

func TestEngineRespectsMaxPages(t *testing.T) {
	// Every page links to three more; the budget must stop the walk.
	pages := make(map[string]string)
	for i := 0; i < 30; i++ {
		links := fmt.Sprintf(
			`<a href="/category/a%d">a</a><a href="/category/b%d">b</a><a href="/category/c%d">c</a>`,
			i, i, i,
		)
		pages[fmt.Sprintf("https://shop.example/category/a%d", i)] = productPage("A") + links
		pages[fmt.Sprintf("https://shop.example/category/b%d", i)] = productPage("B") + links
		pages[fmt.Sprintf("https://shop.example/category/c%d", i)] = productPage("C") + links
	}

	opts := fastOptions()
	opts.MaxPages = 4
	fetcher := newFakeFetcher(pages)

	engine := NewEngine(fetcher, opts, NopSink{}, testLogger())
	result, err := engine.Crawl(context.Background(), "https://shop.example/category/a0")

	require.NoError(t, err)
	assert.Equal(t, 4, result.PagesCrawled)
	assert.LessOrEqual(t, len(fetcher.fetched), 4)
}

func TestEngineFailureBudget(t *testing.T) {
	start := "https://shop.example/collections/all"
	var links strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&links, `<a href="/collections/dead%d">d</a>`, i)
	}
	fetcher := newFakeFetcher(map[string]string{
		start: productPage("Widget") + links.String(),
	})

	opts := fastOptions()
	opts.FailureBudget = 3
	sink := &recordingSink{}

	engine := NewEngine(fetcher, opts, sink, testLogger())
	result, err := engine.Crawl(context.Background(), start)

	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesCrawled)
	assert.Equal(t, 3, result.FailedPages)
	assert.Len(t, result.Products, 1)

	errorEvents := 0
	for _, e := range sink.events {
		if e.Status == ProgressError {
			errorEvents++
			assert.NotEmpty(t, e.Message)
		}
	}
	assert.Equal(t, 3, errorEvents)
}

func TestEngineStartPageUnreachable(t *testing.T) {
	fetcher := newFakeFetcher(nil)

	engine := NewEngine(fetcher, fastOptions(), NopSink{}, testLogger())
	result, err := engine.Crawl(context.Background(), "https://down.example/")

	require.NoError(t, err)
	assert.Equal(t, 0, result.PagesCrawled)
	assert.Equal(t, 1, result.FailedPages)
	assert.Empty(t, result.Products)
}

func TestEngineCancelBeforeStart(t *testing.T) {
	start := "https://shop.example/"
	fetcher := newFakeFetcher(map[string]string{start: productPage("Widget")})
	sink := &recordingSink{}

	engine := NewEngine(fetcher, fastOptions(), sink, testLogger())
	engine.Cancel()
	result, err := engine.Crawl(context.Background(), start)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 0, result.PagesCrawled)
	assert.True(t, fetcher.closed)

	last := sink.events[len(sink.events)-1]
	assert.Equal(t, ProgressCancelled, last.Status)
}

func TestEngineContextCancellation(t *testing.T) {
	start := "https://shop.example/"
	fetcher := newFakeFetcher(map[string]string{start: productPage("Widget")})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(fetcher, fastOptions(), NopSink{}, testLogger())
	result, err := engine.Crawl(ctx, start)

	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Equal(t, 0, result.PagesCrawled)
}

func TestEngineDetectsPlatformOnce(t *testing.T) {
	start := "https://shop.example/collections/all"
	fetcher := newFakeFetcher(map[string]string{
		start: `<link href="https://cdn.shopify.com/s/theme.css">` + productPage("Widget"),
	})

	engine := NewEngine(fetcher, fastOptions(), NopSink{}, testLogger())
	result, err := engine.Crawl(context.Background(), start)

	require.NoError(t, err)
	assert.Equal(t, PlatformShopify, result.Platform)
}
