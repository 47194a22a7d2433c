package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/temoto/robotstxt"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Page is one fetched and parsed page.
type Page struct {
	URL      string
	HTML     string
	Document *goquery.Document
}

// Fetcher is the page-fetching strategy the crawl engine runs against.
// Implementations must tolerate Close being called while a fetch is in
// flight; that is how cancellation interrupts navigation.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (*Page, error)
	Close() error
}

// StaticFetcher fetches pages with a plain HTTP client and parses them
// without executing scripts. robots.txt groups are fetched once per host
// and cached; an unreachable robots.txt allows everything.
type StaticFetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

type StaticOptions struct {
	Timeout   time.Duration
	UserAgent string
}

func NewStaticFetcher(opts StaticOptions, logger *slog.Logger) *StaticFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &StaticFetcher{
		client:    &http.Client{Timeout: opts.Timeout},
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "static_fetcher"),
		robots:    make(map[string]*robotstxt.Group),
	}
}

func (f *StaticFetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if !f.allowed(ctx, pageURL) {
		return nil, fmt.Errorf("disallowed by robots.txt: %s", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	html := string(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	return &Page{URL: pageURL, HTML: html, Document: doc}, nil
}

func (f *StaticFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *StaticFetcher) allowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return false
	}

	f.mu.Lock()
	group, cached := f.robots[parsed.Host]
	f.mu.Unlock()

	if !cached {
		group = f.fetchRobots(ctx, parsed)
		f.mu.Lock()
		f.robots[parsed.Host] = group
		f.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(parsed.Path)
}

func (f *StaticFetcher) fetchRobots(ctx context.Context, site *url.URL) *robotstxt.Group {
	robotsURL := site.Scheme + "://" + site.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		// No reachable robots.txt means crawl is allowed.
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	f.logger.Debug("loaded robots.txt", "host", site.Host)
	return data.FindGroup(f.userAgent)
}
