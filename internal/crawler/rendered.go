package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/playwright-community/playwright-go"
)

// RenderedFetcher drives a headless Chromium via Playwright for sites
// that build their markup client-side. Each fetch navigates, scrolls to
// the bottom to trigger lazy loading, and returns the settled DOM.
type RenderedFetcher struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	bctx      playwright.BrowserContext
	timeout   time.Duration
	userAgent string
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

type RenderedOptions struct {
	Headless  bool
	Timeout   time.Duration
	UserAgent string
}

func DefaultRenderedOptions() RenderedOptions {
	return RenderedOptions{
		Headless:  true,
		Timeout:   30 * time.Second,
		UserAgent: defaultUserAgent,
	}
}

// NewRenderedFetcher launches the browser. A launch failure here is
// crawl-fatal; the caller falls back or fails the job.
func NewRenderedFetcher(opts RenderedOptions, logger *slog.Logger) (*RenderedFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: &opts.UserAgent,
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &RenderedFetcher{
		pw:        pw,
		browser:   browser,
		bctx:      bctx,
		timeout:   opts.Timeout,
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "rendered_fetcher"),
	}, nil
}

func (f *RenderedFetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("fetcher closed")
	}
	bctx := f.bctx
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.timeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}

	f.scrollToBottom(page)

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read content of %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}

	return &Page{URL: pageURL, HTML: html, Document: doc}, nil
}

// scrollToBottom steps down the page so lazy-loaded product grids
// populate before the DOM is read.
func (f *RenderedFetcher) scrollToBottom(page playwright.Page) {
	for i := 0; i < 5; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, document.body.scrollHeight / 5)`); err != nil {
			return
		}
		page.WaitForTimeout(400)
	}
	page.WaitForTimeout(1000)
}

// Close tears down the browser process. Safe to call concurrently with
// an in-flight FetchPage; the navigation errors out instead of running
// to completion.
func (f *RenderedFetcher) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	var errs []error
	if f.bctx != nil {
		if err := f.bctx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
