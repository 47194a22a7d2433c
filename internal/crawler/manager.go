package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nobody-27-27/EcomCompare/internal/models"
)

var (
	// ErrCrawlActive is returned when a crawl is already running for the
	// website key.
	ErrCrawlActive = errors.New("crawl already active for website")
	// ErrCrawlTimeout is returned when the global wall-clock ceiling
	// expires before the crawl finishes.
	ErrCrawlTimeout = errors.New("crawl exceeded maximum duration")
)

// spaSignatures mark markup that is assembled client-side and needs the
// rendered strategy.
var spaSignatures = []string{
	"__NEXT_DATA__",
	"data-reactroot",
	"ng-version=",
	"id=\"__nuxt\"",
	"window.__NUXT__",
	"id=\"app\"></div>",
	"id=\"root\"></div>",
}

// minStaticTextChars is the detection threshold below which a page is
// assumed to be JS-rendered.
const minStaticTextChars = 200

// ManagerOptions configure crawls started through a Manager.
type ManagerOptions struct {
	MaxPages          int
	Delay             time.Duration
	FetchTimeout      time.Duration
	MaxCrawlTime      time.Duration
	FailureBudget     int
	RenderedAvailable bool
	UserAgent         string
}

func DefaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		MaxPages:          50,
		Delay:             time.Second,
		FetchTimeout:      15 * time.Second,
		MaxCrawlTime:      5 * time.Minute,
		FailureBudget:     5,
		RenderedAvailable: true,
	}
}

// Manager owns at most one active crawl per website key and enforces
// the per-job wall-clock ceiling. The active registry is the only
// shared state between concurrent crawls.
type Manager struct {
	opts   ManagerOptions
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]*Engine
}

func NewManager(opts ManagerOptions, logger *slog.Logger) *Manager {
	if opts.MaxCrawlTime <= 0 {
		opts.MaxCrawlTime = 5 * time.Minute
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Manager{
		opts:   opts,
		logger: logger.With("component", "crawler_manager"),
		active: make(map[string]*Engine),
	}
}

// StartCrawl runs a crawl for websiteKey to completion, returning its
// result. A second start for the same key fails with ErrCrawlActive; a
// crawl exceeding the wall-clock ceiling is cancelled and reported as
// ErrCrawlTimeout.
func (m *Manager) StartCrawl(ctx context.Context, websiteKey, startURL string, strategy models.CrawlStrategy, sink ProgressSink) (*CrawlResult, error) {
	fetcher, resolved, err := m.buildFetcher(ctx, startURL, strategy)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(fetcher, EngineOptions{
		MaxPages:      m.opts.MaxPages,
		Delay:         m.opts.Delay,
		FailureBudget: m.opts.FailureBudget,
	}, sink, m.logger)

	m.mu.Lock()
	if _, exists := m.active[websiteKey]; exists {
		m.mu.Unlock()
		fetcher.Close()
		return nil, ErrCrawlActive
	}
	m.active[websiteKey] = engine
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.active, websiteKey)
		m.mu.Unlock()
	}()

	m.logger.Info("starting crawl", "website", websiteKey, "url", startURL, "strategy", resolved)

	type outcome struct {
		result *CrawlResult
		err    error
	}
	done := make(chan outcome, 1)

	crawlCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		result, err := engine.Crawl(crawlCtx, startURL)
		done <- outcome{result, err}
	}()

	timer := time.NewTimer(m.opts.MaxCrawlTime)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		engine.Cancel()
		cancel()
		<-done
		m.logger.Warn("crawl timed out", "website", websiteKey, "ceiling", m.opts.MaxCrawlTime)
		return nil, fmt.Errorf("%w after %s", ErrCrawlTimeout, m.opts.MaxCrawlTime)
	case <-ctx.Done():
		engine.Cancel()
		out := <-done
		return out.result, out.err
	}
}

// CancelCrawl requests cancellation of the active crawl for websiteKey.
// Returns whether a crawl was actually running; cancelling an idle key
// is a no-op.
func (m *Manager) CancelCrawl(websiteKey string) bool {
	m.mu.Lock()
	engine, ok := m.active[websiteKey]
	delete(m.active, websiteKey)
	m.mu.Unlock()

	if !ok {
		return false
	}
	engine.Cancel()
	m.logger.Info("crawl cancelled", "website", websiteKey)
	return true
}

// IsActive reports whether a crawl is running for websiteKey.
func (m *Manager) IsActive(websiteKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[websiteKey]
	return ok
}

func (m *Manager) buildFetcher(ctx context.Context, startURL string, strategy models.CrawlStrategy) (Fetcher, models.CrawlStrategy, error) {
	if strategy == models.StrategyAuto || strategy == "" {
		strategy = m.detectStrategy(ctx, startURL)
	}
	if strategy == models.StrategyRendered && !m.opts.RenderedAvailable {
		m.logger.Warn("rendered strategy unavailable, falling back to static", "url", startURL)
		strategy = models.StrategyStatic
	}

	switch strategy {
	case models.StrategyRendered:
		fetcher, err := NewRenderedFetcher(RenderedOptions{
			Headless:  true,
			Timeout:   m.opts.FetchTimeout * 2,
			UserAgent: m.opts.UserAgent,
		}, m.logger)
		if err != nil {
			return nil, strategy, fmt.Errorf("failed to initialize rendered fetcher: %w", err)
		}
		return fetcher, strategy, nil
	default:
		return NewStaticFetcher(StaticOptions{
			Timeout:   m.opts.FetchTimeout,
			UserAgent: m.opts.UserAgent,
		}, m.logger), models.StrategyStatic, nil
	}
}

// detectStrategy fetches the start URL with a short timeout and decides
// whether static parsing will see anything. Detection failures always
// fall back to static.
func (m *Manager) detectStrategy(ctx context.Context, startURL string) models.CrawlStrategy {
	detectCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(detectCtx, http.MethodGet, startURL, nil)
	if err != nil {
		return models.StrategyStatic
	}
	ua := m.opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return models.StrategyStatic
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return models.StrategyStatic
	}
	html := string(body)

	for _, sig := range spaSignatures {
		if strings.Contains(html, sig) {
			m.logger.Info("detected client-side rendering signature", "url", startURL)
			return models.StrategyRendered
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.StrategyStatic
	}
	text := strings.TrimSpace(doc.Find("body").Text())
	if len(text) < minStaticTextChars {
		m.logger.Info("page has minimal static text, assuming rendered", "url", startURL, "chars", len(text))
		return models.StrategyRendered
	}

	return models.StrategyStatic
}
