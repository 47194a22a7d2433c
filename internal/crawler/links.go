package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDiscoveredLinks bounds frontier growth on large catalogs.
const maxDiscoveredLinks = 30

// DiscoverLinks collects same-host pagination and category/listing links
// from a page. Pagination links come first, deduplicated, capped at
// maxDiscoveredLinks.
func DiscoverLinks(doc *goquery.Document, pageURL string, hint Platform) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	host := base.Hostname()

	seen := make(map[string]struct{})
	var links []string

	add := func(href string) {
		if len(links) >= maxDiscoveredLinks {
			return
		}
		resolved := sameHostURL(base, host, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	}

	for _, sel := range SelectorsFor(hint).Pagination {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if href, ok := s.Attr("href"); ok {
				add(href)
			}
		})
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		lower := strings.ToLower(href)
		for _, pattern := range ListingPathPatterns {
			if strings.Contains(lower, pattern) {
				add(href)
				break
			}
		}
	})

	return links
}

// sameHostURL resolves href against base and returns it only when it
// stays on the crawled host and is plain http(s).
func sameHostURL(base *url.URL, host, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	if resolved.Hostname() != host {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
