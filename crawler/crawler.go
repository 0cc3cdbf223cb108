// Package crawler walks a website breadth-first over same-origin links and
// extracts the text content of each page.
package crawler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// Page is the crawl output for one URL: its title, the concatenated
// paragraph text, and the same-origin links discovered on it.
type Page struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Links   []string `json:"links,omitempty"`
}

type Crawler struct {
	base      *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxPages  int
	logger    *log.Logger
}

func New(baseURL, userAgent string, delay time.Duration, maxPages int, logger *log.Logger) (*Crawler, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", baseURL)
	}
	if delay <= 0 {
		delay = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Crawler{
		base:      base,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Every(delay), 1),
		userAgent: userAgent,
		maxPages:  maxPages,
		logger:    logger,
	}, nil
}

// Crawl traverses the site breadth-first from the base URL. Every URL is
// fetched at most once, fetches are rate limited, and a page that fails to
// fetch or parse is logged and skipped without stopping the crawl.
func (c *Crawler) Crawl(ctx context.Context) ([]Page, error) {
	queue := []string{c.base.String()}
	visited := make(map[string]struct{})
	pages := make([]Page, 0)

	for len(queue) > 0 {
		if c.maxPages > 0 && len(pages) >= c.maxPages {
			break
		}

		current := queue[0]
		queue = queue[1:]

		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		if err := c.limiter.Wait(ctx); err != nil {
			return pages, fmt.Errorf("crawl cancelled: %w", err)
		}

		page, err := c.fetch(ctx, current)
		if err != nil {
			c.logger.Printf("failed to scrape %s: %v", current, err)
			continue
		}

		pages = append(pages, page)

		for _, link := range page.Links {
			if _, seen := visited[link]; !seen {
				queue = append(queue, link)
			}
		}
	}

	return pages, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Page{}, fmt.Errorf("fetch page: status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "No Title"
	}

	paragraphs := make([]string, 0)
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return Page{
		URL:     pageURL,
		Title:   title,
		Content: strings.Join(paragraphs, "\n"),
		Links:   c.extractLinks(doc, pageURL),
	}, nil
}

// extractLinks resolves every anchor on the page and keeps deduplicated
// same-origin links with fragments stripped.
func (c *Crawler) extractLinks(doc *goquery.Document, pageURL string) []string {
	pageBase, err := url.Parse(pageURL)
	if err != nil {
		pageBase = c.base
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || shouldSkipLink(href) {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := pageBase.ResolveReference(parsed)
		resolved.Fragment = ""
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if resolved.Host != c.base.Host {
			return
		}

		link := resolved.String()
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})

	return links
}

func shouldSkipLink(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(href, "#")
}
