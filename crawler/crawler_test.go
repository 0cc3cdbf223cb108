package crawler

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type countingSite struct {
	mu    sync.Mutex
	hits  map[string]int
	pages map[string]string
}

func (s *countingSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.hits == nil {
		s.hits = map[string]int{}
	}
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, body)
}

func (s *countingSite) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func TestCrawlVisitsEachSameOriginPageOnce(t *testing.T) {
	site := &countingSite{pages: map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<p>Welcome to the site.</p>
			<a href="/services">Services</a>
			<a href="/about">About</a>
			<a href="/about#team">Team anchor</a>
			<a href="https://elsewhere.example/external">External</a>
			<a href="mailto:info@kifiya.com">Mail</a>
			</body></html>`,
		"/services": `<html><head><title>Services</title></head><body>
			<p>Digital lending and payments.</p>
			<a href="/">Home</a>
			</body></html>`,
		"/about": `<html><head><title>About</title></head><body>
			<p>About the company.</p>
			<a href="/services">Services</a>
			</body></html>`,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	c, err := New(server.URL, "test-crawler/1.0", time.Millisecond, 0, discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pages, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}
	for _, path := range []string{"/", "/services", "/about"} {
		if site.hitCount(path) != 1 {
			t.Fatalf("expected exactly one fetch of %s, got %d", path, site.hitCount(path))
		}
	}

	if pages[0].Title != "Home" {
		t.Fatalf("expected the base page first, got %q", pages[0].Title)
	}
	if pages[0].Content != "Welcome to the site." {
		t.Fatalf("unexpected content: %q", pages[0].Content)
	}

	for _, page := range pages {
		for _, link := range page.Links {
			if link == "https://elsewhere.example/external" {
				t.Fatal("external links must be dropped")
			}
		}
	}
}

func TestCrawlSkipsFailedPages(t *testing.T) {
	site := &countingSite{pages: map[string]string{
		"/": `<html><head><title>Home</title></head><body>
			<p>Home page.</p>
			<a href="/broken">Broken</a>
			<a href="/ok">OK</a>
			</body></html>`,
		"/ok": `<html><head><title>OK</title></head><body><p>Fine.</p></body></html>`,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	c, err := New(server.URL, "", time.Millisecond, 0, discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pages, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("a failed page must not abort the crawl: %v", err)
	}

	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
}

func TestCrawlHonorsMaxPages(t *testing.T) {
	site := &countingSite{pages: map[string]string{
		"/":  `<html><head><title>1</title></head><body><a href="/2">2</a><a href="/3">3</a></body></html>`,
		"/2": `<html><head><title>2</title></head><body></body></html>`,
		"/3": `<html><head><title>3</title></head><body></body></html>`,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	c, err := New(server.URL, "", time.Millisecond, 2, discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pages, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected the page limit to hold, got %d pages", len(pages))
	}
}

func TestCrawlStopsOnCancelledContext(t *testing.T) {
	site := &countingSite{pages: map[string]string{
		"/": `<html><head><title>Home</title></head><body></body></html>`,
	}}
	server := httptest.NewServer(site)
	defer server.Close()

	c, err := New(server.URL, "", time.Hour, 0, discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Crawl(ctx); err == nil {
		t.Fatal("expected an error from the cancelled context")
	}
}

func TestNewRejectsNonHTTPBase(t *testing.T) {
	if _, err := New("ftp://example.com", "", time.Second, 0, discard()); err == nil {
		t.Fatal("expected an error for a non-http base url")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	pages := []Page{
		{URL: "https://kifiya.com/", Title: "Home", Content: "Welcome.", Links: []string{"https://kifiya.com/about"}},
	}

	if err := SaveSnapshot(path, pages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].URL != pages[0].URL || loaded[0].Content != "Welcome." {
		t.Fatalf("snapshot round trip lost data: %+v", loaded)
	}
}
