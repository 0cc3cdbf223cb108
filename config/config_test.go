package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.TopK != 3 {
		t.Fatalf("unexpected top-k: %d", cfg.TopK)
	}
	if cfg.MaxRewrites != 2 {
		t.Fatalf("unexpected rewrite budget: %d", cfg.MaxRewrites)
	}
	if cfg.ChatMaxWords != 2000 {
		t.Fatalf("unexpected chat word budget: %d", cfg.ChatMaxWords)
	}
	if cfg.Crawl.Delay != time.Second {
		t.Fatalf("unexpected crawl delay: %v", cfg.Crawl.Delay)
	}
	if cfg.RefreshSchedule != "@every 336h" {
		t.Fatalf("unexpected refresh schedule: %q", cfg.RefreshSchedule)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("RAG_MAX_REWRITES", "5")
	t.Setenv("CRAWL_DELAY", "250ms")
	t.Setenv("CRAWL_BASE_URL", "https://kifiya.com")

	cfg := Load()

	if cfg.MaxRewrites != 5 {
		t.Fatalf("expected rewrite budget 5, got %d", cfg.MaxRewrites)
	}
	if cfg.Crawl.Delay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %v", cfg.Crawl.Delay)
	}
	if cfg.Crawl.BaseURL != "https://kifiya.com" {
		t.Fatalf("unexpected base url: %q", cfg.Crawl.BaseURL)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("RAG_TOP_K", "not-a-number")

	cfg := Load()
	if cfg.TopK != 3 {
		t.Fatalf("expected the default top-k, got %d", cfg.TopK)
	}
}

func TestRoleModelsFallBackToMainModel(t *testing.T) {
	l := LLM{Model: "gpt-4o-mini"}

	if l.GraderModelName() != "gpt-4o-mini" {
		t.Fatalf("unexpected grader model: %q", l.GraderModelName())
	}
	if l.RewriterModelName() != "gpt-4o-mini" {
		t.Fatalf("unexpected rewriter model: %q", l.RewriterModelName())
	}
	if l.SummarizerModelName() != "gpt-4o-mini" {
		t.Fatalf("unexpected summarizer model: %q", l.SummarizerModelName())
	}

	l.GraderModel = "gpt-4o"
	if l.GraderModelName() != "gpt-4o" {
		t.Fatalf("explicit grader model ignored: %q", l.GraderModelName())
	}
}
