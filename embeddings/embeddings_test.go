package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kifiya-ai/kavas/config"
)

func TestNewEmbedderRejectsUnknownProvider(t *testing.T) {
	cfg := config.Config{}
	cfg.Embeddings.Provider = "imaginary"

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected an error for an unknown provider")
	}
}

func TestNewEmbedderRequiresOpenAIKey(t *testing.T) {
	cfg := config.Config{}
	cfg.Embeddings.Provider = config.ProviderOpenAI

	if _, err := NewEmbedder(cfg); err == nil {
		t.Fatal("expected an error without an API key")
	}
}

func TestOllamaEmbedderPrefixesByMode(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		prompts = append(prompts, req.Prompt)
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: server.URL, Model: "nomic-embed-text", Dimension: 3})

	vectors, err := embedder.Embed(context.Background(), []string{"indexed text"}, ModePassage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("unexpected vectors: %v", vectors)
	}

	if _, err := embedder.Embed(context.Background(), []string{"searched text"}, ModeQuery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prompts) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(prompts))
	}
	if !strings.HasPrefix(prompts[0], "search_document: ") {
		t.Fatalf("passage prompt missing prefix: %q", prompts[0])
	}
	if !strings.HasPrefix(prompts[1], "search_query: ") {
		t.Fatalf("query prompt missing prefix: %q", prompts[1])
	}
}

func TestOllamaEmbedderChecksDimension(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embedding: []float64{0.1, 0.2}})
	}))
	defer server.Close()

	embedder := NewOllamaEmbedder(Options{OllamaHost: server.URL, Model: "nomic-embed-text", Dimension: 3})

	if _, err := embedder.Embed(context.Background(), []string{"text"}, ModePassage); err == nil {
		t.Fatal("expected a dimension mismatch error")
	}
}
