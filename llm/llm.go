package llm

import (
	"context"
	"fmt"

	"github.com/kifiya-ai/kavas/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewClient builds a completion client for the configured default model.
func NewClient(cfg config.Config) (Client, error) {
	return NewClientForModel(cfg, cfg.LLM.Model)
}

// NewClientForModel builds a completion client bound to a specific model.
// The workflow constructs one client per role, so grading, rewriting, and
// summarization can run against different models than answer generation.
func NewClientForModel(cfg config.Config, model string) (Client, error) {
	if model == "" {
		model = cfg.LLM.Model
	}

	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
