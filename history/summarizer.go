package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/kifiya-ai/kavas/llm"
)

// Summarizer condenses a conversation into a short summary string.
type Summarizer interface {
	Summarize(ctx context.Context, h History) (string, error)
}

const summarizerSystemPrompt = `You summarize conversations between a user and an AI assistant.
Produce a short summary that preserves the facts, requests, and commitments needed to continue the conversation later.`

type llmSummarizer struct {
	client llm.Client
}

func NewLLMSummarizer(client llm.Client) Summarizer {
	return &llmSummarizer{client: client}
}

func (s *llmSummarizer) Summarize(ctx context.Context, h History) (string, error) {
	answer, err := s.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: summarizerSystemPrompt},
		{Role: llm.RoleUser, Content: "Summarize the following conversation:\n" + transcript(h)},
	})
	if err != nil {
		return "", fmt.Errorf("summarize conversation: %w", err)
	}

	summary := strings.TrimSpace(answer)
	if summary == "" {
		return "", fmt.Errorf("summarizer returned an empty summary")
	}
	return summary, nil
}

// transcript renders the record as a flat dialogue, prefixed by the previous
// summary when one exists so re-summarization does not lose earlier context.
func transcript(h History) string {
	var sb strings.Builder
	if h.Summary != "" {
		sb.WriteString("Previous summary: " + h.Summary + "\n")
	}
	for _, turn := range h.Turns {
		sb.WriteString("User: " + turn.UserMessage + "\n")
		sb.WriteString("AI: " + turn.AIMessage + "\n")
	}
	return sb.String()
}
