package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/kifiya-ai/kavas/llm"
)

// Grader decides whether a retrieved document is relevant to a query.
type Grader interface {
	Grade(ctx context.Context, query, document string) (bool, error)
}

// Rewriter reformulates a query for better retrieval.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) (string, error)
}

// Generator produces the final answer from the query and its context.
type Generator interface {
	Generate(ctx context.Context, query string, documents []Document) (string, error)
}

type llmGrader struct {
	client llm.Client
}

func NewLLMGrader(client llm.Client) Grader {
	return &llmGrader{client: client}
}

func (g *llmGrader) Grade(ctx context.Context, query, document string) (bool, error) {
	answer, err := g.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: graderSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Retrieved document:\n\n%s\n\nUser question: %s", document, query)},
	})
	if err != nil {
		return false, fmt.Errorf("grade document: %w", err)
	}
	return parseVerdict(answer), nil
}

// parseVerdict extracts the binary score. Anything that is not a clear "yes"
// counts as not relevant; an ambiguous grade is never an error.
func parseVerdict(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, `"'.!`)
	if normalized == "yes" {
		return true
	}
	if strings.HasPrefix(normalized, "yes") && !strings.Contains(normalized, "no") {
		return true
	}
	return false
}

type llmRewriter struct {
	client llm.Client
}

func NewLLMRewriter(client llm.Client) Rewriter {
	return &llmRewriter{client: client}
}

func (r *llmRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	answer, err := r.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: rewriterSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Here is the initial question:\n\n%s\n\nFormulate an improved question.", query)},
	})
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}

	rewritten := strings.TrimSpace(answer)
	if rewritten == "" {
		return "", fmt.Errorf("rewriter returned an empty query")
	}
	return rewritten, nil
}

type llmGenerator struct {
	client llm.Client
}

func NewLLMGenerator(client llm.Client) Generator {
	return &llmGenerator{client: client}
}

func (g *llmGenerator) Generate(ctx context.Context, query string, documents []Document) (string, error) {
	answer, err := g.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: generatorSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer:", query, buildContext(documents))},
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

func buildContext(documents []Document) string {
	if len(documents) == 0 {
		return "(no context retrieved)"
	}

	var sb strings.Builder
	for idx, doc := range documents {
		sb.WriteString(fmt.Sprintf("Source %d", idx+1))
		if doc.Title != "" {
			sb.WriteString(": " + doc.Title)
		}
		if doc.SourceURL != "" {
			sb.WriteString(" (" + doc.SourceURL + ")")
		}
		sb.WriteString("\n")
		sb.WriteString(doc.Text)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}
