package workflow

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/kifiya-ai/kavas/llm"
)

type stubRetriever struct {
	queries []string
	batches [][]Document
	err     error
}

func (s *stubRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	batch := s.batches[0]
	if len(s.batches) > 1 {
		s.batches = s.batches[1:]
	}
	return batch, nil
}

var _ Retriever = (*stubRetriever)(nil)

type stubGrader struct {
	verdicts map[string]bool
	errFor   string
	calls    int
}

func (s *stubGrader) Grade(ctx context.Context, query, document string) (bool, error) {
	s.calls++
	if s.errFor != "" && document == s.errFor {
		return false, errors.New("grader unavailable")
	}
	return s.verdicts[document], nil
}

var _ Grader = (*stubGrader)(nil)

type stubRewriter struct {
	rewritten string
	err       error
	calls     int
}

func (s *stubRewriter) Rewrite(ctx context.Context, query string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.rewritten != "" {
		return s.rewritten, nil
	}
	return query + " (rewritten)", nil
}

var _ Rewriter = (*stubRewriter)(nil)

type stubGenerator struct {
	answer string
	err    error
	query  string
	docs   []Document
	calls  int
}

func (s *stubGenerator) Generate(ctx context.Context, query string, documents []Document) (string, error) {
	s.calls++
	s.query = query
	s.docs = documents
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

var _ Generator = (*stubGenerator)(nil)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestRunGeneratesFromRelevantDocuments(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "pricing details"},
		{ID: "b", Text: "unrelated boilerplate"},
		{ID: "c", Text: "contact information"},
	}
	grader := &stubGrader{verdicts: map[string]bool{
		"pricing details":     true,
		"contact information": true,
	}}
	generator := &stubGenerator{answer: "the answer"}
	rewriter := &stubRewriter{}

	w := New(&stubRetriever{batches: [][]Document{docs}}, grader, rewriter, generator, 2, discard())

	state, err := w.Run(context.Background(), "what does it cost?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Generation != "the answer" {
		t.Fatalf("unexpected generation: %q", state.Generation)
	}
	if rewriter.calls != 0 {
		t.Fatalf("expected no rewrites, got %d", rewriter.calls)
	}
	if len(generator.docs) != 2 {
		t.Fatalf("expected 2 relevant documents, got %d", len(generator.docs))
	}
	if generator.docs[0].ID != "a" || generator.docs[1].ID != "c" {
		t.Fatalf("retrieval order not preserved: %v", generator.docs)
	}
}

func TestRunRewritesThenRetrievesAgain(t *testing.T) {
	first := []Document{{ID: "x", Text: "noise"}}
	second := []Document{{ID: "y", Text: "signal"}}
	retriever := &stubRetriever{batches: [][]Document{first, second}}
	grader := &stubGrader{verdicts: map[string]bool{"signal": true}}
	rewriter := &stubRewriter{rewritten: "improved question"}
	generator := &stubGenerator{answer: "done"}

	w := New(retriever, grader, rewriter, generator, 2, discard())

	state, err := w.Run(context.Background(), "vague question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Rewrites != 1 {
		t.Fatalf("expected 1 rewrite, got %d", state.Rewrites)
	}
	if len(retriever.queries) != 2 {
		t.Fatalf("expected 2 retrievals, got %d", len(retriever.queries))
	}
	if retriever.queries[0] != "vague question" || retriever.queries[1] != "improved question" {
		t.Fatalf("unexpected query sequence: %v", retriever.queries)
	}
	if generator.query != "improved question" {
		t.Fatalf("generation used query %q", generator.query)
	}
}

func TestRunBoundsTheRewriteCycle(t *testing.T) {
	docs := []Document{{ID: "x", Text: "never relevant"}}
	retriever := &stubRetriever{batches: [][]Document{docs}}
	rewriter := &stubRewriter{}
	generator := &stubGenerator{answer: "best effort"}

	w := New(retriever, &stubGrader{}, rewriter, generator, 2, discard())

	state, err := w.Run(context.Background(), "hopeless question")
	if err != nil {
		t.Fatalf("expected a best-effort answer, got error: %v", err)
	}

	if rewriter.calls != 2 {
		t.Fatalf("expected exactly 2 rewrites, got %d", rewriter.calls)
	}
	if state.Rewrites != 2 {
		t.Fatalf("expected state to record 2 rewrites, got %d", state.Rewrites)
	}
	if generator.calls != 1 {
		t.Fatalf("expected exactly 1 generation, got %d", generator.calls)
	}
	if len(generator.docs) != 1 || generator.docs[0].ID != "x" {
		t.Fatalf("expected generation over the unfiltered retrieval, got %v", generator.docs)
	}
	if state.Generation != "best effort" {
		t.Fatalf("unexpected generation: %q", state.Generation)
	}
}

func TestRunZeroBudgetNeverRewrites(t *testing.T) {
	retriever := &stubRetriever{batches: [][]Document{{{ID: "x", Text: "noise"}}}}
	rewriter := &stubRewriter{}
	generator := &stubGenerator{answer: "direct"}

	w := New(retriever, &stubGrader{}, rewriter, generator, 0, discard())

	if _, err := w.Run(context.Background(), "question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rewriter.calls != 0 {
		t.Fatalf("expected no rewrites with a zero budget, got %d", rewriter.calls)
	}
	if len(retriever.queries) != 1 {
		t.Fatalf("expected a single retrieval, got %d", len(retriever.queries))
	}
}

func TestRunGradingFailureSkipsOnlyThatDocument(t *testing.T) {
	docs := []Document{
		{ID: "a", Text: "fails to grade"},
		{ID: "b", Text: "grades fine"},
	}
	grader := &stubGrader{
		verdicts: map[string]bool{"grades fine": true},
		errFor:   "fails to grade",
	}
	generator := &stubGenerator{answer: "ok"}

	w := New(&stubRetriever{batches: [][]Document{docs}}, grader, &stubRewriter{}, generator, 2, discard())

	if _, err := w.Run(context.Background(), "question"); err != nil {
		t.Fatalf("grading failure must not abort the run: %v", err)
	}
	if len(generator.docs) != 1 || generator.docs[0].ID != "b" {
		t.Fatalf("expected only the cleanly graded document, got %v", generator.docs)
	}
}

func TestRunRetrievalFailureAborts(t *testing.T) {
	w := New(&stubRetriever{err: errors.New("index down")}, &stubGrader{}, &stubRewriter{}, &stubGenerator{}, 2, discard())

	_, err := w.Run(context.Background(), "question")
	if err == nil || !strings.Contains(err.Error(), "retrieve") {
		t.Fatalf("expected a retrieval error, got %v", err)
	}
}

func TestRunRewriteFailureAborts(t *testing.T) {
	retriever := &stubRetriever{batches: [][]Document{{{ID: "x", Text: "noise"}}}}
	generator := &stubGenerator{}

	w := New(retriever, &stubGrader{}, &stubRewriter{err: errors.New("llm down")}, generator, 2, discard())

	_, err := w.Run(context.Background(), "question")
	if err == nil || !strings.Contains(err.Error(), "rewrite") {
		t.Fatalf("expected a rewrite error, got %v", err)
	}
	if generator.calls != 0 {
		t.Fatalf("generation must not run after a rewrite failure")
	}
}

func TestRunGenerationFailureAborts(t *testing.T) {
	retriever := &stubRetriever{batches: [][]Document{{{ID: "a", Text: "relevant"}}}}
	grader := &stubGrader{verdicts: map[string]bool{"relevant": true}}

	w := New(retriever, grader, &stubRewriter{}, &stubGenerator{err: errors.New("llm down")}, 2, discard())

	_, err := w.Run(context.Background(), "question")
	if err == nil || !strings.Contains(err.Error(), "generate") {
		t.Fatalf("expected a generation error, got %v", err)
	}
}

type funcLLM func(messages []llm.Message) (string, error)

func (f funcLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return f(messages)
}

var _ llm.Client = (funcLLM)(nil)

func TestRunAnswersContactQuestion(t *testing.T) {
	docs := []Document{
		{ID: "about", SourceURL: "https://kifiya.com/about", Title: "About", Text: "Kifiya builds digital financial services."},
		{ID: "contact", SourceURL: "https://kifiya.com/contact", Title: "Contact Us", Text: "Email info@kifiya.com for inquiries."},
	}

	grader := NewLLMGrader(funcLLM(func(messages []llm.Message) (string, error) {
		if strings.Contains(messages[1].Content, "info@kifiya.com") {
			return "yes", nil
		}
		return "no", nil
	}))
	generator := NewLLMGenerator(funcLLM(func(messages []llm.Message) (string, error) {
		if !strings.Contains(messages[1].Content, "info@kifiya.com") {
			return "", errors.New("context is missing the contact address")
		}
		return "You can reach Kifiya at info@kifiya.com.", nil
	}))
	rewriter := NewLLMRewriter(funcLLM(func(messages []llm.Message) (string, error) {
		return "", errors.New("rewrite should not be needed")
	}))

	w := New(&stubRetriever{batches: [][]Document{docs}}, grader, rewriter, generator, 2, discard())

	state, err := w.Run(context.Background(), "How do I contact Kifiya?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.Rewrites != 0 {
		t.Fatalf("expected no rewrites, got %d", state.Rewrites)
	}
	if len(state.Documents) != 1 || state.Documents[0].ID != "contact" {
		t.Fatalf("expected only the contact chunk to survive grading, got %v", state.Documents)
	}
	if !strings.Contains(state.Generation, "info@kifiya.com") {
		t.Fatalf("answer is missing the contact address: %q", state.Generation)
	}
}

func TestRunRejectsEmptyQuestion(t *testing.T) {
	w := New(&stubRetriever{}, &stubGrader{}, &stubRewriter{}, &stubGenerator{}, 2, discard())

	if _, err := w.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected an error for an empty question")
	}
}
