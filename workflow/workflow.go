package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const defaultMaxRewrites = 2

// Workflow is the fixed-topology query state machine. A run starts at
// retrieve, grades each retrieved document, and either generates an answer
// from the relevant documents or rewrites the query and retrieves again.
// The rewrite cycle is bounded: once the budget is spent the run generates
// from whatever the last retrieval returned, even if nothing was graded
// relevant.
type Workflow struct {
	retriever   Retriever
	grader      Grader
	rewriter    Rewriter
	generator   Generator
	maxRewrites int
	logger      *log.Logger
}

func New(retriever Retriever, grader Grader, rewriter Rewriter, generator Generator, maxRewrites int, logger *log.Logger) *Workflow {
	if maxRewrites < 0 {
		maxRewrites = defaultMaxRewrites
	}
	if logger == nil {
		logger = log.Default()
	}

	return &Workflow{
		retriever:   retriever,
		grader:      grader,
		rewriter:    rewriter,
		generator:   generator,
		maxRewrites: maxRewrites,
		logger:      logger,
	}
}

// Run executes the workflow for one question and returns the terminal state.
// Retrieval, rewriting, and generation failures abort the run; a grading
// failure only discards the affected document.
func (w *Workflow) Run(ctx context.Context, question string) (State, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return State{}, fmt.Errorf("question cannot be empty")
	}
	if w.retriever == nil || w.grader == nil || w.rewriter == nil || w.generator == nil {
		return State{}, fmt.Errorf("workflow is not fully configured")
	}

	state := State{Query: question}

	for {
		documents, err := w.retriever.Retrieve(ctx, state.Query)
		if err != nil {
			return state, fmt.Errorf("retrieve: %w", err)
		}
		state.Documents = documents

		relevant := w.gradeDocuments(ctx, state.Query, documents)

		if len(relevant) > 0 {
			state.Documents = relevant
			return w.generate(ctx, state)
		}

		if state.Rewrites >= w.maxRewrites {
			w.logger.Printf("rewrite budget exhausted after %d rewrites, generating with %d unfiltered documents", state.Rewrites, len(state.Documents))
			return w.generate(ctx, state)
		}

		rewritten, err := w.rewriter.Rewrite(ctx, state.Query)
		if err != nil {
			return state, fmt.Errorf("rewrite: %w", err)
		}
		state.Rewrites++
		w.logger.Printf("rewrote query (%d/%d): %q", state.Rewrites, w.maxRewrites, rewritten)
		state.Query = rewritten
	}
}

// gradeDocuments keeps relevant documents in their retrieval order. A
// document the grader cannot score counts as not relevant.
func (w *Workflow) gradeDocuments(ctx context.Context, query string, documents []Document) []Document {
	relevant := make([]Document, 0, len(documents))
	for _, doc := range documents {
		ok, err := w.grader.Grade(ctx, query, doc.Text)
		if err != nil {
			w.logger.Printf("grading failed for %s, treating as not relevant: %v", doc.ID, err)
			continue
		}
		if ok {
			relevant = append(relevant, doc)
		}
	}
	return relevant
}

func (w *Workflow) generate(ctx context.Context, state State) (State, error) {
	answer, err := w.generator.Generate(ctx, state.Query, state.Documents)
	if err != nil {
		return state, fmt.Errorf("generate: %w", err)
	}
	state.Generation = answer
	return state, nil
}
