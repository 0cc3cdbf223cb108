package workflow

import (
	"context"
	"fmt"

	"github.com/kifiya-ai/kavas/embeddings"
	"github.com/kifiya-ai/kavas/index"
)

// Retriever returns the top-K chunks matching a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

type indexRetriever struct {
	embedder  embeddings.Embedder
	store     index.Store
	namespace string
	topK      int
}

func NewIndexRetriever(embedder embeddings.Embedder, store index.Store, namespace string, topK int) Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &indexRetriever{
		embedder:  embedder,
		store:     store,
		namespace: namespace,
		topK:      topK,
	}
}

func (r *indexRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query}, embeddings.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	matches, err := r.store.Search(ctx, r.namespace, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	documents := make([]Document, len(matches))
	for i, match := range matches {
		documents[i] = Document{
			ID:        match.ID,
			SourceURL: match.SourceURL,
			Title:     match.Title,
			Section:   match.Section,
			Text:      match.Text,
			Score:     match.Score,
		}
	}
	return documents, nil
}
