// Package index is the vector store adapter: namespaced upsert and
// similarity search over document chunks.
package index

import "context"

// Record is one retrievable chunk. ID is content-derived (UUIDv5 over the
// source URL and chunk offset), so re-ingesting the same source updates
// existing rows instead of aliasing them under new positional ids.
type Record struct {
	ID        string
	SourceURL string
	Title     string
	Section   string
	Text      string
	Embedding []float32
}

// Match is a search hit ordered by similarity.
type Match struct {
	ID        string
	SourceURL string
	Title     string
	Section   string
	Text      string
	Score     float64
}

type Store interface {
	Upsert(ctx context.Context, namespace string, records []Record) error
	Search(ctx context.Context, namespace string, embedding []float32, topK int) ([]Match, error)
	Clear(ctx context.Context, namespace string) error
}
