// Package workflow runs the retrieval-augmented query pipeline:
// retrieve -> grade -> (rewrite -> retrieve)* -> generate.
package workflow

// Document is a retrieved chunk together with its source metadata.
type Document struct {
	ID        string
	SourceURL string
	Title     string
	Section   string
	Text      string
	Score     float64
}

// State is the mutable record threaded through a single workflow run.
// Query is mutated by rewriting; Rewrites counts how many times that
// happened and never exceeds the workflow's configured bound.
type State struct {
	Query      string
	Documents  []Document
	Generation string
	Rewrites   int
}
