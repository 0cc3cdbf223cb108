package ingestion

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kifiya-ai/kavas/crawler"
	"github.com/kifiya-ai/kavas/embeddings"
	"github.com/kifiya-ai/kavas/index"
	"github.com/kifiya-ai/kavas/knowledge"
)

// Service turns crawled pages and local documents into embedded index
// records. The knowledge graph is optional; when present every ingested
// page is mirrored into it.
type Service struct {
	store     index.Store
	embedder  embeddings.Embedder
	graph     *knowledge.Graph
	namespace string
	logger    *log.Logger
}

func New(store index.Store, embedder embeddings.Embedder, graph *knowledge.Graph, namespace string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		store:     store,
		embedder:  embedder,
		graph:     graph,
		namespace: namespace,
		logger:    logger,
	}
}

// ChunkID derives a stable identifier from the chunk's source and its
// position within it. Re-ingesting the same source overwrites the same
// rows instead of accumulating duplicates.
func ChunkID(source string, offset int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", source, offset))).String()
}

// IngestPages chunks, embeds and upserts crawled pages. Returns the
// number of chunks written.
func (s *Service) IngestPages(ctx context.Context, pages []crawler.Page) (int, error) {
	var records []index.Record
	var texts []string

	for _, page := range pages {
		chunks := SplitMarkdownByHeaders(page.Content)
		if len(chunks) <= 1 {
			chunks = ChunkParagraphs(page.Content, defaultChunkSize, defaultChunkOverlap)
		}

		for offset, chunk := range chunks {
			if strings.TrimSpace(chunk.Text) == "" {
				continue
			}

			records = append(records, index.Record{
				ID:        ChunkID(page.URL, offset),
				SourceURL: page.URL,
				Title:     page.Title,
				Section:   chunk.Section,
				Text:      chunk.Text,
			})
			texts = append(texts, chunk.Text)
		}

		if s.graph != nil {
			if err := s.graph.SyncPage(ctx, knowledge.Page{URL: page.URL, Title: page.Title, Links: page.Links}); err != nil {
				s.logger.Printf("ingestion: graph sync failed for %s: %v", page.URL, err)
			}
		}
	}

	if len(records) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, texts, embeddings.ModePassage)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(records) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(records))
	}

	for i := range records {
		records[i].Embedding = vectors[i]
	}

	if err := s.store.Upsert(ctx, s.namespace, records); err != nil {
		return 0, fmt.Errorf("upsert chunks: %w", err)
	}

	s.logger.Printf("ingestion: indexed %d chunks from %d pages", len(records), len(pages))
	return len(records), nil
}

// IngestDirectory walks dir and ingests every supported document.
// Files that fail to parse are logged and skipped.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (int, error) {
	var pages []crawler.Page

	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		parser, err := ParserFor(path)
		if err != nil {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Printf("ingestion: read %s failed: %v", path, err)
			return nil
		}

		doc, err := parser.Parse(path, data)
		if err != nil {
			s.logger.Printf("ingestion: parse %s failed: %v", path, err)
			return nil
		}

		var sb strings.Builder
		for _, chunk := range doc.Chunks {
			sb.WriteString(chunk.Text)
			sb.WriteString("\n\n")
		}

		pages = append(pages, crawler.Page{
			URL:     "file://" + path,
			Title:   doc.Title,
			Content: sb.String(),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", dir, err)
	}

	return s.IngestPages(ctx, pages)
}
