// Package ingestion turns crawled pages and local documents into embedded
// chunks in the vector index.
package ingestion

import "strings"

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunk is a passage-sized unit of text plus the section heading it came
// from, when one exists.
type Chunk struct {
	Section string
	Text    string
}

// SplitMarkdownByHeaders splits markdown into chunks at level-3 and level-4
// heading boundaries. Text before the first heading becomes a chunk with an
// empty section. Heading lines stay part of their chunk's text.
func SplitMarkdownByHeaders(content string) []Chunk {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	chunks := make([]Chunk, 0)
	var current []string
	section := ""

	flush := func() {
		text := strings.TrimSpace(strings.Join(current, "\n"))
		if text != "" {
			chunks = append(chunks, Chunk{Section: section, Text: text})
		}
		current = current[:0]
	}

	for _, line := range lines {
		if heading, ok := splitHeading(line); ok {
			flush()
			section = heading
		}
		current = append(current, line)
	}
	flush()

	return chunks
}

func splitHeading(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, prefix := range []string{"#### ", "### "} {
		if strings.HasPrefix(trimmed, prefix) {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			title = strings.Trim(title, "*")
			return strings.TrimSpace(title), true
		}
	}
	return "", false
}

// ChunkParagraphs packs blank-line-separated paragraphs into chunks of
// roughly target characters, carrying the last paragraph over as overlap.
func ChunkParagraphs(content string, target, overlap int) []Chunk {
	clean := strings.ReplaceAll(content, "\r\n", "\n")
	paragraphs := strings.Split(clean, "\n")

	chunks := make([]Chunk, 0)
	current := make([]string, 0)
	currentLen := 0

	for _, paragraph := range paragraphs {
		p := strings.TrimSpace(paragraph)
		if p == "" {
			continue
		}

		if currentLen+len(p) > target && len(current) > 0 {
			chunks = append(chunks, Chunk{Text: strings.Join(current, "\n")})
			if overlap > 0 {
				last := current[len(current)-1]
				if len(last) <= overlap {
					current = []string{last}
					currentLen = len(last)
				} else {
					current = current[:0]
					currentLen = 0
				}
			} else {
				current = current[:0]
				currentLen = 0
			}
		}

		current = append(current, p)
		currentLen += len(p)
	}

	if len(current) > 0 {
		chunks = append(chunks, Chunk{Text: strings.Join(current, "\n")})
	}

	return chunks
}

// ExtractTitle returns the first markdown heading, or the fallback.
func ExtractTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return fallback
}
