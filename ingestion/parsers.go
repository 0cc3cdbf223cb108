package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ParsedDocument is the parser output: a title plus ordered chunks ready
// for embedding.
type ParsedDocument struct {
	Title  string
	Chunks []Chunk
}

type DocumentParser interface {
	Parse(path string, data []byte) (ParsedDocument, error)
}

// ParserFor selects a parser by file extension.
func ParserFor(path string) (DocumentParser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return markdownParser{}, nil
	case ".pdf":
		return pdfParser{}, nil
	case ".csv":
		return csvParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported document format: %s", path)
	}
}

type markdownParser struct{}

func (markdownParser) Parse(path string, data []byte) (ParsedDocument, error) {
	content := string(data)
	title := ExtractTitle(content, filepath.Base(path))

	chunks := SplitMarkdownByHeaders(content)
	if len(chunks) <= 1 {
		chunks = ChunkParagraphs(content, defaultChunkSize, defaultChunkOverlap)
	}

	return ParsedDocument{Title: title, Chunks: chunks}, nil
}

type pdfParser struct{}

func (pdfParser) Parse(path string, data []byte) (ParsedDocument, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return ParsedDocument{}, fmt.Errorf("read pdf text: %w", err)
	}

	content := buf.String()
	title := firstNonEmptyLine(content)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return ParsedDocument{
		Title:  title,
		Chunks: ChunkParagraphs(content, defaultChunkSize, defaultChunkOverlap),
	}, nil
}

type csvParser struct{}

func (csvParser) Parse(path string, data []byte) (ParsedDocument, error) {
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return ParsedDocument{}, fmt.Errorf("parse csv: %w", err)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if len(records) == 0 {
		return ParsedDocument{Title: title}, nil
	}

	headers := records[0]
	var sb strings.Builder
	for idx, row := range records[1:] {
		sb.WriteString(formatCSVRow(headers, row, idx))
		sb.WriteString("\n")
	}

	return ParsedDocument{
		Title:  title,
		Chunks: ChunkParagraphs(sb.String(), defaultChunkSize, 0),
	}, nil
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d:", idx+1))

	limit := len(row)
	for i := 0; i < limit; i++ {
		header := fmt.Sprintf("Column %d", i+1)
		if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
			header = strings.TrimSpace(headers[i])
		}
		builder.WriteString(fmt.Sprintf(" %s: %s;", header, strings.TrimSpace(row[i])))
	}

	return builder.String()
}

func firstNonEmptyLine(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
