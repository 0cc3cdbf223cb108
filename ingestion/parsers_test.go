package ingestion

import (
	"strings"
	"testing"
)

func TestParserForSelectsByExtension(t *testing.T) {
	for _, path := range []string{"doc.md", "doc.markdown", "doc.pdf", "doc.csv"} {
		if _, err := ParserFor(path); err != nil {
			t.Fatalf("expected a parser for %s: %v", path, err)
		}
	}

	if _, err := ParserFor("doc.txt"); err == nil {
		t.Fatal("expected an error for an unsupported format")
	}
}

func TestMarkdownParserSplitsOnHeaders(t *testing.T) {
	parser, err := ParserFor("guide.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := parser.Parse("guide.md", []byte("# User Guide\n\n### Setup\nInstall it.\n\n### Usage\nRun it."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "User Guide" {
		t.Fatalf("unexpected title: %q", doc.Title)
	}
	if len(doc.Chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(doc.Chunks))
	}
	if doc.Chunks[1].Section != "Setup" || doc.Chunks[2].Section != "Usage" {
		t.Fatalf("sections lost: %+v", doc.Chunks)
	}
}

func TestCSVParserNamesColumns(t *testing.T) {
	parser, err := ParserFor("branches.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, err := parser.Parse("branches.csv", []byte("City,Phone\nAddis Ababa,+251-11-000\nNairobi,+254-20-111\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "branches" {
		t.Fatalf("unexpected title: %q", doc.Title)
	}
	if len(doc.Chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}

	text := doc.Chunks[0].Text
	for _, want := range []string{"Row 1:", "City: Addis Ababa", "Phone: +251-11-000", "Row 2:", "City: Nairobi"} {
		if !strings.Contains(text, want) {
			t.Fatalf("csv text missing %q:\n%s", want, text)
		}
	}
}

func TestCSVParserHandlesEmptyFile(t *testing.T) {
	parser, _ := ParserFor("empty.csv")

	doc, err := parser.Parse("empty.csv", []byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(doc.Chunks))
	}
}
