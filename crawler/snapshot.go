package crawler

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveSnapshot writes the full crawl result to a JSON file in one batch.
func SaveSnapshot(path string, pages []Page) error {
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("encode crawl snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write crawl snapshot: %w", err)
	}
	return nil
}

func LoadSnapshot(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crawl snapshot: %w", err)
	}

	var pages []Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("decode crawl snapshot: %w", err)
	}
	return pages, nil
}
