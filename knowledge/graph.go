// Package knowledge maintains the crawled site's link graph in Neo4j and
// answers related-page lookups used to enrich answer sources.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Page struct {
	URL   string
	Title string
	Links []string
}

type RelatedPage struct {
	URL   string
	Title string
}

type Graph struct {
	driver neo4j.DriverWithContext
}

func NewGraph(driver neo4j.DriverWithContext) *Graph {
	return &Graph{driver: driver}
}

// SyncPage upserts the page node and replaces its outgoing LINKS_TO edges.
// Link targets are merged as bare nodes; their titles fill in when the
// targets themselves are synced.
func (g *Graph) SyncPage(ctx context.Context, page Page) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (p:Page {url: $url})
			SET p.title = $title,
			    p.updated_at = datetime()
		`, map[string]any{"url": page.URL, "title": page.Title}); err != nil {
			return nil, fmt.Errorf("upsert page node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (p:Page {url: $url})-[r:LINKS_TO]->(:Page)
			DELETE r
		`, map[string]any{"url": page.URL}); err != nil {
			return nil, fmt.Errorf("remove stale links: %w", err)
		}

		for _, link := range page.Links {
			if link == page.URL {
				continue
			}
			if _, err := tx.Run(ctx, `
				MATCH (p:Page {url: $url})
				MERGE (t:Page {url: $target})
				MERGE (p)-[:LINKS_TO]->(t)
			`, map[string]any{"url": page.URL, "target": link}); err != nil {
				return nil, fmt.Errorf("upsert link edge: %w", err)
			}
		}

		return nil, nil
	})

	return err
}

// RelatedPages returns, for each given URL, the pages linked to or from it.
func (g *Graph) RelatedPages(ctx context.Context, urls []string) (map[string][]RelatedPage, error) {
	if g.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(urls) == 0 {
		return map[string][]RelatedPage{}, nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (p:Page)
		WHERE p.url IN $urls
		OPTIONAL MATCH (p)-[:LINKS_TO]-(r:Page)
		WHERE r.url <> p.url
		RETURN p.url AS url,
		       collect(DISTINCT {url: r.url, title: r.title}) AS related
	`, map[string]any{"urls": urls})
	if err != nil {
		return nil, fmt.Errorf("run related pages query: %w", err)
	}

	related := make(map[string][]RelatedPage, len(urls))
	for result.Next(ctx) {
		record := result.Record()
		urlVal, _ := record.Get("url")
		relatedVal, _ := record.Get("related")

		pageURL, ok := urlVal.(string)
		if !ok {
			continue
		}
		related[pageURL] = convertRelated(relatedVal)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("related pages result error: %w", err)
	}

	return related, nil
}

// Clear removes every page node and its relationships.
func (g *Graph) Clear(ctx context.Context) error {
	if g.driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (p:Page) DETACH DELETE p", nil)
	if err != nil {
		return fmt.Errorf("clear page graph: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("clear page graph: %w", err)
	}
	return nil
}

func convertRelated(value any) []RelatedPage {
	raw, ok := value.([]any)
	if !ok {
		return nil
	}

	pages := make([]RelatedPage, 0, len(raw))
	for _, item := range raw {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pageURL, _ := data["url"].(string)
		title, _ := data["title"].(string)
		if pageURL == "" {
			continue
		}
		pages = append(pages, RelatedPage{URL: pageURL, Title: title})
	}
	return pages
}
