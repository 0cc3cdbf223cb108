package index

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Upsert(ctx context.Context, namespace string, records []Record) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, record := range records {
		if len(record.Embedding) == 0 {
			err = fmt.Errorf("record %s has no embedding", record.ID)
			return err
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO rag_chunks (id, namespace, source_url, title, section, content, embedding, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			ON CONFLICT (id) DO UPDATE
			SET namespace = EXCLUDED.namespace,
			    source_url = EXCLUDED.source_url,
			    title = EXCLUDED.title,
			    section = EXCLUDED.section,
			    content = EXCLUDED.content,
			    embedding = EXCLUDED.embedding,
			    updated_at = NOW()
		`, record.ID, namespace, record.SourceURL, record.Title, record.Section, record.Text, pgvector.NewVector(record.Embedding)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", record.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Search(ctx context.Context, namespace string, embedding []float32, topK int) ([]Match, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if topK <= 0 {
		topK = 3
	}

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := topK * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT
            id,
            source_url,
            title,
            section,
            content,
            (embedding <-> $1::vector) AS distance
        FROM rag_chunks
        WHERE namespace = $2
        ORDER BY embedding <-> $1::vector
        LIMIT $3
    `, pgvector.NewVector(embedding), namespace, topK)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Match, 0, topK)
	for rows.Next() {
		var item Match
		var distance float64
		if scanErr := rows.Scan(&item.ID, &item.SourceURL, &item.Title, &item.Section, &item.Text, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

func (s *PostgresStore) Clear(ctx context.Context, namespace string) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM rag_chunks WHERE namespace = $1", namespace); err != nil {
		return fmt.Errorf("clear namespace %s: %w", namespace, err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
