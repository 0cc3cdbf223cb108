package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Record, error) {
	if s.pool == nil {
		return Record{}, fmt.Errorf("postgres pool is nil")
	}

	var (
		kind    string
		summary string
		turns   []byte
		version int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT kind, summary, turns, version
		FROM chat_histories
		WHERE user_id = $1
	`, userID).Scan(&kind, &summary, &turns, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("query chat history: %w", err)
	}

	rec := Record{
		UserID: userID,
		History: History{
			Kind:    Kind(kind),
			Summary: summary,
		},
		Version: version,
	}
	if err := json.Unmarshal(turns, &rec.History.Turns); err != nil {
		return Record{}, fmt.Errorf("decode chat turns: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	turns, err := json.Marshal(rec.History.Turns)
	if err != nil {
		return fmt.Errorf("encode chat turns: %w", err)
	}

	if rec.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO chat_histories (user_id, kind, summary, turns, version, updated_at)
			VALUES ($1, $2, $3, $4, 1, NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, rec.UserID, string(rec.History.Kind), rec.History.Summary, turns)
		if err != nil {
			return fmt.Errorf("insert chat history: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrVersionConflict
		}
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_histories
		SET kind = $2,
		    summary = $3,
		    turns = $4,
		    version = version + 1,
		    updated_at = NOW()
		WHERE user_id = $1 AND version = $5
	`, rec.UserID, string(rec.History.Kind), rec.History.Summary, turns, rec.Version)
	if err != nil {
		return fmt.Errorf("update chat history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
