// Package store mirrors the processing log into Postgres so results can be
// queried after the local audit file has been rotated away.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS processing_log (
	id            UUID PRIMARY KEY,
	item_id       TEXT NOT NULL,
	payload       JSONB NOT NULL,
	response      JSONB,
	post_error    TEXT NOT NULL DEFAULT '',
	initial_event TEXT NOT NULL,
	model         TEXT NOT NULL DEFAULT '',
	escalated     BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS processing_log_item_id_idx ON processing_log (item_id);
CREATE INDEX IF NOT EXISTS processing_log_created_at_idx ON processing_log (created_at DESC);
`

// Migrate creates the tables if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
