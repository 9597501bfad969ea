package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pogoda1/parsik/internal/syncq"
)

// Append inserts one audit entry. Rows are never updated, so replaying the
// same entry is ignored.
func (s *Store) Append(ctx context.Context, e syncq.AuditEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("audit entry id: %w", err)
	}

	var response []byte
	if len(e.ResponseFromServer) > 0 {
		response = []byte(e.ResponseFromServer)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO processing_log (id, item_id, payload, response, post_error, initial_event, model, escalated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		id, e.ItemID, []byte(e.Payload), response, e.PostError, e.InitialEvent, e.Model, e.Escalated, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]syncq.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, item_id, payload, response, post_error, initial_event, model, escalated, created_at
		FROM processing_log
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query processing log: %w", err)
	}
	defer rows.Close()

	var out []syncq.AuditEntry
	for rows.Next() {
		var (
			id       uuid.UUID
			payload  []byte
			response []byte
			created  time.Time
			e        syncq.AuditEntry
		)
		if err := rows.Scan(&id, &e.ItemID, &payload, &response, &e.PostError, &e.InitialEvent, &e.Model, &e.Escalated, &created); err != nil {
			return nil, fmt.Errorf("scan processing log: %w", err)
		}
		e.ID = id.String()
		e.Payload = json.RawMessage(payload)
		if len(response) > 0 {
			e.ResponseFromServer = json.RawMessage(response)
		}
		e.Timestamp = created.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
