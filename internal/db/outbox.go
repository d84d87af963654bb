package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/models"
)

// Outbox queries
func (s *Store) SaveOutbox(ctx context.Context, outbox *models.Outbox) error {
	payload, err := json.Marshal(outbox.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	// Dedup key is globally unique: re-issuing a logical event is a no-op.
	_, err = s.q.Exec(ctx,
		`INSERT INTO outbox (id, type, status, payload, dedup_key, retries, max_retries, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (dedup_key) DO NOTHING`,
		outbox.ID, outbox.Type, outbox.Status, payload, outbox.DedupKey, outbox.Retries, outbox.MaxRetries, outbox.CreatedAt,
	)
	return err
}

// ListPending returns up to limit deliverable entries oldest-first:
// PENDING rows plus IN_PROGRESS rows whose lease already expired.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.Outbox, error) {
	rows, err := s.q.Query(ctx,
		`SELECT id, type, status, payload, dedup_key, retries, max_retries, sent_at, in_progress_until, last_error, created_at
		 FROM outbox
		 WHERE status = $1 OR (status = $2 AND in_progress_until < NOW())
		 ORDER BY created_at ASC LIMIT $3`,
		models.OutboxPending, models.OutboxInProgress, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Outbox
	for rows.Next() {
		var (
			entry   models.Outbox
			payload []byte
		)
		if err := rows.Scan(&entry.ID, &entry.Type, &entry.Status, &payload, &entry.DedupKey,
			&entry.Retries, &entry.MaxRetries, &entry.SentAt, &entry.InProgressUntil, &entry.LastError, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal outbox payload: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkInProgress claims the entry with a lease. The WHERE clause doubles
// as a compare-and-swap: a second worker racing on the same row loses and
// gets ok=false.
func (s *Store) MarkInProgress(ctx context.Context, outboxID uuid.UUID, until time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE outbox SET status = $1, in_progress_until = $2
		 WHERE id = $3 AND (status = $4 OR (status = $1 AND in_progress_until < NOW()))`,
		models.OutboxInProgress, until, outboxID, models.OutboxPending,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) MarkSent(ctx context.Context, outboxID uuid.UUID, sentAt time.Time) error {
	_, err := s.q.Exec(ctx,
		`UPDATE outbox SET status = $1, sent_at = $2, in_progress_until = NULL WHERE id = $3`,
		models.OutboxSent, sentAt, outboxID,
	)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE outbox SET status = $1, last_error = $2, in_progress_until = NULL WHERE id = $3`,
		models.OutboxFailed, lastError, outboxID,
	)
	return err
}

func (s *Store) Requeue(ctx context.Context, outboxID uuid.UUID, lastError string) error {
	_, err := s.q.Exec(ctx,
		`UPDATE outbox SET status = $1, retries = retries + 1, last_error = $2, in_progress_until = NULL
		 WHERE id = $3`,
		models.OutboxPending, lastError, outboxID,
	)
	return err
}

// ExistsByDedupKeys reports, for every requested key, whether an outbox
// row carries it. Missing keys map to false.
func (s *Store) ExistsByDedupKeys(ctx context.Context, dedupKeys []string) (map[string]bool, error) {
	result := make(map[string]bool, len(dedupKeys))
	for _, key := range dedupKeys {
		result[key] = false
	}
	if len(dedupKeys) == 0 {
		return result, nil
	}

	rows, err := s.q.Query(ctx,
		`SELECT dedup_key FROM outbox WHERE dedup_key = ANY($1)`,
		dedupKeys,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		result[key] = true
	}
	return result, rows.Err()
}
