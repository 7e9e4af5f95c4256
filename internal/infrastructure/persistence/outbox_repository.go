package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/utils"
)

// Outbox event statuses
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
)

// OutboxRepository handles database operations for the outbox pattern.
// Every method joins the transaction carried by ctx, if any.
type OutboxRepository struct {
	db Executor
}

// NewOutboxRepository creates a new OutboxRepository
func NewOutboxRepository(db Executor) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue inserts a new pending event into the outbox
func (r *OutboxRepository) Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error) {
	id := utils.GenerateID()

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_type, payload, status, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, constants.TableOutboxEvents)

	now := timestamp(time.Time{})
	_, err = executorFor(ctx, r.db).ExecContext(ctx, query, id, eventType, string(payloadJSON), OutboxStatusPending, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue event: %w", err)
	}

	return id, nil
}

// GetPendingEvents retrieves pending events ordered by creation time
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]ports.OutboxEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_type, payload, retry_count
		FROM %s
		WHERE status = ?
		ORDER BY created_at ASC
		LIMIT ?
	`, constants.TableOutboxEvents)

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, query, OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var events []ports.OutboxEvent
	for rows.Next() {
		var e ports.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.RetryCount); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// ClaimEvent locks a pending event for processing. It returns false when
// another worker holds it or it is no longer pending.
func (r *OutboxRepository) ClaimEvent(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE id = ? AND status = ?
		FOR UPDATE SKIP LOCKED
	`, constants.TableOutboxEvents)

	var claimedID string
	err := executorFor(ctx, r.db).QueryRowContext(ctx, query, id, OutboxStatusPending).Scan(&claimedID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkProcessed marks an event as delivered
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, processed_at = ?, updated_at = ?
		WHERE id = ?
	`, constants.TableOutboxEvents)

	now := timestamp(time.Time{})
	_, err := executorFor(ctx, r.db).ExecContext(ctx, query, OutboxStatusProcessed, now, now, id)
	return err
}

// MarkFailed marks an event as permanently failed
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, errMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, constants.TableOutboxEvents)

	_, err := executorFor(ctx, r.db).ExecContext(ctx, query, OutboxStatusFailed, errMessage, timestamp(time.Time{}), id)
	return err
}

// IncrementRetry records a failed delivery attempt
func (r *OutboxRepository) IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET retry_count = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`, constants.TableOutboxEvents)

	_, err := executorFor(ctx, r.db).ExecContext(ctx, query, newCount, errMessage, timestamp(time.Time{}), id)
	return err
}

// CleanupProcessed deletes processed events older than cutoff
func (r *OutboxRepository) CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s
		WHERE status = ? AND processed_at < ?
	`, constants.TableOutboxEvents)

	result, err := executorFor(ctx, r.db).ExecContext(ctx, query, OutboxStatusProcessed, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
