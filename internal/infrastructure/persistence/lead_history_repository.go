package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

// LeadHistoryRepository persists the lead status audit trail
type LeadHistoryRepository struct {
	db Executor
}

func NewLeadHistoryRepository(db Executor) *LeadHistoryRepository {
	return &LeadHistoryRepository{db: db}
}

// Insert records e and sets its generated id
func (r *LeadHistoryRepository) Insert(ctx context.Context, e *models.LeadHistoryEntry) error {
	e.CreatedAt = timestamp(e.CreatedAt)

	q := query.Insert(constants.TableLeadHistory, map[string]interface{}{
		"project_id":         e.ProjectID,
		"old_status":         e.OldStatus,
		"new_status":         e.NewStatus,
		"comment":            e.Comment,
		"changed_by_user_id": e.ChangedByUserID,
		"created_at":         e.CreatedAt,
	}).Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("failed to record lead history: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListByProject returns the project's history newest first
func (r *LeadHistoryRepository) ListByProject(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error) {
	q := query.From(constants.TableLeadHistory).
		Select("id", "project_id", "old_status", "new_status", "comment", "changed_by_user_id", "created_at").
		Where("`project_id` = ?", projectID).
		OrderBy("created_at", "DESC").
		OrderBy("id", "DESC").
		Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lead history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeadHistoryEntry, 0)
	for rows.Next() {
		var e models.LeadHistoryEntry
		var oldStatus, comment sql.NullString
		var changedBy sql.NullInt64
		if err := rows.Scan(&e.ID, &e.ProjectID, &oldStatus, &e.NewStatus, &comment, &changedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead history: %w", err)
		}
		e.OldStatus = stringPtr(oldStatus)
		e.Comment = stringPtr(comment)
		e.ChangedByUserID = int64Ptr(changedBy)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DeleteByProject removes the project's history
func (r *LeadHistoryRepository) DeleteByProject(ctx context.Context, projectID string) error {
	q := query.Delete(constants.TableLeadHistory).Where("`project_id` = ?", projectID).Build()
	if _, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...); err != nil {
		return fmt.Errorf("failed to delete lead history of %s: %w", projectID, err)
	}
	return nil
}
