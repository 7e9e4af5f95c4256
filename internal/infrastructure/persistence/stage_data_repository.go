package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

var stageDataColumns = []string{
	"id", "instance_id", "stage_id", "status", "form_data", "rejection_notes",
	"completed_at", "action_by_user_id", "created_at", "updated_at",
}

// StageDataRepository persists the append-only stage data log. Rows are
// always returned newest first: created_at DESC, then id DESC.
type StageDataRepository struct {
	db Executor
}

func NewStageDataRepository(db Executor) *StageDataRepository {
	return &StageDataRepository{db: db}
}

func scanStageData(s rowScanner) (models.StageDataRow, error) {
	var row models.StageDataRow
	var stageID, actionBy sql.NullInt64
	var notes sql.NullString
	var completedAt sql.NullTime
	var formData []byte

	err := s.Scan(&row.ID, &row.InstanceID, &stageID, &row.Status, &formData, &notes,
		&completedAt, &actionBy, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return row, err
	}

	row.StageID = int64Ptr(stageID)
	row.FormData = jsonColumn(formData)
	row.RejectionNotes = stringPtr(notes)
	row.CompletedAt = timePtr(completedAt)
	row.ActionByUserID = int64Ptr(actionBy)
	row.CreatedAt = row.CreatedAt.UTC()
	row.UpdatedAt = row.UpdatedAt.UTC()
	return row, nil
}

func newestFirst(b *query.Builder) *query.Builder {
	return b.OrderBy("created_at", "DESC").OrderBy("id", "DESC")
}

func (r *StageDataRepository) queryRows(ctx context.Context, q query.QueryResult) ([]models.StageDataRow, error) {
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage data: %w", err)
	}
	defer rows.Close()

	out := make([]models.StageDataRow, 0)
	for rows.Next() {
		row, err := scanStageData(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stage data: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListByInstance returns every row of the instance
func (r *StageDataRepository) ListByInstance(ctx context.Context, instanceID int64) ([]models.StageDataRow, error) {
	q := newestFirst(query.From(constants.TableInstanceStageData).
		Select(stageDataColumns...).
		Where("`instance_id` = ?", instanceID)).
		Build()
	return r.queryRows(ctx, q)
}

// ListByInstances returns the rows of each instance, keyed by instance id
func (r *StageDataRepository) ListByInstances(ctx context.Context, instanceIDs []int64) (map[int64][]models.StageDataRow, error) {
	out := make(map[int64][]models.StageDataRow, len(instanceIDs))
	if len(instanceIDs) == 0 {
		return out, nil
	}

	q := newestFirst(query.From(constants.TableInstanceStageData).
		Select(stageDataColumns...).
		WhereIn("`instance_id`", int64Args(instanceIDs))).
		Build()
	rows, err := r.queryRows(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.InstanceID] = append(out[row.InstanceID], row)
	}
	return out, nil
}

// ListForStages returns the instance's rows for the given stages
func (r *StageDataRepository) ListForStages(ctx context.Context, instanceID int64, stageIDs []int64) ([]models.StageDataRow, error) {
	if len(stageIDs) == 0 {
		return []models.StageDataRow{}, nil
	}

	q := newestFirst(query.From(constants.TableInstanceStageData).
		Select(stageDataColumns...).
		Where("`instance_id` = ?", instanceID).
		WhereIn("`stage_id`", int64Args(stageIDs))).
		Build()
	return r.queryRows(ctx, q)
}

// LatestForStage returns the newest row of the stage, or nil when it has none
func (r *StageDataRepository) LatestForStage(ctx context.Context, instanceID, stageID int64) (*models.StageDataRow, error) {
	q := newestFirst(query.From(constants.TableInstanceStageData).
		Select(stageDataColumns...).
		Where("`instance_id` = ?", instanceID).
		Where("`stage_id` = ?", stageID)).
		Limit(1).
		Build()

	row, err := scanStageData(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stage data: %w", err)
	}
	return &row, nil
}

// Append inserts a new row and sets its generated id
func (r *StageDataRepository) Append(ctx context.Context, row *models.StageDataRow) error {
	row.CreatedAt = timestamp(row.CreatedAt)
	row.UpdatedAt = row.CreatedAt

	q := query.Insert(constants.TableInstanceStageData, map[string]interface{}{
		"instance_id":       row.InstanceID,
		"stage_id":          row.StageID,
		"status":            string(row.Status),
		"form_data":         jsonValue(row.FormData),
		"rejection_notes":   row.RejectionNotes,
		"completed_at":      row.CompletedAt,
		"action_by_user_id": row.ActionByUserID,
		"created_at":        row.CreatedAt,
		"updated_at":        row.UpdatedAt,
	}).Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("failed to append stage data: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read stage data id: %w", err)
	}
	row.ID = id
	return nil
}

// Resolve overwrites a PENDING row in place with its outcome
func (r *StageDataRepository) Resolve(ctx context.Context, row *models.StageDataRow) error {
	row.UpdatedAt = timestamp(row.UpdatedAt)

	q := query.Update(constants.TableInstanceStageData).
		Set(map[string]interface{}{
			"status":            string(row.Status),
			"form_data":         jsonValue(row.FormData),
			"rejection_notes":   row.RejectionNotes,
			"completed_at":      row.CompletedAt,
			"action_by_user_id": row.ActionByUserID,
			"updated_at":        row.UpdatedAt,
		}).
		Where("`id` = ?", row.ID).
		Build()

	if _, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...); err != nil {
		return fmt.Errorf("failed to resolve stage data %d: %w", row.ID, err)
	}
	return nil
}
