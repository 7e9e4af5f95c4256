package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

var instanceColumns = []string{"id", "workflow_id", "entity_id", "entity_type", "status", "created_at", "updated_at"}

// InstanceRepository persists workflow instances
type InstanceRepository struct {
	db Executor
}

func NewInstanceRepository(db Executor) *InstanceRepository {
	return &InstanceRepository{db: db}
}

func scanInstance(s rowScanner) (models.Instance, error) {
	var in models.Instance
	err := s.Scan(&in.ID, &in.WorkflowID, &in.EntityID, &in.EntityType, &in.Status, &in.CreatedAt, &in.UpdatedAt)
	return in, err
}

// Create inserts in and sets its generated id
func (r *InstanceRepository) Create(ctx context.Context, in *models.Instance) error {
	in.CreatedAt = timestamp(in.CreatedAt)
	in.UpdatedAt = in.CreatedAt
	if in.Status == "" {
		in.Status = models.InstanceInProgress
	}

	q := query.Insert(constants.TableWorkflowInstances, map[string]interface{}{
		"workflow_id": in.WorkflowID,
		"entity_id":   in.EntityID,
		"entity_type": in.EntityType,
		"status":      string(in.Status),
		"created_at":  in.CreatedAt,
		"updated_at":  in.UpdatedAt,
	}).Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("failed to create workflow instance: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read workflow instance id: %w", err)
	}
	in.ID = id
	return nil
}

// FindByID returns nil when the instance does not exist
func (r *InstanceRepository) FindByID(ctx context.Context, id int64) (*models.Instance, error) {
	q := query.From(constants.TableWorkflowInstances).Select(instanceColumns...).Where("`id` = ?", id).Build()

	in, err := scanInstance(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find workflow instance %d: %w", id, err)
	}
	return &in, nil
}

// FindLatestForEntity returns the most recently created instance attached to
// the entity, or nil when there is none.
func (r *InstanceRepository) FindLatestForEntity(ctx context.Context, entityID int64, entityType string) (*models.Instance, error) {
	q := query.From(constants.TableWorkflowInstances).
		Select(instanceColumns...).
		Where("`entity_id` = ?", entityID).
		Where("`entity_type` = ?", entityType).
		OrderBy("created_at", "DESC").
		OrderBy("id", "DESC").
		Limit(1).
		Build()

	in, err := scanInstance(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find instance for entity %d: %w", entityID, err)
	}
	return &in, nil
}

// FindLatestForEntities returns the latest instance per entity, keyed by entity id
func (r *InstanceRepository) FindLatestForEntities(ctx context.Context, entityIDs []int64, entityType string) (map[int64]models.Instance, error) {
	out := make(map[int64]models.Instance, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}

	q := query.From(constants.TableWorkflowInstances).
		Select(instanceColumns...).
		WhereIn("`entity_id`", int64Args(entityIDs)).
		Where("`entity_type` = ?", entityType).
		OrderBy("created_at", "ASC").
		OrderBy("id", "ASC").
		Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow instances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow instance: %w", err)
		}
		// ascending order, so later rows win
		out[in.EntityID] = in
	}
	return out, rows.Err()
}

// DeleteForEntity removes every instance of the entity along with its stage data
func (r *InstanceRepository) DeleteForEntity(ctx context.Context, entityID int64, entityType string) error {
	exec := executorFor(ctx, r.db)

	data := query.Delete(constants.TableInstanceStageData).
		Where(fmt.Sprintf("`instance_id` IN (SELECT `id` FROM `%s` WHERE `entity_id` = ? AND `entity_type` = ?)",
			constants.TableWorkflowInstances), entityID, entityType).
		Build()
	if _, err := exec.ExecContext(ctx, data.SQL, data.Params...); err != nil {
		return fmt.Errorf("failed to delete stage data for entity %d: %w", entityID, err)
	}

	inst := query.Delete(constants.TableWorkflowInstances).
		Where("`entity_id` = ?", entityID).
		Where("`entity_type` = ?", entityType).
		Build()
	if _, err := exec.ExecContext(ctx, inst.SQL, inst.Params...); err != nil {
		return fmt.Errorf("failed to delete instances for entity %d: %w", entityID, err)
	}
	return nil
}
