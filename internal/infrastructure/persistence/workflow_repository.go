package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

var workflowColumns = []string{"id", "name", "module_type", "description", "is_active", "created_at", "updated_at"}

// WorkflowRepository persists workflow definitions
type WorkflowRepository struct {
	db Executor
}

func NewWorkflowRepository(db Executor) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

func scanWorkflow(s rowScanner) (models.WorkflowDefinition, error) {
	var w models.WorkflowDefinition
	var description sql.NullString
	if err := s.Scan(&w.ID, &w.Name, &w.ModuleType, &description, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return w, err
	}
	w.Description = stringPtr(description)
	return w, nil
}

// List returns every workflow, newest first
func (r *WorkflowRepository) List(ctx context.Context) ([]models.WorkflowDefinition, error) {
	q := query.From(constants.TableWorkflows).
		Select(workflowColumns...).
		OrderBy("created_at", "DESC").
		OrderBy("id", "DESC").
		Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	workflows := make([]models.WorkflowDefinition, 0)
	for rows.Next() {
		w, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		workflows = append(workflows, w)
	}
	return workflows, rows.Err()
}

// FindByID returns nil when the workflow does not exist
func (r *WorkflowRepository) FindByID(ctx context.Context, id int64) (*models.WorkflowDefinition, error) {
	q := query.From(constants.TableWorkflows).Select(workflowColumns...).Where("`id` = ?", id).Build()

	w, err := scanWorkflow(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find workflow %d: %w", id, err)
	}
	return &w, nil
}

// Create inserts w and sets its generated id
func (r *WorkflowRepository) Create(ctx context.Context, w *models.WorkflowDefinition) error {
	w.CreatedAt = timestamp(w.CreatedAt)
	w.UpdatedAt = w.CreatedAt

	q := query.Insert(constants.TableWorkflows, map[string]interface{}{
		"name":        w.Name,
		"module_type": string(w.ModuleType),
		"description": w.Description,
		"is_active":   w.IsActive,
		"created_at":  w.CreatedAt,
		"updated_at":  w.UpdatedAt,
	}).Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read workflow id: %w", err)
	}
	w.ID = id
	return nil
}
