package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/query"
)

var stageColumns = []string{
	"id", "workflow_id", "name", "type", "form_schema", "stage_config", "permissions",
	"reject_to_stage_id", "skip_condition", "ui_position", "created_at", "updated_at",
}

// StageRepository persists workflow stages and the dependency edges between them
type StageRepository struct {
	db Executor
}

func NewStageRepository(db Executor) *StageRepository {
	return &StageRepository{db: db}
}

func scanStage(s rowScanner) (models.Stage, error) {
	var st models.Stage
	var formSchema, stageConfig, permissions, uiPosition []byte
	var rejectTo sql.NullInt64
	var skip sql.NullString

	err := s.Scan(&st.ID, &st.WorkflowID, &st.Name, &st.Type, &formSchema, &stageConfig, &permissions,
		&rejectTo, &skip, &uiPosition, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return st, err
	}

	st.FormSchema = jsonColumn(formSchema)
	st.StageConfig = jsonColumn(stageConfig)
	st.RejectToStageID = int64Ptr(rejectTo)
	st.SkipCondition = stringPtr(skip)
	if len(permissions) > 0 {
		if err := json.Unmarshal(permissions, &st.Permissions); err != nil {
			return st, fmt.Errorf("stage %d has malformed permissions: %w", st.ID, err)
		}
	}
	if len(uiPosition) > 0 {
		if err := json.Unmarshal(uiPosition, &st.UIPosition); err != nil {
			return st, fmt.Errorf("stage %d has malformed ui_position: %w", st.ID, err)
		}
	}
	st.ApplyDefaults()
	return st, nil
}

func (r *StageRepository) queryStages(ctx context.Context, q query.QueryResult) ([]models.Stage, error) {
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages: %w", err)
	}
	defer rows.Close()

	stages := make([]models.Stage, 0)
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}
	return stages, rows.Err()
}

// ListByWorkflow returns the workflow's stages ordered by id
func (r *StageRepository) ListByWorkflow(ctx context.Context, workflowID int64) ([]models.Stage, error) {
	q := query.From(constants.TableWorkflowStages).
		Select(stageColumns...).
		Where("`workflow_id` = ?", workflowID).
		OrderBy("id", "ASC").
		Build()
	return r.queryStages(ctx, q)
}

// FindByID returns nil when the stage does not exist
func (r *StageRepository) FindByID(ctx context.Context, id int64) (*models.Stage, error) {
	q := query.From(constants.TableWorkflowStages).Select(stageColumns...).Where("`id` = ?", id).Build()

	st, err := scanStage(executorFor(ctx, r.db).QueryRowContext(ctx, q.SQL, q.Params...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stage %d: %w", id, err)
	}
	return &st, nil
}

// FindByIDs returns the stages that exist among ids, keyed by id
func (r *StageRepository) FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Stage, error) {
	out := make(map[int64]models.Stage, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	q := query.From(constants.TableWorkflowStages).Select(stageColumns...).WhereIn("`id`", int64Args(ids)).Build()
	stages, err := r.queryStages(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, st := range stages {
		out[st.ID] = st
	}
	return out, nil
}

func stageValues(st *models.Stage) (map[string]interface{}, error) {
	permissions, err := json.Marshal(st.Permissions.Normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to encode permissions: %w", err)
	}
	position, err := json.Marshal(st.UIPosition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ui_position: %w", err)
	}
	return map[string]interface{}{
		"workflow_id":        st.WorkflowID,
		"name":               st.Name,
		"type":               string(st.Type),
		"form_schema":        jsonValue(st.FormSchema),
		"stage_config":       jsonValue(st.StageConfig),
		"permissions":        string(permissions),
		"reject_to_stage_id": st.RejectToStageID,
		"skip_condition":     st.SkipCondition,
		"ui_position":        string(position),
		"updated_at":         st.UpdatedAt,
	}, nil
}

// Create inserts st and sets its generated id
func (r *StageRepository) Create(ctx context.Context, st *models.Stage) error {
	st.CreatedAt = timestamp(st.CreatedAt)
	st.UpdatedAt = st.CreatedAt

	values, err := stageValues(st)
	if err != nil {
		return err
	}
	values["created_at"] = st.CreatedAt

	q := query.Insert(constants.TableWorkflowStages, values).Build()
	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return fmt.Errorf("failed to create stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read stage id: %w", err)
	}
	st.ID = id
	return nil
}

// Update replaces every column of st, including its workflow. It reports
// false when no stage with st's id exists.
func (r *StageRepository) Update(ctx context.Context, st *models.Stage) (bool, error) {
	st.UpdatedAt = timestamp(st.UpdatedAt)

	values, err := stageValues(st)
	if err != nil {
		return false, err
	}

	q := query.Update(constants.TableWorkflowStages).
		Set(values).
		Where("`id` = ?", st.ID).
		Build()

	res, err := executorFor(ctx, r.db).ExecContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return false, fmt.Errorf("failed to update stage %d: %w", st.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReplaceParents sets the parent edges of childID to exactly parentIDs
func (r *StageRepository) ReplaceParents(ctx context.Context, childID int64, parentIDs []int64) error {
	exec := executorFor(ctx, r.db)

	del := query.Delete(constants.TableStageDependencies).Where("`child_stage_id` = ?", childID).Build()
	if _, err := exec.ExecContext(ctx, del.SQL, del.Params...); err != nil {
		return fmt.Errorf("failed to clear dependencies of stage %d: %w", childID, err)
	}
	if len(parentIDs) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(parentIDs))
	for _, parentID := range parentIDs {
		rows = append(rows, []interface{}{parentID, childID})
	}
	ins := query.BulkInsert(constants.TableStageDependencies, []string{"parent_stage_id", "child_stage_id"}, rows).Build()
	if _, err := exec.ExecContext(ctx, ins.SQL, ins.Params...); err != nil {
		return fmt.Errorf("failed to write dependencies of stage %d: %w", childID, err)
	}
	return nil
}

// EdgesForWorkflow returns every dependency whose child belongs to the workflow
func (r *StageRepository) EdgesForWorkflow(ctx context.Context, workflowID int64) ([]models.StageDependency, error) {
	q := query.From(constants.TableStageDependencies).
		Select("`stage_dependencies`.`id`", "`stage_dependencies`.`parent_stage_id`",
			"`stage_dependencies`.`child_stage_id`", "`stage_dependencies`.`condition_logic`").
		Join("INNER", constants.TableWorkflowStages, "c", "`c`.`id` = `stage_dependencies`.`child_stage_id`").
		Where("`c`.`workflow_id` = ?", workflowID).
		OrderBy("`stage_dependencies`.`id`", "ASC").
		Build()

	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()

	edges := make([]models.StageDependency, 0)
	for rows.Next() {
		var d models.StageDependency
		var logic sql.NullString
		if err := rows.Scan(&d.ID, &d.ParentStageID, &d.ChildStageID, &logic); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		d.ConditionLogic = stringPtr(logic)
		edges = append(edges, d)
	}
	return edges, rows.Err()
}

// ParentsOf returns the stages childID depends on
func (r *StageRepository) ParentsOf(ctx context.Context, childID int64) ([]models.StageRef, error) {
	q := query.From(constants.TableStageDependencies).
		Select("`s`.`id`", "`s`.`name`").
		Join("INNER", constants.TableWorkflowStages, "s", "`s`.`id` = `stage_dependencies`.`parent_stage_id`").
		Where("`stage_dependencies`.`child_stage_id` = ?", childID).
		OrderBy("`s`.`id`", "ASC").
		Build()
	return r.queryRefs(ctx, q)
}

// ChildrenOf returns the stages that depend on parentID
func (r *StageRepository) ChildrenOf(ctx context.Context, parentID int64) ([]models.StageRef, error) {
	q := query.From(constants.TableStageDependencies).
		Select("`s`.`id`", "`s`.`name`").
		Join("INNER", constants.TableWorkflowStages, "s", "`s`.`id` = `stage_dependencies`.`child_stage_id`").
		Where("`stage_dependencies`.`parent_stage_id` = ?", parentID).
		OrderBy("`s`.`id`", "ASC").
		Build()
	return r.queryRefs(ctx, q)
}

func (r *StageRepository) queryRefs(ctx context.Context, q query.QueryResult) ([]models.StageRef, error) {
	rows, err := executorFor(ctx, r.db).QueryContext(ctx, q.SQL, q.Params...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage references: %w", err)
	}
	defer rows.Close()

	refs := make([]models.StageRef, 0)
	for rows.Next() {
		var ref models.StageRef
		if err := rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("failed to scan stage reference: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
