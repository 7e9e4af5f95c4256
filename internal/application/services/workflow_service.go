package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/domain"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
	"github.com/bhuvesh-solnce/backend/pkg/expression"
)

// ExpressionValidator compiles skip and edge conditions without running them
type ExpressionValidator interface {
	Validate(expression string) error
}

// WorkflowService manages workflow definitions and their stage graphs
type WorkflowService struct {
	workflows ports.WorkflowStore
	stages    ports.StageGraphStore
	tx        ports.Transactor
	exprs     ExpressionValidator
	now       func() time.Time
	log       *logrus.Entry
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(workflows ports.WorkflowStore, stages ports.StageGraphStore, tx ports.Transactor, exprs ExpressionValidator) *WorkflowService {
	if exprs == nil {
		exprs = expression.NewEngine()
	}
	return &WorkflowService{
		workflows: workflows,
		stages:    stages,
		tx:        tx,
		exprs:     exprs,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logrus.WithField("component", "workflow"),
	}
}

// ListWorkflows returns every workflow, newest first
func (s *WorkflowService) ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error) {
	workflows, err := s.workflows.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	if workflows == nil {
		workflows = []models.WorkflowDefinition{}
	}
	return workflows, nil
}

// CreateWorkflow registers a new active workflow
func (s *WorkflowService) CreateWorkflow(ctx context.Context, req models.CreateWorkflowRequest) (*models.WorkflowDefinition, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.NewValidationError("name", "workflow name is required")
	}
	moduleType := req.ModuleType
	if moduleType == "" {
		moduleType = models.ModuleProject
	}
	if !moduleType.Valid() {
		return nil, appErrors.NewValidationError("module_type", fmt.Sprintf("unsupported module type %q", req.ModuleType))
	}

	w := &models.WorkflowDefinition{
		Name:        name,
		ModuleType:  moduleType,
		Description: req.Description,
		IsActive:    true,
		CreatedAt:   s.now(),
	}
	if err := s.workflows.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	s.log.WithFields(logrus.Fields{"workflow_id": w.ID, "module_type": w.ModuleType}).Info("Workflow created")
	return w, nil
}

func (s *WorkflowService) requireWorkflow(ctx context.Context, workflowID int64) (*models.WorkflowDefinition, error) {
	w, err := s.workflows.FindByID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %d: %w", workflowID, err)
	}
	if w == nil {
		return nil, appErrors.NewNotFoundError("Workflow", strconv.FormatInt(workflowID, 10))
	}
	return w, nil
}

// loadGraph reads the stages and edges of a workflow
func (s *WorkflowService) loadGraph(ctx context.Context, workflowID int64) (*domain.StageGraph, error) {
	stages, err := s.stages.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	edges, err := s.stages.EdgesForWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage dependencies: %w", err)
	}
	return domain.NewStageGraph(stages, edges), nil
}

// ListStages returns the stages of a workflow in id order, each with the
// ids of the stages it depends on. An unknown workflow yields an empty list.
func (s *WorkflowService) ListStages(ctx context.Context, workflowID int64) ([]models.StageWithDependsOn, error) {
	graph, err := s.loadGraph(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return graph.WithDependsOn(), nil
}

// UpsertStage replaces the stage named by req.ID when it exists and creates
// a new stage otherwise. A non-nil DependsOn replaces the stage's parents in
// the same transaction.
func (s *WorkflowService) UpsertStage(ctx context.Context, req models.UpsertStageRequest) (*models.Stage, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, appErrors.NewValidationError("name", "stage name is required")
	}
	if req.WorkflowID <= 0 {
		return nil, appErrors.NewValidationError("workflow_id", "workflow_id is required")
	}
	if req.Type != "" && !req.Type.Valid() {
		return nil, appErrors.NewValidationError("type", fmt.Sprintf("unsupported stage type %q", req.Type))
	}
	if _, err := s.requireWorkflow(ctx, req.WorkflowID); err != nil {
		return nil, err
	}

	var parents []int64
	if req.DependsOn != nil {
		parents = dedupeIDs(req.DependsOn)
		if err := s.checkParents(ctx, req.WorkflowID, parents); err != nil {
			return nil, err
		}
	}

	stage := req.ToStage()
	stage.UpdatedAt = s.now()

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var existing *models.Stage
		if stage.ID > 0 {
			found, err := s.stages.FindByID(ctx, stage.ID)
			if err != nil {
				return fmt.Errorf("failed to load stage %d: %w", stage.ID, err)
			}
			existing = found
		}

		if existing != nil {
			stage.CreatedAt = existing.CreatedAt
			if _, err := s.stages.Update(ctx, &stage); err != nil {
				return err
			}
		} else {
			stage.ID = 0
			stage.CreatedAt = stage.UpdatedAt
			if err := s.stages.Create(ctx, &stage); err != nil {
				return err
			}
		}

		if req.DependsOn != nil {
			if err := s.stages.ReplaceParents(ctx, stage.ID, parents); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"workflow_id": stage.WorkflowID,
		"stage_id":    stage.ID,
		"parents":     len(parents),
	}).Info("Stage saved")
	return &stage, nil
}

// checkParents requires every parent id to name a stage of workflowID
func (s *WorkflowService) checkParents(ctx context.Context, workflowID int64, parents []int64) error {
	if len(parents) == 0 {
		return nil
	}
	found, err := s.stages.FindByIDs(ctx, parents)
	if err != nil {
		return fmt.Errorf("failed to load parent stages: %w", err)
	}
	for _, id := range parents {
		parent, ok := found[id]
		if !ok {
			return appErrors.NewValidationError("depends_on", fmt.Sprintf("stage %d does not exist", id))
		}
		if parent.WorkflowID != workflowID {
			return appErrors.NewValidationError("depends_on", fmt.Sprintf("stage %d belongs to another workflow", id))
		}
	}
	return nil
}

// ValidateGraph lints a workflow's graph for cycles, reject targets outside
// the workflow and conditions that do not compile. Nothing is changed.
func (s *WorkflowService) ValidateGraph(ctx context.Context, workflowID int64) (*models.GraphReport, error) {
	if _, err := s.requireWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	stages, err := s.stages.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stages: %w", err)
	}
	edges, err := s.stages.EdgesForWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list stage dependencies: %w", err)
	}
	graph := domain.NewStageGraph(stages, edges)

	report := &models.GraphReport{
		WorkflowID:            workflowID,
		StageCount:            len(stages),
		Cycles:                graph.DetectCycles(),
		DanglingRejectTargets: graph.DanglingRejectTargets(),
		InvalidExpressions:    []models.ExpressionIssue{},
	}
	if report.Cycles == nil {
		report.Cycles = [][]int64{}
	}
	if report.DanglingRejectTargets == nil {
		report.DanglingRejectTargets = []models.StageRef{}
	}

	for _, st := range stages {
		if st.SkipCondition == nil || strings.TrimSpace(*st.SkipCondition) == "" {
			continue
		}
		if err := s.exprs.Validate(*st.SkipCondition); err != nil {
			report.InvalidExpressions = append(report.InvalidExpressions, models.ExpressionIssue{
				StageID:    st.ID,
				Field:      "skip_condition",
				Expression: *st.SkipCondition,
				Error:      err.Error(),
			})
		}
	}
	for _, edge := range edges {
		if edge.ConditionLogic == nil || strings.TrimSpace(*edge.ConditionLogic) == "" {
			continue
		}
		if err := s.exprs.Validate(*edge.ConditionLogic); err != nil {
			parent := edge.ParentStageID
			report.InvalidExpressions = append(report.InvalidExpressions, models.ExpressionIssue{
				StageID:       edge.ChildStageID,
				ParentStageID: &parent,
				Field:         "condition_logic",
				Expression:    *edge.ConditionLogic,
				Error:         err.Error(),
			})
		}
	}

	if !report.Clean() {
		s.log.WithFields(logrus.Fields{
			"workflow_id": workflowID,
			"cycles":      len(report.Cycles),
			"dangling":    len(report.DanglingRejectTargets),
			"expressions": len(report.InvalidExpressions),
		}).Warn("Stage graph has lint findings")
	}
	return report, nil
}

// dedupeIDs returns the distinct ids in ascending order
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
