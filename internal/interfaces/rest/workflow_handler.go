package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
)

// WorkflowService defines the workflow definition operations the handler needs
type WorkflowService interface {
	ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error)
	CreateWorkflow(ctx context.Context, req models.CreateWorkflowRequest) (*models.WorkflowDefinition, error)
	ListStages(ctx context.Context, workflowID int64) ([]models.StageWithDependsOn, error)
	UpsertStage(ctx context.Context, req models.UpsertStageRequest) (*models.Stage, error)
	ValidateGraph(ctx context.Context, workflowID int64) (*models.GraphReport, error)
}

// ExecutionService defines the runtime operations the handler needs
type ExecutionService interface {
	StartInstance(ctx context.Context, req models.StartInstanceRequest) (*models.Instance, error)
	SubmitStage(ctx context.Context, instanceID int64, req models.SubmitStageRequest, caller models.Caller) (*models.SubmitStageResult, error)
}

// WorkflowHandler handles workflow design and execution endpoints
type WorkflowHandler struct {
	workflows WorkflowService
	execution ExecutionService
}

// NewWorkflowHandler creates a new WorkflowHandler
func NewWorkflowHandler(workflows WorkflowService, execution ExecutionService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows, execution: execution}
}

// ListWorkflows handles GET /api/workflows
func (h *WorkflowHandler) ListWorkflows(c *gin.Context) {
	workflows, err := h.workflows.ListWorkflows(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflows)
}

// CreateWorkflow handles POST /api/workflows
func (h *WorkflowHandler) CreateWorkflow(c *gin.Context) {
	var req models.CreateWorkflowRequest
	if !BindJSON(c, &req) {
		return
	}

	workflow, err := h.workflows.CreateWorkflow(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workflow)
}

// ListStages handles GET /api/workflows/:workflowId/stages
func (h *WorkflowHandler) ListStages(c *gin.Context) {
	workflowID, ok := ParseIDParam(c, constants.ParamWorkflowID)
	if !ok {
		return
	}

	stages, err := h.workflows.ListStages(c.Request.Context(), workflowID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

// ValidateGraph handles GET /api/workflows/:workflowId/validate
func (h *WorkflowHandler) ValidateGraph(c *gin.Context) {
	workflowID, ok := ParseIDParam(c, constants.ParamWorkflowID)
	if !ok {
		return
	}

	report, err := h.workflows.ValidateGraph(c.Request.Context(), workflowID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpsertStage handles POST /api/workflows/stages
func (h *WorkflowHandler) UpsertStage(c *gin.Context) {
	var req models.UpsertStageRequest
	if !BindJSON(c, &req) {
		return
	}

	stage, err := h.workflows.UpsertStage(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stage":   stage,
	})
}

// StartInstance handles POST /api/workflows/instance
func (h *WorkflowHandler) StartInstance(c *gin.Context) {
	var req models.StartInstanceRequest
	if !BindJSON(c, &req) {
		return
	}

	instance, err := h.execution.StartInstance(c.Request.Context(), req)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, instance)
}

// SubmitStage handles POST /api/workflows/instance/:instanceId/submit
func (h *WorkflowHandler) SubmitStage(c *gin.Context) {
	instanceID, ok := ParseIDParam(c, constants.ParamInstanceID)
	if !ok {
		return
	}

	var req models.SubmitStageRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.execution.SubmitStage(c.Request.Context(), instanceID, req, GetCallerFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}

	response := gin.H{
		"success":              true,
		constants.FieldMessage: "Stage submitted successfully",
		"stage_data":           result.Data,
		"is_edit":              result.IsEdit,
	}
	if result.RejectToStage != nil {
		response["reject_to_stage"] = result.RejectToStage
	}
	c.JSON(http.StatusOK, response)
}
