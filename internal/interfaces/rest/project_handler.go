package rest

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/errors"
)

// ProjectService defines the project operations the handler needs
type ProjectService interface {
	Create(ctx context.Context, req models.CreateProjectRequest, caller models.Caller) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, error)
	Get(ctx context.Context, projectID string) (*models.Project, error)
	StageStatuses(ctx context.Context, projectID string) (*models.StageStatusesView, error)
	UpdateLeadStatus(ctx context.Context, projectID string, req models.LeadStatusUpdate, caller models.Caller) (*models.Project, error)
	LeadHistory(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error)
	Delete(ctx context.Context, projectID string) error
}

// ProjectHandler handles project endpoints
type ProjectHandler struct {
	svc ProjectService
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req models.CreateProjectRequest
	if !BindJSON(c, &req) {
		return
	}

	project, err := h.svc.Create(c.Request.Context(), req, GetCallerFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success":              true,
		constants.FieldMessage: "Project created successfully",
		"projectId":            project.ProjectID,
	})
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	filter := models.ProjectFilter{
		LeadStatus: strings.TrimSpace(c.Query(constants.ParamLeadStatus)),
	}
	if raw := c.Query(constants.ParamWorkflowCompleted); raw != "" {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondAppError(c, errors.NewValidationError(constants.ParamWorkflowCompleted, "must be true or false"))
			return
		}
		filter.WorkflowCompleted = completed
	}

	projects, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), c.Param(constants.ParamID))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// StageStatuses handles GET /api/projects/:id/stage-statuses
func (h *ProjectHandler) StageStatuses(c *gin.Context) {
	view, err := h.svc.StageStatuses(c.Request.Context(), c.Param(constants.ParamID))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateLeadStatus handles PUT /api/projects/:id/lead-status
func (h *ProjectHandler) UpdateLeadStatus(c *gin.Context) {
	var req models.LeadStatusUpdate
	if !BindJSON(c, &req) {
		return
	}

	project, err := h.svc.UpdateLeadStatus(c.Request.Context(), c.Param(constants.ParamID), req, GetCallerFromContext(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		constants.FieldMessage:    "Lead status updated successfully",
		constants.ParamLeadStatus: project.LeadStatus,
	})
}

// LeadHistory handles GET /api/projects/:id/lead-history
func (h *ProjectHandler) LeadHistory(c *gin.Context) {
	history, err := h.svc.LeadHistory(c.Request.Context(), c.Param(constants.ParamID))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// Delete handles DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param(constants.ParamID)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":              true,
		constants.FieldMessage: "Project deleted successfully",
	})
}
