package rest

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups every REST handler mounted by RegisterRoutes
type Handlers struct {
	Health    *HealthHandler
	Workflows *WorkflowHandler
	Projects  *ProjectHandler
}

// RegisterRoutes mounts the health probe and the authenticated API
func RegisterRoutes(router *gin.Engine, h Handlers, requireAuth gin.HandlerFunc) {
	router.GET("/health", h.Health.Health)

	api := router.Group("/api", requireAuth)
	{
		workflows := api.Group("/workflows")
		workflows.GET("", h.Workflows.ListWorkflows)
		workflows.POST("", h.Workflows.CreateWorkflow)
		workflows.GET("/:workflowId/stages", h.Workflows.ListStages)
		workflows.GET("/:workflowId/validate", h.Workflows.ValidateGraph)
		workflows.POST("/stages", h.Workflows.UpsertStage)
		workflows.POST("/instance", h.Workflows.StartInstance)
		workflows.POST("/instance/:instanceId/submit", h.Workflows.SubmitStage)

		projects := api.Group("/projects")
		projects.POST("", h.Projects.Create)
		projects.GET("", h.Projects.List)
		projects.GET("/:id", h.Projects.Get)
		projects.GET("/:id/stage-statuses", h.Projects.StageStatuses)
		projects.PUT("/:id/lead-status", h.Projects.UpdateLeadStatus)
		projects.GET("/:id/lead-history", h.Projects.LeadHistory)
		projects.DELETE("/:id", h.Projects.Delete)
	}
}
