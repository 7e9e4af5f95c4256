package models

import "time"

// ModuleType identifies which CRM module a workflow drives
type ModuleType string

const (
	ModuleProject ModuleType = "PROJECT"
	ModuleLead    ModuleType = "LEAD"
	ModuleTask    ModuleType = "TASK"
)

// Valid reports whether m is a known module type
func (m ModuleType) Valid() bool {
	switch m {
	case ModuleProject, ModuleLead, ModuleTask:
		return true
	}
	return false
}

// WorkflowDefinition is the named container for a stage graph
type WorkflowDefinition struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	ModuleType  ModuleType `json:"module_type"`
	Description *string    `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateWorkflowRequest is the payload for registering a workflow
type CreateWorkflowRequest struct {
	Name        string     `json:"name" binding:"required"`
	ModuleType  ModuleType `json:"module_type"`
	Description *string    `json:"description"`
}

// ExpressionIssue is a skip or edge condition that does not compile
type ExpressionIssue struct {
	StageID       int64  `json:"stage_id"`
	ParentStageID *int64 `json:"parent_stage_id,omitempty"`
	Field         string `json:"field"`
	Expression    string `json:"expression"`
	Error         string `json:"error"`
}

// GraphReport is the advisory lint result for a workflow's stage graph
type GraphReport struct {
	WorkflowID            int64             `json:"workflow_id"`
	StageCount            int               `json:"stage_count"`
	Cycles                [][]int64         `json:"cycles"`
	DanglingRejectTargets []StageRef        `json:"dangling_reject_targets"`
	InvalidExpressions    []ExpressionIssue `json:"invalid_expressions"`
}

// Clean reports whether the lint found nothing
func (r GraphReport) Clean() bool {
	return len(r.Cycles) == 0 && len(r.DanglingRejectTargets) == 0 && len(r.InvalidExpressions) == 0
}
