package models

import (
	"encoding/json"
	"time"
)

// Project is the sales pipeline entity a PROJECT workflow instance is attached to
type Project struct {
	ID          int64     `json:"id"`
	ProjectID   string    `json:"project_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	WorkflowID  int64     `json:"workflow_id"`
	CreatedBy   int64     `json:"created_by"`
	Status      string    `json:"status"`
	ServiceType *string   `json:"service_type"`
	LeadStatus  *string   `json:"lead_status"`
	Pincode     *string   `json:"pincode"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProjectSummary is a project as listed, with its workflow position
type ProjectSummary struct {
	Project
	InstanceID        *int64 `json:"instance_id"`
	WorkflowLocation  string `json:"workflow_location"`
	WorkflowCompleted bool   `json:"workflow_completed"`
}

// CreateProjectRequest is the payload for opening a new project
type CreateProjectRequest struct {
	FirstName    string        `json:"first_name" binding:"required"`
	LastName     string        `json:"last_name" binding:"required"`
	Email        string        `json:"email" binding:"required,email"`
	Phone        string        `json:"phone" binding:"required"`
	WorkflowID   int64         `json:"workflow_id" binding:"required"`
	ServiceType  *string       `json:"service_type"`
	LeadStatus   *string       `json:"lead_status"`
	Pincode      *string       `json:"pincode"`
	InitialStage *InitialStage `json:"initial_stage"`
}

// InitialStage optionally records the first stage's data at creation time
type InitialStage struct {
	StageID  int64           `json:"stage_id" binding:"required"`
	FormData json.RawMessage `json:"form_data"`
}

// ProjectFilter narrows the project listing
type ProjectFilter struct {
	// LeadStatus is empty or "exclude" for the default exclusions, else an exact value
	LeadStatus string
	// WorkflowCompleted lists only projects whose workflow is complete.
	// When false, completed projects are hidden. When true and LeadStatus
	// is empty, no lead status exclusions apply.
	WorkflowCompleted bool
}

// LeadStatusUpdate is the payload for changing a project's lead status
type LeadStatusUpdate struct {
	LeadStatus string `json:"lead_status" binding:"required"`
	Comment    string `json:"comment"`
}

// LeadHistoryEntry records one lead status change
type LeadHistoryEntry struct {
	ID              int64     `json:"id"`
	ProjectID       string    `json:"project_id"`
	OldStatus       *string   `json:"old_status"`
	NewStatus       string    `json:"new_status"`
	Comment         *string   `json:"comment"`
	ChangedByUserID *int64    `json:"changed_by_user_id"`
	ChangedBy       *UserRef  `json:"changed_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// StageStatusesView is the reconstructed state of a project's workflow
type StageStatusesView struct {
	InstanceID    *int64                    `json:"instance_id"`
	StageStatuses map[string]StatusSnapshot `json:"stage_statuses"`
	Activities    []Activity                `json:"activities"`
}

// StatusSnapshot is the latest state of one stage key
type StatusSnapshot struct {
	ID                  int64           `json:"id"`
	Status              StageStatus     `json:"status"`
	FormData            json.RawMessage `json:"form_data"`
	RejectionNotes      *string         `json:"rejection_notes"`
	CompletedAt         *time.Time      `json:"completed_at"`
	CompletedBy         *UserRef        `json:"completed_by"`
	IsEdited            bool            `json:"is_edited"`
	EditedAt            *time.Time      `json:"edited_at,omitempty"`
	OriginalCompletedAt *time.Time      `json:"original_completed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

// Activity is one entry of the project timeline
type Activity struct {
	ID             int64           `json:"id"`
	StageID        *int64          `json:"stage_id"`
	StageName      string          `json:"stage_name"`
	StageType      StageType       `json:"stage_type"`
	Status         string          `json:"status"`
	FormData       json.RawMessage `json:"form_data"`
	RejectionNotes *string         `json:"rejection_notes"`
	CompletedAt    *time.Time      `json:"completed_at"`
	CompletedBy    *UserRef        `json:"completed_by"`
	CreatedAt      time.Time       `json:"created_at"`
	IsEdit         bool            `json:"is_edit"`
	EditedAt       *time.Time      `json:"edited_at,omitempty"`
}
