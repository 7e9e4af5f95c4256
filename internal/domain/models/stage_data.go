package models

import (
	"encoding/json"
	"time"
)

// StageStatus is the status recorded on a stage data row
type StageStatus string

const (
	StatusPending   StageStatus = "PENDING"
	StatusSubmitted StageStatus = "SUBMITTED"
	StatusApproved  StageStatus = "APPROVED"
	StatusRejected  StageStatus = "REJECTED"
	StatusSkipped   StageStatus = "SKIPPED"
)

// Valid reports whether s is a known stage status
func (s StageStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusApproved, StatusRejected, StatusSkipped:
		return true
	}
	return false
}

// IsComplete reports whether the status satisfies a dependency on the stage
func (s StageStatus) IsComplete() bool {
	return s == StatusApproved || s == StatusSubmitted
}

// RequiresApprove reports whether recording s needs the stage's approve permission
// rather than its edit permission.
func (s StageStatus) RequiresApprove() bool {
	return s == StatusApproved || s == StatusRejected
}

// StageDataRow is one entry of the append-only stage data log
type StageDataRow struct {
	ID             int64           `json:"id"`
	InstanceID     int64           `json:"instance_id"`
	StageID        *int64          `json:"stage_id"`
	Status         StageStatus     `json:"status"`
	FormData       json.RawMessage `json:"form_data"`
	RejectionNotes *string         `json:"rejection_notes"`
	CompletedAt    *time.Time      `json:"completed_at"`
	ActionByUserID *int64          `json:"action_by_user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// SubmitStageRequest is the payload for recording a stage outcome
type SubmitStageRequest struct {
	StageID        int64           `json:"stage_id" binding:"required"`
	Status         StageStatus     `json:"status"`
	FormData       json.RawMessage `json:"form_data"`
	RejectionNotes *string         `json:"rejection_notes"`
}

// SubmitStageResult is the outcome of a successful submission
type SubmitStageResult struct {
	Data          StageDataRow `json:"data"`
	IsEdit        bool         `json:"is_edit"`
	RejectToStage *StageRef    `json:"reject_to_stage,omitempty"`
}

// UserRef identifies the user who acted on a row
type UserRef struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}
