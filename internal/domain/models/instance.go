package models

import "time"

// InstanceStatus is the advisory status of a workflow instance
type InstanceStatus string

const (
	InstanceInProgress InstanceStatus = "IN_PROGRESS"
	InstanceCompleted  InstanceStatus = "COMPLETED"
	InstanceHalted     InstanceStatus = "HALTED"
	InstanceCancelled  InstanceStatus = "CANCELLED"
)

// Instance binds a workflow to one business entity
type Instance struct {
	ID         int64          `json:"id"`
	WorkflowID int64          `json:"workflow_id"`
	EntityID   int64          `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	Status     InstanceStatus `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// StartInstanceRequest is the payload for attaching a workflow to an entity
type StartInstanceRequest struct {
	WorkflowID int64  `json:"workflow_id" binding:"required"`
	EntityID   int64  `json:"entity_id" binding:"required"`
	EntityType string `json:"entity_type"`
}
