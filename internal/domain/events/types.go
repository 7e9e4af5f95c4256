package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType defines the type of event in the system
type EventType string

const (
	// Stage events, one per recorded stage outcome
	StageSubmitted EventType = "stage.submitted"
	StageApproved  EventType = "stage.approved"
	StageRejected  EventType = "stage.rejected"
	StageSkipped   EventType = "stage.skipped"
	StagePending   EventType = "stage.pending"
	StageEdited    EventType = "stage.edited"

	// Lead events
	LeadStatusChanged EventType = "lead.status_changed"

	// Instance events
	InstanceStarted EventType = "instance.started"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// StageEventPayload describes a stage data row that was recorded.
// DownstreamStageIDs is set when the recorded status completes the stage.
type StageEventPayload struct {
	InstanceID         int64     `json:"instance_id"`
	StageDataID        int64     `json:"stage_data_id"`
	StageID            int64     `json:"stage_id"`
	StageName          string    `json:"stage_name"`
	Status             string    `json:"status"`
	IsEdit             bool      `json:"is_edit"`
	ActionByUserID     *int64    `json:"action_by_user_id,omitempty"`
	RejectToStageID    *int64    `json:"reject_to_stage_id,omitempty"`
	DownstreamStageIDs []int64   `json:"downstream_stage_ids,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// LeadStatusPayload describes a lead status change on a project
type LeadStatusPayload struct {
	ProjectID       string    `json:"project_id"`
	InstanceID      *int64    `json:"instance_id,omitempty"`
	OldStatus       *string   `json:"old_status"`
	NewStatus       string    `json:"new_status"`
	Comment         string    `json:"comment,omitempty"`
	ChangedByUserID *int64    `json:"changed_by_user_id,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// InstancePayload describes a workflow instance that was attached to an entity
type InstancePayload struct {
	InstanceID int64     `json:"instance_id"`
	WorkflowID int64     `json:"workflow_id"`
	EntityID   int64     `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// DecodePayload unmarshals a stored payload into the struct for eventType
func DecodePayload(eventType EventType, raw []byte) (interface{}, error) {
	var target interface{}
	switch eventType {
	case StageSubmitted, StageApproved, StageRejected, StageSkipped, StagePending, StageEdited:
		target = &StageEventPayload{}
	case LeadStatusChanged:
		target = &LeadStatusPayload{}
	case InstanceStarted:
		target = &InstancePayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, err
	}
	return target, nil
}
