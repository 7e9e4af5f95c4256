package models

import (
	"encoding/json"
	"time"
)

// StageType tags the kind of work a stage represents. The engine treats it
// as opaque; only the UI and stage handlers interpret it.
type StageType string

const (
	StageTypeForm              StageType = "FORM"
	StageTypeApproval          StageType = "APPROVAL"
	StageTypeQuotation         StageType = "QUOTATION"
	StageTypeQuotationBOQ      StageType = "QUOTATION_BOQ"
	StageTypeBOQGeneration     StageType = "BOQ_GENERATION"
	StageTypePDFGeneration     StageType = "PDF_GENERATION"
	StageTypeComputation       StageType = "COMPUTATION"
	StageTypePayment           StageType = "PAYMENT"
	StageTypeGovtPortal        StageType = "GOVT_PORTAL"
	StageTypeDocumentChecklist StageType = "DOCUMENT_CHECKLIST"
	StageTypeProjectTracking   StageType = "PROJECT_TRACKING"
	StageTypeQCChecklist       StageType = "QC_CHECKLIST"
	StageTypeServiceCall       StageType = "SERVICE_CALL"
	StageTypeVendorAssignment  StageType = "VENDOR_ASSIGNMENT"

	// StageTypeLeadStatusChange is not a real stage type; it labels
	// lead-status entries in the activity feed.
	StageTypeLeadStatusChange StageType = "LEAD_STATUS_CHANGE"
)

var stageTypes = map[StageType]struct{}{
	StageTypeForm: {}, StageTypeApproval: {}, StageTypeQuotation: {}, StageTypeQuotationBOQ: {},
	StageTypeBOQGeneration: {}, StageTypePDFGeneration: {}, StageTypeComputation: {}, StageTypePayment: {},
	StageTypeGovtPortal: {}, StageTypeDocumentChecklist: {}, StageTypeProjectTracking: {},
	StageTypeQCChecklist: {}, StageTypeServiceCall: {}, StageTypeVendorAssignment: {},
}

// Valid reports whether t is one of the configurable stage types
func (t StageType) Valid() bool {
	_, ok := stageTypes[t]
	return ok
}

// StagePermissions maps each stage action to the role names allowed to perform it
type StagePermissions struct {
	View    []string `json:"view"`
	Edit    []string `json:"edit"`
	Approve []string `json:"approve"`
}

// Normalized returns a copy with nil lists replaced by empty ones
func (p StagePermissions) Normalized() StagePermissions {
	out := p
	if out.View == nil {
		out.View = []string{}
	}
	if out.Edit == nil {
		out.Edit = []string{}
	}
	if out.Approve == nil {
		out.Approve = []string{}
	}
	return out
}

// UIPosition is the designer canvas coordinate of a stage
type UIPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stage is a single node of a workflow's stage graph
type Stage struct {
	ID              int64            `json:"id"`
	WorkflowID      int64            `json:"workflow_id"`
	Name            string           `json:"name"`
	Type            StageType        `json:"type"`
	FormSchema      json.RawMessage  `json:"form_schema"`
	StageConfig     json.RawMessage  `json:"stage_config"`
	Permissions     StagePermissions `json:"permissions"`
	RejectToStageID *int64           `json:"reject_to_stage_id"`
	SkipCondition   *string          `json:"skip_condition"`
	UIPosition      UIPosition       `json:"ui_position"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ApplyDefaults fills the documented defaults for missing stage fields
func (s *Stage) ApplyDefaults() {
	if s.Type == "" {
		s.Type = StageTypeForm
	}
	if len(s.FormSchema) == 0 || string(s.FormSchema) == "null" {
		s.FormSchema = json.RawMessage(`[]`)
	}
	if len(s.StageConfig) == 0 || string(s.StageConfig) == "null" {
		s.StageConfig = json.RawMessage(`{}`)
	}
	s.Permissions = s.Permissions.Normalized()
}

// StageWithDependsOn is a stage as listed to the designer, with its parents
type StageWithDependsOn struct {
	Stage
	DependsOn []int64 `json:"depends_on"`
}

// StageDependency is a directed edge: the child requires the parent
type StageDependency struct {
	ID             int64   `json:"id"`
	ParentStageID  int64   `json:"parent_stage_id"`
	ChildStageID   int64   `json:"child_stage_id"`
	ConditionLogic *string `json:"condition_logic,omitempty"`
}

// StageRef is a lightweight {id, name} reference to a stage
type StageRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// UpsertStageRequest is the designer payload for creating or replacing a stage.
// A nil DependsOn leaves existing edges untouched; an empty one clears them.
type UpsertStageRequest struct {
	ID              int64             `json:"id"`
	WorkflowID      int64             `json:"workflow_id" binding:"required"`
	Name            string            `json:"name" binding:"required"`
	Type            StageType         `json:"type"`
	FormSchema      json.RawMessage   `json:"form_schema"`
	StageConfig     json.RawMessage   `json:"stage_config"`
	Permissions     *StagePermissions `json:"permissions"`
	RejectToStageID *int64            `json:"reject_to_stage_id"`
	SkipCondition   *string           `json:"skip_condition"`
	UIPosition      *UIPosition       `json:"ui_position"`
	DependsOn       []int64           `json:"depends_on"`
}

// ToStage builds the stage row described by the request, with defaults applied
func (r UpsertStageRequest) ToStage() Stage {
	s := Stage{
		ID:              r.ID,
		WorkflowID:      r.WorkflowID,
		Name:            r.Name,
		Type:            r.Type,
		FormSchema:      r.FormSchema,
		StageConfig:     r.StageConfig,
		RejectToStageID: r.RejectToStageID,
		SkipCondition:   r.SkipCondition,
	}
	if r.Permissions != nil {
		s.Permissions = *r.Permissions
	}
	if r.UIPosition != nil {
		s.UIPosition = *r.UIPosition
	}
	s.ApplyDefaults()
	return s
}
