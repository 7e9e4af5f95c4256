package constants

// Entity types a workflow instance can be attached to
const (
	EntityTypeProject = "PROJECT"
	EntityTypeLead    = "LEAD"
	EntityTypeTask    = "TASK"
)

// Capabilities carried on an authenticated caller
const (
	// CapabilityWorkflowOverride lets the caller act on any stage regardless
	// of the stage's role lists.
	CapabilityWorkflowOverride = "workflow:override"
)

// Permission actions on a stage
const (
	PermissionView    = "view"
	PermissionEdit    = "edit"
	PermissionApprove = "approve"
)

// Activity feed labels
const (
	ActivityLeadStatusChanged = "Lead Status Changed"
	ActivityStatusCompleted   = "COMPLETED"
	ActivityStatusEdited      = "EDITED"
	WorkflowNotStarted        = "Not Started"
)

// Lead statuses hidden from the default project listing
var DefaultExcludedLeadStatuses = []string{"Closed", "Rejected", "Dormant"}

// ProjectIDPrefix prefixes every public project identifier
const ProjectIDPrefix = "SOL-"

// NullStageKey is the stage status map key for rows without a stage
const NullStageKey = "null"

// ProjectStatusActive is the status of a newly created project
const ProjectStatusActive = "ACTIVE"
