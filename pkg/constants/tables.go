package constants

// Table names
const (
	TableUsers             = "users"
	TableWorkflows         = "workflows"
	TableWorkflowStages    = "workflow_stages"
	TableStageDependencies = "stage_dependencies"
	TableWorkflowInstances = "workflow_instances"
	TableInstanceStageData = "instance_stage_data"
	TableProjects          = "projects"
	TableLeadHistory       = "lead_history"
	TableOutboxEvents      = "outbox_events"
)
