package constants

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"

	// HTTP Headers
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"

	// Auth
	BearerPrefix = "Bearer "

	// Response Keys
	ResponseError = "error"
	FieldMessage  = "message"
	FieldCode     = "code"
	FieldData     = "data"
)

// Query parameters
const (
	ParamLeadStatus        = "lead_status"
	ParamWorkflowCompleted = "workflow_completed"
	ParamWorkflowID        = "workflowId"
	ParamInstanceID        = "instanceId"
	ParamID                = "id"

	// LeadStatusExclude is the lead_status filter keyword that keeps the
	// default exclusions without narrowing further.
	LeadStatusExclude = "exclude"
)

// Context Keys
const (
	ContextKeyCaller    = "caller"
	ContextKeyToken     = "token"
	ContextKeyRequestID = "request_id"
)
