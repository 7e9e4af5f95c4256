package ports

import (
	"context"
	"time"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
)

// Transactor runs fn in a transaction carried by the context passed to it
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WorkflowStore persists workflow definitions
type WorkflowStore interface {
	List(ctx context.Context) ([]models.WorkflowDefinition, error)
	FindByID(ctx context.Context, id int64) (*models.WorkflowDefinition, error)
	Create(ctx context.Context, w *models.WorkflowDefinition) error
}

// StageGraphStore persists stages and their dependency edges
type StageGraphStore interface {
	ListByWorkflow(ctx context.Context, workflowID int64) ([]models.Stage, error)
	FindByID(ctx context.Context, id int64) (*models.Stage, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]models.Stage, error)
	Create(ctx context.Context, st *models.Stage) error
	Update(ctx context.Context, st *models.Stage) (bool, error)
	ReplaceParents(ctx context.Context, childID int64, parentIDs []int64) error
	EdgesForWorkflow(ctx context.Context, workflowID int64) ([]models.StageDependency, error)
	ParentsOf(ctx context.Context, childID int64) ([]models.StageRef, error)
	ChildrenOf(ctx context.Context, parentID int64) ([]models.StageRef, error)
}

// InstanceStore persists workflow instances
type InstanceStore interface {
	Create(ctx context.Context, in *models.Instance) error
	FindByID(ctx context.Context, id int64) (*models.Instance, error)
	FindLatestForEntity(ctx context.Context, entityID int64, entityType string) (*models.Instance, error)
	FindLatestForEntities(ctx context.Context, entityIDs []int64, entityType string) (map[int64]models.Instance, error)
	DeleteForEntity(ctx context.Context, entityID int64, entityType string) error
}

// StageDataLog is the append-only log of stage outcomes
type StageDataLog interface {
	ListByInstance(ctx context.Context, instanceID int64) ([]models.StageDataRow, error)
	ListByInstances(ctx context.Context, instanceIDs []int64) (map[int64][]models.StageDataRow, error)
	ListForStages(ctx context.Context, instanceID int64, stageIDs []int64) ([]models.StageDataRow, error)
	LatestForStage(ctx context.Context, instanceID, stageID int64) (*models.StageDataRow, error)
	Append(ctx context.Context, row *models.StageDataRow) error
	Resolve(ctx context.Context, row *models.StageDataRow) error
}

// ProjectStore persists projects
type ProjectStore interface {
	Create(ctx context.Context, p *models.Project) error
	FindByProjectID(ctx context.Context, projectID string) (*models.Project, error)
	List(ctx context.Context, leadStatus string, excluded []string) ([]models.Project, error)
	UpdateLeadStatus(ctx context.Context, id int64, leadStatus string, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// LeadHistoryStore persists the lead status audit trail
type LeadHistoryStore interface {
	Insert(ctx context.Context, e *models.LeadHistoryEntry) error
	ListByProject(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error)
	DeleteByProject(ctx context.Context, projectID string) error
}

// UserDirectory resolves user ids to display references
type UserDirectory interface {
	FindRefs(ctx context.Context, ids []int64) (map[int64]models.UserRef, error)
}

// OutboxEventStore persists events awaiting delivery. Methods join the
// transaction carried by ctx.
type OutboxEventStore interface {
	Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error)
	GetPendingEvents(ctx context.Context, limit int) ([]OutboxEvent, error)
	ClaimEvent(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMessage string) error
	IncrementRetry(ctx context.Context, id string, newCount int, errMessage string) error
	CleanupProcessed(ctx context.Context, cutoff time.Time) (int64, error)
}

// OutboxEvent is a pending event as read back for delivery
type OutboxEvent struct {
	ID         string
	EventType  string
	Payload    string
	RetryCount int
}
