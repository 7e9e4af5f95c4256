package persistence

import "github.com/bhuvesh-solnce/backend/internal/domain/ports"

// Compile-time checks that the MySQL repositories satisfy the service ports
var (
	_ ports.Transactor       = (*TransactionManager)(nil)
	_ ports.WorkflowStore    = (*WorkflowRepository)(nil)
	_ ports.StageGraphStore  = (*StageRepository)(nil)
	_ ports.InstanceStore    = (*InstanceRepository)(nil)
	_ ports.StageDataLog     = (*StageDataRepository)(nil)
	_ ports.ProjectStore     = (*ProjectRepository)(nil)
	_ ports.LeadHistoryStore = (*LeadHistoryRepository)(nil)
	_ ports.UserDirectory    = (*UserRepository)(nil)
	_ ports.OutboxEventStore = (*OutboxRepository)(nil)
)
