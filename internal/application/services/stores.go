package services

import "github.com/bhuvesh-solnce/backend/internal/domain/ports"

// Stores bundles the persistence ports the services are built from
type Stores struct {
	Tx          ports.Transactor
	Workflows   ports.WorkflowStore
	Stages      ports.StageGraphStore
	Instances   ports.InstanceStore
	StageData   ports.StageDataLog
	Projects    ports.ProjectStore
	LeadHistory ports.LeadHistoryStore
	Users       ports.UserDirectory
	Outbox      ports.OutboxEventStore
}
