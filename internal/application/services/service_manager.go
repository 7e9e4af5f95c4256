package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/config"
	"github.com/bhuvesh-solnce/backend/internal/infrastructure/database"
	"github.com/bhuvesh-solnce/backend/internal/infrastructure/persistence"
	"github.com/bhuvesh-solnce/backend/pkg/expression"
)

// submissions that race on the same instance can deadlock on MySQL gap locks
const txDeadlockRetries = 3

// ServiceManager wires every service to the MySQL repositories
type ServiceManager struct {
	db *database.Connection

	TxManager   *persistence.TransactionManager
	EventBus    *EventBus
	Audit       *StageAuditLog
	Outbox      *OutboxService
	Workflows   *WorkflowService
	Execution   *ExecutionService
	Projection  *ProjectionService
	Projects    *ProjectService
	Maintenance *MaintenanceScheduler

	outboxInterval time.Duration
}

// NewServiceManager creates a service manager with all dependencies wired
func NewServiceManager(db *database.Connection, cfg config.OutboxConfig) (*ServiceManager, error) {
	sm := &ServiceManager{
		db:             db,
		outboxInterval: cfg.PollInterval,
	}

	sm.TxManager = persistence.NewTransactionManager(db)
	stores := Stores{
		Tx:          sm.TxManager.Retrying(txDeadlockRetries),
		Workflows:   persistence.NewWorkflowRepository(db),
		Stages:      persistence.NewStageRepository(db),
		Instances:   persistence.NewInstanceRepository(db),
		StageData:   persistence.NewStageDataRepository(db),
		Projects:    persistence.NewProjectRepository(db),
		LeadHistory: persistence.NewLeadHistoryRepository(db),
		Users:       persistence.NewUserRepository(db),
		Outbox:      persistence.NewOutboxRepository(db),
	}

	sm.EventBus = NewEventBus()
	sm.Audit = NewStageAuditLog(logrus.WithField("component", "audit"))
	sm.Audit.Register(sm.EventBus)
	sm.Outbox = NewOutboxService(stores.Outbox, sm.EventBus, stores.Tx)
	sm.Outbox.SetBatchSize(cfg.BatchSize)

	sm.Workflows = NewWorkflowService(stores.Workflows, stores.Stages, stores.Tx, expression.NewEngine())
	sm.Execution = NewExecutionService(stores.Workflows, stores.Stages, stores.Instances, stores.StageData, stores.Tx, sm.Outbox)
	sm.Projection = NewProjectionService(stores.Stages, stores.StageData, stores.Users)
	sm.Projects = NewProjectService(stores, sm.Projection, sm.Outbox)

	maintenance, err := NewMaintenanceScheduler(sm.Outbox, cfg.CleanupSchedule, cfg.Retention)
	if err != nil {
		return nil, err
	}
	sm.Maintenance = maintenance

	return sm, nil
}

// StartBackground starts the outbox worker and the cleanup schedule
func (sm *ServiceManager) StartBackground() {
	sm.Outbox.StartWorker(sm.outboxInterval)
	go sm.Maintenance.Start()
}

// StopBackground stops the outbox worker and the cleanup schedule
func (sm *ServiceManager) StopBackground() {
	sm.Maintenance.Stop()
	sm.Outbox.StopWorker()
}

// Ping checks the database connection
func (sm *ServiceManager) Ping(ctx context.Context) error {
	return sm.db.PingContext(ctx)
}
