// Package services provides the business logic layer of the workflow engine.
//
// This package contains the service implementations that handle:
//   - Workflow definitions and the stage graph designer (WorkflowService)
//   - Instance start and gated stage submission (ExecutionService)
//   - Status and activity reconstruction from the stage data log (ProjectionService)
//   - Projects and lead status changes (ProjectService)
//   - Stage event delivery through the outbox (OutboxService, EventBus)
//   - Periodic outbox maintenance (MaintenanceScheduler)
//
// Services depend on the interfaces in the ports package and receive their
// collaborators through constructors.
package services
