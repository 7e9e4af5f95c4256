package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
)

// AuditedEvents are the event types StageAuditLog records
var AuditedEvents = []events.EventType{
	events.InstanceStarted,
	events.StagePending,
	events.StageSubmitted,
	events.StageApproved,
	events.StageRejected,
	events.StageSkipped,
	events.StageEdited,
	events.LeadStatusChanged,
}

// StageAuditLog writes one structured audit line for every workflow event
// the outbox delivers.
type StageAuditLog struct {
	log *logrus.Entry
}

func NewStageAuditLog(log *logrus.Entry) *StageAuditLog {
	return &StageAuditLog{log: log}
}

// Register subscribes the audit log to every audited event type on bus and
// returns a function that removes all of the subscriptions.
func (a *StageAuditLog) Register(bus ports.EventPublisher) func() {
	unsubs := make([]func(), 0, len(AuditedEvents))
	for _, eventType := range AuditedEvents {
		unsubs = append(unsubs, bus.Subscribe(eventType, a.handlerFor(eventType)))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (a *StageAuditLog) handlerFor(eventType events.EventType) ports.EventHandler {
	return func(ctx context.Context, payload interface{}) error {
		entry := a.log.WithField("event", eventType.String())

		switch p := payload.(type) {
		case *events.StageEventPayload:
			fields := logrus.Fields{
				"instance_id":   p.InstanceID,
				"stage_id":      p.StageID,
				"stage_name":    p.StageName,
				"stage_data_id": p.StageDataID,
				"status":        p.Status,
				"is_edit":       p.IsEdit,
				"occurred_at":   p.OccurredAt,
			}
			if p.ActionByUserID != nil {
				fields["user_id"] = *p.ActionByUserID
			}
			if len(p.DownstreamStageIDs) > 0 {
				fields["downstream_stage_ids"] = p.DownstreamStageIDs
			}
			if p.RejectToStageID != nil && p.Status == string(models.StatusRejected) {
				fields["reject_to_stage_id"] = *p.RejectToStageID
			}
			entry.WithFields(fields).Info("Stage outcome recorded")

		case *events.LeadStatusPayload:
			fields := logrus.Fields{
				"project_id":  p.ProjectID,
				"new_status":  p.NewStatus,
				"occurred_at": p.OccurredAt,
			}
			if p.OldStatus != nil {
				fields["old_status"] = *p.OldStatus
			}
			if p.InstanceID != nil {
				fields["instance_id"] = *p.InstanceID
			}
			if p.ChangedByUserID != nil {
				fields["user_id"] = *p.ChangedByUserID
			}
			entry.WithFields(fields).Info("Lead status changed")

		case *events.InstancePayload:
			entry.WithFields(logrus.Fields{
				"instance_id": p.InstanceID,
				"workflow_id": p.WorkflowID,
				"entity_id":   p.EntityID,
				"entity_type": p.EntityType,
				"occurred_at": p.OccurredAt,
			}).Info("Workflow instance started")

		default:
			return fmt.Errorf("audit: unexpected payload %T for %s", payload, eventType)
		}
		return nil
	}
}
