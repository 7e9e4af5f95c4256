package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/domain"
	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
)

// ExecutionService starts workflow instances and records stage outcomes
// behind the permission and prerequisite gates.
type ExecutionService struct {
	workflows ports.WorkflowStore
	stages    ports.StageGraphStore
	instances ports.InstanceStore
	log       ports.StageDataLog
	tx        ports.Transactor
	events    ports.EventEnqueuer
	machine   *domain.StageStateMachine
	now       func() time.Time
	logger    *logrus.Entry
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(
	workflows ports.WorkflowStore,
	stages ports.StageGraphStore,
	instances ports.InstanceStore,
	stageLog ports.StageDataLog,
	tx ports.Transactor,
	enqueuer ports.EventEnqueuer,
) *ExecutionService {
	return &ExecutionService{
		workflows: workflows,
		stages:    stages,
		instances: instances,
		log:       stageLog,
		tx:        tx,
		events:    enqueuer,
		machine:   domain.NewStageStateMachine(),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logrus.WithField("component", "execution"),
	}
}

// StartInstance attaches a workflow to a business entity. Entities may
// carry several instances; lookups use the most recent one.
func (s *ExecutionService) StartInstance(ctx context.Context, req models.StartInstanceRequest) (*models.Instance, error) {
	if req.WorkflowID <= 0 {
		return nil, appErrors.NewValidationError("workflow_id", "workflow_id is required")
	}
	if req.EntityID <= 0 {
		return nil, appErrors.NewValidationError("entity_id", "entity_id is required")
	}
	entityType := strings.ToUpper(strings.TrimSpace(req.EntityType))
	if entityType == "" {
		entityType = constants.EntityTypeProject
	}

	w, err := s.workflows.FindByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %d: %w", req.WorkflowID, err)
	}
	if w == nil {
		return nil, appErrors.NewNotFoundError("Workflow", strconv.FormatInt(req.WorkflowID, 10))
	}

	instance := &models.Instance{
		WorkflowID: req.WorkflowID,
		EntityID:   req.EntityID,
		EntityType: entityType,
		Status:     models.InstanceInProgress,
		CreatedAt:  s.now(),
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.instances.Create(ctx, instance); err != nil {
			return err
		}
		return s.events.EnqueueEvent(ctx, events.InstanceStarted, events.InstancePayload{
			InstanceID: instance.ID,
			WorkflowID: instance.WorkflowID,
			EntityID:   instance.EntityID,
			EntityType: instance.EntityType,
			OccurredAt: instance.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"instance_id": instance.ID,
		"workflow_id": instance.WorkflowID,
		"entity_id":   instance.EntityID,
	}).Info("Workflow instance started")
	return instance, nil
}

// CheckPrerequisites fails with PrerequisitesNotMetError unless every parent
// of stage has a latest status of APPROVED or SUBMITTED on the instance.
func (s *ExecutionService) CheckPrerequisites(ctx context.Context, instanceID int64, stage models.Stage) error {
	parents, err := s.stages.ParentsOf(ctx, stage.ID)
	if err != nil {
		return fmt.Errorf("failed to load prerequisites of stage %d: %w", stage.ID, err)
	}
	if len(parents) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, p.ID)
	}
	rows, err := s.log.ListForStages(ctx, instanceID, ids)
	if err != nil {
		return fmt.Errorf("failed to load prerequisite data: %w", err)
	}

	latest := domain.LatestStatuses(domain.DecodeEvents(rows))
	return domain.CheckPrerequisites(stage, parents, latest)
}

// SubmitStage records a stage outcome for an instance. The first terminal
// status resolves a PENDING row in place; a request on a stage that already
// left PENDING appends an edit row that keeps the original completion time.
// Prerequisites are checked for new submissions only.
func (s *ExecutionService) SubmitStage(ctx context.Context, instanceID int64, req models.SubmitStageRequest, caller models.Caller) (*models.SubmitStageResult, error) {
	status := req.Status
	if status == "" {
		status = models.StatusSubmitted
	}
	if !status.Valid() {
		return nil, appErrors.NewValidationError("status", fmt.Sprintf("unsupported status %q", req.Status))
	}
	if req.StageID <= 0 {
		return nil, appErrors.NewValidationError("stage_id", "stage_id is required")
	}
	formData, err := normalizeFormData(req.FormData)
	if err != nil {
		return nil, err
	}

	instance, err := s.instances.FindByID(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance %d: %w", instanceID, err)
	}
	if instance == nil {
		return nil, appErrors.NewNotFoundError("Workflow instance", strconv.FormatInt(instanceID, 10))
	}

	stage, err := s.stages.FindByID(ctx, req.StageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage %d: %w", req.StageID, err)
	}
	if stage == nil {
		return nil, appErrors.NewNotFoundError("Stage", strconv.FormatInt(req.StageID, 10))
	}
	if stage.WorkflowID != instance.WorkflowID {
		return nil, appErrors.NewValidationError("stage_id",
			fmt.Sprintf("stage %d does not belong to workflow %d", stage.ID, instance.WorkflowID))
	}

	if err := domain.Authorize(*stage, status, caller); err != nil {
		return nil, err
	}

	latest, err := s.log.LatestForStage(ctx, instanceID, stage.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage data: %w", err)
	}
	var current *models.StageStatus
	if latest != nil {
		current = &latest.Status
	}
	kind, err := s.machine.Classify(current, status)
	if err != nil {
		return nil, appErrors.NewValidationError("status", err.Error())
	}

	if kind != domain.SubmissionEdit {
		if err := s.CheckPrerequisites(ctx, instanceID, *stage); err != nil {
			return nil, err
		}
	}

	now := s.now()
	row, err := buildSubmissionRow(kind, latest, instanceID, stage.ID, status, formData, req.RejectionNotes, caller, now)
	if err != nil {
		return nil, err
	}

	eventType := stageEventType(status)
	if kind == domain.SubmissionEdit {
		eventType = events.StageEdited
	}

	var downstream []int64
	if status.IsComplete() {
		children, err := s.stages.ChildrenOf(ctx, stage.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dependent stages: %w", err)
		}
		for _, child := range children {
			downstream = append(downstream, child.ID)
		}
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if kind == domain.SubmissionResolvePending {
			if err := s.log.Resolve(ctx, row); err != nil {
				return err
			}
		} else {
			if err := s.log.Append(ctx, row); err != nil {
				return err
			}
		}
		return s.events.EnqueueEvent(ctx, eventType, events.StageEventPayload{
			InstanceID:         instanceID,
			StageDataID:        row.ID,
			StageID:            stage.ID,
			StageName:          stage.Name,
			Status:             string(row.Status),
			IsEdit:             kind == domain.SubmissionEdit,
			ActionByUserID:     row.ActionByUserID,
			RejectToStageID:    stage.RejectToStageID,
			DownstreamStageIDs: downstream,
			OccurredAt:         now,
		})
	})
	if err != nil {
		return nil, err
	}

	result := &models.SubmitStageResult{
		Data:   *row,
		IsEdit: kind == domain.SubmissionEdit,
	}
	if status == models.StatusRejected && stage.RejectToStageID != nil {
		result.RejectToStage = s.rejectTarget(ctx, *stage.RejectToStageID)
	}

	s.logger.WithFields(logrus.Fields{
		"instance_id": instanceID,
		"stage_id":    stage.ID,
		"status":      row.Status,
		"kind":        kind,
		"user_id":     caller.ID,
	}).Info("Stage data recorded")
	return result, nil
}

// rejectTarget resolves the stage a rejection points back to. A target
// that no longer exists yields no hint.
func (s *ExecutionService) rejectTarget(ctx context.Context, stageID int64) *models.StageRef {
	target, err := s.stages.FindByID(ctx, stageID)
	if err != nil || target == nil {
		s.logger.WithField("stage_id", stageID).WithError(err).Warn("Reject target unavailable")
		return nil
	}
	return &models.StageRef{ID: target.ID, Name: target.Name}
}

// buildSubmissionRow derives the row to write for a classified submission.
// formData is nil when the request carried none.
func buildSubmissionRow(
	kind domain.SubmissionKind,
	latest *models.StageDataRow,
	instanceID, stageID int64,
	status models.StageStatus,
	formData json.RawMessage,
	rejectionNotes *string,
	caller models.Caller,
	now time.Time,
) (*models.StageDataRow, error) {
	var completedAt *time.Time
	if status != models.StatusPending {
		at := now
		completedAt = &at
	}

	switch kind {
	case domain.SubmissionResolvePending:
		row := *latest
		row.Status = status
		row.CompletedAt = completedAt
		row.ActionByUserID = caller.UserID()
		row.UpdatedAt = now
		if formData != nil {
			row.FormData = formData
		}
		if rejectionNotes != nil {
			row.RejectionNotes = rejectionNotes
		}
		return &row, nil

	case domain.SubmissionEdit:
		marked, err := models.WithEditMarkers(formData, now, latest.CompletedAt)
		if err != nil {
			return nil, appErrors.NewValidationError("form_data", "form_data must be a JSON object")
		}
		notes := rejectionNotes
		if notes == nil {
			notes = latest.RejectionNotes
		}
		return &models.StageDataRow{
			InstanceID:     instanceID,
			StageID:        &stageID,
			Status:         status,
			FormData:       marked,
			RejectionNotes: notes,
			CompletedAt:    latest.CompletedAt,
			ActionByUserID: caller.UserID(),
			CreatedAt:      now,
		}, nil

	default:
		if formData == nil {
			formData = json.RawMessage(`{}`)
		}
		return &models.StageDataRow{
			InstanceID:     instanceID,
			StageID:        &stageID,
			Status:         status,
			FormData:       formData,
			RejectionNotes: rejectionNotes,
			CompletedAt:    completedAt,
			ActionByUserID: caller.UserID(),
			CreatedAt:      now,
		}, nil
	}
}

// normalizeFormData accepts a JSON object or null. It returns nil when no
// form data was sent.
func normalizeFormData(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, appErrors.NewValidationError("form_data", "form_data must be a JSON object")
	}
	var probe map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		return nil, appErrors.NewValidationError("form_data", "form_data must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

func stageEventType(status models.StageStatus) events.EventType {
	switch status {
	case models.StatusApproved:
		return events.StageApproved
	case models.StatusRejected:
		return events.StageRejected
	case models.StatusSkipped:
		return events.StageSkipped
	case models.StatusPending:
		return events.StagePending
	default:
		return events.StageSubmitted
	}
}
