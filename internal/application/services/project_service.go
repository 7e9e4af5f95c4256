package services

import (
	"context"
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
	"github.com/bhuvesh-solnce/backend/pkg/utils"
)

// ProjectService manages projects, the entities PROJECT workflows run on
type ProjectService struct {
	stores     Stores
	projection *ProjectionService
	events     ports.EventEnqueuer
	now        func() time.Time
	log        *logrus.Entry
}

// NewProjectService creates a new ProjectService
func NewProjectService(stores Stores, projection *ProjectionService, enqueuer ports.EventEnqueuer) *ProjectService {
	return &ProjectService{
		stores:     stores,
		projection: projection,
		events:     enqueuer,
		now:        func() time.Time { return time.Now().UTC() },
		log:        logrus.WithField("component", "project"),
	}
}

// Create opens a project, starts its workflow instance and optionally
// records the first stage's data, all in one transaction.
func (s *ProjectService) Create(ctx context.Context, req models.CreateProjectRequest, caller models.Caller) (*models.Project, error) {
	required := []struct{ field, value string }{
		{"first_name", req.FirstName},
		{"last_name", req.LastName},
		{"email", req.Email},
		{"phone", req.Phone},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, appErrors.NewValidationError(r.field, r.field+" is required")
		}
	}
	if req.WorkflowID <= 0 {
		return nil, appErrors.NewValidationError("workflow_id", "workflow_id is required")
	}

	w, err := s.stores.Workflows.FindByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %d: %w", req.WorkflowID, err)
	}
	if w == nil {
		return nil, appErrors.NewNotFoundError("Workflow", strconv.FormatInt(req.WorkflowID, 10))
	}

	var (
		initial      *models.StageDataRow
		initialStage string
	)
	now := s.now()
	if req.InitialStage != nil {
		initial, initialStage, err = s.initialRow(ctx, req.WorkflowID, *req.InitialStage, caller, now)
		if err != nil {
			return nil, err
		}
	}

	project := &models.Project{
		ProjectID:   utils.GeneratePublicID(constants.ProjectIDPrefix),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		WorkflowID:  req.WorkflowID,
		CreatedBy:   caller.ID,
		Status:      constants.ProjectStatusActive,
		ServiceType: nonEmpty(req.ServiceType),
		LeadStatus:  nonEmpty(req.LeadStatus),
		Pincode:     nonEmpty(req.Pincode),
		CreatedAt:   now,
	}

	err = s.stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Projects.Create(ctx, project); err != nil {
			return err
		}

		instance := &models.Instance{
			WorkflowID: project.WorkflowID,
			EntityID:   project.ID,
			EntityType: constants.EntityTypeProject,
			Status:     models.InstanceInProgress,
			CreatedAt:  now,
		}
		if err := s.stores.Instances.Create(ctx, instance); err != nil {
			return err
		}
		if err := s.events.EnqueueEvent(ctx, events.InstanceStarted, events.InstancePayload{
			InstanceID: instance.ID,
			WorkflowID: instance.WorkflowID,
			EntityID:   instance.EntityID,
			EntityType: instance.EntityType,
			OccurredAt: now,
		}); err != nil {
			return err
		}

		if initial == nil {
			return nil
		}
		initial.InstanceID = instance.ID
		if err := s.stores.StageData.Append(ctx, initial); err != nil {
			return err
		}
		return s.events.EnqueueEvent(ctx, events.StageSubmitted, events.StageEventPayload{
			InstanceID:     instance.ID,
			StageDataID:    initial.ID,
			StageID:        *initial.StageID,
			StageName:      initialStage,
			Status:         string(initial.Status),
			ActionByUserID: initial.ActionByUserID,
			OccurredAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"project_id":  project.ProjectID,
		"workflow_id": project.WorkflowID,
	}).Info("Project created")
	return project, nil
}

// initialRow validates the optional first stage and builds its row
func (s *ProjectService) initialRow(ctx context.Context, workflowID int64, in models.InitialStage, caller models.Caller, now time.Time) (*models.StageDataRow, string, error) {
	stage, err := s.stores.Stages.FindByID(ctx, in.StageID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load stage %d: %w", in.StageID, err)
	}
	if stage == nil || stage.WorkflowID != workflowID {
		return nil, "", appErrors.NewValidationError("initial_stage.stage_id",
			fmt.Sprintf("stage %d is not part of workflow %d", in.StageID, workflowID))
	}
	formData, err := normalizeFormData(in.FormData)
	if err != nil {
		return nil, "", err
	}
	if formData == nil {
		formData = []byte(`{}`)
	}
	stageID := stage.ID
	completedAt := now
	return &models.StageDataRow{
		StageID:        &stageID,
		Status:         models.StatusSubmitted,
		FormData:       formData,
		CompletedAt:    &completedAt,
		ActionByUserID: caller.UserID(),
		CreatedAt:      now,
	}, stage.Name, nil
}

// List returns projects newest first with their workflow position.
// Completed workflows are listed only when filter.WorkflowCompleted is set,
// and then exclusively.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, error) {
	excluded := constants.DefaultExcludedLeadStatuses
	if filter.WorkflowCompleted && filter.LeadStatus == "" {
		excluded = nil
	}

	projects, err := s.stores.Projects.List(ctx, filter.LeadStatus, excluded)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return []models.ProjectSummary{}, nil
	}

	ids := make([]int64, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	instances, err := s.stores.Instances.FindLatestForEntities(ctx, ids, constants.EntityTypeProject)
	if err != nil {
		return nil, fmt.Errorf("failed to load instances: %w", err)
	}
	list := make([]models.Instance, 0, len(instances))
	for _, in := range instances {
		list = append(list, in)
	}
	positions, err := s.projection.Positions(ctx, list)
	if err != nil {
		return nil, err
	}

	out := make([]models.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		summary := models.ProjectSummary{Project: p, WorkflowLocation: constants.WorkflowNotStarted}
		if in, ok := instances[p.ID]; ok {
			id := in.ID
			summary.InstanceID = &id
			pos := positions[in.ID]
			summary.WorkflowLocation = pos.Location
			summary.WorkflowCompleted = pos.Completed
		}
		if summary.WorkflowCompleted != filter.WorkflowCompleted {
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

// Get returns the project with the given public id
func (s *ProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	p, err := s.stores.Projects.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	if p == nil {
		return nil, appErrors.NewNotFoundError("Project", projectID)
	}
	return p, nil
}

// StageStatuses reconstructs the workflow state of a project from its most
// recent instance. A project without an instance has an empty view.
func (s *ProjectService) StageStatuses(ctx context.Context, projectID string) (*models.StageStatusesView, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	instance, err := s.stores.Instances.FindLatestForEntity(ctx, p.ID, constants.EntityTypeProject)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}
	return s.projection.StageStatuses(ctx, instance)
}

// UpdateLeadStatus changes a project's lead status, records the change in
// the lead history and, when the project has an instance, appends a lead
// status entry to its stage data log. The previous status is read from the
// stored project.
func (s *ProjectService) UpdateLeadStatus(ctx context.Context, projectID string, req models.LeadStatusUpdate, caller models.Caller) (*models.Project, error) {
	newStatus := strings.TrimSpace(req.LeadStatus)
	if newStatus == "" {
		return nil, appErrors.NewValidationError("lead_status", "lead_status is required")
	}

	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	instance, err := s.stores.Instances.FindLatestForEntity(ctx, p.ID, constants.EntityTypeProject)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance: %w", err)
	}

	now := s.now()
	oldStatus := p.LeadStatus
	comment := strings.TrimSpace(req.Comment)

	err = s.stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Projects.UpdateLeadStatus(ctx, p.ID, newStatus, now); err != nil {
			return err
		}

		entry := &models.LeadHistoryEntry{
			ProjectID:       p.ProjectID,
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
			Comment:         nonEmpty(&comment),
			ChangedByUserID: caller.UserID(),
			CreatedAt:       now,
		}
		if err := s.stores.LeadHistory.Insert(ctx, entry); err != nil {
			return err
		}

		payload := events.LeadStatusPayload{
			ProjectID:       p.ProjectID,
			OldStatus:       oldStatus,
			NewStatus:       newStatus,
			Comment:         comment,
			ChangedByUserID: caller.UserID(),
			OccurredAt:      now,
		}

		if instance != nil {
			completedAt := now
			row := &models.StageDataRow{
				InstanceID:     instance.ID,
				Status:         models.StatusSubmitted,
				FormData:       models.LeadStatusFormData(valueOf(oldStatus), newStatus, comment),
				CompletedAt:    &completedAt,
				ActionByUserID: caller.UserID(),
				CreatedAt:      now,
			}
			if err := s.stores.StageData.Append(ctx, row); err != nil {
				return err
			}
			id := instance.ID
			payload.InstanceID = &id
		}

		return s.events.EnqueueEvent(ctx, events.LeadStatusChanged, payload)
	})
	if err != nil {
		return nil, err
	}

	p.LeadStatus = &newStatus
	p.UpdatedAt = now

	s.log.WithFields(logrus.Fields{
		"project_id": p.ProjectID,
		"old_status": valueOf(oldStatus),
		"new_status": newStatus,
	}).Info("Lead status updated")
	return p, nil
}

// LeadHistory lists a project's lead status changes, newest first, with the
// user who made each change.
func (s *ProjectService) LeadHistory(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error) {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entries, err := s.stores.LeadHistory.ListByProject(ctx, p.ProjectID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []models.LeadHistoryEntry{}, nil
	}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, e := range entries {
		if e.ChangedByUserID == nil {
			continue
		}
		if _, ok := seen[*e.ChangedByUserID]; !ok {
			seen[*e.ChangedByUserID] = struct{}{}
			ids = append(ids, *e.ChangedByUserID)
		}
	}
	users := map[int64]models.UserRef{}
	if len(ids) > 0 {
		users, err = s.stores.Users.FindRefs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load users: %w", err)
		}
	}

	for i := range entries {
		if entries[i].ChangedByUserID == nil {
			continue
		}
		user, ok := users[*entries[i].ChangedByUserID]
		if !ok {
			continue
		}
		if user.Name == "" {
			user.Name = domain.UnknownUserName
		}
		entries[i].ChangedBy = &user
	}
	return entries, nil
}

// Delete removes a project with its instances, their stage data and its
// lead history in one transaction.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	p, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}

	err = s.stores.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.stores.Instances.DeleteForEntity(ctx, p.ID, constants.EntityTypeProject); err != nil {
			return err
		}
		if err := s.stores.LeadHistory.DeleteByProject(ctx, p.ProjectID); err != nil {
			return err
		}
		return s.stores.Projects.Delete(ctx, p.ID)
	})
	if err != nil {
		return err
	}

	s.log.WithField("project_id", p.ProjectID).Info("Project deleted")
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
