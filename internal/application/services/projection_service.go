package services

import (
	"context"
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
)

// WorkflowPosition is where an instance stands in its workflow
type WorkflowPosition struct {
	Location  string
	Completed bool
}

// ProjectionService rebuilds read views from the stage data log. Nothing is
// cached; every call re-reads the log.
type ProjectionService struct {
	stages ports.StageGraphStore
	log    ports.StageDataLog
	users  ports.UserDirectory
}

// NewProjectionService creates a new ProjectionService
func NewProjectionService(stages ports.StageGraphStore, stageLog ports.StageDataLog, users ports.UserDirectory) *ProjectionService {
	return &ProjectionService{stages: stages, log: stageLog, users: users}
}

// StageStatuses returns the latest snapshot per stage and the activity
// timeline of instance. A nil instance yields an empty view.
func (s *ProjectionService) StageStatuses(ctx context.Context, instance *models.Instance) (*models.StageStatusesView, error) {
	view := &models.StageStatusesView{
		StageStatuses: map[string]models.StatusSnapshot{},
		Activities:    []models.Activity{},
	}
	if instance == nil {
		return view, nil
	}
	id := instance.ID
	view.InstanceID = &id

	rows, err := s.log.ListByInstance(ctx, instance.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage data: %w", err)
	}
	if len(rows) == 0 {
		return view, nil
	}
	events := domain.DecodeEvents(rows)

	stages, err := s.stages.FindByIDs(ctx, referencedStages(events))
	if err != nil {
		return nil, fmt.Errorf("failed to load stages: %w", err)
	}
	users, err := s.actors(ctx, events)
	if err != nil {
		return nil, err
	}

	view.StageStatuses = domain.ProjectStageStatuses(events, users)
	view.Activities = domain.ProjectActivities(events, stages, users)
	return view, nil
}

// Positions computes the current stage label and completion of every
// instance, keyed by instance id.
func (s *ProjectionService) Positions(ctx context.Context, instances []models.Instance) (map[int64]WorkflowPosition, error) {
	out := make(map[int64]WorkflowPosition, len(instances))
	if len(instances) == 0 {
		return out, nil
	}

	ids := make([]int64, 0, len(instances))
	for _, in := range instances {
		ids = append(ids, in.ID)
	}
	rowsByInstance, err := s.log.ListByInstances(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage data: %w", err)
	}

	stagesByWorkflow := make(map[int64][]models.Stage)
	for _, in := range instances {
		stages, ok := stagesByWorkflow[in.WorkflowID]
		if !ok {
			stages, err = s.stages.ListByWorkflow(ctx, in.WorkflowID)
			if err != nil {
				return nil, fmt.Errorf("failed to list stages of workflow %d: %w", in.WorkflowID, err)
			}
			stagesByWorkflow[in.WorkflowID] = stages
		}

		events := domain.DecodeEvents(rowsByInstance[in.ID])
		out[in.ID] = WorkflowPosition{
			Location:  domain.CurrentStageLabel(events, stages),
			Completed: domain.IsWorkflowCompleted(events, stages),
		}
	}
	return out, nil
}

// actors resolves the users who acted on events
func (s *ProjectionService) actors(ctx context.Context, events []models.StageEvent) (map[int64]models.UserRef, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, ev := range events {
		if ev.ActionByUserID == nil {
			continue
		}
		if _, ok := seen[*ev.ActionByUserID]; ok {
			continue
		}
		seen[*ev.ActionByUserID] = struct{}{}
		ids = append(ids, *ev.ActionByUserID)
	}
	if len(ids) == 0 {
		return map[int64]models.UserRef{}, nil
	}
	users, err := s.users.FindRefs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	return users, nil
}

func referencedStages(events []models.StageEvent) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, ev := range events {
		if ev.StageID == nil {
			continue
		}
		if _, ok := seen[*ev.StageID]; ok {
			continue
		}
		seen[*ev.StageID] = struct{}{}
		ids = append(ids, *ev.StageID)
	}
	return ids
}
