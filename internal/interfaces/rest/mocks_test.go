package rest_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
)

// MockWorkflowService is a mock implementation of rest.WorkflowService
type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WorkflowDefinition), args.Error(1)
}

func (m *MockWorkflowService) CreateWorkflow(ctx context.Context, req models.CreateWorkflowRequest) (*models.WorkflowDefinition, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WorkflowDefinition), args.Error(1)
}

func (m *MockWorkflowService) ListStages(ctx context.Context, workflowID int64) ([]models.StageWithDependsOn, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StageWithDependsOn), args.Error(1)
}

func (m *MockWorkflowService) UpsertStage(ctx context.Context, req models.UpsertStageRequest) (*models.Stage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stage), args.Error(1)
}

func (m *MockWorkflowService) ValidateGraph(ctx context.Context, workflowID int64) (*models.GraphReport, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GraphReport), args.Error(1)
}

// MockExecutionService is a mock implementation of rest.ExecutionService
type MockExecutionService struct {
	mock.Mock
}

func (m *MockExecutionService) StartInstance(ctx context.Context, req models.StartInstanceRequest) (*models.Instance, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Instance), args.Error(1)
}

func (m *MockExecutionService) SubmitStage(ctx context.Context, instanceID int64, req models.SubmitStageRequest, caller models.Caller) (*models.SubmitStageResult, error) {
	args := m.Called(ctx, instanceID, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmitStageResult), args.Error(1)
}

// MockProjectService is a mock implementation of rest.ProjectService
type MockProjectService struct {
	mock.Mock
}

func (m *MockProjectService) Create(ctx context.Context, req models.CreateProjectRequest, caller models.Caller) (*models.Project, error) {
	args := m.Called(ctx, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectSummary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ProjectSummary), args.Error(1)
}

func (m *MockProjectService) Get(ctx context.Context, projectID string) (*models.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) StageStatuses(ctx context.Context, projectID string) (*models.StageStatusesView, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.StageStatusesView), args.Error(1)
}

func (m *MockProjectService) UpdateLeadStatus(ctx context.Context, projectID string, req models.LeadStatusUpdate, caller models.Caller) (*models.Project, error) {
	args := m.Called(ctx, projectID, req, caller)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectService) LeadHistory(ctx context.Context, projectID string) ([]models.LeadHistoryEntry, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LeadHistoryEntry), args.Error(1)
}

func (m *MockProjectService) Delete(ctx context.Context, projectID string) error {
	return m.Called(ctx, projectID).Error(0)
}

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(ctx context.Context) error { return s.err }
