package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
)

func newProjectionFixture() (*ProjectionService, *memStageData) {
	stages := newMemStages(
		models.Stage{ID: 10, WorkflowID: 1, Name: "Site Survey", UIPosition: models.UIPosition{Y: 100}},
		models.Stage{ID: 11, WorkflowID: 1, Name: "Quotation", UIPosition: models.UIPosition{Y: 200}},
		models.Stage{ID: 12, WorkflowID: 1, Name: "Installation", UIPosition: models.UIPosition{Y: 300}},
	)
	data := &memStageData{}
	users := memUsers{5: {ID: 5, Name: "Sam Sales"}}
	return NewProjectionService(stages, data, users), data
}

func TestProjectionService_NilInstance(t *testing.T) {
	svc, _ := newProjectionFixture()

	view, err := svc.StageStatuses(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, view.InstanceID)
	assert.NotNil(t, view.StageStatuses)
	assert.NotNil(t, view.Activities)
}

func TestProjectionService_StageStatuses(t *testing.T) {
	svc, data := newProjectionFixture()
	at := func(h int) *time.Time { v := baseTime.Add(time.Duration(h) * time.Hour); return &v }

	data.add(models.StageDataRow{InstanceID: 1, StageID: int64p(10), Status: models.StatusSubmitted,
		CompletedAt: at(1), CreatedAt: *at(1), ActionByUserID: int64p(5)})
	data.add(models.StageDataRow{InstanceID: 1, StageID: int64p(11), Status: models.StatusPending,
		CreatedAt: *at(2)})
	data.add(models.StageDataRow{InstanceID: 1, StageID: int64p(77), Status: models.StatusApproved,
		CompletedAt: at(3), CreatedAt: *at(3)})
	data.add(models.StageDataRow{InstanceID: 2, StageID: int64p(10), Status: models.StatusRejected,
		CompletedAt: at(4), CreatedAt: *at(4)})

	view, err := svc.StageStatuses(context.Background(), &models.Instance{ID: 1, WorkflowID: 1})
	require.NoError(t, err)

	assert.Len(t, view.StageStatuses, 3)
	assert.Equal(t, models.StatusPending, view.StageStatuses["11"].Status)
	require.NotNil(t, view.StageStatuses["10"].CompletedBy)
	assert.Equal(t, "Sam Sales", view.StageStatuses["10"].CompletedBy.Name)

	require.Len(t, view.Activities, 1)
	assert.Equal(t, "Site Survey", view.Activities[0].StageName)
}

func TestProjectionService_Positions(t *testing.T) {
	svc, data := newProjectionFixture()
	at := func(h int) *time.Time { v := baseTime.Add(time.Duration(h) * time.Hour); return &v }

	data.add(models.StageDataRow{InstanceID: 2, StageID: int64p(10), Status: models.StatusSubmitted,
		CompletedAt: at(1), CreatedAt: *at(1)})
	data.add(models.StageDataRow{InstanceID: 2, StageID: int64p(11), Status: models.StatusPending,
		CreatedAt: *at(2)})

	data.add(models.StageDataRow{InstanceID: 3, StageID: int64p(10), Status: models.StatusSubmitted,
		CompletedAt: at(1), CreatedAt: *at(1)})
	data.add(models.StageDataRow{InstanceID: 3, StageID: int64p(12), Status: models.StatusApproved,
		CompletedAt: at(5), CreatedAt: *at(5)})

	positions, err := svc.Positions(context.Background(), []models.Instance{
		{ID: 1, WorkflowID: 1},
		{ID: 2, WorkflowID: 1},
		{ID: 3, WorkflowID: 1},
		{ID: 4, WorkflowID: 9},
	})
	require.NoError(t, err)

	assert.Equal(t, WorkflowPosition{Location: "Site Survey"}, positions[1])
	assert.Equal(t, WorkflowPosition{Location: "Quotation"}, positions[2])
	assert.Equal(t, WorkflowPosition{Location: "Installation", Completed: true}, positions[3])
	assert.Equal(t, WorkflowPosition{Location: constants.WorkflowNotStarted}, positions[4])

	empty, err := svc.Positions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
