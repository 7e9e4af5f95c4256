package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	appErrors "github.com/bhuvesh-solnce/backend/pkg/errors"
)

const (
	stageSurvey    int64 = 10
	stageQuotation int64 = 11
	stageInstall   int64 = 12
	otherStage     int64 = 90
	testInstance   int64 = 100
)

var (
	salesCaller   = models.Caller{ID: 5, Name: "Sam Sales", Role: "Sales"}
	managerCaller = models.Caller{ID: 6, Name: "Maya Manager", Role: "Manager"}
	adminCaller   = models.Caller{ID: 1, Role: "Admin", Capabilities: []string{constants.CapabilityWorkflowOverride}}
)

type executionFixture struct {
	svc       *ExecutionService
	workflows *memWorkflows
	stages    *memStages
	instances *memInstances
	data      *memStageData
	tx        *fakeTx
	events    *fakeEnqueuer
}

func newExecutionFixture(t *testing.T) *executionFixture {
	t.Helper()

	perms := models.StagePermissions{Edit: []string{"Sales"}, Approve: []string{"Manager"}}
	f := &executionFixture{
		workflows: newMemWorkflows(
			models.WorkflowDefinition{ID: 1, Name: "Rooftop", ModuleType: models.ModuleProject, IsActive: true},
			models.WorkflowDefinition{ID: 2, Name: "Service", ModuleType: models.ModuleTask, IsActive: true},
		),
		stages: newMemStages(
			models.Stage{ID: stageSurvey, WorkflowID: 1, Name: "Site Survey", Permissions: perms},
			models.Stage{ID: stageQuotation, WorkflowID: 1, Name: "Quotation", Permissions: perms, RejectToStageID: int64p(stageSurvey)},
			models.Stage{ID: stageInstall, WorkflowID: 1, Name: "Installation", Permissions: perms},
			models.Stage{ID: otherStage, WorkflowID: 2, Name: "Visit", Permissions: perms},
		),
		instances: newMemInstances(models.Instance{
			ID: testInstance, WorkflowID: 1, EntityID: 7, EntityType: constants.EntityTypeProject,
		}),
		data:   &memStageData{},
		tx:     &fakeTx{},
		events: &fakeEnqueuer{},
	}
	f.stages.link(stageSurvey, stageQuotation)
	f.stages.link(stageSurvey, stageInstall)
	f.stages.link(stageQuotation, stageInstall)

	f.svc = NewExecutionService(f.workflows, f.stages, f.instances, f.data, f.tx, f.events)
	f.svc.now = fixedClock(baseTime)
	return f
}

func (f *executionFixture) seed(stageID int64, status models.StageStatus, at time.Time) models.StageDataRow {
	row := models.StageDataRow{
		InstanceID: testInstance,
		StageID:    int64p(stageID),
		Status:     status,
		FormData:   json.RawMessage(`{}`),
		CreatedAt:  at,
	}
	if status != models.StatusPending {
		row.CompletedAt = &at
	}
	return f.data.add(row)
}

func submit(stageID int64, status models.StageStatus, form string) models.SubmitStageRequest {
	req := models.SubmitStageRequest{StageID: stageID, Status: status}
	if form != "" {
		req.FormData = json.RawMessage(form)
	}
	return req
}

func TestSubmitStage_FreshSubmission(t *testing.T) {
	f := newExecutionFixture(t)

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusSubmitted, `{"roof":"tin"}`), salesCaller)
	require.NoError(t, err)

	assert.False(t, result.IsEdit)
	assert.Nil(t, result.RejectToStage)
	assert.Equal(t, models.StatusSubmitted, result.Data.Status)
	assert.JSONEq(t, `{"roof":"tin"}`, string(result.Data.FormData))
	require.NotNil(t, result.Data.CompletedAt)
	assert.True(t, baseTime.Equal(*result.Data.CompletedAt))
	assert.Equal(t, int64(5), *result.Data.ActionByUserID)

	require.Len(t, f.data.rows, 1)
	assert.Equal(t, []events.EventType{events.StageSubmitted}, f.events.types())
	payload := f.events.events[0].Payload.(events.StageEventPayload)
	assert.Equal(t, stageSurvey, payload.StageID)
	assert.Equal(t, "Site Survey", payload.StageName)
	assert.Equal(t, 1, f.tx.calls)
}

func TestSubmitStage_DefaultsToSubmittedWithEmptyForm(t *testing.T) {
	f := newExecutionFixture(t)

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		models.SubmitStageRequest{StageID: stageSurvey}, salesCaller)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, result.Data.Status)
	assert.JSONEq(t, `{}`, string(result.Data.FormData))
}

func TestSubmitStage_PendingHasNoCompletion(t *testing.T) {
	f := newExecutionFixture(t)

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusPending, ""), salesCaller)
	require.NoError(t, err)
	assert.Nil(t, result.Data.CompletedAt)
	assert.Equal(t, []events.EventType{events.StagePending}, f.events.types())
}

func TestSubmitStage_PrerequisitesNotMet(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageInstall, models.StatusSubmitted, `{}`), salesCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsPrerequisitesNotMet(err))

	var prereq *appErrors.PrerequisitesNotMetError
	require.True(t, stderrors.As(err, &prereq))
	assert.ElementsMatch(t, []appErrors.BlockingStage{
		{ID: stageSurvey, Name: "Site Survey"},
		{ID: stageQuotation, Name: "Quotation"},
	}, prereq.Blocking)

	assert.Empty(t, f.data.rows)
	assert.Empty(t, f.events.types())
	assert.Zero(t, f.tx.calls)
}

func TestSubmitStage_PrerequisitesMet(t *testing.T) {
	f := newExecutionFixture(t)
	f.seed(stageSurvey, models.StatusSubmitted, baseTime.Add(-2*time.Hour))
	f.seed(stageQuotation, models.StatusApproved, baseTime.Add(-time.Hour))

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageInstall, models.StatusSubmitted, `{"panels":12}`), salesCaller)
	require.NoError(t, err)
	assert.Len(t, f.data.rows, 3)
}

func TestSubmitStage_PrerequisiteUsesLatestRow(t *testing.T) {
	f := newExecutionFixture(t)
	f.seed(stageSurvey, models.StatusApproved, baseTime.Add(-2*time.Hour))
	f.seed(stageSurvey, models.StatusRejected, baseTime.Add(-time.Hour))

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageQuotation, models.StatusSubmitted, `{}`), salesCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsPrerequisitesNotMet(err))
}

func TestSubmitStage_PermissionDenied(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusApproved, `{}`), salesCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsPermission(err))

	details := appErrors.GetDetails(err)
	assert.Equal(t, constants.PermissionApprove, details["required_permission"])
	assert.Equal(t, "Sales", details["your_role"])
	assert.Empty(t, f.data.rows)
}

func TestSubmitStage_PermissionCheckedBeforePrerequisites(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageInstall, models.StatusSubmitted, `{}`), managerCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsPermission(err))
}

func TestSubmitStage_OverrideCapability(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusApproved, `{}`), adminCaller)
	require.NoError(t, err)
}

func TestSubmitStage_ResolvesPendingInPlace(t *testing.T) {
	f := newExecutionFixture(t)
	pending := f.data.add(models.StageDataRow{
		InstanceID: testInstance,
		StageID:    int64p(stageSurvey),
		Status:     models.StatusPending,
		FormData:   json.RawMessage(`{"draft":true}`),
		CreatedAt:  baseTime.Add(-time.Hour),
	})

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusSubmitted, ""), salesCaller)
	require.NoError(t, err)

	require.Len(t, f.data.rows, 1)
	assert.Equal(t, pending.ID, result.Data.ID)
	assert.Equal(t, models.StatusSubmitted, f.data.rows[0].Status)
	assert.JSONEq(t, `{"draft":true}`, string(f.data.rows[0].FormData))
	require.NotNil(t, f.data.rows[0].CompletedAt)
	assert.True(t, baseTime.Equal(*f.data.rows[0].CompletedAt))
	assert.False(t, result.IsEdit)
}

func TestSubmitStage_ResolvePendingStillChecksPrerequisites(t *testing.T) {
	f := newExecutionFixture(t)
	f.data.add(models.StageDataRow{
		InstanceID: testInstance,
		StageID:    int64p(stageQuotation),
		Status:     models.StatusPending,
		CreatedAt:  baseTime.Add(-time.Hour),
	})

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageQuotation, models.StatusSubmitted, `{}`), salesCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsPrerequisitesNotMet(err))
	assert.Equal(t, models.StatusPending, f.data.rows[0].Status)
}

func TestSubmitStage_EditAppendsMarkedRow(t *testing.T) {
	f := newExecutionFixture(t)
	original := baseTime.Add(-24 * time.Hour)
	f.seed(stageSurvey, models.StatusSubmitted, original)
	f.seed(stageQuotation, models.StatusSubmitted, original.Add(time.Hour))
	// the parent is no longer complete, which edits do not check
	f.seed(stageSurvey, models.StatusRejected, original.Add(2*time.Hour))

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageQuotation, models.StatusSubmitted, `{"amount":420000}`), salesCaller)
	require.NoError(t, err)

	assert.True(t, result.IsEdit)
	assert.Len(t, f.data.rows, 4)
	require.NotNil(t, result.Data.CompletedAt)
	assert.True(t, original.Add(time.Hour).Equal(*result.Data.CompletedAt))

	var form map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Data.FormData, &form))
	assert.Equal(t, true, form[models.FormKeyIsEdit])
	assert.Equal(t, float64(420000), form["amount"])
	assert.NotEmpty(t, form[models.FormKeyEditedAt])
	assert.NotEmpty(t, form[models.FormKeyOriginalCompletedAt])

	assert.Equal(t, []events.EventType{events.StageEdited}, f.events.types())
}

func TestSubmitStage_EditKeepsRejectionNotes(t *testing.T) {
	f := newExecutionFixture(t)
	f.seed(stageSurvey, models.StatusRejected, baseTime.Add(-time.Hour))
	f.data.rows[0].RejectionNotes = strp("wrong roof")

	result, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusRejected, `{}`), managerCaller)
	require.NoError(t, err)
	require.NotNil(t, result.Data.RejectionNotes)
	assert.Equal(t, "wrong roof", *result.Data.RejectionNotes)
}

func TestSubmitStage_RejectionCarriesRouteHint(t *testing.T) {
	f := newExecutionFixture(t)
	f.seed(stageSurvey, models.StatusApproved, baseTime.Add(-time.Hour))

	req := submit(stageQuotation, models.StatusRejected, `{}`)
	req.RejectionNotes = strp("price too high")
	result, err := f.svc.SubmitStage(context.Background(), testInstance, req, managerCaller)
	require.NoError(t, err)

	require.NotNil(t, result.RejectToStage)
	assert.Equal(t, models.StageRef{ID: stageSurvey, Name: "Site Survey"}, *result.RejectToStage)
	assert.Equal(t, "price too high", *result.Data.RejectionNotes)
	// the hint never writes a row for the target stage
	assert.Len(t, f.data.rows, 2)
	assert.Equal(t, []events.EventType{events.StageRejected}, f.events.types())
}

func TestSubmitStage_CompletionListsDownstreamStages(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusApproved, `{}`), managerCaller)
	require.NoError(t, err)
	_, err = f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageQuotation, models.StatusRejected, `{}`), managerCaller)
	require.NoError(t, err)

	require.Len(t, f.events.events, 2)
	approved := f.events.events[0].Payload.(events.StageEventPayload)
	assert.Equal(t, []int64{stageQuotation, stageInstall}, approved.DownstreamStageIDs)
	rejected := f.events.events[1].Payload.(events.StageEventPayload)
	assert.Nil(t, rejected.DownstreamStageIDs)
	assert.Equal(t, stageSurvey, *rejected.RejectToStageID)
}

func TestSubmitStage_UnrecognisedStoredStatus(t *testing.T) {
	f := newExecutionFixture(t)
	f.seed(stageSurvey, models.StageStatus("ARCHIVED"), baseTime.Add(-time.Hour))

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusSubmitted, `{}`), salesCaller)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
	assert.Contains(t, err.Error(), `no status may be recorded after "ARCHIVED"`)
	assert.Len(t, f.data.rows, 1)
	assert.Empty(t, f.events.types())
}

func TestSubmitStage_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name     string
		instance int64
		req      models.SubmitStageRequest
		check    func(error) bool
	}{
		{"unknown status", testInstance, submit(stageSurvey, "DONE", ""), appErrors.IsValidation},
		{"missing stage id", testInstance, submit(0, models.StatusSubmitted, ""), appErrors.IsValidation},
		{"form data array", testInstance, submit(stageSurvey, models.StatusSubmitted, `[1,2]`), appErrors.IsValidation},
		{"form data scalar", testInstance, submit(stageSurvey, models.StatusSubmitted, `"x"`), appErrors.IsValidation},
		{"unknown instance", 999, submit(stageSurvey, models.StatusSubmitted, ""), appErrors.IsNotFound},
		{"unknown stage", testInstance, submit(555, models.StatusSubmitted, ""), appErrors.IsNotFound},
		{"stage of another workflow", testInstance, submit(otherStage, models.StatusSubmitted, ""), appErrors.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutionFixture(t)
			_, err := f.svc.SubmitStage(context.Background(), tt.instance, tt.req, adminCaller)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Empty(t, f.data.rows)
		})
	}
}

func TestSubmitStage_AppendFailureSkipsEvent(t *testing.T) {
	f := newExecutionFixture(t)
	f.data.appendErr = errStoreDown

	_, err := f.svc.SubmitStage(context.Background(), testInstance,
		submit(stageSurvey, models.StatusSubmitted, `{}`), salesCaller)
	require.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.events.types())
}

func TestStartInstance(t *testing.T) {
	f := newExecutionFixture(t)

	instance, err := f.svc.StartInstance(context.Background(), models.StartInstanceRequest{WorkflowID: 1, EntityID: 42})
	require.NoError(t, err)
	assert.Equal(t, constants.EntityTypeProject, instance.EntityType)
	assert.Equal(t, models.InstanceInProgress, instance.Status)
	assert.NotZero(t, instance.ID)

	require.Equal(t, []events.EventType{events.InstanceStarted}, f.events.types())
	payload := f.events.events[0].Payload.(events.InstancePayload)
	assert.Equal(t, int64(42), payload.EntityID)
}

func TestStartInstance_AllowsDuplicates(t *testing.T) {
	f := newExecutionFixture(t)

	first, err := f.svc.StartInstance(context.Background(), models.StartInstanceRequest{WorkflowID: 1, EntityID: 42, EntityType: "lead"})
	require.NoError(t, err)
	second, err := f.svc.StartInstance(context.Background(), models.StartInstanceRequest{WorkflowID: 1, EntityID: 42, EntityType: "lead"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, constants.EntityTypeLead, second.EntityType)

	latest, err := f.instances.FindLatestForEntity(context.Background(), 42, constants.EntityTypeLead)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestStartInstance_Validation(t *testing.T) {
	f := newExecutionFixture(t)

	_, err := f.svc.StartInstance(context.Background(), models.StartInstanceRequest{WorkflowID: 1})
	assert.True(t, appErrors.IsValidation(err))

	_, err = f.svc.StartInstance(context.Background(), models.StartInstanceRequest{WorkflowID: 77, EntityID: 1})
	assert.True(t, appErrors.IsNotFound(err))
	assert.Empty(t, f.events.types())
}
