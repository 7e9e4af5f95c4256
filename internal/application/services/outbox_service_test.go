package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
)

type MockOutboxStore struct {
	mock.Mock
}

func (m *MockOutboxStore) Enqueue(ctx context.Context, eventType string, payload interface{}) (string, error) {
	args := m.Called(ctx, eventType, payload)
	return args.String(0), args.Error(1)
}

func (m *MockOutboxStore) GetPendingEvents(ctx context.Context, limit int) ([]ports.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.OutboxEvent), args.Error(1)
}

func (m *MockOutboxStore) ClaimEvent(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockOutboxStore) MarkProcessed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockOutboxStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return m.Called(ctx, id, errMsg).Error(0)
}

func (m *MockOutboxStore) IncrementRetry(ctx context.Context, id string, retryCount int, errMsg string) error {
	return m.Called(ctx, id, retryCount, errMsg).Error(0)
}

func (m *MockOutboxStore) CleanupProcessed(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

const submittedPayload = `{"instance_id":100,"stage_data_id":7,"stage_id":10,"stage_name":"Site Survey","status":"SUBMITTED","occurred_at":"2025-03-01T09:00:00Z"}`

func TestOutboxService_EnqueueEvent(t *testing.T) {
	store := new(MockOutboxStore)
	payload := events.InstancePayload{InstanceID: 1}
	store.On("Enqueue", mock.Anything, "instance.started", payload).Return("evt-1", nil)

	svc := NewOutboxService(store, NewEventBus(), &fakeTx{})
	require.NoError(t, svc.EnqueueEvent(context.Background(), events.InstanceStarted, payload))
	store.AssertExpectations(t)

	store2 := new(MockOutboxStore)
	store2.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return("", errStoreDown)
	svc = NewOutboxService(store2, NewEventBus(), &fakeTx{})
	assert.ErrorIs(t, svc.EnqueueEvent(context.Background(), events.InstanceStarted, payload), errStoreDown)
}

func TestOutboxService_ProcessDeliversAndMarks(t *testing.T) {
	store := new(MockOutboxStore)
	bus := NewEventBus()
	tx := &fakeTx{}

	var got *events.StageEventPayload
	bus.Subscribe(events.StageSubmitted, func(ctx context.Context, payload interface{}) error {
		got = payload.(*events.StageEventPayload)
		return nil
	})

	store.On("GetPendingEvents", mock.Anything, 25).Return([]ports.OutboxEvent{
		{ID: "evt-1", EventType: "stage.submitted", Payload: submittedPayload},
	}, nil)
	store.On("ClaimEvent", mock.Anything, "evt-1").Return(true, nil)
	store.On("MarkProcessed", mock.Anything, "evt-1").Return(nil)

	svc := NewOutboxService(store, bus, tx)
	svc.SetBatchSize(25)
	svc.SetBatchSize(0)
	require.NoError(t, svc.ProcessOutbox(context.Background()))

	store.AssertExpectations(t)
	assert.Equal(t, 1, tx.calls)
	require.NotNil(t, got)
	assert.Equal(t, int64(10), got.StageID)
	assert.Equal(t, "Site Survey", got.StageName)
}

func TestOutboxService_RetriesThenFails(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(events.StageSubmitted, func(ctx context.Context, payload interface{}) error {
		return errors.New("webhook down")
	})

	store := new(MockOutboxStore)
	store.On("GetPendingEvents", mock.Anything, DefaultOutboxBatchSize).Return([]ports.OutboxEvent{
		{ID: "evt-1", EventType: "stage.submitted", Payload: submittedPayload, RetryCount: 1},
		{ID: "evt-2", EventType: "stage.submitted", Payload: submittedPayload, RetryCount: MaxRetryAttempts - 1},
	}, nil)
	store.On("ClaimEvent", mock.Anything, mock.Anything).Return(true, nil)
	store.On("IncrementRetry", mock.Anything, "evt-1", 2, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "webhook down")
	})).Return(nil)
	store.On("MarkFailed", mock.Anything, "evt-2", mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "max retries exceeded")
	})).Return(nil)

	svc := NewOutboxService(store, bus, &fakeTx{})
	require.NoError(t, svc.ProcessOutbox(context.Background()))

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
}

func TestOutboxService_UnreadablePayloadFails(t *testing.T) {
	store := new(MockOutboxStore)
	store.On("GetPendingEvents", mock.Anything, mock.Anything).Return([]ports.OutboxEvent{
		{ID: "evt-1", EventType: "stage.unknown", Payload: `{}`},
		{ID: "evt-2", EventType: "stage.submitted", Payload: `not json`},
	}, nil)
	store.On("ClaimEvent", mock.Anything, mock.Anything).Return(true, nil)
	store.On("MarkFailed", mock.Anything, "evt-1", mock.Anything).Return(nil)
	store.On("MarkFailed", mock.Anything, "evt-2", mock.Anything).Return(nil)

	svc := NewOutboxService(store, NewEventBus(), &fakeTx{})
	require.NoError(t, svc.ProcessOutbox(context.Background()))
	store.AssertExpectations(t)
}

func TestOutboxService_SkipsUnclaimedEvents(t *testing.T) {
	published := 0
	bus := NewEventBus()
	bus.Subscribe(events.StageSubmitted, func(ctx context.Context, payload interface{}) error {
		published++
		return nil
	})

	store := new(MockOutboxStore)
	store.On("GetPendingEvents", mock.Anything, mock.Anything).Return([]ports.OutboxEvent{
		{ID: "evt-1", EventType: "stage.submitted", Payload: submittedPayload},
		{ID: "evt-2", EventType: "stage.submitted", Payload: submittedPayload},
	}, nil)
	store.On("ClaimEvent", mock.Anything, "evt-1").Return(false, nil)
	store.On("ClaimEvent", mock.Anything, "evt-2").Return(false, errStoreDown)

	svc := NewOutboxService(store, bus, &fakeTx{})
	require.NoError(t, svc.ProcessOutbox(context.Background()))

	assert.Zero(t, published)
	store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
}

func TestOutboxService_PendingLookupError(t *testing.T) {
	store := new(MockOutboxStore)
	store.On("GetPendingEvents", mock.Anything, mock.Anything).Return(nil, errStoreDown)

	svc := NewOutboxService(store, NewEventBus(), &fakeTx{})
	assert.ErrorIs(t, svc.ProcessOutbox(context.Background()), errStoreDown)
}

func TestOutboxService_CleanupProcessed(t *testing.T) {
	store := new(MockOutboxStore)
	store.On("CleanupProcessed", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		age := time.Since(before)
		return age > 47*time.Hour && age < 49*time.Hour
	})).Return(int64(12), nil)

	svc := NewOutboxService(store, NewEventBus(), &fakeTx{})
	removed, err := svc.CleanupProcessed(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(12), removed)
}

func TestOutboxService_WorkerStops(t *testing.T) {
	store := new(MockOutboxStore)
	store.On("GetPendingEvents", mock.Anything, mock.Anything).Return([]ports.OutboxEvent{}, nil)

	svc := NewOutboxService(store, NewEventBus(), &fakeTx{})
	svc.StartWorker(5 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	svc.StopWorker()
	svc.StopWorker()

	store.AssertCalled(t, "GetPendingEvents", mock.Anything, DefaultOutboxBatchSize)
}
