package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bhuvesh-solnce/backend/internal/domain/events"
	"github.com/bhuvesh-solnce/backend/internal/domain/ports"
)

const (
	// MaxRetryAttempts is how many failed deliveries mark an event failed
	MaxRetryAttempts = 5
	// DefaultOutboxBatchSize bounds one polling pass
	DefaultOutboxBatchSize = 100
)

// OutboxService handles transactional event storage and async publishing.
// Events are written in the same transaction as the stage data row they
// describe and delivered to the EventBus by a polling worker.
type OutboxService struct {
	repo      ports.OutboxEventStore
	publisher ports.EventPublisher
	tx        ports.Transactor
	batchSize int
	log       *logrus.Entry

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.EventEnqueuer = (*OutboxService)(nil)

// NewOutboxService creates a new OutboxService
func NewOutboxService(repo ports.OutboxEventStore, publisher ports.EventPublisher, tx ports.Transactor) *OutboxService {
	return &OutboxService{
		repo:      repo,
		publisher: publisher,
		tx:        tx,
		batchSize: DefaultOutboxBatchSize,
		log:       logrus.WithField("component", "outbox"),
		stopCh:    make(chan struct{}),
	}
}

// SetBatchSize changes how many events one polling pass picks up
func (os *OutboxService) SetBatchSize(n int) {
	if n > 0 {
		os.batchSize = n
	}
}

// EnqueueEvent stores an event in the outbox. When ctx carries a
// transaction the insert joins it, so the event commits or rolls back with
// the business write.
func (os *OutboxService) EnqueueEvent(ctx context.Context, eventType events.EventType, payload interface{}) error {
	id, err := os.repo.Enqueue(ctx, string(eventType), payload)
	if err != nil {
		return err
	}
	os.log.WithFields(logrus.Fields{"event_id": id, "event_type": eventType}).Debug("Enqueued event")
	return nil
}

// StartWorker starts the background worker that processes pending outbox
// events every interval.
func (os *OutboxService) StartWorker(interval time.Duration) {
	os.wg.Add(1)
	go func() {
		defer os.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		os.log.WithField("interval", interval).Info("Outbox worker started")

		for {
			select {
			case <-os.stopCh:
				os.log.Info("Outbox worker stopping")
				return
			case <-ticker.C:
				if err := os.ProcessOutbox(context.Background()); err != nil {
					os.log.WithError(err).Warn("Outbox worker error")
				}
			}
		}
	}()
}

// StopWorker stops the background worker gracefully
func (os *OutboxService) StopWorker() {
	os.stopOnce.Do(func() {
		close(os.stopCh)
	})
	os.wg.Wait()
	os.log.Info("Outbox worker stopped")
}

// ProcessOutbox delivers one batch of pending events. Each event is
// claimed, published and marked in its own transaction.
func (os *OutboxService) ProcessOutbox(ctx context.Context) error {
	pending, err := os.repo.GetPendingEvents(ctx, os.batchSize)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		os.log.WithField("count", len(pending)).Debug("Processing pending events")
	}

	for _, e := range pending {
		if err := os.processEventAtomic(ctx, e); err != nil {
			os.log.WithField("event_id", e.ID).WithError(err).Warn("Failed to process outbox event")
		}
	}

	return nil
}

func (os *OutboxService) processEventAtomic(ctx context.Context, e ports.OutboxEvent) error {
	return os.tx.RunInTx(ctx, func(ctx context.Context) error {
		claimed, err := os.repo.ClaimEvent(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("failed to claim event: %w", err)
		}
		if !claimed {
			return nil
		}

		eventType := events.EventType(e.EventType)
		payload, err := events.DecodePayload(eventType, []byte(e.Payload))
		if err != nil {
			os.log.WithField("event_id", e.ID).WithError(err).Error("Event payload is unreadable")
			if markErr := os.repo.MarkFailed(ctx, e.ID, fmt.Sprintf("invalid payload: %v", err)); markErr != nil {
				return fmt.Errorf("failed to mark event as failed: %w", markErr)
			}
			return nil
		}

		if err := os.publisher.Publish(ctx, eventType, payload); err != nil {
			attempts := e.RetryCount + 1
			if attempts >= MaxRetryAttempts {
				if markErr := os.repo.MarkFailed(ctx, e.ID, fmt.Sprintf("max retries exceeded: %v", err)); markErr != nil {
					return fmt.Errorf("failed to mark event as failed: %w", markErr)
				}
				return nil
			}

			if updateErr := os.repo.IncrementRetry(ctx, e.ID, attempts, err.Error()); updateErr != nil {
				return fmt.Errorf("failed to update retry count: %w", updateErr)
			}
			os.log.WithFields(logrus.Fields{
				"event_id": e.ID,
				"attempt":  attempts,
			}).WithError(err).Warn("Event delivery failed")
			return nil
		}

		if err := os.repo.MarkProcessed(ctx, e.ID); err != nil {
			return fmt.Errorf("failed to mark as processed: %w", err)
		}
		return nil
	})
}

// CleanupProcessed removes processed events older than olderThan
func (os *OutboxService) CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	return os.repo.CleanupProcessed(ctx, cutoff)
}
