package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	maintenanceCheckInterval = time.Minute
	maintenanceMaxRuntime    = 5 * time.Minute
)

// OutboxCleaner purges delivered events
type OutboxCleaner interface {
	CleanupProcessed(ctx context.Context, olderThan time.Duration) (int64, error)
}

// MaintenanceScheduler purges processed outbox events on a cron schedule
type MaintenanceScheduler struct {
	cleaner   OutboxCleaner
	schedule  cron.Schedule
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	log       *logrus.Entry

	nextRun  time.Time
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
}

// ParseSchedule parses a standard five field cron expression
func ParseSchedule(spec string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return schedule, nil
}

// NewMaintenanceScheduler creates a scheduler that runs cleaner on spec,
// deleting events processed more than retention ago.
func NewMaintenanceScheduler(cleaner OutboxCleaner, spec string, retention time.Duration) (*MaintenanceScheduler, error) {
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	s := &MaintenanceScheduler{
		cleaner:   cleaner,
		schedule:  schedule,
		retention: retention,
		interval:  maintenanceCheckInterval,
		now:       func() time.Time { return time.Now().UTC() },
		log:       logrus.WithField("component", "maintenance"),
		stopChan:  make(chan struct{}),
	}
	s.nextRun = schedule.Next(s.now())
	return s, nil
}

// NextRun returns when the cleanup is next due
func (s *MaintenanceScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRun
}

// Start runs the scheduler loop until Stop is called. It blocks.
func (s *MaintenanceScheduler) Start() {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.log.WithField("next_run", s.NextRun()).Info("Maintenance scheduler starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunDue()
		case <-s.stopChan:
			s.wg.Wait()
			s.log.Info("Maintenance scheduler stopped")
			return
		}
	}
}

// Stop gracefully stops the scheduler
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.running = false
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
}

// RunDue performs the cleanup when its next run time has passed and
// reports whether it ran.
func (s *MaintenanceScheduler) RunDue() bool {
	now := s.now()

	s.mu.Lock()
	if now.Before(s.nextRun) {
		s.mu.Unlock()
		return false
	}
	s.nextRun = s.schedule.Next(now)
	s.mu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceMaxRuntime)
	defer cancel()

	removed, err := s.cleaner.CleanupProcessed(ctx, s.retention)
	if err != nil {
		s.log.WithError(err).Error("Outbox cleanup failed")
		return true
	}
	s.log.WithFields(logrus.Fields{
		"removed":  removed,
		"next_run": s.NextRun(),
	}).Info("Outbox cleanup completed")
	return true
}
