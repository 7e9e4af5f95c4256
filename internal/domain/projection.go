package domain

import (
	"sort"
	"time"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
)

// UnknownUserName labels an actor whose user row has no name
const UnknownUserName = "Unknown User"

// DecodeEvents converts log rows to events ordered newest first.
func DecodeEvents(rows []models.StageDataRow) []models.StageEvent {
	events := make([]models.StageEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, models.NewStageEvent(row))
	}
	return SortNewestFirst(events)
}

// SortNewestFirst returns a copy of events ordered by created_at descending,
// breaking ties on the higher id.
func SortNewestFirst(events []models.StageEvent) []models.StageEvent {
	out := append([]models.StageEvent(nil), events...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// LatestByStage returns the most recently created event of every real stage.
func LatestByStage(events []models.StageEvent) map[int64]models.StageEvent {
	latest := make(map[int64]models.StageEvent)
	for _, ev := range SortNewestFirst(events) {
		if ev.StageID == nil {
			continue
		}
		if _, seen := latest[*ev.StageID]; !seen {
			latest[*ev.StageID] = ev
		}
	}
	return latest
}

// LatestStatuses maps every real stage with rows to its latest status.
func LatestStatuses(events []models.StageEvent) map[int64]models.StageStatus {
	latest := LatestByStage(events)
	out := make(map[int64]models.StageStatus, len(latest))
	for id, ev := range latest {
		out[id] = ev.Status
	}
	return out
}

// ProjectStageStatuses reduces the log to the latest snapshot per stage key.
// Rows without a stage share the "null" key.
func ProjectStageStatuses(events []models.StageEvent, users map[int64]models.UserRef) map[string]models.StatusSnapshot {
	statuses := make(map[string]models.StatusSnapshot)
	for _, ev := range SortNewestFirst(events) {
		key := ev.Key()
		if _, seen := statuses[key]; seen {
			continue
		}
		statuses[key] = models.StatusSnapshot{
			ID:                  ev.ID,
			Status:              ev.Status,
			FormData:            ev.FormData,
			RejectionNotes:      ev.RejectionNotes,
			CompletedAt:         ev.CompletedAt,
			CompletedBy:         actor(ev, users),
			IsEdited:            ev.IsEdit,
			EditedAt:            ev.EditedAt,
			OriginalCompletedAt: ev.OriginalCompletedAt,
			CreatedAt:           ev.CreatedAt,
		}
	}
	return statuses
}

// ProjectActivities builds the timeline: one entry per non-PENDING row,
// newest first. Lead status changes are always listed; rows of stages that
// no longer exist are dropped.
func ProjectActivities(events []models.StageEvent, stages map[int64]models.Stage, users map[int64]models.UserRef) []models.Activity {
	activities := make([]models.Activity, 0, len(events))
	for _, ev := range SortNewestFirst(events) {
		if ev.Status == models.StatusPending {
			continue
		}

		if ev.Kind == models.LeadStatusChange {
			activities = append(activities, models.Activity{
				ID:             ev.ID,
				StageID:        ev.StageID,
				StageName:      constants.ActivityLeadStatusChanged,
				StageType:      models.StageTypeLeadStatusChange,
				Status:         constants.ActivityStatusCompleted,
				FormData:       ev.FormData,
				RejectionNotes: ev.RejectionNotes,
				CompletedAt:    ev.CompletedAt,
				CompletedBy:    actor(ev, users),
				CreatedAt:      ev.CreatedAt,
			})
			continue
		}

		stage, ok := stages[*ev.StageID]
		if !ok {
			continue
		}
		status := string(ev.Status)
		if ev.IsEdit {
			status = constants.ActivityStatusEdited
		}
		completedAt := ev.SortTime()
		activities = append(activities, models.Activity{
			ID:             ev.ID,
			StageID:        ev.StageID,
			StageName:      stage.Name,
			StageType:      stage.Type,
			Status:         status,
			FormData:       ev.FormData,
			RejectionNotes: ev.RejectionNotes,
			CompletedAt:    &completedAt,
			CompletedBy:    actor(ev, users),
			CreatedAt:      ev.CreatedAt,
			IsEdit:         ev.IsEdit,
			EditedAt:       ev.EditedAt,
		})
	}

	sort.SliceStable(activities, func(i, j int) bool {
		return activitySortTime(activities[i]).After(activitySortTime(activities[j]))
	})
	return activities
}

// CurrentStageLabel names the stage an instance is positioned at:
// the latest PENDING stage, else the most recently completed stage, else
// the structurally first stage, else "Not Started".
func CurrentStageLabel(events []models.StageEvent, stages []models.Stage) string {
	byID := make(map[int64]models.Stage, len(stages))
	for _, s := range stages {
		byID[s.ID] = s
	}

	var pending, completed *models.StageEvent
	for id, ev := range LatestByStage(events) {
		if _, ok := byID[id]; !ok || ev.Kind == models.LeadStatusChange {
			continue
		}
		ev := ev
		switch {
		case ev.Status == models.StatusPending:
			if pending == nil || newer(ev.CreatedAt, ev.ID, pending.CreatedAt, pending.ID) {
				pending = &ev
			}
		case ev.Status.IsComplete():
			if completed == nil || newer(ev.SortTime(), ev.ID, completed.SortTime(), completed.ID) {
				completed = &ev
			}
		}
	}

	if pending != nil {
		return byID[*pending.StageID].Name
	}
	if completed != nil {
		return byID[*completed.StageID].Name
	}
	if len(stages) > 0 {
		return SortByLayout(stages)[0].Name
	}
	return constants.WorkflowNotStarted
}

// IsWorkflowCompleted reports whether the structurally last stage has been
// completed. The gate stage's row is looked up directly (its first row),
// not through latest-wins.
func IsWorkflowCompleted(events []models.StageEvent, stages []models.Stage) bool {
	if len(stages) == 0 {
		return false
	}
	ordered := SortByLayout(stages)
	gate := ordered[len(ordered)-1]

	var first *models.StageEvent
	for i := range events {
		ev := events[i]
		if ev.StageID == nil || *ev.StageID != gate.ID {
			continue
		}
		if first == nil || ev.CreatedAt.Before(first.CreatedAt) ||
			(ev.CreatedAt.Equal(first.CreatedAt) && ev.ID < first.ID) {
			first = &ev
		}
	}
	return first != nil && first.Status.IsComplete()
}

func actor(ev models.StageEvent, users map[int64]models.UserRef) *models.UserRef {
	if ev.ActionByUserID == nil {
		return nil
	}
	user, ok := users[*ev.ActionByUserID]
	if !ok {
		return nil
	}
	if user.Name == "" {
		user.Name = UnknownUserName
	}
	return &user
}

func newer(at time.Time, id int64, otherAt time.Time, otherID int64) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return id > otherID
}

func activitySortTime(a models.Activity) time.Time {
	if a.CompletedAt != nil {
		return *a.CompletedAt
	}
	return a.CreatedAt
}
