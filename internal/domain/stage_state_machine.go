package domain

import (
	"fmt"

	"github.com/bhuvesh-solnce/backend/internal/domain/models"
)

// SubmissionKind classifies how a submission is written to the stage data log
type SubmissionKind string

const (
	// SubmissionFresh appends the first row for the (instance, stage) pair
	SubmissionFresh SubmissionKind = "Fresh"
	// SubmissionResolvePending updates the latest PENDING row in place
	SubmissionResolvePending SubmissionKind = "ResolvePending"
	// SubmissionEdit appends a row that revises an already terminal stage
	SubmissionEdit SubmissionKind = "Edit"
)

// stateNone is the state of a pair that has no log rows yet
const stateNone models.StageStatus = ""

var allStatuses = []models.StageStatus{
	models.StatusPending,
	models.StatusSubmitted,
	models.StatusApproved,
	models.StatusRejected,
	models.StatusSkipped,
}

// StageStateMachine decides how a requested status is recorded for an
// (instance, stage) pair given the pair's latest status.
type StageStateMachine struct {
	// transitions maps (current status, requested status) -> submission kind
	transitions map[stageTransitionKey]SubmissionKind
}

type stageTransitionKey struct {
	current   models.StageStatus
	requested models.StageStatus
}

// NewStageStateMachine creates the state machine for stage submissions.
// State diagram:
//
//	   (no rows) ──Fresh──► [any status]
//	                            │
//	[PENDING] ──ResolvePending──► {SUBMITTED, APPROVED, REJECTED, SKIPPED, PENDING}
//	                            │
//	[SUBMITTED|APPROVED|REJECTED|SKIPPED] ──Edit──► new row, markers set
//
// Nothing advances automatically; the client picks the next stage.
func NewStageStateMachine() *StageStateMachine {
	sm := &StageStateMachine{
		transitions: make(map[stageTransitionKey]SubmissionKind),
	}

	for _, requested := range allStatuses {
		sm.addTransition(stateNone, requested, SubmissionFresh)
		sm.addTransition(models.StatusPending, requested, SubmissionResolvePending)
		for _, current := range allStatuses {
			if sm.IsTerminal(current) {
				sm.addTransition(current, requested, SubmissionEdit)
			}
		}
	}

	return sm
}

func (sm *StageStateMachine) addTransition(from, to models.StageStatus, kind SubmissionKind) {
	sm.transitions[stageTransitionKey{current: from, requested: to}] = kind
}

// Classify returns how a request for status requested is written, given the
// latest status of the pair. current is nil when the pair has no rows.
func (sm *StageStateMachine) Classify(current *models.StageStatus, requested models.StageStatus) (SubmissionKind, error) {
	from := stateNone
	if current != nil {
		from = *current
	}
	kind, ok := sm.transitions[stageTransitionKey{current: from, requested: requested}]
	if !ok {
		allowed := sm.ValidRequests(from)
		if len(allowed) == 0 {
			return "", fmt.Errorf("invalid stage transition: no status may be recorded after %q", from)
		}
		return "", fmt.Errorf("invalid stage transition: cannot record %q after %q (allowed: %v)", requested, from, allowed)
	}
	return kind, nil
}

// ValidRequests returns every status that may be requested from the given state.
func (sm *StageStateMachine) ValidRequests(current models.StageStatus) []models.StageStatus {
	var result []models.StageStatus
	for _, requested := range allStatuses {
		if _, ok := sm.transitions[stageTransitionKey{current: current, requested: requested}]; ok {
			result = append(result, requested)
		}
	}
	return result
}

// IsTerminal returns true once a stage has left PENDING. Terminal stages
// change only through edits.
func (sm *StageStateMachine) IsTerminal(status models.StageStatus) bool {
	return status.Valid() && status != models.StatusPending
}
