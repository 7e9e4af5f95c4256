package domain

import (
	"github.com/bhuvesh-solnce/backend/internal/domain/models"
	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/errors"
)

// RequiredPermission returns the stage permission needed to record status:
// approve for APPROVED and REJECTED, edit for everything else.
func RequiredPermission(status models.StageStatus) string {
	if status.RequiresApprove() {
		return constants.PermissionApprove
	}
	return constants.PermissionEdit
}

// Authorize checks that caller may record status on stage. Callers holding
// the workflow override capability bypass the stage's role lists.
func Authorize(stage models.Stage, status models.StageStatus, caller models.Caller) error {
	if caller.HasCapability(constants.CapabilityWorkflowOverride) {
		return nil
	}

	required := RequiredPermission(status)
	allowed := stage.Permissions.Edit
	if required == constants.PermissionApprove {
		allowed = stage.Permissions.Approve
	}

	for _, role := range allowed {
		if role == caller.Role {
			return nil
		}
	}
	return errors.NewStagePermissionError(actionVerb(status), stage.Name, required, caller.Role)
}

func actionVerb(status models.StageStatus) string {
	switch status {
	case models.StatusApproved:
		return "approve"
	case models.StatusRejected:
		return "reject"
	case models.StatusSkipped:
		return "skip"
	default:
		return "submit"
	}
}

// UnmetPrerequisites returns the parents whose latest status is not
// APPROVED or SUBMITTED. Parents with no rows are unmet.
func UnmetPrerequisites(parents []models.StageRef, latest map[int64]models.StageStatus) []errors.BlockingStage {
	var blocking []errors.BlockingStage
	for _, parent := range parents {
		if status, ok := latest[parent.ID]; ok && status.IsComplete() {
			continue
		}
		blocking = append(blocking, errors.BlockingStage{ID: parent.ID, Name: parent.Name})
	}
	return blocking
}

// CheckPrerequisites fails with PrerequisitesNotMetError when any parent of
// stage is incomplete.
func CheckPrerequisites(stage models.Stage, parents []models.StageRef, latest map[int64]models.StageStatus) error {
	if blocking := UnmetPrerequisites(parents, latest); len(blocking) > 0 {
		return errors.NewPrerequisitesNotMetError(stage.Name, blocking)
	}
	return nil
}
