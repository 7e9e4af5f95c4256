package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/bhuvesh-solnce/backend/pkg/constants"
	"github.com/bhuvesh-solnce/backend/pkg/utils"
)

// Well-known keys inside form_data
const (
	FormKeyIsEdit              = "is_edit"
	FormKeyEditedAt            = "edited_at"
	FormKeyOriginalCompletedAt = "original_completed_at"
	FormKeyType                = "type"
	FormKeyOldStatus           = "old_status"
	FormKeyNewStatus           = "new_status"
	FormKeyComment             = "comment"
)

// StageEventKind discriminates the two kinds of log entries
type StageEventKind int

const (
	// StageTransition records a status change on a real stage
	StageTransition StageEventKind = iota
	// LeadStatusChange records a lead status change on the owning entity
	LeadStatusChange
)

func (k StageEventKind) String() string {
	if k == LeadStatusChange {
		return string(StageTypeLeadStatusChange)
	}
	return "STAGE_TRANSITION"
}

// StageEvent is a decoded log row. Edit bookkeeping is lifted out of the
// payload into dedicated fields so that FormData holds only user data.
type StageEvent struct {
	StageDataRow
	Kind                StageEventKind
	FormData            json.RawMessage
	IsEdit              bool
	EditedAt            *time.Time
	OriginalCompletedAt *time.Time
	OldStatus           string
	NewStatus           string
}

// NewStageEvent decodes a log row into an event
func NewStageEvent(row StageDataRow) StageEvent {
	ev := StageEvent{StageDataRow: row, Kind: StageTransition, FormData: row.FormData}
	if row.StageID == nil {
		ev.Kind = LeadStatusChange
	}

	var fields map[string]interface{}
	if len(row.FormData) == 0 || json.Unmarshal(row.FormData, &fields) != nil || fields == nil {
		if len(ev.FormData) == 0 || string(ev.FormData) == "null" {
			ev.FormData = json.RawMessage(`{}`)
		}
		return ev
	}

	if utils.ToString(fields[FormKeyType]) == string(StageTypeLeadStatusChange) {
		ev.Kind = LeadStatusChange
		ev.OldStatus = utils.ToString(fields[FormKeyOldStatus])
		ev.NewStatus = utils.ToString(fields[FormKeyNewStatus])
	}

	_, hasEdit := fields[FormKeyIsEdit]
	_, hasEditedAt := fields[FormKeyEditedAt]
	_, hasOriginal := fields[FormKeyOriginalCompletedAt]
	if !hasEdit && !hasEditedAt && !hasOriginal {
		return ev
	}

	ev.IsEdit = utils.ToBool(fields[FormKeyIsEdit])
	ev.EditedAt = utils.ToTime(fields[FormKeyEditedAt])
	ev.OriginalCompletedAt = utils.ToTime(fields[FormKeyOriginalCompletedAt])
	delete(fields, FormKeyIsEdit)
	delete(fields, FormKeyEditedAt)
	delete(fields, FormKeyOriginalCompletedAt)
	if stripped, err := json.Marshal(fields); err == nil {
		ev.FormData = stripped
	}
	return ev
}

// Key is the stage status map key for the event: the stage id, or "null"
func (e StageEvent) Key() string {
	if e.StageID == nil {
		return constants.NullStageKey
	}
	return strconv.FormatInt(*e.StageID, 10)
}

// SortTime is completed_at when set, else created_at
func (e StageEvent) SortTime() time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.CreatedAt
}

// DecodeFormObject parses form_data as a JSON object. Empty or null input
// yields an empty map.
func DecodeFormObject(raw json.RawMessage) (map[string]interface{}, error) {
	fields := map[string]interface{}{}
	if len(raw) == 0 || string(raw) == "null" {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	return fields, nil
}

// WithEditMarkers returns form_data annotated as an edit of a previously
// completed row.
func WithEditMarkers(raw json.RawMessage, editedAt time.Time, originalCompletedAt *time.Time) (json.RawMessage, error) {
	fields, err := DecodeFormObject(raw)
	if err != nil {
		return nil, err
	}
	fields[FormKeyIsEdit] = true
	fields[FormKeyEditedAt] = editedAt.UTC().Format(time.RFC3339Nano)
	if originalCompletedAt != nil {
		fields[FormKeyOriginalCompletedAt] = originalCompletedAt.UTC().Format(time.RFC3339Nano)
	} else {
		fields[FormKeyOriginalCompletedAt] = nil
	}
	return json.Marshal(fields)
}

// LeadStatusFormData builds the payload of a lead status change entry
func LeadStatusFormData(oldStatus, newStatus, comment string) json.RawMessage {
	payload := map[string]interface{}{
		FormKeyType:      string(StageTypeLeadStatusChange),
		FormKeyOldStatus: oldStatus,
		FormKeyNewStatus: newStatus,
	}
	if comment != "" {
		payload[FormKeyComment] = comment
	}
	data, _ := json.Marshal(payload)
	return data
}
