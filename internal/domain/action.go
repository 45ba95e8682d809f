package domain

import (
	"fmt"
	"strings"
)

// ActionKind is the tag of a user action on a diff notification.
type ActionKind string

const (
	ActionApprove   ActionKind = "approve"
	ActionReject    ActionKind = "reject"
	ActionExportCSV ActionKind = "export_csv"
)

// Action ids carried by notification buttons.
const (
	ActionIDApproveDaily     = "approve_update"
	ActionIDApproveImmediate = "approve_immediate"
	ActionIDApprove1h        = "approve_1h"
	ActionIDApprove3h        = "approve_3h"
	ActionIDApprove5h        = "approve_5h"
	ActionIDReject           = "reject_update"
	ActionIDExportCSV        = "export_csv"
)

var approveOptions = map[string]ScheduleOption{
	ActionIDApproveDaily:     ScheduleDaily,
	ActionIDApproveImmediate: ScheduleImmediate,
	ActionIDApprove1h:        ScheduleIn1h,
	ActionIDApprove3h:        ScheduleIn3h,
	ActionIDApprove5h:        ScheduleIn5h,
}

// Action is a parsed button press. Option is set for approvals only,
// Reason for rejections only.
type Action struct {
	Kind   ActionKind
	DiffID string
	Option ScheduleOption
	Reason string
}

// ParseAction maps a button action id and value onto an Action. The value is
// the diff id, optionally followed by "|reason" for rejections.
func ParseAction(actionID, value string) (Action, error) {
	diffID, reason, _ := strings.Cut(strings.TrimSpace(value), "|")
	if err := ValidateDiffID(diffID); err != nil {
		return Action{}, err
	}

	if opt, ok := approveOptions[actionID]; ok {
		return Action{Kind: ActionApprove, DiffID: diffID, Option: opt}, nil
	}
	switch actionID {
	case ActionIDReject:
		return Action{Kind: ActionReject, DiffID: diffID, Reason: strings.TrimSpace(reason)}, nil
	case ActionIDExportCSV:
		return Action{Kind: ActionExportCSV, DiffID: diffID}, nil
	}
	return Action{}, NewValidationError("action_id", fmt.Sprintf("unknown action %q", actionID))
}
