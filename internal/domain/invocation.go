package domain

import "time"

// InvocationKind selects the handler for an invocation record.
type InvocationKind string

const (
	InvocationProcess InvocationKind = "process_diffs"
	InvocationExecute InvocationKind = "execute_diff"
)

func (k InvocationKind) IsValid() bool {
	switch k {
	case InvocationProcess, InvocationExecute:
		return true
	}
	return false
}

// Trigger tells a handler who started it.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Invocation is the single typed record every entrypoint decodes: scheduler
// targets, the internal HTTP endpoint, local cron jobs and the ops CLI.
type Invocation struct {
	Kind          InvocationKind `json:"kind"`
	DiffID        string         `json:"diff_id,omitempty"`
	ApprovedBy    string         `json:"approved_by,omitempty"`
	ExecutionType ScheduleOption `json:"execution_type,omitempty"`
	Trigger       Trigger        `json:"trigger"`
	IssuedAt      time.Time      `json:"issued_at"`
}

// Validate checks fields required by the invocation kind.
func (i Invocation) Validate() error {
	var verr ValidationError
	if !i.Kind.IsValid() {
		verr.Add("kind", "unknown kind %q", i.Kind)
	}
	if i.Kind == InvocationExecute && ValidateDiffID(i.DiffID) != nil {
		verr.Add("diff_id", "malformed or missing")
	}
	switch i.Trigger {
	case TriggerScheduled, TriggerManual:
	default:
		verr.Add("trigger", "unknown trigger %q", i.Trigger)
	}
	return verr.Err()
}

// NewExecuteInvocation builds the payload carried by a one-shot execution trigger.
func NewExecuteInvocation(diffID, approvedBy string, option ScheduleOption, now time.Time) Invocation {
	return Invocation{
		Kind:          InvocationExecute,
		DiffID:        diffID,
		ApprovedBy:    approvedBy,
		ExecutionType: option,
		Trigger:       TriggerScheduled,
		IssuedAt:      now.UTC(),
	}
}
