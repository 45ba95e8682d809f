package domain

import (
	"fmt"
	"time"
)

// ScheduleNamePrefix prefixes every one-shot execution trigger.
const ScheduleNamePrefix = "zengin-diff-execution-"

// ImmediateDelay is the lead time for the "immediate" option.
const ImmediateDelay = 60 * time.Second

// DailyExecutionHour is the local hour used by the "daily" option.
const DailyExecutionHour = 23

// ScheduleOption selects when an approved diff executes.
type ScheduleOption string

const (
	ScheduleImmediate ScheduleOption = "immediate"
	ScheduleDaily     ScheduleOption = "daily"
	ScheduleIn1h      ScheduleOption = "1h"
	ScheduleIn3h      ScheduleOption = "3h"
	ScheduleIn5h      ScheduleOption = "5h"
)

func (o ScheduleOption) String() string { return string(o) }

func (o ScheduleOption) IsValid() bool {
	switch o {
	case ScheduleImmediate, ScheduleDaily, ScheduleIn1h, ScheduleIn3h, ScheduleIn5h:
		return true
	}
	return false
}

// ExecuteAt computes the trigger time for o relative to now. Daily resolves
// to the next 23:00 in loc.
func (o ScheduleOption) ExecuteAt(now time.Time, loc *time.Location) (time.Time, error) {
	switch o {
	case ScheduleImmediate:
		return now.Add(ImmediateDelay), nil
	case ScheduleDaily:
		if loc == nil {
			loc = time.UTC
		}
		local := now.In(loc)
		target := time.Date(local.Year(), local.Month(), local.Day(), DailyExecutionHour, 0, 0, 0, loc)
		if !target.After(local) {
			target = target.AddDate(0, 0, 1)
		}
		return target, nil
	case ScheduleIn1h:
		return now.Add(time.Hour), nil
	case ScheduleIn3h:
		return now.Add(3 * time.Hour), nil
	case ScheduleIn5h:
		return now.Add(5 * time.Hour), nil
	}
	return time.Time{}, NewValidationError("schedule_option", fmt.Sprintf("unknown option %q", o))
}

// ScheduleName is the deterministic one-shot trigger name for a diff.
func ScheduleName(diffID string) string { return ScheduleNamePrefix + diffID }

// AtExpression formats a one-shot expression, e.g. "at(2024-01-01T14:00:00)".
// The time is rendered in UTC.
func AtExpression(t time.Time) string {
	return "at(" + t.UTC().Format("2006-01-02T15:04:05") + ")"
}

// ScheduleHandle describes a created trigger.
type ScheduleHandle struct {
	Name       string
	Expression string
	ExecuteAt  time.Time
	TargetRef  string
	Payload    Invocation
}
