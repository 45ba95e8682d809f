package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DiffRetention is how long a diff record is kept before the store expires it.
const DiffRetention = 90 * 24 * time.Hour

// OverflowThreshold is the serialized payload size (bytes) from which the
// change list moves to the blob store.
const OverflowThreshold = 400 * 1024

// PreviewSize is the number of changes kept inline for display.
const PreviewSize = 10

// DiffStatus is the lifecycle state of a diff record.
type DiffStatus string

const (
	StatusPending   DiffStatus = "pending"
	StatusApproved  DiffStatus = "approved"
	StatusRejected  DiffStatus = "rejected"
	StatusExecuting DiffStatus = "executing"
	StatusCompleted DiffStatus = "completed"
	StatusFailed    DiffStatus = "failed"
	StatusExpired   DiffStatus = "expired"
)

func (s DiffStatus) String() string { return string(s) }

func (s DiffStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExecuting,
		StatusCompleted, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s DiffStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusRejected, StatusExpired:
		return true
	}
	return false
}

var transitions = map[DiffStatus][]DiffStatus{
	StatusPending:   {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:  {StatusExecuting, StatusExpired},
	StatusExecuting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
// The approval rollback (approved -> pending) is not an edge; stores expose
// it as a separate operation.
func CanTransition(from, to DiffStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DiffType classifies a whole diff record.
type DiffType string

const (
	DiffTypeAddition   DiffType = "addition"
	DiffTypeUpdate     DiffType = "update"
	DiffTypeDeletion   DiffType = "deletion"
	DiffTypeBulkUpdate DiffType = "bulk_update"
)

func (t DiffType) String() string { return string(t) }

func (t DiffType) IsValid() bool {
	switch t {
	case DiffTypeAddition, DiffTypeUpdate, DiffTypeDeletion, DiffTypeBulkUpdate:
		return true
	}
	return false
}

// ChangeKind classifies a single change.
type ChangeKind string

const (
	ChangeAddition ChangeKind = "addition"
	ChangeUpdate   ChangeKind = "update"
	ChangeDeletion ChangeKind = "deletion"
)

func (k ChangeKind) IsValid() bool {
	switch k {
	case ChangeAddition, ChangeUpdate, ChangeDeletion:
		return true
	}
	return false
}

// BankBranch is one row of the bank master, identified by swift code and branch code.
type BankBranch struct {
	SwiftCode      string `json:"swift_code"`
	BranchCode     string `json:"branch_code"`
	BankName       string `json:"bank_name"`
	BankNameKana   string `json:"bank_name_kana"`
	BranchName     string `json:"branch_name"`
	BranchNameKana string `json:"branch_name_kana"`
}

// Key returns the natural key "swift_code-branch_code".
func (b BankBranch) Key() string { return BranchKey(b.SwiftCode, b.BranchCode) }

// BranchKey builds a natural key.
func BranchKey(swiftCode, branchCode string) string { return swiftCode + "-" + branchCode }

// SplitBranchKey is the inverse of BranchKey.
func SplitBranchKey(key string) (swiftCode, branchCode string, ok bool) {
	swiftCode, branchCode, ok = strings.Cut(key, "-")
	if !ok || swiftCode == "" || branchCode == "" {
		return "", "", false
	}
	return swiftCode, branchCode, true
}

// Change is one detected difference between the reference dataset and the master table.
type Change struct {
	Kind          ChangeKind  `json:"kind"`
	Key           string      `json:"key"`
	Before        *BankBranch `json:"before,omitempty"`
	After         *BankBranch `json:"after,omitempty"`
	TotalAccounts int         `json:"total_accounts"`
	ActiveUsers   int         `json:"active_users"`
}

// Validate checks that the change carries the data its kind requires.
func (c Change) Validate() error {
	if !c.Kind.IsValid() {
		return NewValidationError("kind", fmt.Sprintf("unknown change kind %q", c.Kind))
	}
	if _, _, ok := SplitBranchKey(c.Key); !ok {
		return NewValidationError("key", fmt.Sprintf("malformed key %q", c.Key))
	}
	switch c.Kind {
	case ChangeAddition, ChangeUpdate:
		if c.After == nil {
			return NewValidationError("after", "required for "+string(c.Kind))
		}
	case ChangeDeletion:
		if c.Before == nil {
			return NewValidationError("before", "required for deletion")
		}
	}
	return nil
}

// DiffSummary holds counts and a short preview shown in notifications.
type DiffSummary struct {
	Additions        int      `json:"additions"`
	Updates          int      `json:"updates"`
	Deletions        int      `json:"deletions"`
	Total            int      `json:"total"`
	ImpactedAccounts int      `json:"impacted_accounts"`
	ActiveUsers      int      `json:"active_users"`
	Preview          []Change `json:"preview,omitempty"`
}

// Summarize counts changes by kind and keeps the first PreviewSize as a preview.
func Summarize(changes []Change) DiffSummary {
	var s DiffSummary
	for _, c := range changes {
		switch c.Kind {
		case ChangeAddition:
			s.Additions++
		case ChangeUpdate:
			s.Updates++
		case ChangeDeletion:
			s.Deletions++
		}
		s.ImpactedAccounts += c.TotalAccounts
		s.ActiveUsers += c.ActiveUsers
	}
	s.Total = len(changes)
	n := min(len(changes), PreviewSize)
	s.Preview = append([]Change(nil), changes[:n]...)
	return s
}

// TypeOf classifies a change set: a single kind maps to its type, mixed sets are bulk updates.
func TypeOf(changes []Change) DiffType {
	var kinds = map[ChangeKind]struct{}{}
	for _, c := range changes {
		kinds[c.Kind] = struct{}{}
	}
	if len(kinds) != 1 {
		return DiffTypeBulkUpdate
	}
	for k := range kinds {
		switch k {
		case ChangeAddition:
			return DiffTypeAddition
		case ChangeUpdate:
			return DiffTypeUpdate
		case ChangeDeletion:
			return DiffTypeDeletion
		}
	}
	return DiffTypeBulkUpdate
}

// PayloadPointer references a change list stored in the blob store.
type PayloadPointer struct {
	Location string `json:"location"`
	Size     int64  `json:"size"`
}

// DiffPayload is either an inline change list or a pointer to the overflow store.
type DiffPayload struct {
	Changes []Change        `json:"changes,omitempty"`
	Pointer *PayloadPointer `json:"pointer,omitempty"`
}

func (p DiffPayload) IsOverflow() bool { return p.Pointer != nil }

// NeedsOverflow reports whether a serialized payload of size bytes goes to the blob store.
func NeedsOverflow(size int) bool { return size >= OverflowThreshold }

// ExecutionResult is recorded on the diff when execution finishes.
type ExecutionResult struct {
	Success      bool   `json:"success"`
	RowsAffected int64  `json:"rows_affected"`
	DurationMs   int64  `json:"duration_ms"`
	Error        string `json:"error,omitempty"`
}

// ScheduleRef records the one-shot trigger created on approval.
type ScheduleRef struct {
	Name      string         `json:"name"`
	ExecuteAt time.Time      `json:"execute_at"`
	Option    ScheduleOption `json:"option"`
}

// MessageRef points at the notification message for a diff.
type MessageRef struct {
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// DiffKey is the composite primary key of a diff record.
type DiffKey struct {
	ID        string
	Timestamp time.Time
}

// DiffRecord is the unit of approval and execution.
type DiffRecord struct {
	ID           string           `json:"id"`
	Timestamp    time.Time        `json:"timestamp"`
	Status       DiffStatus       `json:"status"`
	DiffType     DiffType         `json:"diff_type"`
	Summary      DiffSummary      `json:"summary"`
	Payload      DiffPayload      `json:"payload"`
	ApprovedBy   string           `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time       `json:"approved_at,omitempty"`
	RejectedBy   string           `json:"rejected_by,omitempty"`
	RejectedAt   *time.Time       `json:"rejected_at,omitempty"`
	RejectReason string           `json:"reject_reason,omitempty"`
	ExecutedAt   *time.Time       `json:"executed_at,omitempty"`
	Result       *ExecutionResult `json:"execution_result,omitempty"`
	Schedule     *ScheduleRef     `json:"schedule,omitempty"`
	Notification *MessageRef      `json:"notification,omitempty"`
	TTL          int64            `json:"ttl"`
}

func (r *DiffRecord) Key() DiffKey { return DiffKey{ID: r.ID, Timestamp: r.Timestamp} }

// NewDiffRecord builds a pending record created at now.
func NewDiffRecord(id string, now time.Time, changes []Change, payload DiffPayload) *DiffRecord {
	now = now.UTC()
	return &DiffRecord{
		ID:        id,
		Timestamp: now,
		Status:    StatusPending,
		DiffType:  TypeOf(changes),
		Summary:   Summarize(changes),
		Payload:   payload,
		TTL:       ExpiresAt(now),
	}
}

// ExpiresAt returns the TTL attribute (epoch seconds) for a record created at created.
func ExpiresAt(created time.Time) int64 { return created.Add(DiffRetention).Unix() }

// Transition describes a conditional status change.
type Transition struct {
	From   DiffStatus
	To     DiffStatus
	At     time.Time
	Actor  string
	Reason string
	Result *ExecutionResult
}

// Validate checks that the transition is an edge of the lifecycle.
func (t Transition) Validate() error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("%w: transition %s -> %s not allowed", ErrInvalidState, t.From, t.To)
	}
	if t.To == StatusApproved && t.Actor == "" {
		return NewValidationError("actor", "required for approval")
	}
	return nil
}

// Apply performs t on r in memory. Stores without native conditional
// updates use it inside their own transaction.
func (r *DiffRecord) Apply(t Transition) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if r.Status != t.From {
		return fmt.Errorf("%w: %w", ErrConflict, &StateError{DiffID: r.ID, Expected: t.From, Actual: r.Status})
	}
	at := t.At.UTC()
	r.Status = t.To
	switch t.To {
	case StatusApproved:
		r.ApprovedBy = t.Actor
		r.ApprovedAt = &at
	case StatusRejected:
		r.RejectedBy = t.Actor
		r.RejectedAt = &at
		r.RejectReason = t.Reason
	case StatusExecuting:
		r.ExecutedAt = &at
	case StatusCompleted, StatusFailed:
		r.Result = t.Result
	}
	return nil
}

// RevertApproval undoes an approval whose schedule could not be created.
func (r *DiffRecord) RevertApproval() error {
	if r.Status != StatusApproved {
		return fmt.Errorf("%w: %w", ErrConflict, &StateError{DiffID: r.ID, Expected: StatusApproved, Actual: r.Status})
	}
	r.Status = StatusPending
	r.ApprovedBy = ""
	r.ApprovedAt = nil
	r.Schedule = nil
	return nil
}

var diffIDPattern = regexp.MustCompile(`^diff-\d{8}-\d{3,}$`)

// NewDiffID formats "diff-YYYYMMDD-NNN" for the given day and sequence.
func NewDiffID(day time.Time, seq int) string {
	return fmt.Sprintf("diff-%s-%03d", day.Format("20060102"), seq)
}

// ValidateDiffID checks the id format.
func ValidateDiffID(id string) error {
	if !diffIDPattern.MatchString(id) {
		return NewValidationError("diff_id", fmt.Sprintf("malformed diff id %q", id))
	}
	return nil
}

// Impact counts the user accounts registered at a branch.
type Impact struct {
	TotalAccounts int
	ActiveUsers   int
}

// WithImpact copies impact counts onto changes whose key is present in impact.
func WithImpact(changes []Change, impact map[string]Impact) {
	for i := range changes {
		if im, ok := impact[changes[i].Key]; ok {
			changes[i].TotalAccounts = im.TotalAccounts
			changes[i].ActiveUsers = im.ActiveUsers
		}
	}
}

// ApplyResult reports what a change set did to the master table.
type ApplyResult struct {
	RowsAffected int64
	// Unmatched lists keys of updates and deletions that touched no row.
	Unmatched []string
}
