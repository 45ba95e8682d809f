package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType identifies what an audit entry records.
type AuditEventType string

const (
	AuditInvalidSignature    AuditEventType = "invalid_signature"
	AuditUnauthorizedAttempt AuditEventType = "unauthorized_attempt"
	AuditApprovalGranted     AuditEventType = "approval_granted"
	AuditApprovalDenied      AuditEventType = "approval_denied"
	AuditApprovalRolledBack  AuditEventType = "approval_rolled_back"
	AuditDuplicateAction     AuditEventType = "duplicate_action"
	AuditScheduleCreated     AuditEventType = "schedule_created"
	AuditExecutionStarted    AuditEventType = "execution_started"
	AuditExecutionCompleted  AuditEventType = "execution_completed"
	AuditExecutionFailed     AuditEventType = "execution_failed"
	AuditCSVExported         AuditEventType = "csv_exported"
	AuditValidationFailed    AuditEventType = "validation_failed"

	// AuditApprovalRollbackFailed marks a record left approved with no trigger.
	AuditApprovalRollbackFailed AuditEventType = "approval_rollback_failed"
)

func (t AuditEventType) String() string { return string(t) }

func (t AuditEventType) IsValid() bool {
	switch t {
	case AuditInvalidSignature, AuditUnauthorizedAttempt, AuditApprovalGranted,
		AuditApprovalDenied, AuditApprovalRolledBack, AuditApprovalRollbackFailed, AuditDuplicateAction,
		AuditScheduleCreated, AuditExecutionStarted, AuditExecutionCompleted,
		AuditExecutionFailed, AuditCSVExported, AuditValidationFailed:
		return true
	}
	return false
}

// AuditEntry is an append-only record of a security or workflow event.
type AuditEntry struct {
	ID            uuid.UUID
	Timestamp     time.Time
	UserID        string
	TeamID        string
	EventType     AuditEventType
	DiffID        string
	Details       map[string]any
	CorrelationID string
}

// AuditFilter selects entries for listing.
type AuditFilter struct {
	UserID    string
	EventType AuditEventType
	Limit     int
	Offset    int
}
