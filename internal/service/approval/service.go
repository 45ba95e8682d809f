// Package approval handles button presses on diff notifications and the
// events callback of the messaging app.
package approval

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

type verifier interface {
	Verify(h http.Header, rawBody []byte, secret string) error
}

type allowList interface {
	IsAllowed(userID, teamID string) bool
}

type diffStore interface {
	Get(ctx context.Context, id string) (*domain.DiffRecord, error)
	Transition(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error)
	RevertApproval(ctx context.Context, id string) (*domain.DiffRecord, error)
	SetSchedule(ctx context.Context, id string, ref domain.ScheduleRef) error
}

type scheduler interface {
	CreateOneShot(ctx context.Context, name string, executeAt time.Time, payload domain.Invocation) (domain.ScheduleHandle, error)
	Cancel(ctx context.Context, name string) error
}

type blobReader interface {
	Get(ctx context.Context, location string) ([]byte, error)
}

type notifier interface {
	UpdateDecision(ctx context.Context, ref domain.MessageRef, rec *domain.DiffRecord) error
	PostDuplicateWarning(ctx context.Context, ref domain.MessageRef, userID, action string, status domain.DiffStatus) error
	UploadCSV(ctx context.Context, ref domain.MessageRef, filename string, data []byte) error
}

type auditLog interface {
	Append(ctx context.Context, e domain.AuditEntry)
}

// Config holds gateway settings.
type Config struct {
	SigningSecret string
	// Location renders schedule times and resolves the daily option.
	Location *time.Location
}

// Service is the approval gateway.
type Service struct {
	verifier  verifier
	allow     allowList
	store     diffStore
	scheduler scheduler
	blobs     blobReader
	notifier  notifier
	audit     auditLog
	cfg       Config
	now       func() time.Time
	log       *slog.Logger

	// retryInitial is the first backoff interval of store writes that undo
	// or complete an approval.
	retryInitial time.Duration
}

// NewService creates an approval gateway.
func NewService(
	log *slog.Logger,
	cfg Config,
	verifier verifier,
	allow allowList,
	store diffStore,
	scheduler scheduler,
	blobs blobReader,
	notifier notifier,
	audit auditLog,
) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		verifier:  verifier,
		allow:     allow,
		store:     store,
		scheduler: scheduler,
		blobs:     blobs,
		notifier:  notifier,
		audit:     audit,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With("service", "approval"),

		retryInitial: 200 * time.Millisecond,
	}
}

// Request is a raw inbound webhook. Body must be the exact bytes received.
type Request struct {
	Headers http.Header
	Body    []byte
}

// Response is what the transport writes back. Body is JSON-encoded.
type Response struct {
	Status  int
	Body    any
	Outcome string
}

// Message is the reply shown to the acting user only.
type Message struct {
	ResponseType    string `json:"response_type"`
	Text            string `json:"text"`
	ReplaceOriginal bool   `json:"replace_original"`
}

// Outcomes reported for metrics and logs.
const (
	OutcomeApproved         = "approved"
	OutcomeRejected         = "rejected"
	OutcomeExported         = "exported"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeInvalid          = "invalid"
	OutcomeScheduleFailed   = "schedule_failed"
	OutcomeRollbackFailed   = "rollback_failed"
	OutcomeError            = "error"
	OutcomeIgnored          = "ignored"
	OutcomeVerified         = "url_verification"
	OutcomeAcknowledged     = "acknowledged"
)

func ephemeral(outcome, text string) Response {
	return Response{
		Status:  http.StatusOK,
		Body:    Message{ResponseType: "ephemeral", Text: text},
		Outcome: outcome,
	}
}

func failure(status int, outcome, text string) Response {
	return Response{Status: status, Body: map[string]string{"error": text}, Outcome: outcome}
}
