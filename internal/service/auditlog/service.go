// Package auditlog records security and workflow events. Writes never fail
// the caller: an entry that cannot be stored is logged at ERROR instead.
package auditlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type auditRepo interface {
	Append(ctx context.Context, e domain.AuditEntry) error
	List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error)
}

// Logger appends audit entries with a bounded write timeout.
type Logger struct {
	repo    auditRepo
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// NewLogger creates a Logger. A non-positive timeout means two seconds.
func NewLogger(log *slog.Logger, repo auditRepo, timeout time.Duration) *Logger {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Logger{
		repo:    repo,
		timeout: timeout,
		now:     time.Now,
		log:     log.With("service", "auditlog"),
	}
}

// Append fills in id, timestamp, actor and correlation id from ctx where
// missing, then stores the entry.
func (l *Logger) Append(ctx context.Context, e domain.AuditEntry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.CorrelationID == "" {
		e.CorrelationID = ctxutil.RequestIDFromCtx(ctx)
	}
	if a, ok := ctxutil.ActorFromCtx(ctx); ok {
		if e.UserID == "" {
			e.UserID = a.UserID
		}
		if e.TeamID == "" {
			e.TeamID = a.TeamID
		}
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.repo.Append(wctx, e); err != nil {
		l.log.ErrorContext(ctx, "audit write failed",
			slog.String("error", err.Error()),
			slog.String("audit_id", e.ID.String()),
			slog.String("event_type", e.EventType.String()),
			slog.String("user_id", e.UserID),
			slog.String("team_id", e.TeamID),
			slog.String("diff_id", e.DiffID),
			slog.String("correlation_id", e.CorrelationID),
			slog.Time("timestamp", e.Timestamp),
			slog.Any("details", e.Details),
		)
	}
}

// List returns entries matching f, newest first. An unknown event type is a
// validation error rather than an empty page.
func (l *Logger) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	if f.EventType != "" && !f.EventType.IsValid() {
		return nil, domain.NewValidationError("event_type", "unknown event type "+string(f.EventType))
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return l.repo.List(ctx, f)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
