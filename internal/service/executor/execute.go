package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/heartmarshall/zengin-sync/internal/adapter/blob"
	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

const (
	recordAttempts = 5
	recordTimeout  = 30 * time.Second
)

// Execute applies the diff named by inv. Only an approved record is
// executed; the approved -> executing write decides between concurrent
// callers. Either every change is applied or none is.
func (s *Service) Execute(ctx context.Context, inv domain.Invocation) (domain.ExecutionResult, error) {
	ctx, reqID := ctxutil.EnsureRequestID(ctx)
	if err := inv.Validate(); err != nil {
		return domain.ExecutionResult{}, err
	}
	if inv.Kind != domain.InvocationExecute {
		return domain.ExecutionResult{}, domain.NewValidationError("kind", "execute_diff required")
	}
	log := s.log.With(slog.String("request_id", reqID), slog.String("diff_id", inv.DiffID))

	rec, err := s.store.Get(ctx, inv.DiffID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ExecutionResult{}, domain.NewValidationError("diff_id", "diff "+inv.DiffID+" not found or expired")
	}
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("load %s: %w", inv.DiffID, err)
	}
	if rec.Status != domain.StatusApproved {
		log.WarnContext(ctx, "diff not executable", slog.String("status", rec.Status.String()))
		return domain.ExecutionResult{}, &domain.StateError{DiffID: rec.ID, Expected: domain.StatusApproved, Actual: rec.Status}
	}

	started := s.now()
	rec, err = s.store.Transition(ctx, rec.ID, domain.Transition{
		From: domain.StatusApproved, To: domain.StatusExecuting, At: started, Actor: inv.ApprovedBy,
	})
	if err != nil {
		log.WarnContext(ctx, "lost execution claim", slog.String("error", err.Error()))
		return domain.ExecutionResult{}, fmt.Errorf("claim %s: %w", inv.DiffID, err)
	}
	if inv.Trigger == domain.TriggerManual {
		s.cancelTrigger(ctx, log, rec.ID)
	}

	s.audit.Append(ctx, domain.AuditEntry{
		EventType: domain.AuditExecutionStarted,
		UserID:    rec.ApprovedBy,
		DiffID:    rec.ID,
		Details:   map[string]any{"trigger": string(inv.Trigger), "execution_type": string(inv.ExecutionType)},
	})
	log.InfoContext(ctx, "execution started", slog.String("diff_type", rec.DiffType.String()))

	applied, runErr := s.apply(ctx, rec)

	result := domain.ExecutionResult{
		Success:      runErr == nil,
		RowsAffected: applied.RowsAffected,
		DurationMs:   s.now().Sub(started).Milliseconds(),
	}
	if runErr != nil {
		result.RowsAffected = 0
		result.Error = runErr.Error()
	}

	// The caller may be gone by now; the record must still leave executing.
	final := context.WithoutCancel(ctx)
	recordErr := s.finish(final, log, rec, result, applied.Unmatched)

	if runErr != nil {
		return result, errors.Join(fmt.Errorf("execute %s: %w: %w", rec.ID, domain.ErrExecution, runErr), recordErr)
	}
	return result, recordErr
}

// cancelTrigger removes the one-shot created at approval time. The claim
// already keeps a later firing from running the diff again, so a failure
// here is only logged.
func (s *Service) cancelTrigger(ctx context.Context, log *slog.Logger, id string) {
	if s.schedule == nil {
		return
	}
	if err := s.schedule.Cancel(ctx, domain.ScheduleName(id)); err != nil {
		log.WarnContext(ctx, "cancel scheduled trigger failed", slog.String("error", err.Error()))
		return
	}
	log.InfoContext(ctx, "scheduled trigger cancelled for manual execution")
}

// apply resolves the change list and runs it in one transaction. Failing to
// begin the transaction is retried; a failing statement is not.
func (s *Service) apply(ctx context.Context, rec *domain.DiffRecord) (domain.ApplyResult, error) {
	changes, err := s.changes(ctx, rec)
	if err != nil {
		return domain.ApplyResult{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.ConnectAttempts-1)), ctx)

	var res domain.ApplyResult
	err = backoff.Retry(func() error {
		err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			res, err = s.bank.Apply(ctx, changes, s.cfg.UpdatedUser)
			return err
		})
		if err != nil && !errors.Is(err, domain.ErrDependency) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return domain.ApplyResult{}, err
	}
	return res, nil
}

func (s *Service) changes(ctx context.Context, rec *domain.DiffRecord) ([]domain.Change, error) {
	if !rec.Payload.IsOverflow() {
		return rec.Payload.Changes, nil
	}
	data, err := s.blobs.Get(ctx, rec.Payload.Pointer.Location)
	if err != nil {
		return nil, fmt.Errorf("load payload: %w", err)
	}
	return blob.DecodeChanges(data)
}

// finish moves the record out of executing, then audits and notifies. The
// returned error is non-nil only when the outcome could not be recorded; the
// record is then left in executing for an operator to resolve.
func (s *Service) finish(ctx context.Context, log *slog.Logger, rec *domain.DiffRecord, result domain.ExecutionResult, unmatched []string) error {
	to, event := domain.StatusCompleted, domain.AuditExecutionCompleted
	if !result.Success {
		to, event = domain.StatusFailed, domain.AuditExecutionFailed
	}

	done, recordErr := s.record(ctx, rec.ID, domain.Transition{
		From: domain.StatusExecuting, To: to, At: s.now(), Result: &result,
	})
	if recordErr != nil {
		log.ErrorContext(ctx, "record execution result failed",
			slog.String("status", to.String()),
			slog.String("error", recordErr.Error()),
		)
		done = rec
	}

	details := map[string]any{
		"rows_affected": result.RowsAffected,
		"duration_ms":   result.DurationMs,
	}
	if recordErr != nil {
		details["status_write_error"] = recordErr.Error()
	}
	if len(unmatched) > 0 {
		details["unmatched"] = unmatched
		log.WarnContext(ctx, "changes matched no row", slog.Any("keys", unmatched))
	}
	if result.Error != "" {
		details["error"] = result.Error
	}
	s.audit.Append(ctx, domain.AuditEntry{EventType: event, UserID: rec.ApprovedBy, DiffID: rec.ID, Details: details})

	if result.Success {
		log.InfoContext(ctx, "execution completed",
			slog.Int64("rows_affected", result.RowsAffected),
			slog.Int64("duration_ms", result.DurationMs),
		)
	} else {
		log.ErrorContext(ctx, "execution failed", slog.String("error", result.Error))
	}

	if done.Notification != nil {
		if err := s.notifier.PostCompletion(ctx, *done.Notification, done, result); err != nil {
			log.WarnContext(ctx, "completion notification failed", slog.String("error", err.Error()))
		}
	}
	return recordErr
}

// record writes the terminal transition with retries bounded by
// recordAttempts and recordTimeout. Lost guards are not retried.
func (s *Service) record(ctx context.Context, id string, t domain.Transition) (*domain.DiffRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, recordAttempts-1), ctx)

	var done *domain.DiffRecord
	err := backoff.Retry(func() error {
		var err error
		done, err = s.store.Transition(ctx, id, t)
		if err != nil && permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	switch {
	case err == nil:
		return done, nil
	case permanent(err):
		return nil, fmt.Errorf("record %s as %s: %w", id, t.To, err)
	default:
		return nil, fmt.Errorf("record %s as %s: %w: %w", id, t.To, domain.ErrDependency, err)
	}
}

func permanent(err error) bool {
	return errors.Is(err, domain.ErrConflict) ||
		errors.Is(err, domain.ErrInvalidState) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrValidation)
}
