package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	goslack "github.com/slack-go/slack"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// HandleInteraction authenticates a button press and applies it. Signature
// and allow-list checks run before anything is read from the store.
func (s *Service) HandleInteraction(ctx context.Context, req Request) Response {
	ctx, reqID := ctxutil.EnsureRequestID(ctx)
	log := s.log.With(slog.String("request_id", reqID))

	if err := s.verifier.Verify(req.Headers, req.Body, s.cfg.SigningSecret); err != nil {
		log.WarnContext(ctx, "interaction signature rejected", slog.String("error", err.Error()))
		s.audit.Append(ctx, domain.AuditEntry{
			EventType: domain.AuditInvalidSignature,
			Details:   map[string]any{"endpoint": "interactive", "reason": err.Error()},
		})
		return failure(http.StatusUnauthorized, OutcomeInvalidSignature, "invalid signature")
	}

	cb, err := parseCallback(req.Body)
	if err != nil {
		log.WarnContext(ctx, "malformed interaction payload", slog.String("error", err.Error()))
		s.audit.Append(ctx, domain.AuditEntry{
			EventType: domain.AuditValidationFailed,
			Details:   map[string]any{"reason": err.Error()},
		})
		return failure(http.StatusBadRequest, OutcomeInvalid, "malformed payload")
	}

	user, team := cb.User.ID, cb.Team.ID
	ctx = ctxutil.WithActor(ctx, ctxutil.Actor{UserID: user, TeamID: team})
	log = log.With(slog.String("user_id", user))

	if !s.allow.IsAllowed(user, team) {
		log.WarnContext(ctx, "actor not on allow-list", slog.String("team_id", team))
		s.audit.Append(ctx, domain.AuditEntry{
			EventType: domain.AuditUnauthorizedAttempt,
			Details:   map[string]any{"user_name": cb.User.Name, "team_id": team},
		})
		return failure(http.StatusForbidden, OutcomeUnauthorized, "not allowed")
	}

	if cb.Type != goslack.InteractionTypeBlockActions || len(cb.ActionCallback.BlockActions) == 0 {
		log.InfoContext(ctx, "interaction ignored", slog.String("type", string(cb.Type)))
		return ephemeral(OutcomeIgnored, "未対応のアクションです")
	}

	pressed := cb.ActionCallback.BlockActions[0]
	action, err := domain.ParseAction(pressed.ActionID, pressed.Value)
	if err != nil {
		log.WarnContext(ctx, "unknown action", slog.String("action_id", pressed.ActionID), slog.String("error", err.Error()))
		s.audit.Append(ctx, domain.AuditEntry{
			EventType: domain.AuditValidationFailed,
			Details:   map[string]any{"action_id": pressed.ActionID, "value": pressed.Value},
		})
		return ephemeral(OutcomeInvalid, "未対応のアクションです")
	}

	log = log.With(slog.String("diff_id", action.DiffID), slog.String("action", string(action.Kind)))
	h := &handling{svc: s, log: log, reqID: reqID, user: user, action: action, ref: callbackRef(cb)}

	switch action.Kind {
	case domain.ActionApprove:
		return h.approve(ctx)
	case domain.ActionReject:
		return h.reject(ctx)
	case domain.ActionExportCSV:
		return h.exportCSV(ctx)
	}
	return ephemeral(OutcomeInvalid, "未対応のアクションです")
}

func parseCallback(body []byte) (*goslack.InteractionCallback, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	raw := form.Get("payload")
	if raw == "" {
		return nil, errors.New("payload field missing")
	}
	var cb goslack.InteractionCallback
	if err := json.Unmarshal([]byte(raw), &cb); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if cb.User.ID == "" {
		return nil, errors.New("payload has no user")
	}
	return &cb, nil
}

func callbackRef(cb *goslack.InteractionCallback) domain.MessageRef {
	ref := domain.MessageRef{Channel: cb.Channel.ID, TS: cb.Container.MessageTs}
	if ref.Channel == "" {
		ref.Channel = cb.Container.ChannelID
	}
	if ref.TS == "" {
		ref.TS = cb.Message.Timestamp
	}
	return ref
}

// handling carries one authenticated action through the gateway.
type handling struct {
	svc    *Service
	log    *slog.Logger
	reqID  string
	user   string
	action domain.Action
	ref    domain.MessageRef
}

func (h *handling) audit(ctx context.Context, event domain.AuditEventType, details map[string]any) {
	h.svc.audit.Append(ctx, domain.AuditEntry{EventType: event, DiffID: h.action.DiffID, Details: details})
}

// load fetches the record and points ref at its notification when known.
func (h *handling) load(ctx context.Context) (*domain.DiffRecord, *Response) {
	rec, err := h.svc.store.Get(ctx, h.action.DiffID)
	if errors.Is(err, domain.ErrNotFound) {
		h.log.WarnContext(ctx, "diff not found")
		h.audit(ctx, domain.AuditValidationFailed, map[string]any{"reason": "diff not found"})
		resp := ephemeral(OutcomeInvalid, "対応する差分データが見つかりません (保存期間を過ぎている可能性があります)")
		return nil, &resp
	}
	if err != nil {
		h.log.ErrorContext(ctx, "load diff failed", slog.String("error", err.Error()))
		resp := h.internalError()
		return nil, &resp
	}
	if rec.Notification != nil {
		h.ref = *rec.Notification
	}
	return rec, nil
}

// pending loads the record and answers idempotently when it was already decided.
func (h *handling) pending(ctx context.Context) (*domain.DiffRecord, *Response) {
	rec, resp := h.load(ctx)
	if resp != nil {
		return nil, resp
	}
	if rec.Status != domain.StatusPending {
		r := h.duplicate(ctx, rec)
		return nil, &r
	}
	return rec, nil
}

// lostRace answers a caller whose conditional write failed.
func (h *handling) lostRace(ctx context.Context, cause error) Response {
	if !errors.Is(cause, domain.ErrConflict) {
		h.log.ErrorContext(ctx, "diff transition failed", slog.String("error", cause.Error()))
		return h.internalError()
	}
	rec, resp := h.load(ctx)
	if resp != nil {
		return *resp
	}
	return h.duplicate(ctx, rec)
}

func (h *handling) duplicate(ctx context.Context, rec *domain.DiffRecord) Response {
	h.log.InfoContext(ctx, "diff already decided", slog.String("status", rec.Status.String()))
	h.audit(ctx, domain.AuditDuplicateAction, map[string]any{
		"action": string(h.action.Kind),
		"status": rec.Status.String(),
	})
	if h.ref.TS != "" {
		if err := h.svc.notifier.PostDuplicateWarning(ctx, h.ref, h.user, actionLabel(h.action.Kind), rec.Status); err != nil {
			h.log.WarnContext(ctx, "duplicate warning not posted", slog.String("error", err.Error()))
		}
	}
	return ephemeral(OutcomeDuplicate, fmt.Sprintf("この差分は既に処理済みです (ステータス: %s)", rec.Status))
}

func (h *handling) approve(ctx context.Context) Response {
	rec, resp := h.pending(ctx)
	if resp != nil {
		return *resp
	}

	now := h.svc.now()
	at, err := h.action.Option.ExecuteAt(now, h.svc.cfg.Location)
	if err != nil {
		return ephemeral(OutcomeInvalid, "未対応の実行タイミングです")
	}

	rec, err = h.svc.store.Transition(ctx, rec.ID, domain.Transition{
		From: domain.StatusPending, To: domain.StatusApproved, At: now, Actor: h.user,
	})
	if err != nil {
		return h.lostRace(ctx, err)
	}
	h.audit(ctx, domain.AuditApprovalGranted, map[string]any{"option": h.action.Option.String()})

	name := domain.ScheduleName(rec.ID)
	handle, err := h.svc.scheduler.CreateOneShot(ctx, name, at,
		domain.NewExecuteInvocation(rec.ID, h.user, h.action.Option, now))
	if err != nil {
		return h.rollback(ctx, rec, name, err)
	}

	ref := domain.ScheduleRef{Name: handle.Name, ExecuteAt: handle.ExecuteAt, Option: h.action.Option}
	err = h.svc.retry(ctx, func(ctx context.Context) error {
		return h.svc.store.SetSchedule(ctx, rec.ID, ref)
	})
	if err != nil {
		// Without the reference the trigger cannot be re-armed after a restart.
		if cerr := h.svc.scheduler.Cancel(context.WithoutCancel(ctx), name); cerr != nil {
			h.log.ErrorContext(ctx, "cancel unreferenced schedule failed", slog.String("error", cerr.Error()))
		}
		return h.rollback(ctx, rec, name, fmt.Errorf("store schedule reference: %w", err))
	}
	rec.Schedule = &ref
	h.audit(ctx, domain.AuditScheduleCreated, map[string]any{
		"schedule":   handle.Name,
		"expression": handle.Expression,
		"execute_at": handle.ExecuteAt.UTC(),
	})
	h.log.InfoContext(ctx, "diff approved",
		slog.String("option", h.action.Option.String()),
		slog.Time("execute_at", handle.ExecuteAt),
	)

	h.updateMessage(ctx, rec)
	return ephemeral(OutcomeApproved, fmt.Sprintf("✅ 承認されました (承認者: <@%s>, 実行予定: %s)",
		h.user, handle.ExecuteAt.In(h.svc.cfg.Location).Format("2006-01-02 15:04:05 MST")))
}

// rollback returns an approved record to pending after its trigger could
// not be created, so the decision can be retried. When the revert cannot be
// written the record is left approved without a trigger and the reply says
// so.
func (h *handling) rollback(ctx context.Context, rec *domain.DiffRecord, name string, cause error) Response {
	h.log.ErrorContext(ctx, "schedule setup failed", slog.String("schedule", name), slog.String("error", cause.Error()))

	ctx = context.WithoutCancel(ctx)
	err := h.svc.retry(ctx, func(ctx context.Context) error {
		_, err := h.svc.store.RevertApproval(ctx, rec.ID)
		return err
	})
	if err != nil {
		h.log.ErrorContext(ctx, "approval rollback failed",
			slog.String("schedule", name),
			slog.String("error", err.Error()),
		)
		h.audit(ctx, domain.AuditApprovalRollbackFailed, map[string]any{
			"schedule": name,
			"error":    cause.Error(),
			"revert":   err.Error(),
			"status":   domain.StatusApproved.String(),
		})
		return ephemeral(OutcomeRollbackFailed, fmt.Sprintf(
			"🚨 実行スケジュールを作成できず、承認の取り消しにも失敗しました。差分 %s は承認済みのまま実行予定がありません。"+
				"運用担当者に連絡してください (zenginctl execute %s) (request_id: %s)", rec.ID, rec.ID, h.reqID))
	}

	h.audit(ctx, domain.AuditApprovalRolledBack, map[string]any{
		"schedule": name,
		"error":    cause.Error(),
	})
	return ephemeral(OutcomeScheduleFailed, fmt.Sprintf(
		"⚠️ 実行スケジュールを作成できなかったため承認を取り消しました。時間をおいて再度お試しください (request_id: %s)", h.reqID))
}

const (
	retryAttempts = 4
	retryTimeout  = 10 * time.Second
)

// retry runs a store write with bounded backoff. Lost guards and missing
// records are final.
func (s *Service) retry(ctx context.Context, write func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, retryTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	policy := backoff.WithContext(backoff.WithMaxRetries(b, retryAttempts-1), ctx)

	return backoff.Retry(func() error {
		err := write(ctx)
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func (h *handling) reject(ctx context.Context) Response {
	rec, resp := h.pending(ctx)
	if resp != nil {
		return *resp
	}

	rec, err := h.svc.store.Transition(ctx, rec.ID, domain.Transition{
		From: domain.StatusPending, To: domain.StatusRejected, At: h.svc.now(), Actor: h.user, Reason: h.action.Reason,
	})
	if err != nil {
		return h.lostRace(ctx, err)
	}

	details := map[string]any{}
	if h.action.Reason != "" {
		details["reason"] = h.action.Reason
	}
	h.audit(ctx, domain.AuditApprovalDenied, details)
	h.log.InfoContext(ctx, "diff rejected")

	h.updateMessage(ctx, rec)
	return ephemeral(OutcomeRejected, fmt.Sprintf("❌ 差分更新が却下されました (却下者: <@%s>)", h.user))
}

func (h *handling) updateMessage(ctx context.Context, rec *domain.DiffRecord) {
	if h.ref.TS == "" {
		return
	}
	if err := h.svc.notifier.UpdateDecision(ctx, h.ref, rec); err != nil {
		h.log.WarnContext(ctx, "notification not updated", slog.String("error", err.Error()))
	}
}

func (h *handling) internalError() Response {
	return ephemeral(OutcomeError, fmt.Sprintf("処理中にエラーが発生しました (request_id: %s)", h.reqID))
}

func actionLabel(k domain.ActionKind) string {
	switch k {
	case domain.ActionApprove:
		return "承認"
	case domain.ActionReject:
		return "却下"
	case domain.ActionExportCSV:
		return "CSV出力"
	}
	return string(k)
}
