package rest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/zengin-sync/internal/service/approval"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// DefaultMaxWebhookBody bounds inbound Slack payloads.
const DefaultMaxWebhookBody = 1 << 20

type approvalService interface {
	HandleInteraction(ctx context.Context, req approval.Request) approval.Response
	HandleEvent(ctx context.Context, req approval.Request) approval.Response
}

type interactionObserver interface {
	ObserveInteraction(outcome string)
}

// WebhookHandler serves the Slack callbacks. The raw body is handed to the
// approval gateway untouched so the signature can be checked over it.
type WebhookHandler struct {
	svc     approvalService
	obs     interactionObserver
	maxBody int64
	log     *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler. obs may be nil.
func NewWebhookHandler(svc approvalService, obs interactionObserver, maxBody int64, logger *slog.Logger) *WebhookHandler {
	if maxBody <= 0 {
		maxBody = DefaultMaxWebhookBody
	}
	return &WebhookHandler{svc: svc, obs: obs, maxBody: maxBody, log: logger.With("handler", "webhook")}
}

// Interactive handles POST /interactive.
func (h *WebhookHandler) Interactive(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.HandleInteraction)
}

// Events handles POST /events.
func (h *WebhookHandler) Events(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.svc.HandleEvent)
}

func (h *WebhookHandler) serve(w http.ResponseWriter, r *http.Request, handle func(context.Context, approval.Request) approval.Response) {
	ctx := r.Context()
	reqID := ctxutil.RequestIDFromCtx(ctx)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.observe("too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large", reqID)
			return
		}
		h.log.WarnContext(ctx, "read webhook body", slog.String("error", err.Error()))
		h.observe("invalid")
		writeError(w, http.StatusBadRequest, "unreadable body", reqID)
		return
	}

	resp := handle(ctx, approval.Request{Headers: r.Header, Body: body})
	h.observe(resp.Outcome)
	writeJSON(w, resp.Status, resp.Body)
}

func (h *WebhookHandler) observe(outcome string) {
	if h.obs != nil {
		h.obs.ObserveInteraction(outcome)
	}
}
