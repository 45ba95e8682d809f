package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/internal/invocation"
	"github.com/heartmarshall/zengin-sync/internal/transport/middleware"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

type invocationHandler interface {
	Handle(ctx context.Context, inv domain.Invocation) (invocation.Result, error)
}

// InvocationHandler runs signed invocations delivered over HTTP, the same
// records the scheduler and the Lambda entrypoint dispatch.
type InvocationHandler struct {
	dispatcher invocationHandler
	log        *slog.Logger
}

// NewInvocationHandler creates an InvocationHandler.
func NewInvocationHandler(dispatcher invocationHandler, logger *slog.Logger) *InvocationHandler {
	return &InvocationHandler{dispatcher: dispatcher, log: logger.With("handler", "invocation")}
}

type invocationResponse struct {
	RequestID string `json:"request_id"`
	invocation.Result
	Error string `json:"error,omitempty"`
}

// Invoke handles POST /internal/invocations. It must sit behind
// middleware.InvocationAuth, which supplies the invocation.
func (h *InvocationHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := ctxutil.RequestIDFromCtx(ctx)

	inv, ok := middleware.InvocationFromCtx(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", reqID)
		return
	}

	res, err := h.dispatcher.Handle(ctx, inv)
	resp := invocationResponse{RequestID: reqID, Result: res}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	status := h.statusFor(ctx, err)
	resp.Error = http.StatusText(status)
	if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrInvalidState) {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func (h *InvocationHandler) statusFor(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDependency):
		h.log.WarnContext(ctx, "invocation dependency failure", slog.String("error", err.Error()))
		return http.StatusServiceUnavailable
	default:
		h.log.ErrorContext(ctx, "invocation failed", slog.String("error", err.Error()))
		return http.StatusInternalServerError
	}
}
