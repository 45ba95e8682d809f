package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

type httpObserver interface {
	ObserveHTTP(route string, code int, elapsed time.Duration)
}

// Slack redelivers a webhook it considers unanswered and marks the retry.
const (
	slackRetryNumHeader    = "X-Slack-Retry-Num"
	slackRetryReasonHeader = "X-Slack-Retry-Reason"
)

// Logger writes one access line per request and, when obs is non-nil,
// records it under the matched route pattern.
//
// 5xx logs at error, 401 and 403 at warn, the rest at info.
func Logger(logger *slog.Logger, obs httpObserver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r)

			elapsed := time.Since(start)
			route := routePattern(r)

			attrs := make([]slog.Attr, 0, 8)
			attrs = append(attrs,
				slog.String("method", r.Method),
				slog.String("route", route),
				slog.Int("status", sw.status),
				slog.Duration("duration", elapsed),
				slog.String("request_id", ctxutil.RequestIDFromCtx(r.Context())),
			)
			if route == unmatchedRoute {
				attrs = append(attrs, slog.String("path", r.URL.Path))
			}
			if n := r.Header.Get(slackRetryNumHeader); n != "" {
				attrs = append(attrs,
					slog.String("slack_retry", n),
					slog.String("slack_retry_reason", r.Header.Get(slackRetryReasonHeader)),
				)
			}

			logger.LogAttrs(r.Context(), accessLevel(sw.status), "http.request", attrs...)

			if obs != nil {
				obs.ObserveHTTP(route, sw.status, elapsed)
			}
		})
	}
}

func accessLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

const unmatchedRoute = "unmatched"

// routePattern keeps metric labels bounded: unknown paths collapse to one value.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
