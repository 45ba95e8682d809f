package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// Recovery turns a panic in a handler into a logged 500. http.ErrAbortHandler
// is re-raised so net/http can drop the connection quietly.
func Recovery(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				reqID := ctxutil.RequestIDFromCtx(r.Context())
				logger.ErrorContext(r.Context(), "handler panic",
					slog.Any("panic", v),
					slog.String("route", routePattern(r)),
					slog.String("request_id", reqID),
					slog.String("stack", string(debug.Stack())),
				)

				writeError(w, http.StatusInternalServerError, "internal server error", reqID)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
