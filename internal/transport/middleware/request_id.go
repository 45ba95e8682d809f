package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// RequestIDHeader carries the correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

// traceHeader is set by API Gateway and ALB in front of the function URL.
const traceHeader = "X-Amzn-Trace-Id"

const maxRequestIDLen = 128

// RequestID picks the correlation id for the request: an explicit
// X-Request-Id first, then the load balancer trace id, otherwise a fresh
// UUID. The id ends up in every audit entry written while serving it.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := incomingID(r.Header)
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
		})
	}
}

func incomingID(h http.Header) string {
	for _, name := range []string{RequestIDHeader, traceHeader} {
		if v := h.Get(name); usableID(v) {
			return v
		}
	}
	return uuid.NewString()
}

// usableID accepts printable ASCII without spaces so a caller cannot forge
// extra fields in text logs.
func usableID(v string) bool {
	if v == "" || len(v) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] <= ' ' || v[i] > '~' {
			return false
		}
	}
	return true
}
