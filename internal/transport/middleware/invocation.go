package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/heartmarshall/zengin-sync/internal/domain"
	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

type invocationParser interface {
	Parse(token string) (domain.Invocation, error)
}

type invocationKey struct{}

// InvocationAuth admits only requests carrying a valid signed invocation
// token. The decoded invocation is stored in the context.
func InvocationAuth(parser invocationParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := ctxutil.RequestIDFromCtx(r.Context())
			token := extractBearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token", reqID)
				return
			}
			inv, err := parser.Parse(token)
			switch {
			case errors.Is(err, domain.ErrValidation):
				writeError(w, http.StatusBadRequest, "invalid invocation", reqID)
				return
			case err != nil:
				writeError(w, http.StatusUnauthorized, "unauthorized", reqID)
				return
			}
			ctx := context.WithValue(r.Context(), invocationKey{}, inv)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// InvocationFromCtx returns the invocation admitted by InvocationAuth.
func InvocationFromCtx(ctx context.Context) (domain.Invocation, bool) {
	inv, ok := ctx.Value(invocationKey{}).(domain.Invocation)
	return inv, ok
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
