package middleware

import (
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/heartmarshall/zengin-sync/pkg/ctxutil"
)

// ConcurrencyLimit caps requests in flight at max. Requests over the cap are
// answered 503 immediately instead of queueing.
func ConcurrencyLimit(max int64, obs rejectObserver) Middleware {
	sem := semaphore.NewWeighted(max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sem.TryAcquire(1) {
				if obs != nil {
					obs.ObserveRejected("in_flight")
				}
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusServiceUnavailable, "server busy", ctxutil.RequestIDFromCtx(r.Context()))
				return
			}
			defer sem.Release(1)
			next.ServeHTTP(w, r)
		})
	}
}
