package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heartmarshall/zengin-sync/internal/transport/middleware"
	"github.com/heartmarshall/zengin-sync/internal/transport/rest"
)

// NewRouter mounts the public webhooks, probes, metrics and, when a signer
// is configured, the internal invocation endpoint. The returned stop func
// releases the rate limiter's cleanup goroutine.
func NewRouter(c *Components) (http.Handler, func()) {
	cfg := c.Config.Server
	log := c.Logger

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, time.Minute, c.Metrics)

	health := rest.NewHealthHandler(Version, c.Checks...)
	webhooks := rest.NewWebhookHandler(c.Approval, c.Metrics, rest.DefaultMaxWebhookBody, log)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(log, c.Metrics),
		middleware.Recovery(log),
	)

	r.Get("/health", health.Health)
	r.Get("/live", health.Live)
	r.Method(http.MethodGet, "/metrics", c.Metrics.Handler())

	// Per-IP limiting runs before the in-flight cap so floods never hold a slot.
	webhookGuard := middleware.Chain(limiter.Limit(), middleware.ConcurrencyLimit(cfg.MaxInFlight, c.Metrics))

	r.Group(func(r chi.Router) {
		r.Use(webhookGuard)
		r.Post("/events", webhooks.Events)
		r.Post("/interactive", webhooks.Interactive)
	})

	if c.Signer != nil {
		invocations := rest.NewInvocationHandler(c.Dispatcher, log)
		r.With(middleware.InvocationAuth(c.Signer)).Post("/internal/invocations", invocations.Invoke)
	}

	return r, limiter.Stop
}
