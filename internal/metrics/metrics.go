// Package metrics exposes Prometheus instruments for webhooks, invocations
// and diff outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zengin_sync"

// Metrics holds every instrument. Create one per process with New.
type Metrics struct {
	reg *prometheus.Registry

	// HTTPRequests counts requests by route and status code.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration observes request latency by route.
	HTTPDuration *prometheus.HistogramVec
	// Rejected counts requests turned away by the concurrency cap or rate limiter.
	// Labels: reason (in_flight, rate_limit)
	Rejected *prometheus.CounterVec

	// Interactions counts button presses by outcome.
	Interactions *prometheus.CounterVec

	// Invocations counts dispatched invocations by kind and result (ok, error).
	Invocations *prometheus.CounterVec
	// InvocationDuration observes handler latency by kind.
	InvocationDuration *prometheus.HistogramVec

	// ChangesDetected counts changes found by detection runs, by change kind.
	ChangesDetected *prometheus.CounterVec
	// RowsApplied counts master rows written by successful executions.
	RowsApplied prometheus.Counter
}

// New registers all instruments on a fresh registry together with the Go
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejected_total",
			Help:      "Requests rejected before reaching a handler",
		}, []string{"reason"}),
		Interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "approval",
			Name:      "interactions_total",
			Help:      "Notification button presses by outcome",
		}, []string{"outcome"}),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "invocation",
			Name:      "total",
			Help:      "Dispatched invocations by kind and result",
		}, []string{"kind", "result"}),
		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "invocation",
			Name:      "duration_seconds",
			Help:      "Invocation handler latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		ChangesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "processor",
			Name:      "changes_detected_total",
			Help:      "Changes found by detection runs",
		}, []string{"kind"}),
		RowsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "rows_applied_total",
			Help:      "Master rows written by successful executions",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.Rejected,
		m.Interactions,
		m.Invocations, m.InvocationDuration,
		m.ChangesDetected, m.RowsApplied,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRejected records a request refused by a limiter.
func (m *Metrics) ObserveRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}

// ObserveInteraction records the outcome of a button press.
func (m *Metrics) ObserveInteraction(outcome string) {
	m.Interactions.WithLabelValues(outcome).Inc()
}

// ObserveInvocation records one dispatched invocation.
func (m *Metrics) ObserveInvocation(kind string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Invocations.WithLabelValues(kind, result).Inc()
	m.InvocationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveChanges adds detected change counts.
func (m *Metrics) ObserveChanges(additions, updates, deletions int) {
	m.ChangesDetected.WithLabelValues("addition").Add(float64(additions))
	m.ChangesDetected.WithLabelValues("update").Add(float64(updates))
	m.ChangesDetected.WithLabelValues("deletion").Add(float64(deletions))
}

// ObserveRowsApplied adds rows written by an execution.
func (m *Metrics) ObserveRowsApplied(rows int64) {
	m.RowsApplied.Add(float64(rows))
}
