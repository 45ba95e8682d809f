package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names one dependency probed by /health.
type Check struct {
	Name   string
	Pinger Pinger
}

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	checks  []Check
	version string
	timeout time.Duration
	now     func() time.Time
}

// NewHealthHandler creates a HealthHandler probing checks on every /health call.
func NewHealthHandler(version string, checks ...Check) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
		timeout: 3 * time.Second,
		now:     time.Now,
	}
}

// HealthResponse is the JSON response for /health and /live.
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version,omitempty"`
	Services  map[string]ServiceStatus `json:"services,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// ServiceStatus is the status of an individual dependency.
type ServiceStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC(),
	})
}

// Health pings every dependency concurrently: 200 when all are up, 503 otherwise.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu       sync.Mutex
		services = make(map[string]ServiceStatus, len(h.checks))
		overall  = "ok"
	)

	var g errgroup.Group
	for _, c := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Pinger.Ping(ctx)
			latency := time.Since(start)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				services[c.Name] = ServiceStatus{Status: "down"}
				overall = "down"
				return nil
			}
			services[c.Name] = ServiceStatus{Status: "ok", Latency: latency.String()}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if overall != "ok" {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:    overall,
		Version:   h.version,
		Services:  services,
		Timestamp: h.now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message, reqID string) {
	body := map[string]string{"error": message}
	if reqID != "" {
		body["request_id"] = reqID
	}
	writeJSON(w, status, body)
}
