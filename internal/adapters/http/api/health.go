package api

import (
	"net/http"
	"time"
)

// Probe reports whether the service finished starting.
type Probe interface {
	Started() bool
}

// HealthHandler handles liveness requests.
type HealthHandler struct {
	probe Probe
	now   func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(probe Probe) *HealthHandler {
	return &HealthHandler{probe: probe, now: time.Now}
}

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

// HandleHealth handles GET /healthz. It answers 503 until the service has started.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	if h.probe != nil && !h.probe.Started() {
		writeError(w, http.StatusServiceUnavailable, "not_ready", ErrNotReady)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Time: h.now().UTC()})
}
