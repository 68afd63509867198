package handler

import (
	"net/http"
	"time"

	"github.com/parisxmas/fsdash/internal/upstream"
)

type HealthHandler struct {
	monitor *upstream.Monitor
}

func NewHealthHandler(monitor *upstream.Monitor) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

// Healthz reports liveness of the dashboard itself. The submission service
// state is informational and never fails the check.
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.monitor != nil {
		snap := h.monitor.Last()
		up := map[string]any{"up": snap.Up}
		if !snap.CheckedAt.IsZero() {
			up["checkedAt"] = snap.CheckedAt.UTC().Format(time.RFC3339)
		}
		if snap.Err != nil {
			up["error"] = snap.Err.Error()
		}
		resp["upstream"] = up
	}
	writeJSON(w, http.StatusOK, resp)
}
