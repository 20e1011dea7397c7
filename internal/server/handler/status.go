package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the runtime status of the process.
type StatusHandler struct {
	mode      string
	makers    func() []string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler. makers reports the configured
// maker roster and may be nil.
func NewStatusHandler(mode string, makers func() []string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, makers: makers, startedAt: startedAt}
}

// GetStatus responds with the mode, maker roster and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	makers := []string{}
	if h.makers != nil {
		makers = append(makers, h.makers()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"makers":         makers,
		"started_at":     h.startedAt.UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
