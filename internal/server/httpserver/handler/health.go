package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/infra/buildinfo"
)

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /readyz. The server is ready once recovery has
// completed and the log accepts appends.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ready(); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	resp := StatusResponse{
		Build:       buildinfo.Get(),
		Ready:       true,
		Leaves:      stats.Leaves,
		Sections:    stats.Sections,
		LogBytes:    stats.LogBytes,
		LogSegments: stats.LogSegments,
		Log:         h.engine.State(),
	}
	if err := h.engine.Ready(); err != nil {
		resp.Ready = false
		resp.Error = err.Error()
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}
