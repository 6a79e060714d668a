package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/chunkmeta-go/internal/core/domain"
	"github.com/yndnr/chunkmeta-go/internal/telemetry/logger"
)

// handleGetCheckpoint handles GET /admin/v1/checkpoint.
func (h *Handler) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	st := h.engine.State()
	resp := CheckpointStatus{Log: st, Pending: st.Seq}

	latest, err := h.engine.LatestCheckpoint()
	switch {
	case err == nil:
		resp.Latest = latest
		resp.Pending = st.Seq - latest.Seq
	case errors.Is(err, domain.ErrNoCheckpoint):
	default:
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleTriggerCheckpoint handles POST /admin/v1/checkpoint.
func (h *Handler) handleTriggerCheckpoint(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	info, err := h.engine.TriggerCheckpoint(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("checkpoint written on request",
		"path", info.Path,
		"seq", info.Seq,
		"elapsed", time.Since(start))
	h.writeJSON(w, r, http.StatusCreated, info)
}
