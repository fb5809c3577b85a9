package api

import (
	"log/slog"
	"net/http"
	"time"

	"healthassist/internal/models"
)

// KeyStats reports per-key usage of the model credential pool. Keys are
// masked.
// GET /api/v1/admin/keys
func (h *Handlers) KeyStats(w http.ResponseWriter, r *http.Request) {
	stats := h.keys.Stats()

	response := models.KeyPoolStatsResponse{
		Size:              h.keys.Len(),
		CapacityPerWindow: h.keys.CapacityPerWindow(),
		Window:            h.keys.Window().String(),
		Keys:              make([]models.KeyStatsInfo, 0, len(stats)),
	}
	for _, s := range stats {
		info := models.KeyStatsInfo{
			Index: s.Index,
			Key:   s.Credential,
			Usage: s.Usage,
			State: string(s.State),
		}
		if !s.LastUsed.IsZero() {
			lastUsed := s.LastUsed
			info.LastUsed = &lastUsed
		}
		response.Keys = append(response.Keys, info)
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ResetKeys zeroes every usage counter in the pool.
// POST /api/v1/admin/keys/reset
func (h *Handlers) ResetKeys(w http.ResponseWriter, r *http.Request) {
	h.keys.ResetUsage()
	slog.Info("Key usage counters reset by admin",
		"remote_addr", r.RemoteAddr,
		"request_id", RequestIDFromContext(r.Context()))

	h.writeJSONResponse(w, http.StatusOK, models.ResetResponse{
		Message: "Key usage counters reset",
		ResetAt: time.Now(),
	})
}
