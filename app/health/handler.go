package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/poshstock/poshstock/app/respond"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db  Pinger
	log *slog.Logger
}

// NewHealthHandler returns a handler that also pings db when it is not nil.
func NewHealthHandler(db Pinger, log *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Error("health check failed", "error", err)
			respond.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "database unavailable"})
			return
		}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
