package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// HealthHandler reports process and database liveness.
type HealthHandler struct {
	ping func(ctx context.Context) error
}

// NewHealthHandler takes the database ping; nil reports the database as
// not configured.
func NewHealthHandler(ping func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ping: ping}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "mongo": "not configured"}
	code := http.StatusOK

	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			log.WithError(err).Warn("mongo ping failed")
			status["status"] = "degraded"
			status["mongo"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["mongo"] = "ok"
		}
	}

	writeJSON(w, code, status)
}
