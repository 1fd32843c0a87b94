package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the unauthenticated liveness probe.
type HealthHandler struct {
	role      string
	storage   string
	pinger    Pinger
	timeout   time.Duration
	responder responder
}

func NewHealthHandler(role, storage string, pinger Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		role:      role,
		storage:   storage,
		pinger:    pinger,
		timeout:   2 * time.Second,
		responder: newResponder(logger),
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Role    string `json:"role"`
	Storage string `json:"storage"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Role: h.role, Storage: h.storage}
	status := http.StatusOK

	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			h.responder.loggerFor(r.Context()).Error("storage ping failed", zap.Error(err))
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
	}

	h.responder.writeJSON(r.Context(), w, status, resp)
}
