package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"promocli/internal/services"
)

// HealthHandler serves the probe endpoints under /api/health and /api/version.
type HealthHandler struct {
	service *services.HealthService
	logger  *slog.Logger
}

func NewHealthHandler(service *services.HealthService, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{service: service, logger: logger.With(slog.String("handler", "health"))}
}

// respond answers 503 for a not_ready probe so orchestrators take the
// instance out of rotation.
func (h *HealthHandler) respond(w http.ResponseWriter, r *http.Request, st services.HealthStatus) {
	if st.Status == services.StatusNotReady {
		h.logger.WarnContext(r.Context(), "probe failed", slog.String("path", r.URL.Path), slog.Any("services", st.Services))
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, st)
}

// HealthCheck handles GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.HealthCheck(r.Context()))
}

// ReadinessCheck handles GET /api/health/ready
func (h *HealthHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.ReadinessCheck(r.Context()))
}

// LivenessCheck handles GET /api/health/live
func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.service.LivenessCheck(r.Context()))
}

// Version handles GET /api/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Version())
}
