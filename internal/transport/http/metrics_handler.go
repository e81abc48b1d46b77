package http

import (
	"net/http"

	apierrors "promocli/internal/errors"
)

// MetricsHandler serves the Prometheus exposition, or a 404 problem when the
// metric exporter is disabled.
type MetricsHandler struct {
	exposition   http.Handler
	errorHandler *apierrors.ErrorHandler
}

// NewMetricsHandler creates a new metrics handler. exposition may be nil.
func NewMetricsHandler(exposition http.Handler, errorHandler *apierrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exposition: exposition, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exposition == nil {
		h.errorHandler.HandleError(w, r, apierrors.Missing("metrics exporter"))
		return
	}
	h.exposition.ServeHTTP(w, r)
}
