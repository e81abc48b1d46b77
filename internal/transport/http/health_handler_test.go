package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "promocli/internal/errors"
	"promocli/internal/promo"
	"promocli/internal/services"
)

func TestHealthHandler(t *testing.T) {
	ready := NewHealthHandler(services.NewHealthService("v1.0.0-test", "", promo.DefaultCatalog(), quietLogger()), quietLogger())
	empty := NewHealthHandler(services.NewHealthService("v1.0.0-test", "", promo.NewCatalog(), quietLogger()), quietLogger())

	tests := []struct {
		name           string
		handlerFunc    http.HandlerFunc
		expectedStatus int
		expectedField  string
		expectedValue  interface{}
	}{
		{name: "health", handlerFunc: ready.HealthCheck, expectedStatus: http.StatusOK, expectedField: "status", expectedValue: "ok"},
		{name: "ready", handlerFunc: ready.ReadinessCheck, expectedStatus: http.StatusOK, expectedField: "status", expectedValue: "ready"},
		{name: "not ready", handlerFunc: empty.ReadinessCheck, expectedStatus: http.StatusServiceUnavailable, expectedField: "status", expectedValue: "not_ready"},
		{name: "live", handlerFunc: ready.LivenessCheck, expectedStatus: http.StatusOK, expectedField: "status", expectedValue: "alive"},
		{name: "version", handlerFunc: ready.Version, expectedStatus: http.StatusOK, expectedField: "version", expectedValue: "v1.0.0-test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handlerFunc(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expectedValue, body[tt.expectedField])
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	errorHandler := apierrors.NewErrorHandler(quietLogger(), false)

	t.Run("disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewMetricsHandler(nil, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		exposition := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("promo_classifications_total 1\n"))
		})
		rec := httptest.NewRecorder()
		NewMetricsHandler(exposition, errorHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "promo_classifications_total")
	})
}
