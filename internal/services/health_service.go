package services

import (
	"context"
	"log/slog"
	"runtime"
	"strconv"
	"time"

	"promocli/internal/promo"
	"promocli/pkg/contracts"
)

// Health states reported by the probes.
const (
	StatusOK       = "ok"
	StatusReady    = "ready"
	StatusNotReady = "not_ready"
	StatusAlive    = "alive"
)

// HealthService answers the health, readiness, liveness and version probes.
// The service is ready once the rule catalog holds at least one rule.
type HealthService struct {
	version   string
	buildTime string
	catalog   *promo.Catalog
	started   time.Time
	logger    *slog.Logger
}

// HealthStatus is the body of the health probes.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth is the state of one dependency.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	contracts.VersionInfo
	Rules     int       `json:"rules"`
	StartTime time.Time `json:"start_time"`
	Uptime    float64   `json:"uptime_seconds"`
}

// NewHealthService creates the probes over catalog, which may be nil.
func NewHealthService(version, buildTime string, catalog *promo.Catalog, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "health"))
	logger.Debug("health service ready", slog.String("version", version))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		catalog:   catalog,
		started:   time.Now(),
		logger:    logger,
	}
}

func (hs *HealthService) status(s string) HealthStatus {
	return HealthStatus{Status: s, Timestamp: time.Now().UTC(), Version: hs.version}
}

// HealthCheck always reports ok while the process serves requests.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return hs.status(StatusOK)
}

// ReadinessCheck reports not_ready while no promotion rules are loaded.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	catalog := hs.catalogHealth()
	st := hs.status(catalog.Status)
	st.Services = map[string]interface{}{"catalog": catalog}
	if catalog.Status != StatusReady {
		hs.logger.DebugContext(ctx, "not ready", slog.String("reason", catalog.Message))
	}
	return st
}

// LivenessCheck adds Go runtime figures.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	st := hs.status(StatusAlive)
	st.Runtime = map[string]interface{}{
		"uptime":     time.Since(hs.started).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	return st
}

// Version reports the build, the ruleset revision and the loaded rule count.
func (hs *HealthService) Version() VersionResponse {
	info := contracts.GetVersionInfo()
	info.Version = hs.version
	info.BuildTime = hs.buildTime

	resp := VersionResponse{
		VersionInfo: info,
		StartTime:   hs.started.UTC(),
		Uptime:      time.Since(hs.started).Seconds(),
	}
	if hs.catalog != nil {
		resp.Rules = hs.catalog.Count()
	}
	return resp
}

func (hs *HealthService) catalogHealth() ServiceHealth {
	n := 0
	if hs.catalog != nil {
		n = hs.catalog.Count()
	}
	if n == 0 {
		return ServiceHealth{Status: StatusNotReady, Message: "no promotion rules loaded"}
	}
	return ServiceHealth{
		Status:  StatusReady,
		Message: strconv.Itoa(n) + " promotion rules loaded",
		Uptime:  time.Since(hs.started).Round(time.Second).String(),
	}
}
