package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"promocli/internal/config"
)

const (
	ServiceName    = config.AppName
	ServiceVersion = config.AppVersion

	// MeterName is the instrumentation scope of every tracer and meter.
	MeterName = "promocli"
)

// Exporter names accepted in telemetry config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

// OTelConfig selects exporters for one process.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string
	MetricExporter string
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64

	// TraceWriter receives stdout-exported spans. Defaults to stderr so the
	// CLI report on stdout stays clean.
	TraceWriter io.Writer
}

// OTelProviders are the providers InitializeOTel built. Fields for a
// disabled signal stay nil.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Registry       *promclient.Registry
	Logger         *slog.Logger
}

// OTelConfigFrom maps the telemetry section of the application config.
func OTelConfigFrom(t config.TelemetryConfig) *OTelConfig {
	return &OTelConfig{
		ServiceName:    t.ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    t.Environment,
		TraceExporter:  t.TraceExporter,
		MetricExporter: t.MetricExporter,
		EnableTracing:  t.TraceExporter != ExporterNone,
		EnableMetrics:  t.MetricExporter != ExporterNone,
		SampleRatio:    t.SampleRatio,
	}
}

// InitializeOTel builds the enabled providers, installs them and the W3C
// propagators globally, and routes OTel's internal errors to logger.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = OTelConfigFrom(config.Default().Telemetry)
	}
	if logger == nil {
		logger = slog.Default()
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", instanceID()),
	)

	p := &OTelProviders{Logger: logger}
	if cfg.EnableTracing {
		if err := p.startTracing(cfg, res); err != nil {
			return nil, fmt.Errorf("tracing: %w", err)
		}
	}
	if cfg.EnableMetrics {
		if err := p.startMetrics(cfg, res); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("opentelemetry error", slog.String("error", err.Error()))
	}))

	logger.Info("OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", p.TracerProvider != nil),
		slog.Bool("metrics_enabled", p.MeterProvider != nil))
	return p, nil
}

func (p *OTelProviders) startTracing(cfg *OTelConfig, res *resource.Resource) error {
	var exporter sdktrace.SpanExporter
	switch cfg.TraceExporter {
	case ExporterNone:
		return nil
	case ExporterStdout:
		w := cfg.TraceWriter
		if w == nil {
			w = os.Stderr
		}
		var err error
		if exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint()); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)

	p.TracerProvider = tp
	p.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	p.Logger.Debug("tracing started", slog.String("exporter", cfg.TraceExporter), slog.Float64("sample_ratio", cfg.SampleRatio))
	return nil
}

// startMetrics exports through a registry of its own, so repeated
// initialization never collides on registration. The registry also carries
// the Go runtime and process collectors.
func (p *OTelProviders) startMetrics(cfg *OTelConfig, res *resource.Resource) error {
	switch cfg.MetricExporter {
	case ExporterNone:
		return nil
	case ExporterPrometheus:
	default:
		return fmt.Errorf("unsupported metric exporter %q", cfg.MetricExporter)
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	p.MeterProvider = mp
	p.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
	p.Registry = registry
	p.PrometheusHTTP = promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(p.Logger.Handler(), slog.LevelError),
	})
	p.Logger.Debug("metrics started", slog.String("exporter", cfg.MetricExporter))
	return nil
}

// Shutdown flushes and stops both providers, reporting every failure.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return host + "-" + strconv.Itoa(os.Getpid())
}

// TraceIDFromContext returns the active span's trace id, or "".
func TraceIDFromContext(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// RecordError marks the active span as failed with err.
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}
