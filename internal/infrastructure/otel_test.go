package infrastructure

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"promocli/internal/config"
	"promocli/internal/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "test-service",
		ServiceVersion: "v1.0.0",
		Environment:    "test",
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
		TraceWriter:    io.Discard,
	}
}

// TestOTelInitialization tests OpenTelemetry initialization
func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Registry)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := OTelConfigFrom(config.Default().Telemetry)

	assert.Equal(t, config.AppName, cfg.ServiceName)
	assert.False(t, cfg.EnableTracing, "tracing is off by default")
	assert.True(t, cfg.EnableMetrics)

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	assert.Nil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)
}

// TestTraceCorrelation tests trace ID correlation
func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := otel.Tracer("test").Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Equal(t, traceID, GetTraceID(ctx), "span trace id is used when no request id is set")

	ctx = WithTraceID(ctx, "request-1")
	assert.Equal(t, "request-1", GetTraceID(ctx))

	RecordError(ctx, assert.AnError)
	assert.True(t, span.IsRecording())
}

func TestStdoutTraceExport(t *testing.T) {
	var buf bytes.Buffer
	cfg := testOTelConfig()
	cfg.TraceWriter = &buf

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)

	_, span := providers.Tracer.Start(context.Background(), "promo.analyze")
	span.End()
	require.NoError(t, providers.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "promo.analyze"`)
	assert.Contains(t, buf.String(), "service.instance.id")
}

// TestPrometheusEndpoint tests the Prometheus metrics endpoint
func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(testOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordClassificationMetrics(context.Background(), metrics, ClassificationRun{
		Source: "cli", InputRows: 3, OutputRows: 2,
		LabelCounts: map[string]int{"Gift Card": 2},
	})

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "promo_classifications_total")
	assert.Contains(t, string(body), "go_goroutines")
}

// TestOTelConfiguration tests different configuration options
func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OTelConfig)
		wantErr bool
	}{
		{name: "development_config", mutate: func(*OTelConfig) {}},
		{name: "disabled_tracing", mutate: func(c *OTelConfig) { c.EnableTracing = false }},
		{name: "disabled_metrics", mutate: func(c *OTelConfig) { c.EnableMetrics = false }},
		{name: "none_exporters", mutate: func(c *OTelConfig) { c.TraceExporter, c.MetricExporter = "none", "none" }},
		{name: "unknown_trace_exporter", mutate: func(c *OTelConfig) { c.TraceExporter = "otlp" }, wantErr: true},
		{name: "unknown_metric_exporter", mutate: func(c *OTelConfig) { c.MetricExporter = "statsd" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testOTelConfig()
			tt.mutate(cfg)

			providers, err := InitializeOTel(cfg, quietLogger())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, cfg.EnableTracing && cfg.TraceExporter != "none", providers.TracerProvider != nil)
			assert.Equal(t, cfg.EnableMetrics && cfg.MetricExporter != "none", providers.MeterProvider != nil)
			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordClassificationMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := CreateBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	RecordClassificationMetrics(ctx, metrics, ClassificationRun{
		Source:      "upload",
		InputRows:   10,
		OutputRows:  7,
		LabelCounts: map[string]int{"FP Purchase": 4, "Gift Card": 1},
		LabelSales:  map[string]float64{"FP Purchase": 400, "Gift Card": 0},
		Duration:    20 * time.Millisecond,
	})
	RecordClassificationMetrics(ctx, metrics, ClassificationRun{
		Source: "upload",
		Err:    errors.NewSchemaError("total"),
	})
	RecordHTTPRequest(ctx, metrics, http.MethodPost, "/api/analyze", http.StatusOK, time.Millisecond)
	RecordClassificationMetrics(ctx, nil, ClassificationRun{})

	got := collect(t, reader)

	assert.Equal(t, int64(2), sumOf(t, got["promo_classifications_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["promo_classification_errors_total"]))
	assert.Equal(t, int64(7), sumOf(t, got["promo_rows_classified_total"]))
	assert.Equal(t, int64(3), sumOf(t, got["promo_rows_dropped_total"]))
	assert.Equal(t, int64(5), sumOf(t, got["promo_rows_labelled_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["http_requests_total"]))

	errs := got["promo_classification_errors_total"].Data.(metricdata.Sum[int64])
	v, ok := errs.DataPoints[0].Attributes.Value("error.type")
	require.True(t, ok)
	assert.Equal(t, "SCHEMA", v.AsString())

	sales := got["promo_sales_total"].Data.(metricdata.Sum[float64])
	require.Len(t, sales.DataPoints, 1, "zero sales are not recorded")
	assert.InDelta(t, 400.0, sales.DataPoints[0].Value, 1e-9)
}

func TestErrorType(t *testing.T) {
	assert.Equal(t, "VALIDATION", errorType(errors.NewAppValidationError("bad")))
	assert.Equal(t, "CANCELLED", errorType(context.Canceled))
	assert.True(t, strings.HasPrefix(errorType(io.EOF), "*errors."))
}

func TestNoopBusinessMetrics(t *testing.T) {
	metrics := NoopBusinessMetrics()
	require.NotNil(t, metrics)
	assert.NotPanics(t, func() {
		RecordClassificationMetrics(context.Background(), metrics, ClassificationRun{Source: "cli", OutputRows: 1})
	})
}
