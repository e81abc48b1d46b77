package infrastructure

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"promocli/internal/errors"
)

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Classification metrics
	ClassificationsTotal   metric.Int64Counter
	ClassificationDuration metric.Float64Histogram
	ClassificationErrors   metric.Int64Counter
	RowsClassified         metric.Int64Counter
	RowsLabelled           metric.Int64Counter
	RowsDropped            metric.Int64Counter
	SalesTotal             metric.Float64Counter
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	m := &BusinessMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.ClassificationsTotal, err = meter.Int64Counter(
		"promo_classifications_total",
		metric.WithDescription("Total number of classification runs"),
	); err != nil {
		return nil, err
	}

	if m.ClassificationDuration, err = meter.Float64Histogram(
		"promo_classification_duration_seconds",
		metric.WithDescription("Classification run duration in seconds, parsing excluded"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.ClassificationErrors, err = meter.Int64Counter(
		"promo_classification_errors_total",
		metric.WithDescription("Total number of failed classification runs"),
	); err != nil {
		return nil, err
	}

	if m.RowsClassified, err = meter.Int64Counter(
		"promo_rows_classified_total",
		metric.WithDescription("Rows remaining after classification"),
	); err != nil {
		return nil, err
	}

	if m.RowsLabelled, err = meter.Int64Counter(
		"promo_rows_labelled_total",
		metric.WithDescription("Classified rows per promo type"),
	); err != nil {
		return nil, err
	}

	if m.RowsDropped, err = meter.Int64Counter(
		"promo_rows_dropped_total",
		metric.WithDescription("Shipping and discount rows removed during classification"),
	); err != nil {
		return nil, err
	}

	if m.SalesTotal, err = meter.Float64Counter(
		"promo_sales_total",
		metric.WithDescription("Summed line totals per promo type"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// NoopBusinessMetrics returns metrics that record nothing, for callers that
// run without a meter provider.
func NoopBusinessMetrics() *BusinessMetrics {
	m, err := CreateBusinessMetrics(noop.NewMeterProvider().Meter(MeterName))
	if err != nil {
		panic(fmt.Sprintf("noop metrics: %v", err))
	}
	return m
}

// ClassificationRun describes one classification for metric recording.
type ClassificationRun struct {
	Source      string // "cli", "json" or "upload"
	InputRows   int
	OutputRows  int
	LabelCounts map[string]int
	LabelSales  map[string]float64
	Duration    time.Duration
	Err         error
}

// RecordClassificationMetrics records metrics for one classification run
func RecordClassificationMetrics(ctx context.Context, metrics *BusinessMetrics, run ClassificationRun) {
	if metrics == nil {
		return
	}

	source := attribute.String("source", run.Source)
	status := attribute.String("status", "success")
	if run.Err != nil {
		status = attribute.String("status", "failure")
	}

	metrics.ClassificationsTotal.Add(ctx, 1, metric.WithAttributes(source, status))
	metrics.ClassificationDuration.Record(ctx, run.Duration.Seconds(), metric.WithAttributes(source, status))

	if run.Err != nil {
		metrics.ClassificationErrors.Add(ctx, 1, metric.WithAttributes(
			source, attribute.String("error.type", errorType(run.Err))))
		return
	}

	metrics.RowsClassified.Add(ctx, int64(run.OutputRows), metric.WithAttributes(source))
	if dropped := run.InputRows - run.OutputRows; dropped > 0 {
		metrics.RowsDropped.Add(ctx, int64(dropped), metric.WithAttributes(source))
	}
	for label, n := range run.LabelCounts {
		metrics.RowsLabelled.Add(ctx, int64(n), metric.WithAttributes(attribute.String("promo_type", label)))
	}
	for label, sales := range run.LabelSales {
		if sales > 0 {
			metrics.SalesTotal.Add(ctx, sales, metric.WithAttributes(attribute.String("promo_type", label)))
		}
	}
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(ctx context.Context, metrics *BusinessMetrics, method, route string, status int, duration time.Duration) {
	if metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	metrics.HTTPRequestsTotal.Add(ctx, 1, attrs)
	metrics.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// errorType names an error by its AppError type when it has one.
func errorType(err error) string {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Type)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return "CANCELLED"
	}
	return fmt.Sprintf("%T", err)
}
