package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"promocli/internal/infrastructure"
)

// OTelMiddleware opens a server span per request and feeds the HTTP metrics.
// It runs after chi's RealIP so RemoteAddr is the client address.
type OTelMiddleware struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	metrics    *infrastructure.BusinessMetrics
}

// NewOTelMiddleware creates the middleware. Without a tracer provider the
// global no-op tracer is used; without metrics the instruments are no-ops.
func NewOTelMiddleware(providers *infrastructure.OTelProviders, metrics *infrastructure.BusinessMetrics) *OTelMiddleware {
	m := &OTelMiddleware{
		tracer:     providers.Tracer,
		propagator: otel.GetTextMapPropagator(),
		metrics:    metrics,
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(infrastructure.MeterName)
	}
	if m.metrics == nil {
		m.metrics = infrastructure.NoopBusinessMetrics()
	}
	return m
}

func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := m.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
				semconv.ServerAddressKey.String(r.Host),
				semconv.UserAgentOriginalKey.String(r.UserAgent()),
				semconv.HTTPRequestBodySizeKey.Int64(r.ContentLength),
				semconv.ClientAddressKey.String(r.RemoteAddr),
			))
		defer span.End()

		m.metrics.HTTPActiveRequests.Add(ctx, 1)
		defer m.metrics.HTTPActiveRequests.Add(ctx, -1)

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		r = r.WithContext(ctx)
		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(status),
			semconv.HTTPResponseBodySizeKey.Int(ww.BytesWritten()),
			attribute.Float64("http.request.duration", elapsed.Seconds()),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		infrastructure.RecordHTTPRequest(ctx, m.metrics, r.Method, route, status, elapsed)
	})
}

// routePattern is chi's matched pattern, known only after routing. Unmatched
// requests report their raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
