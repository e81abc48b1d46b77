package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	apierrors "promocli/internal/errors"
	"promocli/internal/infrastructure"
)

const (
	// RequestIDHeader is read from clients and echoed on every response.
	RequestIDHeader = "X-Request-ID"

	maxCapturedBody = 1 << 20
	maxLoggedBody   = 500
)

// RequestID tags the request with an id, the client's X-Request-ID when
// present. The id is where chi's GetReqID looks for it. Log lines carry the
// span's trace id when OTel has started one, the request id otherwise.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		traceID := id
		if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
			traceID = sc.TraceID().String()
		}

		ctx := context.WithValue(r.Context(), chimw.RequestIDKey, id)
		ctx = infrastructure.WithTraceID(ctx, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog writes one record per request. Failed JSON requests also log the
// head of their body; uploads are never captured.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "access_log"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := captureJSONBody(r)
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", ww.BytesWritten()),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("request_id", chimw.GetReqID(r.Context())),
			}
			if r.URL.RawQuery != "" {
				attrs = append(attrs, slog.String("query", r.URL.RawQuery))
			}
			if status >= http.StatusBadRequest && len(body) > 0 {
				attrs = append(attrs, slog.String("request_body", truncate(string(body), maxLoggedBody)))
			}

			logger.LogAttrs(r.Context(), statusLevel(status), "http request", attrs...)
		})
	}
}

func captureJSONBody(r *http.Request) []byte {
	if r.Body == nil || r.ContentLength <= 0 || r.ContentLength > maxCapturedBody {
		return nil
	}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return nil
	}
	body, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	return body
}

func statusLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Recoverer turns a handler panic into a 500 problem. http.ErrAbortHandler
// is re-raised so net/http can abort the connection.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())))
				apierrors.WriteStatus(w, r, http.StatusInternalServerError, "An unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter is a single token bucket shared by all clients.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRateLimiter allows rps requests per second with bursts of burst.
func NewRateLimiter(rps float64, burst int, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst), logger: logger}
}

// Handler rejects requests that would have to wait for a token, with a
// Retry-After of the wait rounded up to whole seconds.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := rl.limiter.Reserve()
		wait := res.Delay()
		if res.OK() && wait == 0 {
			next.ServeHTTP(w, r)
			return
		}
		res.Cancel()

		retry := int(math.Ceil(wait.Seconds()))
		if retry < 1 || !res.OK() {
			retry = 1
		}
		rl.logger.WarnContext(r.Context(), "rate limit exceeded",
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("retry_after", retry))

		w.Header().Set("Retry-After", strconv.Itoa(retry))
		apierrors.WriteStatus(w, r, http.StatusTooManyRequests,
			"Rate limit exceeded, retry after "+strconv.Itoa(retry)+"s")
	})
}

// CORSConfig configures CORS. Empty AllowedOrigins allows any origin.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	MaxAge         time.Duration
	Logger         *slog.Logger
}

// CORS answers preflight requests itself and decorates the rest.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	methods := strings.Join(orDefault(cfg.AllowedMethods, http.MethodGet, http.MethodPost, http.MethodOptions), ", ")
	headers := strings.Join(orDefault(cfg.AllowedHeaders, "Accept", "Content-Type", RequestIDHeader), ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 5 * time.Minute
	}

	originAllowed := func(origin string) bool {
		if len(cfg.AllowedOrigins) == 0 {
			return true
		}
		for _, o := range cfg.AllowedOrigins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			allowed := originAllowed(origin)
			if origin != "" && allowed {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			h.Set("Access-Control-Max-Age", strconv.Itoa(int(maxAge.Seconds())))

			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.Logger != nil {
				cfg.Logger.DebugContext(r.Context(), "cors preflight",
					slog.String("origin", origin), slog.Bool("allowed", allowed))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}

func orDefault(values []string, defaults ...string) []string {
	if len(values) == 0 {
		return defaults
	}
	return values
}

// SecurityHeaders sets headers for an API that serves no HTML.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
