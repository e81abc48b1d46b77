package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"promocli/internal/config"
)

// logState is the process-wide logger and the file it may be writing to.
var logState struct {
	once   sync.Once
	logger *slog.Logger
	mu     sync.Mutex
	file   *os.File
}

type contextKey string

// TraceIDContextKey is the key for storing trace ID in context
const TraceIDContextKey contextKey = "trace_id"

// InitializeLogger builds the process logger from cfg and installs it as the
// slog default. Only the first call has an effect.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	logState.once.Do(func() {
		var w io.Writer
		if w, err = logOutput(cfg); err != nil {
			return
		}
		logState.logger = newLogger(w, cfg.Level, cfg.Format)
		slog.SetDefault(logState.logger)
	})
	return GetLogger(), err
}

// GetLogger returns the process logger, or slog's default before initialization.
func GetLogger() *slog.Logger {
	if logState.logger == nil {
		return slog.Default()
	}
	return logState.logger
}

// logOutput resolves console, file or both. Console is stderr: the CLI prints
// its report on stdout.
func logOutput(cfg config.LoggingConfig) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stderr, nil
	}

	file, err := openLogFile(cfg.FilePath)
	if err != nil {
		return nil, err
	}
	logState.mu.Lock()
	logState.file = file
	logState.mu.Unlock()

	if output == "file" {
		return file, nil
	}
	return io.MultiWriter(os.Stderr, file), nil
}

// NewLogger builds a JSON logger writing to w.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return newLogger(w, level, "json")
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	lvl := parseLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(&traceHandler{Handler: h})
}

// traceHandler adds trace_id, and span_id inside a span, to every record.
type traceHandler struct {
	slog.Handler
}

func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if traceID := GetTraceID(ctx); traceID != "" {
		r.AddAttrs(slog.String("trace_id", traceID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasSpanID() {
		r.AddAttrs(slog.String("span_id", sc.SpanID().String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{Handler: h.Handler.WithGroup(name)}
}

// parseLogLevel maps config names to levels; unknown names mean info.
func parseLogLevel(level string) slog.Level {
	var lvl slog.Level
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDContextKey, traceID)
}

// GetTraceID returns the request trace ID, or the active span's trace ID.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDContextKey).(string); ok {
		return traceID
	}
	return TraceIDFromContext(ctx)
}

// CloseLogFile closes the log file opened by InitializeLogger, if any.
func CloseLogFile() error {
	logState.mu.Lock()
	defer logState.mu.Unlock()

	if logState.file == nil {
		return nil
	}
	err := logState.file.Close()
	logState.file = nil
	return err
}

// ResetLoggerForTesting undoes InitializeLogger.
func ResetLoggerForTesting() {
	CloseLogFile()
	logState.logger = nil
	logState.once = sync.Once{}
}

func openLogFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
