package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5/middleware"
)

// appProblem is the HTTP rendering of one AppError type.
type appProblem struct {
	status int
	typ    string
	title  string
}

var appProblems = map[ErrorType]appProblem{
	ErrTypeSchema:     {http.StatusUnprocessableEntity, TypeSchema, "Missing Required Columns"},
	ErrTypeValue:      {http.StatusUnprocessableEntity, TypeInvalidValue, "Invalid Value"},
	ErrTypeParsing:    {http.StatusBadRequest, TypeUnreadable, "Unreadable Input"},
	ErrTypeValidation: {http.StatusBadRequest, TypeValidation, "Validation Failed"},
	ErrTypeNotFound:   {http.StatusNotFound, TypeNotFound, "Resource Not Found"},
}

// requestProblemTypes maps RequestError codes that have a dedicated type;
// the rest fall back to the status problem.
var requestProblemTypes = map[string]string{
	CodeInvalidRequest: TypeValidation,
	CodeInvalidJSON:    TypeValidation,
	CodeValidation:     TypeValidation,
}

const internalDetail = "An unexpected error occurred while processing your request"

// ErrorHandler turns handler errors into problem responses and logs them.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates an error handler. includeStack adds the goroutine
// stack to every problem and is meant for local debugging only.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err and writes its problem. A nil err writes nothing.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ProblemFor(err, r)
	reqID := middleware.GetReqID(r.Context())

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))

	problem.WithExtension("trace_id", reqID)
	if h.includeStack {
		problem.WithExtension("stack", stack())
	}
	_ = problem.Write(w)
}

// ProblemFor maps err to its problem without writing anything. Internal
// failures never expose err's text.
func (h *ErrorHandler) ProblemFor(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return StatusProblem(http.StatusGatewayTimeout, "The request took too long to process and was cancelled", path)
	}

	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		p := StatusProblem(reqErr.Status, reqErr.Message, path)
		if typ, ok := requestProblemTypes[reqErr.Code]; ok {
			p.Type = typ
		}
		p.WithExtension("error_code", reqErr.Code)
		if reqErr.Details != nil {
			p.WithExtension("details", reqErr.Details)
		}
		return p
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorProblem(appErr, path)
	}

	return StatusProblem(http.StatusInternalServerError, internalDetail, path)
}

func appErrorProblem(appErr *AppError, path string) *ProblemDetails {
	kind, ok := appProblems[appErr.Type]
	if !ok {
		return StatusProblem(http.StatusInternalServerError, internalDetail, path).
			WithExtension("error_type", string(appErr.Type))
	}

	detail := appErr.Message
	if appErr.Type == ErrTypeParsing {
		detail = appErr.Error()
	}
	p := NewProblemDetails(kind.status, kind.typ, kind.title, detail, path).
		WithExtension("error_type", string(appErr.Type))

	if fields, ok := appErr.Context["fields"]; ok {
		p.WithExtension("fields", fields)
	}
	if unknown, ok := appErr.Context["unknown"]; ok {
		p.Type = TypeUnknownPromo
		p.WithExtension("unknown", unknown)
	}
	return p
}

// NotFound is the router's 404 handler.
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, r, http.StatusNotFound, "The requested resource was not found")
}

// MethodNotAllowed is the router's 405 handler.
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteStatus(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method))
}

func stack() string {
	buf := make([]byte, 8<<10)
	return string(buf[:runtime.Stack(buf, false)])
}
