package errors

import (
	"fmt"
	"net/http"
)

// Request error codes, reported as the problem's "error_code" extension.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidJSON    = "INVALID_JSON"
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeTooLarge       = "PAYLOAD_TOO_LARGE"
)

// RequestError is a failure of the HTTP request itself, detected before the
// promo service is involved: malformed bodies, failed struct validation,
// oversized uploads.
type RequestError struct {
	Status  int
	Code    string
	Message string
	Details interface{}
}

func (e *RequestError) Error() string {
	return e.Message
}

// FieldError names one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// BadRequest wraps a decode or form parsing failure.
func BadRequest(err error) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidRequest,
		Message: "Invalid request format",
		Details: err.Error(),
	}
}

// InvalidJSON reports a body that is not well formed JSON.
func InvalidJSON() *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Code: CodeInvalidJSON, Message: "Request body contains invalid JSON"}
}

// InvalidField reports a single bad field or query parameter.
func InvalidField(field, message string) *RequestError {
	return InvalidFields([]FieldError{{Field: field, Message: message}})
}

// InvalidFields reports every field that failed validation.
func InvalidFields(fields []FieldError) *RequestError {
	return &RequestError{
		Status:  http.StatusBadRequest,
		Code:    CodeValidation,
		Message: "Request validation failed",
		Details: map[string][]FieldError{"errors": fields},
	}
}

// Missing reports an endpoint resource that is not available.
func Missing(resource string) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// TooLarge reports a body over limit bytes. size is omitted when unknown.
func TooLarge(limit, size int64) *RequestError {
	details := map[string]int64{"max_size": limit}
	if size > 0 {
		details["size"] = size
	}
	return &RequestError{
		Status:  http.StatusRequestEntityTooLarge,
		Code:    CodeTooLarge,
		Message: "Request body exceeds maximum allowed size",
		Details: details,
	}
}
