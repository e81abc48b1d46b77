package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies an AppError. The HTTP layer maps each type to a
// problem type and status.
type ErrorType string

const (
	ErrTypeSchema     ErrorType = "SCHEMA"
	ErrTypeValue      ErrorType = "VALUE"
	ErrTypeParsing    ErrorType = "PARSING"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError is a classified failure from the engine, the readers or the
// configuration layer. Context carries structured detail such as the missing
// field names of a schema error.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	msg := "[" + string(e.Type) + "] " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext records key on the error and returns it for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

// NewAppError builds an AppError of the given type.
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause, Context: map[string]interface{}{}}
}

// IsType reports whether err is, or wraps, an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errType
}

// NewSchemaError reports fields the input table does not expose, listed under
// the "fields" context key.
func NewSchemaError(fields ...string) *AppError {
	msg := "missing required fields: " + strings.Join(fields, ", ")
	return NewAppError(ErrTypeSchema, msg, nil).WithContext("fields", fields)
}

// NewValueError reports a field that is present but unusable.
func NewValueError(field string, cause error) *AppError {
	return NewAppError(ErrTypeValue, "invalid value for "+field, cause).WithContext("field", field)
}

func NewParsingError(message string, cause error) *AppError {
	return NewAppError(ErrTypeParsing, message, cause)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError reports bad caller input, such as an unknown promotion.
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
