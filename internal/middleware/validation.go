package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "promocli/internal/errors"
)

// DefaultMaxBodySize applies when NewValidator is given no limit.
const DefaultMaxBodySize = 10 << 20

// Validator checks request bodies, query parameters and decoded request
// structs. Failures are answered through the error handler.
type Validator struct {
	validate     *validator.Validate
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
	maxBodySize  int64
}

// NewValidator creates a validator. JSON bodies over maxBodySize bytes are
// refused with 413.
func NewValidator(logger *slog.Logger, errorHandler *apierrors.ErrorHandler, maxBodySize int64) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("filename", isFilename)
	_ = v.RegisterValidation("sheetname", isSheetName)
	v.RegisterTagNameFunc(jsonFieldName)

	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Validator{
		validate:     v,
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("component", "validator")),
		maxBodySize:  maxBodySize,
	}
}

// jsonFieldName reports fields by their JSON name.
func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// JSONBody buffers the body of a write request, refusing it when it is too
// large or not well formed JSON. The handler reads the buffered copy.
func (v *Validator) JSONBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody || isReadOnly(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > v.maxBodySize {
			v.errorHandler.HandleError(w, r, apierrors.TooLarge(v.maxBodySize, r.ContentLength))
			return
		}

		// Reading one byte past the limit catches chunked bodies that are too large.
		body, err := io.ReadAll(io.LimitReader(r.Body, v.maxBodySize+1))
		switch {
		case err != nil:
			v.logger.WarnContext(r.Context(), "failed to read request body", slog.String("error", err.Error()))
			v.errorHandler.HandleError(w, r, apierrors.BadRequest(err))
			return
		case int64(len(body)) > v.maxBodySize:
			v.errorHandler.HandleError(w, r, apierrors.TooLarge(v.maxBodySize, 0))
			return
		case len(body) > 0 && !json.Valid(body):
			v.errorHandler.HandleError(w, r, apierrors.InvalidJSON())
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func isReadOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// Struct runs the validate tags of s. Field failures come back as a single
// RequestError listing every field.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.BadRequest(err)
	}
	fields := make([]apierrors.FieldError, len(fieldErrs))
	for i, fe := range fieldErrs {
		fields[i] = apierrors.FieldError{Field: fe.Namespace(), Message: fieldMessage(fe)}
	}
	return apierrors.InvalidFields(fields)
}

// Enum returns query parameter param matched case-insensitively against
// allowed, or def when it is absent. On a bad value it answers the request
// and returns false.
func (v *Validator) Enum(w http.ResponseWriter, r *http.Request, param string, allowed []string, def string) (string, bool) {
	value := r.URL.Query().Get(param)
	if value == "" {
		return def, true
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return a, true
		}
	}
	v.errorHandler.HandleError(w, r, apierrors.InvalidField(param,
		fmt.Sprintf("%s must be one of: %s", param, strings.Join(allowed, ", "))))
	return "", false
}

// RequireContentType refuses write requests whose media type is not one of
// types: 400 when the header is missing, 415 otherwise.
func RequireContentType(types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isReadOnly(r.Method) || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Content-Type")
			if header == "" {
				apierrors.WriteStatus(w, r, http.StatusBadRequest, "Content-Type header is required")
				return
			}
			mediaType, _, err := mime.ParseMediaType(header)
			if err == nil {
				for _, t := range types {
					if strings.EqualFold(mediaType, t) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			apierrors.WriteStatus(w, r, http.StatusUnsupportedMediaType,
				fmt.Sprintf("unsupported content type %q, expected %s", header, strings.Join(types, " or ")))
		})
	}
}

func fieldMessage(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	case "max":
		return fmt.Sprintf("%s must have at most %s entries", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	case "filename":
		return field + " must be a plain file name"
	case "sheetname":
		return field + " must be a valid worksheet name"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// isFilename accepts a bare file name: no directories, no "..", at most 255 bytes.
func isFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name != "" && len(name) <= 255 &&
		!strings.Contains(name, "..") && !strings.ContainsAny(name, `/\`)
}

// isSheetName applies the xlsx worksheet rules: at most 31 characters and
// none of : \ / ? * [ ]. Empty selects the first sheet.
func isSheetName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	return name == "" || (len([]rune(name)) <= 31 && !strings.ContainsAny(name, `:\/?*[]`))
}
