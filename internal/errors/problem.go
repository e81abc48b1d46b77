package errors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Problem types (RFC 7807 "type" member).
const (
	TypeBadRequest       = "/errors/bad-request"
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUnsupportedMedia = "/errors/unsupported-media-type"
	TypeRateLimit        = "/errors/rate-limit"
	TypeTimeout          = "/errors/timeout"
	TypeUnavailable      = "/errors/unavailable"
	TypeInternal         = "/errors/internal"
	TypeUnknown          = "/errors/unknown"

	TypeSchema       = "/errors/data/schema"
	TypeInvalidValue = "/errors/data/invalid-value"
	TypeUnreadable   = "/errors/data/unreadable"
	TypeUnknownPromo = "/errors/promo/unknown"
)

// ProblemContentType is the media type of every error body.
const ProblemContentType = "application/problem+json"

// ProblemDetails is an RFC 7807 problem. Extensions are flattened into the
// top-level JSON object.
type ProblemDetails struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Instance   string
	Extensions map[string]interface{}
}

// NewProblemDetails builds a problem with no extensions.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: map[string]interface{}{},
	}
}

// WithExtension sets an extension member and returns p.
func (p *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	if p.Extensions == nil {
		p.Extensions = map[string]interface{}{}
	}
	p.Extensions[key] = value
	return p
}

func (p *ProblemDetails) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(p.Extensions)+5)
	for k, v := range p.Extensions {
		out[k] = v
	}
	out["type"] = p.Type
	out["title"] = p.Title
	out["status"] = p.Status
	if p.Detail != "" {
		out["detail"] = p.Detail
	}
	if p.Instance != "" {
		out["instance"] = p.Instance
	}
	return json.Marshal(out)
}

// Write sends p with its status code.
func (p *ProblemDetails) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", ProblemContentType)
	w.Header().Del("Content-Length")
	w.WriteHeader(p.Status)
	return json.NewEncoder(w).Encode(p)
}

// statusProblems gives the problem type and title used when only a status is
// known, as in middleware rejections.
var statusProblems = map[int][2]string{
	http.StatusBadRequest:            {TypeBadRequest, "Bad Request"},
	http.StatusNotFound:              {TypeNotFound, "Not Found"},
	http.StatusMethodNotAllowed:      {TypeMethodNotAllowed, "Method Not Allowed"},
	http.StatusRequestEntityTooLarge: {TypePayloadTooLarge, "Payload Too Large"},
	http.StatusUnsupportedMediaType:  {TypeUnsupportedMedia, "Unsupported Media Type"},
	http.StatusTooManyRequests:       {TypeRateLimit, "Too Many Requests"},
	http.StatusInternalServerError:   {TypeInternal, "Internal Server Error"},
	http.StatusServiceUnavailable:    {TypeUnavailable, "Service Unavailable"},
	http.StatusGatewayTimeout:        {TypeTimeout, "Request Timeout"},
}

// StatusProblem builds the problem for a bare status code.
func StatusProblem(status int, detail, instance string) *ProblemDetails {
	kind, ok := statusProblems[status]
	if !ok {
		kind = [2]string{TypeUnknown, http.StatusText(status)}
	}
	return NewProblemDetails(status, kind[0], kind[1], detail, instance)
}

// WriteStatus answers r with the problem for status, tagged with the
// request id.
func WriteStatus(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := StatusProblem(status, detail, r.URL.Path)
	if id := middleware.GetReqID(r.Context()); id != "" {
		p.WithExtension("trace_id", id)
	}
	_ = p.Write(w)
}
