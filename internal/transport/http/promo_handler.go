package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "promocli/internal/errors"
	"promocli/internal/middleware"
	"promocli/internal/services"
	"promocli/pkg/contracts/domain"
)

// Response formats of the upload endpoint.
const (
	FormatJSON = "json"
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	csvContentType  = "text/csv; charset=utf-8"

	// Part of the multipart form kept in memory; the rest spills to temp files.
	multipartMemory = 8 << 20
)

// PromoService is the part of services.PromoService the handler uses.
type PromoService interface {
	Promotions() []services.PromotionInfo
	AnalyzeRows(ctx context.Context, rows []map[string]string, enabled []string) (*services.AnalysisResult, error)
	AnalyzeUpload(ctx context.Context, filename string, r io.Reader, sheet string, enabled []string) (*services.AnalysisResult, error)
	WriteWorkbook(ctx context.Context, w io.Writer, result *services.AnalysisResult) error
	WriteSummaryCSV(w io.Writer, result *services.AnalysisResult) error
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Rows       []map[string]string `json:"rows" validate:"required,min=1"`
	Promotions []string            `json:"promotions" validate:"omitempty,dive,required"`
}

// uploadParams are the non-file fields of an upload.
type uploadParams struct {
	Filename string `json:"file" validate:"required,filename"`
	Sheet    string `json:"sheet" validate:"sheetname"`
}

// AnalyzeResponse is the JSON answer of both analyze endpoints.
type AnalyzeResponse struct {
	*services.AnalysisResult
	OutputRows int                 `json:"output_rows"`
	Records    []domain.LineRecord `json:"records,omitempty"`
}

// Render implements render.Renderer
func (a *AnalyzeResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// PromotionsResponse lists the catalog.
type PromotionsResponse struct {
	Promotions []services.PromotionInfo `json:"promotions"`
	Count      int                      `json:"count"`
}

// Render implements render.Renderer
func (p *PromotionsResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// PromoHandler serves the promotion listing and the analyze endpoints.
type PromoHandler struct {
	service       PromoService
	validator     *middleware.Validator
	errorHandler  *apierrors.ErrorHandler
	logger        *slog.Logger
	maxUploadSize int64
}

// NewPromoHandler creates a promo handler. Uploads larger than maxUploadSize
// bytes are refused with 413.
func NewPromoHandler(service PromoService, validator *middleware.Validator, errorHandler *apierrors.ErrorHandler, logger *slog.Logger, maxUploadSize int64) *PromoHandler {
	return &PromoHandler{
		service:       service,
		validator:     validator,
		errorHandler:  errorHandler,
		logger:        logger.With(slog.String("handler", "promo")),
		maxUploadSize: maxUploadSize,
	}
}

// Routes mounts under /api.
func (h *PromoHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(render.SetContentType(render.ContentTypeJSON)).Get("/promos", h.ListPromotions)

	r.Route("/analyze", func(r chi.Router) {
		r.With(
			middleware.RequireContentType("application/json"),
			h.validator.JSONBody,
		).Post("/", h.Analyze)
		r.With(middleware.RequireContentType("multipart/form-data")).Post("/upload", h.AnalyzeUpload)
	})

	return r
}

// ListPromotions handles GET /api/promos
func (h *PromoHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos := h.service.Promotions()
	render.Render(w, r, &PromotionsResponse{Promotions: promos, Count: len(promos)})
}

// Analyze handles POST /api/analyze
func (h *PromoHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.BadRequest(err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	result, err := h.service.AnalyzeRows(r.Context(), req.Rows, req.Promotions)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "rows analyzed",
		slog.Int("input_rows", result.InputRows),
		slog.String("request_id", chimw.GetReqID(r.Context())))

	render.Render(w, r, newAnalyzeResponse(result))
}

// AnalyzeUpload handles POST /api/analyze/upload
func (h *PromoHandler) AnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	format, ok := h.validator.Enum(w, r, "format", []string{FormatJSON, FormatXLSX, FormatCSV}, FormatJSON)
	if !ok {
		return
	}

	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			h.errorHandler.HandleError(w, r, apierrors.TooLarge(h.maxUploadSize, r.ContentLength))
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.BadRequest(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidField("file", "a file field with the export is required"))
		return
	}
	defer file.Close()

	params := uploadParams{
		Filename: filepath.Base(header.Filename),
		Sheet:    firstNonEmpty(r.FormValue("sheet"), r.URL.Query().Get("sheet")),
	}
	if err := h.validator.Struct(params); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	enabled := splitList(r.MultipartForm.Value["promotions"])
	if len(enabled) == 0 {
		enabled = splitList(r.URL.Query()["promotions"])
	}

	result, err := h.service.AnalyzeUpload(r.Context(), params.Filename, file, params.Sheet, enabled)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "upload analyzed",
		slog.String("file", params.Filename),
		slog.Int64("size", header.Size),
		slog.String("format", format),
		slog.Int("input_rows", result.InputRows))

	switch format {
	case FormatXLSX:
		h.attach(w, r, xlsxContentType, outputName(params.Filename, ".xlsx"), func(buf io.Writer) error {
			return h.service.WriteWorkbook(r.Context(), buf, result)
		})
	case FormatCSV:
		h.attach(w, r, csvContentType, outputName(params.Filename, "_summary.csv"), func(buf io.Writer) error {
			return h.service.WriteSummaryCSV(buf, result)
		})
	default:
		render.Render(w, r, newAnalyzeResponse(result))
	}
}

// attach renders into a buffer first so a failed write still gets a problem response.
func (h *PromoHandler) attach(w http.ResponseWriter, r *http.Request, contentType, name string, write func(io.Writer) error) {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "failed to stream attachment", slog.String("error", err.Error()))
	}
}

func newAnalyzeResponse(result *services.AnalysisResult) *AnalyzeResponse {
	resp := &AnalyzeResponse{AnalysisResult: result}
	if result.Table != nil {
		resp.OutputRows = len(result.Table.Records)
		resp.Records = result.Table.Records
	}
	return resp
}

// outputName derives the download name: orders.csv becomes orders_analysed.xlsx.
func outputName(upload, suffix string) string {
	base := strings.TrimSuffix(upload, filepath.Ext(upload))
	if suffix == ".xlsx" {
		return base + "_analysed.xlsx"
	}
	return base + suffix
}

// splitList flattens repeated and comma separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
