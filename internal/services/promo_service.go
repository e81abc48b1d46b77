package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"promocli/internal/dataprocessing"
	"promocli/internal/errors"
	"promocli/internal/exporter"
	"promocli/internal/infrastructure"
	"promocli/internal/promo"
	"promocli/pkg/contracts/domain"
)

// Analysis sources, used as the metric "source" attribute.
const (
	SourceFile   = "file"
	SourceJSON   = "json"
	SourceUpload = "upload"
)

// PromoServiceConfig holds configuration options for the PromoService.
type PromoServiceConfig struct {
	DefaultPromotions []string                 // Applied when a request names none
	Columns           dataprocessing.ColumnMap // Export header names; defaults when nil
	Sheet             string                   // Default worksheet for xlsx input
	SharePlaces       int32
}

// PromoService parses, classifies and aggregates order exports.
type PromoService struct {
	engine     *promo.Engine
	aggregator *dataprocessing.Aggregator
	workbook   *exporter.WorkbookWriter
	csv        *exporter.CSVWriter
	metrics    *infrastructure.BusinessMetrics
	config     PromoServiceConfig
	logger     *slog.Logger
	tracer     trace.Tracer
}

// AnalysisResult is the output of one analysis.
type AnalysisResult struct {
	Enabled      []string                 `json:"enabled"`
	InputRows    int                      `json:"input_rows"`
	Table        *domain.Table            `json:"-"`
	Summary      domain.PromoSummary      `json:"summary"`
	Distribution []domain.CategorySummary `json:"distribution"`
}

// PromotionInfo describes one catalog entry for selection lists.
type PromotionInfo struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Rank     int      `json:"rank"`
	Aliases  []string `json:"aliases,omitempty"`
	Requires []string `json:"requires"`
	Default  bool     `json:"default"`

	// Expression is the CEL source of a rule loaded from a rules file.
	Expression string `json:"expression,omitempty"`
}

// NewPromoService creates a promo service. metrics may be nil.
func NewPromoService(engine *promo.Engine, metrics *infrastructure.BusinessMetrics, logger *slog.Logger, config PromoServiceConfig) *PromoService {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = promo.NewEngine(nil, logger)
	}
	if config.Columns == nil {
		config.Columns = dataprocessing.DefaultColumns()
	}

	logger = infrastructure.WithComponent(logger, "promo_service")
	logger.Info("PromoService initialized",
		slog.Int("rules", engine.Catalog().Count()),
		slog.Any("default_promotions", config.DefaultPromotions))

	return &PromoService{
		engine:     engine,
		aggregator: dataprocessing.NewAggregator(logger, dataprocessing.AggregatorConfig{SharePlaces: config.SharePlaces}),
		workbook:   exporter.NewWorkbookWriter(logger),
		csv:        exporter.NewCSVWriter(logger),
		metrics:    metrics,
		config:     config,
		logger:     logger,
		tracer:     otel.Tracer("promocli.services"),
	}
}

// Promotions lists the catalog alphabetically, marking the default selection.
func (s *PromoService) Promotions() []PromotionInfo {
	catalog := s.engine.Catalog()

	defaults := make(map[string]bool, len(s.config.DefaultPromotions))
	for _, name := range s.config.DefaultPromotions {
		if rule, ok := catalog.Resolve(name); ok {
			defaults[rule.Name()] = true
		}
	}

	names := catalog.SortedNames()
	out := make([]PromotionInfo, 0, len(names))
	for _, name := range names {
		rule, err := catalog.Get(name)
		if err != nil {
			continue
		}
		info := PromotionInfo{
			Name:    name,
			Label:   string(rule.Label()),
			Rank:    catalog.Rank(name),
			Default: defaults[name],
		}
		if a, ok := rule.(promo.Aliased); ok {
			for _, alias := range a.Aliases() {
				if alias != name {
					info.Aliases = append(info.Aliases, alias)
				}
			}
		}
		if x, ok := rule.(promo.ExpressionBacked); ok {
			info.Expression = x.Expression()
		}
		for _, f := range rule.Requires() {
			info.Requires = append(info.Requires, string(f))
		}
		out = append(out, info)
	}
	return out
}

// Selection returns the promotions a request runs: enabled when it names any,
// the configured defaults otherwise.
func (s *PromoService) Selection(enabled []string) []string {
	var names []string
	for _, n := range enabled {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		names = append(names, s.config.DefaultPromotions...)
	}
	return names
}

// Parser returns a parser for the given worksheet, or the configured one when
// sheet is empty.
func (s *PromoService) Parser(sheet string) *dataprocessing.Parser {
	if sheet == "" {
		sheet = s.config.Sheet
	}
	return dataprocessing.NewParser(s.logger, dataprocessing.ParserConfig{
		Columns: s.config.Columns,
		Sheet:   sheet,
	})
}

// AnalyzeFile reads an xlsx or csv export from disk and analyzes it.
func (s *PromoService) AnalyzeFile(ctx context.Context, path string, enabled []string) (*AnalysisResult, error) {
	table, err := s.Parser("").ParseFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, table, enabled, SourceFile)
}

// AnalyzeUpload reads an uploaded export, choosing the reader by file name.
func (s *PromoService) AnalyzeUpload(ctx context.Context, filename string, r io.Reader, sheet string, enabled []string) (*AnalysisResult, error) {
	parser := s.Parser(sheet)

	var (
		table *domain.Table
		err   error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		table, err = parser.ParseXLSX(ctx, r)
	case ".csv":
		table, err = parser.ParseCSV(ctx, r)
	default:
		return nil, errors.NewParsingError(fmt.Sprintf("%s: %q", ErrUnsupportedFile, filepath.Ext(filename)), ErrUnsupportedFile)
	}
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, table, enabled, SourceUpload)
}

// AnalyzeRows analyzes rows given as header-keyed maps, as the JSON API
// receives them. Headers are the union of all keys, in first-seen order.
func (s *PromoService) AnalyzeRows(ctx context.Context, rows []map[string]string, enabled []string) (*AnalysisResult, error) {
	if len(rows) == 0 {
		return nil, errors.NewAppValidationError(ErrEmptyInput.Error())
	}

	var headers []string
	seen := make(map[string]bool)
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		// Map order is random; new keys of one row are added alphabetically.
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			headers = append(headers, k)
		}
	}

	raw := make([][]string, 0, len(rows)+1)
	raw = append(raw, headers)
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = row[h]
		}
		raw = append(raw, cells)
	}

	table, err := s.Parser("").FromRows(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, table, enabled, SourceJSON)
}

// Analyze classifies a parsed table and aggregates the result.
func (s *PromoService) Analyze(ctx context.Context, table *domain.Table, enabled []string, source string) (*AnalysisResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	selection := s.Selection(enabled)

	ctx, span := s.tracer.Start(ctx, "promo.analyze", trace.WithAttributes(
		attribute.String("promo.source", source),
		attribute.StringSlice("promo.enabled", selection),
	))
	defer span.End()

	inputRows := 0
	if table != nil {
		inputRows = len(table.Records)
	}

	start := time.Now()
	classified, err := s.engine.Classify(ctx, table, selection)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		infrastructure.RecordClassificationMetrics(ctx, s.metrics, infrastructure.ClassificationRun{
			Source:    source,
			InputRows: inputRows,
			Duration:  time.Since(start),
			Err:       err,
		})
		infrastructure.WithError(s.logger, err).WarnContext(ctx, "classification failed",
			slog.String("source", source))
		return nil, err
	}

	result := &AnalysisResult{
		Enabled:      selection,
		InputRows:    inputRows,
		Table:        classified,
		Summary:      s.aggregator.Summarize(ctx, classified.Records),
		Distribution: s.aggregator.Distribution(ctx, classified.Records),
	}

	counts := make(map[string]int)
	sales := make(map[string]float64)
	for _, c := range result.Summary.Categories {
		sales[c.Category] = c.Total.InexactFloat64()
	}
	for i := range classified.Records {
		if l := classified.Records[i].PromoType; l != "" {
			counts[string(l)]++
		}
	}
	infrastructure.RecordClassificationMetrics(ctx, s.metrics, infrastructure.ClassificationRun{
		Source:      source,
		InputRows:   inputRows,
		OutputRows:  len(classified.Records),
		LabelCounts: counts,
		LabelSales:  sales,
		Duration:    time.Since(start),
	})

	s.logger.InfoContext(ctx, "analysis completed",
		slog.String("source", source),
		slog.Int("input_rows", inputRows),
		slog.Int("output_rows", len(classified.Records)),
		slog.Int("categories", len(result.Summary.Categories)),
		slog.String("grand_total", result.Summary.Total.Total.StringFixed(2)))

	return result, nil
}

// WriteWorkbook renders the result as an xlsx workbook.
func (s *PromoService) WriteWorkbook(ctx context.Context, w io.Writer, result *AnalysisResult) error {
	return s.workbook.Write(ctx, w, report(result))
}

// WriteWorkbookFile saves the result as an xlsx workbook, or as a classified
// csv when path ends in .csv.
func (s *PromoService) WriteWorkbookFile(ctx context.Context, path string, result *AnalysisResult) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return s.csv.WriteClassified(ctx, path, result.Table)
	}
	return s.workbook.WriteFile(ctx, path, report(result))
}

// WriteSummaryCSV writes the summary with its Total row as csv.
func (s *PromoService) WriteSummaryCSV(w io.Writer, result *AnalysisResult) error {
	return s.csv.WriteSummary(w, result.Summary)
}

// WriteSummaryFile writes the summary csv to path.
func (s *PromoService) WriteSummaryFile(path string, result *AnalysisResult) error {
	return s.csv.WriteSummaryFile(path, result.Summary)
}

// Catalog exposes the engine's rule catalog.
func (s *PromoService) Catalog() *promo.Catalog {
	return s.engine.Catalog()
}

func report(result *AnalysisResult) exporter.Report {
	return exporter.Report{
		Table:        result.Table,
		Summary:      result.Summary,
		Distribution: result.Distribution,
	}
}
