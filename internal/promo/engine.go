package promo

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "promocli/internal/errors"
	"promocli/pkg/contracts/domain"
)

const (
	TracerName = "promocli.promo"
)

// Engine classifies line records against a rule catalog.
// It holds no per-call state and is safe for concurrent use on independent tables.
type Engine struct {
	catalog *Catalog
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewEngine creates an engine over catalog. A nil catalog means DefaultCatalog.
func NewEngine(catalog *Catalog, logger *slog.Logger) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog: catalog,
		logger:  logger.With(slog.String("component", "promo_engine")),
		tracer:  otel.Tracer(TracerName),
	}
}

// Catalog returns the catalog the engine evaluates.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Classify runs the enabled rules in rank order, then the mandatory tail:
// shipping rows dropped, FP Purchase, discount rows dropped, tier group,
// product type backfill and the Suit Multibuy override.
//
// The input table is not modified. Labels already present on the input are
// discarded before any rule runs. When the table lacks a field that an enabled
// rule or the tail reads, Classify returns a SCHEMA error and applies nothing.
func (e *Engine) Classify(ctx context.Context, table *domain.Table, enabled []string) (*domain.Table, error) {
	if table == nil {
		return nil, apperrors.NewAppValidationError("table is required")
	}

	rules, err := e.catalog.Select(enabled)
	if err != nil {
		return nil, err
	}

	if err := e.checkSchema(table, rules); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "promo.classify",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("promo.rows_in", len(table.Records)),
			attribute.Int("promo.rules_enabled", len(rules)),
		),
	)
	defer span.End()

	start := time.Now()
	out := table.Clone()
	for i := range out.Records {
		out.Records[i].PromoType = ""
		out.Records[i].TierGroup = ""
	}

	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(span, err)
		}
		n := fold(out.Records, rule.Label(), candidates(rule, out.Records))
		e.recordStage(ctx, span, "rule:"+rule.Name(), n, len(out.Records))
	}

	for _, st := range tailStages() {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(span, err)
		}
		n := st.apply(out)
		e.recordStage(ctx, span, st.name, n, len(out.Records))
	}

	labelled := 0
	for i := range out.Records {
		if out.Records[i].PromoType != "" {
			labelled++
		}
	}
	span.SetAttributes(
		attribute.Int("promo.rows_out", len(out.Records)),
		attribute.Int("promo.rows_labelled", labelled),
	)
	span.SetStatus(codes.Ok, "")

	e.logger.InfoContext(ctx, "classification completed",
		slog.Int("rows_in", len(table.Records)),
		slog.Int("rows_out", len(out.Records)),
		slog.Int("labelled", labelled),
		slog.Int("rules", len(rules)),
		slog.Duration("duration", time.Since(start)),
	)

	return out, nil
}

func requiredFields(rules []Rule) []domain.Field {
	var fields []domain.Field
	for _, rule := range rules {
		fields = append(fields, rule.Requires()...)
	}
	fields = append(fields, tailRequires()...)

	seen := make(map[domain.Field]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func (e *Engine) checkSchema(table *domain.Table, rules []Rule) error {
	missing := table.MissingFields(requiredFields(rules))
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, f := range missing {
		names[i] = string(f)
	}
	e.logger.Warn("input is missing required fields", slog.Any("fields", names))
	return apperrors.NewSchemaError(names...)
}

func (e *Engine) recordStage(ctx context.Context, span trace.Span, name string, touched, rows int) {
	span.AddEvent("stage", trace.WithAttributes(
		attribute.String("promo.stage", name),
		attribute.Int("promo.rows_touched", touched),
		attribute.Int("promo.rows", rows),
	))
	e.logger.DebugContext(ctx, "stage applied",
		slog.String("stage", name),
		slog.Int("touched", touched),
		slog.Int("rows", rows),
	)
}

func (e *Engine) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
