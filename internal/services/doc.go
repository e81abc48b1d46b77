// Package services implements the business logic layer of promocli. It sits
// between the transports (HTTP handlers, the CLI) and the domain packages.
//
// PromoService runs the analysis pipeline:
//
//	parse (dataprocessing.Parser) -> classify (promo.Engine) -> aggregate (dataprocessing.Aggregator)
//
// and renders results through the exporter package. It applies the default
// promotion selection when a caller names none, and records classification
// metrics and spans.
//
// HealthService reports liveness, readiness and version information.
//
// Services take their collaborators and a *slog.Logger through their
// constructors:
//
//	engine := promo.NewEngine(catalog, logger)
//	svc := services.NewPromoService(engine, metrics, logger, services.PromoServiceConfig{
//	    DefaultPromotions: cfg.EnabledPromotions(),
//	})
//	result, err := svc.AnalyzeFile(ctx, "orders.xlsx", nil)
package services
