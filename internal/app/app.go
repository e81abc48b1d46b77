package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"promocli/internal/config"
	"promocli/internal/dataprocessing"
	"promocli/internal/errors"
	"promocli/internal/infrastructure"
	customMiddleware "promocli/internal/middleware"
	"promocli/internal/promo"
	"promocli/internal/services"
	handlers "promocli/internal/transport/http"
	"promocli/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.BusinessMetrics
	PromoService  *services.PromoService
	HealthService *services.HealthService
	ErrorHandler  *errors.ErrorHandler
}

// NewApplication wires configuration, telemetry, services and the router.
func NewApplication(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", config.AppName),
		slog.String("version", config.AppVersion))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, errors.NewConfigError("failed to initialize OpenTelemetry", err)
	}

	metrics := infrastructure.NoopBusinessMetrics()
	if otelProviders.Meter != nil {
		if metrics, err = infrastructure.CreateBusinessMetrics(otelProviders.Meter); err != nil {
			return nil, fmt.Errorf("failed to create business metrics: %w", err)
		}
	}

	promoService, err := NewPromoService(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		PromoService:  promoService,
		HealthService: services.NewHealthService(config.AppVersion, contracts.BuildTime, promoService.Catalog(), logger),
		ErrorHandler:  errors.NewErrorHandler(logger, false),
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// NewPromoService builds the promo service from configuration: the built-in
// catalog extended with the configured expression rules file, if any.
func NewPromoService(cfg *config.Config, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) (*services.PromoService, error) {
	catalog := promo.DefaultCatalog()
	if cfg.Promo.RulesFile != "" {
		rules, err := promo.LoadExpressionRules(cfg.Promo.RulesFile)
		if err != nil {
			return nil, err
		}
		if catalog, err = promo.WithExpressionRules(catalog, rules); err != nil {
			return nil, err
		}
		logger.Info("expression rules loaded",
			slog.String("file", cfg.Promo.RulesFile),
			slog.Int("rules", len(rules)))
	}

	return services.NewPromoService(promo.NewEngine(catalog, logger), metrics, logger, services.PromoServiceConfig{
		DefaultPromotions: cfg.EnabledPromotions(),
		Columns:           dataprocessing.DefaultColumns().Merge(cfg.Promo.Columns),
		Sheet:             cfg.Promo.Sheet,
		SharePlaces:       cfg.Promo.SharePlaces,
	}), nil
}

// setupRouter builds the middleware chain and mounts the handlers. OTel runs
// before RequestID so log lines carry the span's trace id.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders, a.Metrics).Handler)
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		ExposedHeaders: []string{customMiddleware.RequestIDHeader, "Content-Disposition", "Retry-After"},
		Logger:         a.Logger,
	}))

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	validator := customMiddleware.NewValidator(a.Logger, a.ErrorHandler, a.Config.Server.MaxUploadBytes)
	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	promoHandler := handlers.NewPromoHandler(a.PromoService, validator, a.ErrorHandler, a.Logger, a.Config.Server.MaxUploadBytes)
	accessLog := customMiddleware.AccessLog(a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(accessLog)
		r.Use(middleware.Timeout(a.Config.Server.WriteTimeout))
		r.Use(middleware.Compress(5, "application/json", errors.ProblemContentType, "text/csv"))
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		r.With(render.SetContentType(render.ContentTypeJSON)).Route("/health", func(r chi.Router) {
			r.Get("/", healthHandler.HealthCheck)
			r.Get("/ready", healthHandler.ReadinessCheck)
			r.Get("/live", healthHandler.LivenessCheck)
		})
		r.With(render.SetContentType(render.ContentTypeJSON)).Get("/version", healthHandler.Version)

		r.Mount("/", promoHandler.Routes())
	})

	r.With(accessLog).Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Addr(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. A server failure cancels the shutdown wait.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening", slog.String("address", ln.Addr().String()))
		if err := a.Server.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return stderrors.Join(errs...)
}

// Run listens on the configured port until SIGINT or SIGTERM.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}

	start := time.Now()
	err = a.Serve(ctx, ln)
	a.Logger.Info("Application stopped", slog.Duration("uptime", time.Since(start)))
	return err
}
