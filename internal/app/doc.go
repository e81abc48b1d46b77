// Package app wires the promo analysis server together: configuration,
// OpenTelemetry providers, business metrics, the promo service and the chi
// router.
//
// # Initialization Flow
//
//	1. Load configuration (config.Load)
//	2. Initialize tracing and the Prometheus exposition
//	3. Build the rule catalog, extended with the expression rules file if set
//	4. Create the promo and health services
//	5. Mount handlers and middleware
//
// # Usage
//
//	application, err := app.NewApplication(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// Run blocks until SIGINT or SIGTERM, then drains in-flight requests within
// the configured shutdown timeout and flushes telemetry.
package app
