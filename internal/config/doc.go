// Package config loads promocli configuration.
//
// # Configuration Sources
//
// Values are resolved in this order, later sources winning:
//
//	1. Defaults (Default)
//	2. A YAML file: $PROMO_CONFIG, config.yaml or configs/config.yaml
//	3. Environment variables with the PROMO_ prefix
//
// # Environment Variables
//
//	PROMO_SERVER_PORT=8080
//	PROMO_LOGGING_LEVEL=debug
//	PROMO_PROMO_ENABLED_RULES="FP Purchase,Gift Card,Suit Multibuy"
//	PROMO_PROMO_COLUMNS="total:Net Sales,title:Product"
//	PROMO_TELEMETRY_TRACE_EXPORTER=stdout
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
