package config

import (
	"time"

	"promocli/pkg/contracts"
	"promocli/pkg/contracts/domain"
)

// Application constants
const (
	AppName    = "promocli"
	AppVersion = contracts.Version

	// Environment variable prefix, e.g. PROMO_SERVER_PORT
	EnvPrefix = "PROMO"
	// ConfigFileEnv names an explicit config file
	ConfigFileEnv = "PROMO_CONFIG"

	// HTTP
	DefaultPort            = 8080
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxUploadBytes  = 32 << 20

	// Rate limiting
	DefaultRateLimitRPS   = 20
	DefaultRateLimitBurst = 40

	// Logging
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogOutput = "console"
	DefaultLogFile   = "logs/promocli.log"

	// Aggregation
	DefaultSharePlaces = 4

	// Telemetry
	DefaultTraceExporter  = "none"
	DefaultMetricExporter = "prometheus"
)

// DefaultEnabledPromotions returns the promotions enabled when a caller names
// none. Seasonal offers are left for the caller to opt into.
func DefaultEnabledPromotions() []string {
	return []string{
		string(domain.LabelChinoMultibuy),
		string(domain.LabelFPPurchase),
		string(domain.LabelGiftCard),
		string(domain.LabelLinenShirtsMultibuy),
		string(domain.LabelMDPurchase),
		string(domain.LabelPoloMultibuy),
		string(domain.LabelPromoCode),
		string(domain.LabelShirtsMultibuy),
		string(domain.LabelSuitMultibuy),
		string(domain.LabelTeeMultibuy),
	}
}
