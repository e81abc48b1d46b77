package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"promocli/internal/errors"
)

// Config is shared by promo-report and promo-server.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Promo     PromoConfig     `yaml:"promo" envconfig:"PROMO"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig is read by promo-server only.
type ServerConfig struct {
	Port            int             `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int             `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig is a per-process token bucket over /api.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig selects the slog handler and its destination.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"` // json or text
	Output   string `yaml:"output" envconfig:"OUTPUT"` // console, file or both
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PromoConfig controls classification and input parsing.
type PromoConfig struct {
	// EnabledRules names the promotions to apply; empty means the defaults.
	EnabledRules []string `yaml:"enabled_rules" envconfig:"ENABLED_RULES"`
	// Sheet is the worksheet read from xlsx input; empty means the first.
	Sheet string `yaml:"sheet" envconfig:"SHEET"`
	// RulesFile is an optional YAML file of expression rules.
	RulesFile string `yaml:"rules_file" envconfig:"RULES_FILE"`
	// Columns overrides export header names, keyed by field name.
	Columns     map[string]string `yaml:"columns" envconfig:"COLUMNS"`
	SharePlaces int32             `yaml:"share_places" envconfig:"SHARE_PLACES"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`   // stdout or none
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER"` // prometheus or none
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("failed to load config from %s", path), err)
		}
	}

	// Fields without an environment variable keep their file or default value.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// EnabledPromotions returns the configured promotions, or the defaults when
// none are configured.
func (c *Config) EnabledPromotions() []string {
	var names []string
	for _, n := range c.Promo.EnabledRules {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return DefaultEnabledPromotions()
	}
	return names
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// validate rejects values the server or CLI cannot run with and fills the
// default log file path.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.NewConfigError(fmt.Sprintf("invalid server port: %d", c.Server.Port), nil)
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return errors.NewConfigError("server read and write timeouts must be positive", nil)
	}

	if c.Server.MaxUploadBytes <= 0 {
		return errors.NewConfigError("max upload size must be positive", nil)
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RPS <= 0 || c.Server.RateLimit.Burst <= 0) {
		return errors.NewConfigError("rate limit rps and burst must be positive when enabled", nil)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log format %q", c.Logging.Format), nil)
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return errors.NewConfigError(fmt.Sprintf("unknown log output %q", c.Logging.Output), nil)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if c.Promo.SharePlaces < 0 {
		return errors.NewConfigError("share places cannot be negative", nil)
	}

	switch c.Telemetry.TraceExporter {
	case "stdout", "none":
	default:
		return errors.NewConfigError(fmt.Sprintf("unsupported trace exporter %q", c.Telemetry.TraceExporter), nil)
	}

	switch c.Telemetry.MetricExporter {
	case "prometheus", "none":
	default:
		return errors.NewConfigError(fmt.Sprintf("unsupported metric exporter %q", c.Telemetry.MetricExporter), nil)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return errors.NewConfigError("sample ratio must be between 0 and 1", nil)
	}

	return nil
}

// getConfigFilePath prefers PROMO_CONFIG, then the working directory.
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default is the configuration before any file or environment overlay.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxUploadBytes:  DefaultMaxUploadBytes,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimitRPS,
				Burst:   DefaultRateLimitBurst,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   DefaultLogOutput,
			FilePath: DefaultLogFile,
		},
		Promo: PromoConfig{
			SharePlaces: DefaultSharePlaces,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  DefaultTraceExporter,
			MetricExporter: DefaultMetricExporter,
			SampleRatio:    1.0,
		},
	}
}
