// Package config provides configuration structures and loading logic for the
// PII service.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultLogLevel           = "info"
	DefaultAnnotatorName      = "ner-http"
	DefaultAnnotatorTimeout   = 5 * time.Second
	DefaultAlternatives       = 3
	DefaultTelemetryService   = "polis-pii"
	DefaultReplacementsReload = time.Second
)

// Config holds the global configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Annotator  AnnotatorConfig  `yaml:"annotator"`
	Protection ProtectionConfig `yaml:"protection"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
	ServiceName  string `yaml:"service_name"`
	Environment  string `yaml:"environment"`
}

// AnnotatorConfig configures the external named-entity recognizer. An empty
// endpoint disables it and detection runs on patterns alone.
type AnnotatorConfig struct {
	Name      string        `yaml:"name"`
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	Burst     int           `yaml:"burst"`

	// BreakerFailures consecutive failed calls stop annotation for
	// BreakerCooldown.
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// ProtectionConfig configures the protection engine.
type ProtectionConfig struct {
	// Seed fixes replacement choices when non-zero.
	Seed             int64         `yaml:"seed"`
	Alternatives     int           `yaml:"alternatives"`
	ReplacementsFile string        `yaml:"replacements_file"`
	ReloadDebounce   time.Duration `yaml:"reload_debounce"`
}

// MetricsConfig holds configuration for the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultTelemetryService,
		},
		Annotator: AnnotatorConfig{
			Name:    DefaultAnnotatorName,
			Timeout: DefaultAnnotatorTimeout,
		},
		Protection: ProtectionConfig{
			Alternatives:   DefaultAlternatives,
			ReloadDebounce: DefaultReplacementsReload,
		},
	}
}

// Load reads configuration from a file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("PII_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	if val := os.Getenv("PII_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("PII_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}

	if val := os.Getenv("PII_ANNOTATOR_ENDPOINT"); val != "" {
		cfg.Annotator.Endpoint = val
	}
	if val := os.Getenv("PII_ANNOTATOR_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("PII_ANNOTATOR_TIMEOUT: %w", err)
		}
		cfg.Annotator.Timeout = d
	}
	if val := os.Getenv("PII_ANNOTATOR_RATE"); val != "" {
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("PII_ANNOTATOR_RATE: %w", err)
		}
		cfg.Annotator.RateLimit = r
	}

	if val := os.Getenv("PII_METRICS_LISTEN"); val != "" {
		cfg.Metrics.Listen = val
	}

	if val := os.Getenv("PII_SEED"); val != "" {
		seed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("PII_SEED: %w", err)
		}
		cfg.Protection.Seed = seed
	}
	if val := os.Getenv("PII_REPLACEMENTS_FILE"); val != "" {
		cfg.Protection.ReplacementsFile = val
	}

	return nil
}

// Validate performs validation of the entire configuration, filling in
// defaults for empty fields.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging configuration: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry configuration: %w", err)
	}

	if err := c.Annotator.Validate(); err != nil {
		return fmt.Errorf("annotator configuration: %w", err)
	}

	if err := c.Protection.Validate(); err != nil {
		return fmt.Errorf("protection configuration: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics configuration: %w", err)
	}

	return nil
}

// Validate performs validation of logging configuration
func (c *LoggingConfig) Validate() error {
	if strings.TrimSpace(c.Level) == "" {
		c.Level = DefaultLogLevel
	}

	level := strings.TrimSpace(strings.ToLower(c.Level))
	switch level {
	case "debug", "info", "warn", "error":
		c.Level = level
		return nil
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Level)
	}
}

// Validate performs validation of telemetry configuration
func (c *TelemetryConfig) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = DefaultTelemetryService
	}
	if strings.Contains(c.OTLPEndpoint, "://") {
		return fmt.Errorf("otlp_endpoint %q must be host:port without a scheme", c.OTLPEndpoint)
	}
	return nil
}

// Validate performs validation of annotator configuration
func (c *AnnotatorConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = DefaultAnnotatorName
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultAnnotatorTimeout
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %v", c.RateLimit)
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must not be negative, got %d", c.Burst)
	}
	if c.BreakerFailures < 0 {
		return fmt.Errorf("breaker_failures must not be negative, got %d", c.BreakerFailures)
	}
	if c.BreakerCooldown < 0 {
		return fmt.Errorf("breaker_cooldown must not be negative, got %s", c.BreakerCooldown)
	}
	if c.RateLimit > 0 && c.Burst == 0 {
		c.Burst = 1
	}

	if c.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q must use http or https", c.Endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", c.Endpoint)
	}
	return nil
}

// Validate performs validation of protection configuration
func (c *ProtectionConfig) Validate() error {
	if c.Alternatives < 0 {
		return fmt.Errorf("alternatives must not be negative, got %d", c.Alternatives)
	}
	if c.ReloadDebounce < 0 {
		return fmt.Errorf("reload_debounce must not be negative, got %s", c.ReloadDebounce)
	}
	if c.ReloadDebounce == 0 {
		c.ReloadDebounce = DefaultReplacementsReload
	}
	return nil
}

// Validate performs validation of metrics configuration
func (c *MetricsConfig) Validate() error {
	if c.Listen == "" {
		return nil
	}
	if !strings.Contains(c.Listen, ":") {
		return fmt.Errorf("listen address %q must be host:port or :port", c.Listen)
	}
	return nil
}
