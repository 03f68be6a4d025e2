package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joelkehle/legalquote/internal/classify"
	"github.com/joelkehle/legalquote/internal/pricing"
)

const (
	defaultListenAddr     = ":8080"
	defaultCatalogPath    = "configs/catalog.yaml"
	defaultRatesPath      = "configs/rates.yaml"
	defaultTimeoutSeconds = 20
	defaultLogLevel       = "info"
	maxTimeoutSeconds     = 120
	maxClassifierAttempts = 3
)

type Config struct {
	ListenAddr  string `yaml:"listen_addr"`
	CatalogPath string `yaml:"catalog_path"`
	RatesPath   string `yaml:"rates_path"`
	// DBDriver and DBDSN select a SQL rate card instead of the YAML files.
	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	AnthropicAPIKey          string `yaml:"anthropic_api_key"`
	LLMModel                 string `yaml:"llm_model"`
	ClassifierTimeoutSeconds int    `yaml:"classifier_timeout_seconds"`
	ClassifierMaxAttempts    int    `yaml:"classifier_max_attempts"`
	InstructionsPath         string `yaml:"instructions_path"`
	DefaultDomain            string `yaml:"default_domain"`
	DefaultService           string `yaml:"default_service"`
	FallbackEffortHours      string `yaml:"fallback_effort_hours"`

	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otel_exporter_otlp_endpoint"`
	ChromePath   string `yaml:"chrome_path"`

	Source string `yaml:"-"`
}

// Load reads path (or CONFIG_PATH, or ./config.yaml), applies environment
// overrides and defaults, and validates the result. A missing file is not an
// error; every setting has a default or an env var.
func Load(path string) (Config, error) {
	var cfg Config

	if path == "" {
		path = "config.yaml"
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			path = envPath
		}
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Source = path
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	var errs []error
	envOverride(&cfg.ListenAddr, "LISTEN_ADDR")
	envOverride(&cfg.CatalogPath, "CATALOG_PATH")
	envOverride(&cfg.RatesPath, "RATES_PATH")
	envOverride(&cfg.DBDriver, "DB_DRIVER")
	envOverride(&cfg.DBDSN, "DB_DSN")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	errs = append(errs, envOverrideInt(&cfg.ClassifierTimeoutSeconds, "CLASSIFIER_TIMEOUT_SECONDS"))
	errs = append(errs, envOverrideInt(&cfg.ClassifierMaxAttempts, "CLASSIFIER_MAX_ATTEMPTS"))
	envOverride(&cfg.InstructionsPath, "INSTRUCTIONS_PATH")
	envOverride(&cfg.DefaultDomain, "DEFAULT_DOMAIN")
	envOverride(&cfg.DefaultService, "DEFAULT_SERVICE")
	envOverride(&cfg.FallbackEffortHours, "FALLBACK_EFFORT_HOURS")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	envOverride(&cfg.ChromePath, "CHROME_PATH")
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = defaultListenAddr
	}
	if c.CatalogPath == "" {
		c.CatalogPath = defaultCatalogPath
	}
	if c.RatesPath == "" {
		c.RatesPath = defaultRatesPath
	}
	if c.LLMModel == "" {
		c.LLMModel = classify.DefaultModel
	}
	if c.ClassifierTimeoutSeconds == 0 {
		c.ClassifierTimeoutSeconds = defaultTimeoutSeconds
	}
	if c.ClassifierMaxAttempts == 0 {
		c.ClassifierMaxAttempts = classify.DefaultMaxAttempts
	}
	if c.DefaultDomain == "" {
		c.DefaultDomain = classify.DefaultDomain
	}
	if c.DefaultService == "" {
		c.DefaultService = classify.GeneralService
	}
	if c.FallbackEffortHours == "" {
		c.FallbackEffortHours = pricing.DefaultFallbackEffort.String()
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
}

func (c Config) Validate() error {
	var errs []error
	if c.ClassifierTimeoutSeconds < 1 || c.ClassifierTimeoutSeconds > maxTimeoutSeconds {
		errs = append(errs, fmt.Errorf("invalid classifier_timeout_seconds '%d': must be between 1 and %d", c.ClassifierTimeoutSeconds, maxTimeoutSeconds))
	}
	if c.ClassifierMaxAttempts < 1 || c.ClassifierMaxAttempts > maxClassifierAttempts {
		errs = append(errs, fmt.Errorf("invalid classifier_max_attempts '%d': must be between 1 and %d", c.ClassifierMaxAttempts, maxClassifierAttempts))
	}
	if h, err := decimal.NewFromString(c.FallbackEffortHours); err != nil || !h.IsPositive() {
		errs = append(errs, fmt.Errorf("invalid fallback_effort_hours '%s': must be a positive number", c.FallbackEffortHours))
	}
	switch c.DBDriver {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.DBDSN) == "" {
			errs = append(errs, fmt.Errorf("db_dsn is required when db_driver=%s", c.DBDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("db_driver must be 'sqlite' or 'postgres', got '%s'", c.DBDriver))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log_level '%s'", c.LogLevel))
	}
	if c.InstructionsPath != "" {
		if _, err := os.Stat(c.InstructionsPath); err != nil {
			errs = append(errs, fmt.Errorf("invalid instructions_path '%s': %w", c.InstructionsPath, err))
		}
	}
	return errors.Join(errs...)
}

func (c Config) ClassifierTimeout() time.Duration {
	return time.Duration(c.ClassifierTimeoutSeconds) * time.Second
}

func (c Config) FallbackEffort() decimal.Decimal {
	h, _ := decimal.NewFromString(c.FallbackEffortHours)
	return h
}

func (c Config) UsesDatabase() bool { return c.DBDriver != "" }

// ClassifierConfig builds the adapter settings, reading custom instructions
// from InstructionsPath when set.
func (c Config) ClassifierConfig() (classify.Config, error) {
	cc := classify.Config{
		Timeout:        c.ClassifierTimeout(),
		MaxAttempts:    c.ClassifierMaxAttempts,
		DefaultDomain:  c.DefaultDomain,
		DefaultService: c.DefaultService,
	}
	if c.InstructionsPath != "" {
		b, err := os.ReadFile(c.InstructionsPath)
		if err != nil {
			return classify.Config{}, fmt.Errorf("read instructions: %w", err)
		}
		cc.Instructions = strings.TrimSpace(string(b))
	}
	return cc, nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	val := os.Getenv(envKey)
	if val == "" {
		return nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
	}
	*field = parsed
	return nil
}
