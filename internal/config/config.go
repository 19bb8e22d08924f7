// Package config loads application settings from defaults, an optional
// config file, environment variables and bound command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys. Each one is also read from the environment variable of the same
// name in upper case (http_address -> HTTP_ADDRESS).
const (
	KeyAppEnv                = "app_env"
	KeyLogLevel              = "log_level"
	KeyHTTPAddress           = "http_address"
	KeyHTTPReadTimeout       = "http_read_timeout"
	KeyHTTPWriteTimeout      = "http_write_timeout"
	KeyAcquisitionURL        = "acquisition_url"
	KeyAcquisitionTimeout    = "acquisition_timeout"
	KeyAcquisitionMaxRetries = "acquisition_max_retries"
	KeyCaptchaAPIKey         = "captcha_api_key"
	KeyDatabaseURL           = "database_url"
	KeyCategoryRulesFile     = "category_rules_file"
	KeyDocumentURLTemplate   = "document_url_template"
	KeyLLMAPIKey             = "llm_api_key"
	KeyLLMBaseURL            = "llm_base_url"
	KeyLLMModel              = "llm_model"
	KeyDefaultUserID         = "default_user_id"
)

// Config is the flattened application configuration
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	HTTPAddress      string        `mapstructure:"http_address"`
	HTTPReadTimeout  time.Duration `mapstructure:"http_read_timeout"`
	HTTPWriteTimeout time.Duration `mapstructure:"http_write_timeout"`

	AcquisitionURL        string        `mapstructure:"acquisition_url"`
	AcquisitionTimeout    time.Duration `mapstructure:"acquisition_timeout"`
	AcquisitionMaxRetries int           `mapstructure:"acquisition_max_retries"`
	CaptchaAPIKey         string        `mapstructure:"captcha_api_key"`

	DatabaseURL         string `mapstructure:"database_url"`
	CategoryRulesFile   string `mapstructure:"category_rules_file"`
	DocumentURLTemplate string `mapstructure:"document_url_template"`

	LLMAPIKey  string `mapstructure:"llm_api_key"`
	LLMBaseURL string `mapstructure:"llm_base_url"`
	LLMModel   string `mapstructure:"llm_model"`

	DefaultUserID string `mapstructure:"default_user_id"`
}

// IsDevelopment reports whether AppEnv selects human readable output
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development"
}

// HasDatabase reports whether PostgreSQL persistence is configured
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasLLM reports whether the LLM fallback can be enabled
func (c *Config) HasLLM() bool {
	return c.LLMAPIKey != ""
}

// New returns a viper instance with defaults and environment lookup set up.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyAppEnv, "development")
	v.SetDefault(KeyLogLevel, "info")

	v.SetDefault(KeyHTTPAddress, ":8080")
	v.SetDefault(KeyHTTPReadTimeout, 30*time.Second)
	v.SetDefault(KeyHTTPWriteTimeout, 10*time.Minute)

	v.SetDefault(KeyAcquisitionURL, "http://localhost:3001")
	v.SetDefault(KeyAcquisitionTimeout, 5*time.Minute)
	v.SetDefault(KeyAcquisitionMaxRetries, 3)
	v.SetDefault(KeyCaptchaAPIKey, "")

	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyCategoryRulesFile, "")
	v.SetDefault(KeyDocumentURLTemplate, "")

	v.SetDefault(KeyLLMAPIKey, "")
	v.SetDefault(KeyLLMBaseURL, "")
	v.SetDefault(KeyLLMModel, "")

	v.SetDefault(KeyDefaultUserID, "local")
}

// Load reads the optional config file and decodes v into a Config.
// An empty path searches cufe-expenses.{yaml,json,toml} in the working
// directory and $HOME/.cufe-expenses; a missing file is not an error there.
// An explicit path that cannot be read is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("cufe-expenses")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cufe-expenses")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("log_level %q is not a valid level", c.LogLevel)
	}
	if c.HTTPReadTimeout <= 0 || c.HTTPWriteTimeout <= 0 {
		return errors.New("http timeouts must be positive")
	}
	if c.AcquisitionTimeout <= 0 {
		return errors.New("acquisition_timeout must be positive")
	}
	if c.AcquisitionMaxRetries < 0 {
		return errors.New("acquisition_max_retries cannot be negative")
	}
	if c.DocumentURLTemplate != "" && !strings.Contains(c.DocumentURLTemplate, "{cufe}") {
		return errors.New("document_url_template must contain {cufe}")
	}
	if strings.TrimSpace(c.DefaultUserID) == "" {
		return errors.New("default_user_id cannot be empty")
	}
	return nil
}
