package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/config"
)

var envKeys = []string{
	"APP_ENV", "LOG_LEVEL", "HTTP_ADDRESS", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT",
	"ACQUISITION_URL", "ACQUISITION_TIMEOUT", "ACQUISITION_MAX_RETRIES", "CAPTCHA_API_KEY",
	"DATABASE_URL", "CATEGORY_RULES_FILE", "DOCUMENT_URL_TEMPLATE",
	"LLM_API_KEY", "LLM_BASE_URL", "LLM_MODEL", "DEFAULT_USER_ID",
}

// clearEnv unsets every key for the duration of the test and moves into an
// empty directory so no stray config file is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, 30*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 10*time.Minute, cfg.HTTPWriteTimeout)
	assert.Equal(t, "http://localhost:3001", cfg.AcquisitionURL)
	assert.Equal(t, 5*time.Minute, cfg.AcquisitionTimeout)
	assert.Equal(t, 3, cfg.AcquisitionMaxRetries)
	assert.Equal(t, "local", cfg.DefaultUserID)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.HasDatabase())
	assert.False(t, cfg.HasLLM())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)

	env := map[string]string{
		"APP_ENV":                 "Production",
		"LOG_LEVEL":               "DEBUG",
		"HTTP_ADDRESS":            ":9090",
		"HTTP_READ_TIMEOUT":       "45s",
		"ACQUISITION_URL":         "http://acquirer:3001",
		"ACQUISITION_TIMEOUT":     "2m",
		"ACQUISITION_MAX_RETRIES": "5",
		"CAPTCHA_API_KEY":         "captcha-key",
		"DATABASE_URL":            "postgres://u:p@localhost:5432/expenses",
		"DOCUMENT_URL_TEMPLATE":   "https://docs.example.com/{cufe}.pdf",
		"LLM_API_KEY":             "sk-test",
		"LLM_MODEL":               "openai/gpt-4o",
		"DEFAULT_USER_ID":         "user-7",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.AppEnv)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":9090", cfg.HTTPAddress)
	assert.Equal(t, 45*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, "http://acquirer:3001", cfg.AcquisitionURL)
	assert.Equal(t, 2*time.Minute, cfg.AcquisitionTimeout)
	assert.Equal(t, 5, cfg.AcquisitionMaxRetries)
	assert.Equal(t, "captcha-key", cfg.CaptchaAPIKey)
	assert.True(t, cfg.HasDatabase())
	assert.Equal(t, "https://docs.example.com/{cufe}.pdf", cfg.DocumentURLTemplate)
	assert.True(t, cfg.HasLLM())
	assert.Equal(t, "openai/gpt-4o", cfg.LLMModel)
	assert.Equal(t, "user-7", cfg.DefaultUserID)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	content := `
log_level: warn
http_address: ":7070"
acquisition_max_retries: 1
category_rules_file: /etc/cufe/rules.yaml
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// environment wins over the file
	t.Setenv("ACQUISITION_MAX_RETRIES", "4")

	cfg, err := config.Load(config.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, ":7070", cfg.HTTPAddress)
	assert.Equal(t, 4, cfg.AcquisitionMaxRetries)
	assert.Equal(t, "/etc/cufe/rules.yaml", cfg.CategoryRulesFile)
}

func TestLoad_DiscoveredConfigFile(t *testing.T) {
	clearEnv(t)

	require.NoError(t, os.WriteFile("cufe-expenses.yaml", []byte("default_user_id: from-file\n"), 0o600))

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DefaultUserID)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	_, err := config.Load(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BoundFlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDRESS", ":9000")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("address", ":8080", "")
	require.NoError(t, fs.Parse([]string{"--address", ":6060"}))

	v := config.New()
	require.NoError(t, v.BindPFlag(config.KeyHTTPAddress, fs.Lookup("address")))

	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.HTTPAddress)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"negative retries", "ACQUISITION_MAX_RETRIES", "-1"},
		{"zero acquisition timeout", "ACQUISITION_TIMEOUT", "0s"},
		{"template without placeholder", "DOCUMENT_URL_TEMPLATE", "https://docs.example.com/pdf"},
		{"blank default user", "DEFAULT_USER_ID", " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := config.Load(config.New(), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}
