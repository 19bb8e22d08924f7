package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rezonia/cufe-expenses/internal/config"
	"github.com/rezonia/cufe-expenses/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	configFile   string
	verbose      bool
	outputFormat string
	outputFile   string

	// Loaded in PersistentPreRunE
	cfg *config.Config
	log zerolog.Logger

	v = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "cufe-expenses",
	Short: "Turn Colombian e-invoices (CUFE) into categorized expenses",
	Long: `cufe-expenses acquires DIAN electronic invoices by CUFE, parses them and
suggests categorized expenses.

Examples:
  # Acquire an invoice through the acquisition service and print the expenses
  cufe-expenses acquire <cufe>

  # Parse a downloaded PDF locally
  cufe-expenses parse factura.pdf -f table

  # Check a CUFE before submitting it
  cufe-expenses validate <cufe>

  # Start the HTTP API
  cufe-expenses serve --address :8080`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v, configFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := cfg.LogLevel
		if verbose && level == "info" {
			level = "debug"
		}
		log = logger.New(logger.Config{Env: cfg.AppEnv, Level: level})
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Config file (default: ./cufe-expenses.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVarP(&outputFormat, "format", "f", "json", "Output format (json, csv, table)")
	pf.StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	pf.String("log-level", "", "Log level (env: LOG_LEVEL)")
	pf.String("user", "", "User the invoices belong to (env: DEFAULT_USER_ID)")
	pf.String("acquisition-url", "", "Acquisition service base URL (env: ACQUISITION_URL)")
	pf.String("database-url", "", "PostgreSQL connection string (env: DATABASE_URL)")
	pf.String("rules", "", "YAML file with supplier category rules (env: CATEGORY_RULES_FILE)")
	pf.String("api-key", "", "API key for the LLM provider (env: LLM_API_KEY)")
	pf.String("llm-base-url", "", "LLM API base URL (env: LLM_BASE_URL)")
	pf.String("llm-model", "", "LLM model for text extraction (env: LLM_MODEL)")

	bindFlags(pf, map[string]string{
		"log-level":       config.KeyLogLevel,
		"user":            config.KeyDefaultUserID,
		"acquisition-url": config.KeyAcquisitionURL,
		"database-url":    config.KeyDatabaseURL,
		"rules":           config.KeyCategoryRulesFile,
		"api-key":         config.KeyLLMAPIKey,
		"llm-base-url":    config.KeyLLMBaseURL,
		"llm-model":       config.KeyLLMModel,
	})
}

// bindFlags binds flag names to config keys. Flags only override when set.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
