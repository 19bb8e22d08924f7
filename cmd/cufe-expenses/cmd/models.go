package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models offered by the LLM provider",
	Long: `Show the LLM fallback configuration and list the models offered by the
configured endpoint (/models). Requires LLM_API_KEY.

To use a specific model for the text fallback:
  LLM_MODEL=<model-id>   or   --llm-model <model-id>`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		baseURL = llm.DefaultBaseURL
	}
	model := cfg.LLMModel
	if model == "" {
		model = llm.ModelGPT4oMini + " (default)"
	}
	apiKeyStatus := "not set"
	if cfg.LLMAPIKey != "" {
		apiKeyStatus = "set"
	}

	fmt.Fprintf(os.Stderr, "LLM_BASE_URL: %s\n", baseURL)
	fmt.Fprintf(os.Stderr, "LLM_MODEL:    %s\n", model)
	fmt.Fprintf(os.Stderr, "LLM_API_KEY:  %s\n\n", apiKeyStatus)

	if !cfg.HasLLM() {
		return fmt.Errorf("LLM_API_KEY is required, set it via environment variable or --api-key")
	}

	client := llm.NewClient(cfg.LLMAPIKey, llm.WithBaseURL(baseURL), llm.WithClientLogger(log))
	models, err := client.ListModels(cmd.Context())
	if err != nil {
		return fmt.Errorf("could not fetch models (the provider may not support /models): %w", err)
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(models)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL ID\tOWNER\tCREATED")
	fmt.Fprintln(w, "--------\t-----\t-------")
	for _, m := range models {
		created := ""
		if !m.Created.IsZero() {
			created = m.Created.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.OwnedBy, created)
	}
	return w.Flush()
}
