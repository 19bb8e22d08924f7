package cmd

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/config"
	"github.com/rezonia/cufe-expenses/internal/server"
)

var serverDebug bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

The API provides endpoints for:
  - POST /api/v1/invoices/acquire       - Stream an acquisition by CUFE (SSE)
  - POST /api/v1/invoices/extract       - Synchronous extraction (cufeCode, pdfUrl or pdfBase64)
  - POST /api/v1/invoices               - Save a reviewed invoice and its expenses
  - GET  /api/v1/saved/:id              - Stored invoice
  - GET  /api/v1/saved/:id/expenses     - Stored expenses of an invoice
  - POST /api/v1/cufe/validate          - Validate a CUFE
  - POST /api/v1/qr/extract             - Extract a CUFE from a QR payload
  - POST /api/v1/expenses/categorize    - Suggest expenses for invoice data
  - GET  /health                        - Health check

Examples:
  # Start server on default port
  cufe-expenses serve

  # Start on custom port with PostgreSQL and the LLM fallback
  cufe-expenses serve --address :8080 --database-url postgres://... --api-key <key>

  # Start in debug mode
  cufe-expenses serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("address", "", "Server listen address (env: HTTP_ADDRESS)")
	f.Duration("read-timeout", 0, "HTTP read timeout (env: HTTP_READ_TIMEOUT)")
	f.Duration("write-timeout", 0, "HTTP write timeout (env: HTTP_WRITE_TIMEOUT)")
	f.BoolVar(&serverDebug, "debug", false, "Enable debug mode")

	bindFlags(f, map[string]string{
		"address":       config.KeyHTTPAddress,
		"read-timeout":  config.KeyHTTPReadTimeout,
		"write-timeout": config.KeyHTTPWriteTimeout,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	cat, err := newCategorizer()
	if err != nil {
		return err
	}
	pipeline := newPipeline()

	srv := server.NewServer(&server.Config{
		Address:            cfg.HTTPAddress,
		ReadTimeout:        cfg.HTTPReadTimeout,
		WriteTimeout:       cfg.HTTPWriteTimeout,
		Debug:              serverDebug,
		DefaultUserID:      cfg.DefaultUserID,
		AcquisitionTimeout: cfg.AcquisitionTimeout,
		MaxRetries:         cfg.AcquisitionMaxRetries,
		CaptchaAPIKey:      cfg.CaptchaAPIKey,
	},
		server.WithLogger(log),
		server.WithPipeline(pipeline),
		server.WithRepository(repo),
		server.WithAcquirer(newAcquisitionClient()),
		server.WithCategorizer(cat),
	)

	log.Info().
		Str("address", cfg.HTTPAddress).
		Str("acquisition_url", cfg.AcquisitionURL).
		Bool("llm", pipeline.HasLLM()).
		Bool("postgres", cfg.HasDatabase()).
		Msg("starting server")

	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
