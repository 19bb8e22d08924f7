package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/session"
)

var (
	acquireSave       bool
	acquireRetries    int
	acquireTimeout    time.Duration
	acquireCaptchaKey string
)

var acquireCmd = &cobra.Command{
	Use:   "acquire <cufe>",
	Short: "Acquire an invoice by CUFE through the acquisition service",
	Long: `Validate a CUFE, stream the acquisition from the acquisition service and
print the extracted invoice with its suggested expenses.

Progress is written to stderr while the service downloads and reads the
invoice. With --save the invoice and its expenses are persisted to the
configured store (PostgreSQL when DATABASE_URL is set).

Examples:
  cufe-expenses acquire <cufe>
  cufe-expenses acquire <cufe> --save --user maria
  cufe-expenses acquire <cufe> -f csv -o gastos.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

func init() {
	rootCmd.AddCommand(acquireCmd)

	acquireCmd.Flags().BoolVar(&acquireSave, "save", false, "Persist the invoice and suggested expenses")
	acquireCmd.Flags().IntVar(&acquireRetries, "max-retries", -1, "Retries forwarded to the acquisition service (env: ACQUISITION_MAX_RETRIES)")
	acquireCmd.Flags().DurationVar(&acquireTimeout, "timeout", 0, "Acquisition timeout (env: ACQUISITION_TIMEOUT)")
	acquireCmd.Flags().StringVar(&acquireCaptchaKey, "captcha-key", "", "CAPTCHA solver key forwarded to the service (env: CAPTCHA_API_KEY)")
}

func runAcquire(cmd *cobra.Command, args []string) error {
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

	opts := session.StartOptions{
		MaxRetries:    cfg.AcquisitionMaxRetries,
		CaptchaAPIKey: cfg.CaptchaAPIKey,
		Timeout:       cfg.AcquisitionTimeout,
	}
	if acquireRetries >= 0 {
		opts.MaxRetries = acquireRetries
	}
	if acquireTimeout > 0 {
		opts.Timeout = acquireTimeout
	}
	if acquireCaptchaKey != "" {
		opts.CaptchaAPIKey = acquireCaptchaKey
	}

	orch := session.NewOrchestrator(newAcquisitionClient(),
		session.WithDuplicateGate(repo),
		session.WithInvoiceStore(repo),
		session.WithCategorizer(cat),
		session.WithLogger(log),
		session.WithObserver(printProgress),
	)

	if err := orch.Start(ctx, cfg.DefaultUserID, args[0], opts); err != nil {
		return err
	}

	snap, err := orch.Wait(ctx)
	if err != nil {
		orch.Cancel()
		return fmt.Errorf("acquisition interrupted: %w", err)
	}
	if err := snap.Err(); err != nil {
		return err
	}

	result := &InvoiceResult{
		Source:   "acquisition",
		CUFE:     snap.CUFE,
		Invoice:  snap.CurrentInvoice,
		Expenses: snap.SuggestedExpenses,
	}

	if acquireSave {
		saveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		id, err := orch.Persist(saveCtx, nil)
		if err != nil {
			return err
		}
		result.InvoiceID = id
		fmt.Fprintf(os.Stderr, "Saved invoice %s with %d expenses\n", id, len(snap.SuggestedExpenses))
	}

	return outputResults([]*InvoiceResult{result})
}

// printProgress renders busy snapshots on stderr.
func printProgress(s session.Session) {
	if !s.Status.Busy() {
		return
	}
	line := fmt.Sprintf("[%3d%%] %-11s %s", s.Progress, s.Status, s.Message)
	if s.CaptchaInfo != nil {
		line += " (captcha)"
	}
	fmt.Fprintln(os.Stderr, line)
	if s.Details != "" {
		printVerbose("       %s\n", s.Details)
	}
}
