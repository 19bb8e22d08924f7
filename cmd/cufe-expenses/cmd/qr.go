package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/cufe"
)

var qrCmd = &cobra.Command{
	Use:   "qr [payload]",
	Short: "Extract the CUFE from a decoded invoice QR payload",
	Long: `Extract the CUFE from the text of an invoice QR code.

The payload may be a DIAN verification URL, a JSON document, the bare code or
the multi-line "CUFE: <code>" format. Without an argument the payload is read
from stdin.

Examples:
  cufe-expenses qr "https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=<cufe>"
  zbarimg -q --raw factura.png | cufe-expenses qr`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQR,
}

func init() {
	rootCmd.AddCommand(qrCmd)
}

// QRResult is the outcome of the qr command
type QRResult struct {
	Found      bool                   `json:"found"`
	InvoiceQR  bool                   `json:"invoiceQr"`
	Extraction *cufe.Extraction       `json:"extraction,omitempty"`
	Validation *cufe.ValidationResult `json:"validation,omitempty"`
}

func runQR(cmd *cobra.Command, args []string) error {
	var payload string
	if len(args) == 1 {
		payload = args[0]
	} else {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		payload = string(data)
	}
	if strings.TrimSpace(payload) == "" {
		return fmt.Errorf("empty QR payload")
	}

	out := QRResult{InvoiceQR: cufe.LooksLikeInvoiceQR(payload)}
	if ext, ok := cufe.Extract(payload); ok {
		res := cufe.Validate(cmd.Context(), ext.Code, nil)
		out.Found = true
		out.Extraction = &ext
		out.Validation = &res
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	}

	if !out.Found {
		fmt.Println("No CUFE found in payload")
		return nil
	}
	fmt.Printf("CUFE:       %s\n", out.Extraction.Code)
	fmt.Printf("Source:     %s\n", out.Extraction.Source)
	fmt.Printf("Confidence: %.2f\n", out.Extraction.Confidence)
	fmt.Printf("Valid:      %t\n", out.Validation.IsValid)
	return nil
}
