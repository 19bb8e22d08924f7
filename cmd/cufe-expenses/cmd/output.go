package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/gocarina/gocsv"

	"github.com/rezonia/cufe-expenses/internal/model"
)

// InvoiceResult is one processed invoice as printed by acquire and parse
type InvoiceResult struct {
	Source    string                      `json:"source"`
	CUFE      string                      `json:"cufe,omitempty"`
	Method    string                      `json:"method,omitempty"`
	Invoice   *model.ExtractedInvoiceData `json:"invoice,omitempty"`
	Expenses  []model.SuggestedExpense    `json:"expenses,omitempty"`
	InvoiceID string                      `json:"invoiceId,omitempty"`
	Warnings  []string                    `json:"warnings,omitempty"`
	Error     string                      `json:"error,omitempty"`
}

// expenseRow is the flattened CSV record, one per suggested expense
type expenseRow struct {
	Source     string  `csv:"source"`
	CUFE       string  `csv:"cufe"`
	Supplier   string  `csv:"supplier"`
	NIT        string  `csv:"nit"`
	Date       string  `csv:"date"`
	Item       string  `csv:"description"`
	Category   string  `csv:"category"`
	Amount     string  `csv:"amount"`
	Confidence float64 `csv:"confidence"`
	Error      string  `csv:"error"`
}

func outputResults(results []*InvoiceResult) error {
	var w io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch outputFormat {
	case "json":
		return outputJSON(w, results)
	case "table":
		return outputTable(w, results)
	case "csv":
		return outputCSV(w, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputJSON(w io.Writer, results []*InvoiceResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if len(results) == 1 {
		return encoder.Encode(results[0])
	}
	return encoder.Encode(results)
}

func outputTable(w io.Writer, results []*InvoiceResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSUPPLIER\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
	fmt.Fprintln(tw, "------\t--------\t----\t-----------\t--------\t------")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\n", r.Source, r.Error)
			continue
		}
		supplier := ""
		if r.Invoice != nil {
			supplier = r.Invoice.Supplier.Name
		}
		for _, e := range r.Expenses {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Source,
				supplier,
				e.TransactionDate,
				e.Description,
				e.SuggestedCategory,
				e.Amount.StringFixed(2),
			)
		}
	}
	return tw.Flush()
}

func outputCSV(w io.Writer, results []*InvoiceResult) error {
	rows := make([]*expenseRow, 0, len(results))
	for _, r := range results {
		if r.Error != "" {
			rows = append(rows, &expenseRow{Source: r.Source, CUFE: r.CUFE, Error: r.Error})
			continue
		}
		var supplier, nit string
		if r.Invoice != nil {
			supplier, nit = r.Invoice.Supplier.Name, r.Invoice.Supplier.NIT
		}
		for _, e := range r.Expenses {
			rows = append(rows, &expenseRow{
				Source:     r.Source,
				CUFE:       r.CUFE,
				Supplier:   supplier,
				NIT:        nit,
				Date:       e.TransactionDate,
				Item:       e.Description,
				Category:   string(e.SuggestedCategory),
				Amount:     e.Amount.StringFixed(2),
				Confidence: e.ConfidenceScore,
			})
		}
	}
	return gocsv.Marshal(rows, w)
}
