package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/cufe-expenses/internal/categorizer"
	"github.com/rezonia/cufe-expenses/internal/parser/text"
	"github.com/rezonia/cufe-expenses/internal/processor"
)

var (
	parseURLs    []string
	parseCUFEs   []string
	parseTimeout time.Duration
	parseWorkers int
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Extract invoices from PDF or text files",
	Long: `Extract invoice data from local files or remote PDFs and suggest expenses.

Supported inputs:
  - PDF: .pdf (text layer is read, no OCR)
  - Text: .txt (text already extracted from the invoice)
  - --url: PDF downloaded over HTTP
  - --cufe: PDF downloaded through DOCUMENT_URL_TEMPLATE

The extraction flow:
  1. Pattern based parsing of the invoice text
  2. LLM text extraction when nothing usable was found (requires API key)

Examples:
  cufe-expenses parse factura.pdf
  cufe-expenses parse facturas/ -f table
  cufe-expenses parse --url https://example.com/factura.pdf -f csv -o gastos.csv`,
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringSliceVar(&parseURLs, "url", nil, "PDF URL to download and parse (repeatable)")
	parseCmd.Flags().StringSliceVar(&parseCUFEs, "cufe", nil, "CUFE to resolve through DOCUMENT_URL_TEMPLATE (repeatable)")
	parseCmd.Flags().DurationVar(&parseTimeout, "timeout", 2*time.Minute, "Processing timeout per invoice")
	parseCmd.Flags().IntVar(&parseWorkers, "workers", processor.DefaultBatchConcurrency, "Remote invoices processed concurrently")
}

func runParse(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 && len(parseURLs) == 0 && len(parseCUFEs) == 0 {
		return fmt.Errorf("no files, --url or --cufe given")
	}
	printVerbose("Found %d files to process\n", len(files))

	pipeline := newPipeline()
	cat, err := newCategorizer()
	if err != nil {
		return err
	}

	results := make([]*InvoiceResult, 0, len(files)+len(parseURLs)+len(parseCUFEs))
	for _, file := range files {
		printVerbose("Processing: %s\n", file)
		results = append(results, parseFile(cmd.Context(), pipeline, cat, file))
	}

	remote, err := parseRemote(cmd.Context(), pipeline, cat)
	if err != nil {
		return err
	}
	results = append(results, remote...)

	return outputResults(results)
}

func parseFile(ctx context.Context, pipeline *processor.Pipeline, cat *categorizer.Categorizer, path string) *InvoiceResult {
	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	out := &InvoiceResult{Source: path}
	data, err := os.ReadFile(path)
	if err != nil {
		out.Error = fmt.Sprintf("failed to read file: %v", err)
		return out
	}

	var res *processor.Result
	switch processor.DetectFormat(data) {
	case processor.FormatPDF:
		res, err = pipeline.ProcessPDF(ctx, data)
	case processor.FormatText:
		res, err = pipeline.ProcessText(ctx, string(data))
	default:
		err = fmt.Errorf("unsupported file format")
	}
	return fill(out, res, err, cat)
}

func parseRemote(ctx context.Context, pipeline *processor.Pipeline, cat *categorizer.Categorizer) ([]*InvoiceResult, error) {
	var inputs []processor.Input
	for _, u := range parseURLs {
		inputs = append(inputs, processor.Input{PDFURL: u})
	}
	for _, c := range parseCUFEs {
		inputs = append(inputs, processor.Input{CUFECode: c})
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, parseTimeout)
	defer cancel()

	batch, err := pipeline.ProcessBatch(ctx, inputs, parseWorkers)
	if err != nil {
		return nil, err
	}

	out := make([]*InvoiceResult, 0, len(batch))
	for _, b := range batch {
		r := &InvoiceResult{Source: b.Input.PDFURL, CUFE: b.Input.CUFECode}
		if r.Source == "" {
			r.Source = "cufe"
		}
		out = append(out, fill(r, b.Result, b.Err, cat))
	}
	return out, nil
}

func fill(out *InvoiceResult, res *processor.Result, err error, cat *categorizer.Categorizer) *InvoiceResult {
	if err != nil {
		out.Error = err.Error()
		printVerbose("  Error: %s\n", out.Error)
		return out
	}
	out.Method = string(res.Info.Method)
	out.Invoice = res.Data
	out.Warnings = res.Warnings
	out.Expenses = cat.BuildSuggestedExpenses(res.Data)
	if out.CUFE == "" && res.Data.AdditionalInfo != nil {
		out.CUFE = res.Data.AdditionalInfo[text.InfoCUFE]
	}
	printVerbose("  Method: %s, items: %d\n", out.Method, len(res.Data.Items))
	return out
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("file not found: %s", arg)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if info.IsDir() {
				err := filepath.Walk(match, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isSupportedFile(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
				continue
			}
			// explicit files are passed through; format detection decides later
			if match == arg || isSupportedFile(match) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}
