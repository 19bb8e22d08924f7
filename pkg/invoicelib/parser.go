package invoicelib

import (
	"context"
	"io"

	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/llm"
	"github.com/rezonia/cufe-expenses/internal/model"
)

// CUFEValidation is the outcome of ValidateCUFE
type CUFEValidation = cufe.ValidationResult

// QRExtraction is a CUFE found in a QR payload
type QRExtraction = cufe.Extraction

// NormalizeCUFE lower-cases a code and strips everything but hex digits.
func NormalizeCUFE(raw string) string {
	return cufe.Normalize(raw)
}

// ValidateCUFE checks the format of a code. exists may be nil to skip the duplicate check.
func ValidateCUFE(ctx context.Context, code string, exists func(ctx context.Context, code string) (bool, error)) CUFEValidation {
	return cufe.Validate(ctx, code, exists)
}

// ExtractCUFEFromQR returns the CUFE carried by a decoded QR payload.
func ExtractCUFEFromQR(payload string) (QRExtraction, bool) {
	return cufe.Extract(payload)
}

// Extractor extracts invoice data from unstructured text
type Extractor interface {
	// ExtractFromText returns the invoice found in text, typically using an LLM
	ExtractFromText(ctx context.Context, text string) (*model.ExtractedInvoiceData, error)
}

// Categorizer turns invoice data into suggested expenses
type Categorizer interface {
	BuildSuggestedExpenses(data *model.ExtractedInvoiceData) []model.SuggestedExpense
}

// ExtractionResult represents extraction result with metadata
type ExtractionResult struct {
	Invoice     *model.ExtractedInvoiceData
	Expenses    []model.SuggestedExpense
	Method      string
	Pages       int
	Warnings    []string
	NeedsReview bool
}

// Pipeline processes invoices through the extraction chain
type Pipeline interface {
	// Process processes a PDF or text input
	Process(ctx context.Context, r io.Reader) (*ExtractionResult, error)

	// ProcessBatch processes multiple inputs
	ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*ExtractionResult, error)
}

// PipelineOptions configures pipeline behavior
type PipelineOptions struct {
	// Expenses below this confidence flag the result for review (default: 0.70)
	ReviewThreshold float64

	// LLM Configuration
	LLMAPIKey  string // API key (env: LLM_API_KEY)
	LLMBaseURL string // Base URL (env: LLM_BASE_URL)
	LLMModel   string // Text extraction model (env: LLM_MODEL)

	// Feature flags
	EnableLLM bool

	// Supplier rules; nil keeps the built-in rules
	Rules []model.CategoryMappingRule

	// Concurrency of ProcessBatch (default: 4)
	Concurrency int

	// Optional collaborators, mainly for tests
	Extractor   Extractor
	Categorizer Categorizer
}

// DefaultPipelineOptions returns default pipeline options
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		ReviewThreshold: 0.70,
		EnableLLM:       true,
		Concurrency:     4,
		LLMBaseURL:      llm.DefaultBaseURL,
		LLMModel:        llm.ModelGPT4oMini,
	}
}
