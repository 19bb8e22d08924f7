// Package processor is the synchronous PDF extraction pipeline behind the
// fallback endpoint and the parse command.
package processor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/parser/pdf"
	"github.com/rezonia/cufe-expenses/internal/parser/text"
)

// ExtractionMethod names how the invoice data was produced
type ExtractionMethod string

const (
	MethodText    ExtractionMethod = "pdf_text"
	MethodLLMText ExtractionMethod = "llm_text"
)

// Format is the detected payload type
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatText
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatText:
		return "text"
	default:
		return "unknown"
	}
}

// CUFEPlaceholder is replaced by the CUFE in the document URL template
const CUFEPlaceholder = "{cufe}"

// DefaultBatchConcurrency bounds ProcessBatch
const DefaultBatchConcurrency = 4

// ErrNoInput is returned when none of the input sources is set.
var ErrNoInput = errors.New("one of cufeCode, pdfUrl or pdfBase64 is required")

// Input selects the PDF source. The first non-empty of PDFBase64, PDFURL and CUFECode wins.
type Input struct {
	CUFECode  string `json:"cufeCode,omitempty"`
	PDFURL    string `json:"pdfUrl,omitempty"`
	PDFBase64 string `json:"pdfBase64,omitempty"`
}

// Empty reports whether no source is set
func (in Input) Empty() bool {
	return strings.TrimSpace(in.CUFECode) == "" &&
		strings.TrimSpace(in.PDFURL) == "" &&
		strings.TrimSpace(in.PDFBase64) == ""
}

// Info describes how a result was produced
type Info struct {
	Method         ExtractionMethod `json:"method"`
	PagesProcessed int              `json:"pages_processed"`
	TextLength     int              `json:"text_length"`
	ExtractionTime float64          `json:"extraction_time"`
}

// Result is a successful extraction
type Result struct {
	Data     *model.ExtractedInvoiceData `json:"data"`
	Info     Info                        `json:"processing_info"`
	Warnings []string                    `json:"warnings,omitempty"`
}

// TextExtractor is a second-chance extractor for text the parser could not read
type TextExtractor interface {
	ExtractFromText(ctx context.Context, raw string) (*model.ExtractedInvoiceData, error)
}

// Pipeline resolves a PDF, reads its text and parses it
type Pipeline struct {
	pdf         *pdf.Extractor
	parser      *text.Parser
	llm         TextExtractor
	fetcher     Fetcher
	urlTemplate string
	maxBytes    int
	logger      zerolog.Logger
}

// Option configures the pipeline
type Option func(*Pipeline)

// WithLLMExtractor enables the LLM fallback. A nil extractor disables it.
func WithLLMExtractor(e TextExtractor) Option {
	return func(p *Pipeline) {
		p.llm = e
	}
}

func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		if f != nil {
			p.fetcher = f
		}
	}
}

// WithDocumentURLTemplate sets the URL a CUFE resolves to; it must contain {cufe}.
func WithDocumentURLTemplate(tmpl string) Option {
	return func(p *Pipeline) {
		p.urlTemplate = tmpl
	}
}

func WithMaxPDFBytes(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxBytes = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// NewPipeline creates a new processing pipeline
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:  NewHTTPFetcher(60 * time.Second),
		maxBytes: DefaultMaxPDFBytes,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.pdf = pdf.NewExtractor(pdf.WithLogger(p.logger))
	p.parser = text.NewParser(text.WithLogger(p.logger))
	return p
}

// HasLLM reports whether the LLM fallback is configured
func (p *Pipeline) HasLLM() bool {
	return p.llm != nil
}

// Process resolves the input to PDF bytes and extracts the invoice.
func (p *Pipeline) Process(ctx context.Context, in Input) (*Result, error) {
	data, err := p.resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	return p.ProcessPDF(ctx, data)
}

func (p *Pipeline) resolve(ctx context.Context, in Input) ([]byte, error) {
	switch {
	case strings.TrimSpace(in.PDFBase64) != "":
		return p.decodeBase64(in.PDFBase64)

	case strings.TrimSpace(in.PDFURL) != "":
		p.logger.Debug().Str("url", in.PDFURL).Msg("downloading invoice PDF")
		return p.fetcher.Fetch(ctx, strings.TrimSpace(in.PDFURL))

	case strings.TrimSpace(in.CUFECode) != "":
		url, err := p.DocumentURL(in.CUFECode)
		if err != nil {
			return nil, err
		}
		p.logger.Debug().Str("url", url).Msg("downloading invoice PDF by CUFE")
		return p.fetcher.Fetch(ctx, url)
	}
	return nil, ErrNoInput
}

// DocumentURL validates code and expands the document URL template.
func (p *Pipeline) DocumentURL(code string) (string, error) {
	res := cufe.Validate(context.Background(), code, nil)
	if !res.IsValid {
		return "", res.Err()
	}
	if p.urlTemplate == "" || !strings.Contains(p.urlTemplate, CUFEPlaceholder) {
		return "", model.NewProcessingError(model.KindProcessingFailed,
			"no document URL template configured for CUFE lookups", nil)
	}
	return strings.ReplaceAll(p.urlTemplate, CUFEPlaceholder, res.Code), nil
}

func (p *Pipeline) decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	// data:application/pdf;base64,....
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	if base64.StdEncoding.DecodedLen(len(s)) > p.maxBytes+3 {
		return nil, model.NewExtractionError("base64", fmt.Sprintf("document exceeds %d bytes", p.maxBytes), nil)
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, model.NewParseError("base64", "pdfBase64", "invalid base64 payload", err)
	}
	return data, nil
}

// ProcessPDF reads the text of a PDF and extracts the invoice from it.
func (p *Pipeline) ProcessPDF(ctx context.Context, data []byte) (*Result, error) {
	start := time.Now()
	if !pdf.IsPDF(data) {
		return nil, model.NewProcessingError(model.KindExtractionFailed, "payload is not a PDF document", pdf.ErrNotPDF)
	}

	var warnings []string
	pages, err := p.pdf.PageCount(data)
	if err != nil {
		p.logger.Warn().Err(err).Msg("pdf structure validation failed")
		warnings = append(warnings, "PDF structure could not be validated")
	}

	doc, err := p.pdf.Extract(data)
	if err != nil {
		return nil, model.NewProcessingError(model.KindExtractionFailed, "could not read PDF text", err)
	}
	if pages == 0 {
		pages = doc.Pages
	}

	res, err := p.processText(ctx, doc.Text, start)
	if err != nil {
		return nil, err
	}
	res.Info.PagesProcessed = pages
	res.Warnings = append(warnings, res.Warnings...)
	return res, nil
}

// ProcessText extracts the invoice from already extracted text.
func (p *Pipeline) ProcessText(ctx context.Context, raw string) (*Result, error) {
	return p.processText(ctx, raw, time.Now())
}

func (p *Pipeline) processText(ctx context.Context, raw string, start time.Time) (*Result, error) {
	res := &Result{
		Info: Info{Method: MethodText, TextLength: len(raw)},
	}

	data := p.parser.Parse(raw)
	if !text.Usable(data) {
		if p.llm == nil {
			return nil, model.NewProcessingError(model.KindExtractionFailed,
				"no invoice data could be recognized in the document", nil)
		}
		p.logger.Info().Int("text_length", len(raw)).Msg("pattern extraction found nothing, trying LLM")
		llmData, err := p.llm.ExtractFromText(ctx, raw)
		if err != nil {
			return nil, model.NewProcessingError(model.KindExtractionFailed, "LLM extraction failed", err)
		}
		if !text.Usable(llmData) {
			return nil, model.NewProcessingError(model.KindExtractionFailed,
				"no invoice data could be recognized in the document", nil)
		}
		data = llmData
		res.Info.Method = MethodLLMText
	}

	if data.Supplier.Name == "" {
		res.Warnings = append(res.Warnings, "supplier name not found")
	}
	if data.InvoiceDetails.Date == "" {
		res.Warnings = append(res.Warnings, "invoice date not found")
	}
	res.Data = data
	res.Info.ExtractionTime = time.Since(start).Seconds()

	p.logger.Info().
		Str("method", string(res.Info.Method)).
		Str("supplier", data.Supplier.Name).
		Int("items", len(data.Items)).
		Float64("seconds", res.Info.ExtractionTime).
		Msg("invoice extracted")
	return res, nil
}

// BatchResult pairs one input with its outcome
type BatchResult struct {
	Input  Input
	Result *Result
	Err    error
}

// ProcessBatch processes inputs concurrently. Failures are reported per input;
// the batch itself only fails when ctx is done.
func (p *Pipeline) ProcessBatch(ctx context.Context, inputs []Input, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	out := make([]BatchResult, len(inputs))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, in := range inputs {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.Process(gctx, in)
			out[i] = BatchResult{Input: in, Result: res, Err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, fmt.Errorf("batch interrupted: %w", err)
	}
	return out, nil
}

// DetectFormat detects the payload type from its content
func DetectFormat(data []byte) Format {
	if len(data) == 0 {
		return FormatUnknown
	}
	if pdf.IsPDF(data) {
		return FormatPDF
	}
	sample := data
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return FormatUnknown
	}
	return FormatText
}
