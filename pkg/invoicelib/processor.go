package invoicelib

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/rezonia/cufe-expenses/internal/categorizer"
	"github.com/rezonia/cufe-expenses/internal/llm"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/processor"
)

// Processor implements Pipeline using the internal processor and categorizer
type Processor struct {
	pipeline    *processor.Pipeline
	categorizer Categorizer
	options     PipelineOptions
}

// NewProcessor creates a new invoice processor with the given options.
// Invalid supplier rules are reported as an error.
func NewProcessor(opts PipelineOptions) (*Processor, error) {
	extractor := opts.Extractor
	if extractor == nil && opts.EnableLLM && opts.LLMAPIKey != "" {
		var clientOpts []llm.ClientOption
		if opts.LLMBaseURL != "" {
			clientOpts = append(clientOpts, llm.WithBaseURL(opts.LLMBaseURL))
		}
		client := llm.NewClient(opts.LLMAPIKey, clientOpts...)

		var extractorOpts []llm.ExtractorOption
		if opts.LLMModel != "" {
			extractorOpts = append(extractorOpts, llm.WithModel(opts.LLMModel))
		}
		extractor = llm.NewExtractor(client, extractorOpts...)
	}

	var pipelineOpts []processor.Option
	if extractor != nil {
		pipelineOpts = append(pipelineOpts, processor.WithLLMExtractor(extractor))
	}

	cat := opts.Categorizer
	if cat == nil {
		if opts.Rules != nil {
			c, err := categorizer.New(opts.Rules)
			if err != nil {
				return nil, err
			}
			cat = c
		} else {
			cat = categorizer.NewDefault()
		}
	}

	return &Processor{
		pipeline:    processor.NewPipeline(pipelineOpts...),
		categorizer: cat,
		options:     opts,
	}, nil
}

// NewDefaultProcessor creates a processor with the built-in rules and no LLM fallback
func NewDefaultProcessor() *Processor {
	opts := DefaultPipelineOptions()
	opts.EnableLLM = false
	p, _ := NewProcessor(opts)
	return p
}

// Process reads a PDF or plain text invoice and suggests its expenses.
func (p *Processor) Process(ctx context.Context, r io.Reader) (*ExtractionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("reader", "", "failed to read input", err)
	}

	switch processor.DetectFormat(data) {
	case processor.FormatPDF:
		return p.wrap(p.pipeline.ProcessPDF(ctx, data))
	case processor.FormatText:
		return p.wrap(p.pipeline.ProcessText(ctx, string(data)))
	default:
		return nil, model.NewParseError("reader", "", "unsupported input format", nil)
	}
}

// ProcessPDF processes PDF input directly
func (p *Processor) ProcessPDF(ctx context.Context, r io.Reader) (*ExtractionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, model.NewParseError("reader", "", "failed to read input", err)
	}
	return p.wrap(p.pipeline.ProcessPDF(ctx, data))
}

// ProcessText processes already extracted invoice text
func (p *Processor) ProcessText(ctx context.Context, text string) (*ExtractionResult, error) {
	return p.wrap(p.pipeline.ProcessText(ctx, text))
}

// ProcessBatch processes multiple inputs concurrently. Results keep the input
// order; the first error is returned alongside the partial results.
func (p *Processor) ProcessBatch(ctx context.Context, inputs []io.Reader) ([]*ExtractionResult, error) {
	results := make([]*ExtractionResult, len(inputs))
	errs := make([]error, len(inputs))

	limit := p.options.Concurrency
	if limit <= 0 {
		limit = processor.DefaultBatchConcurrency
	}
	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, input := range inputs {
		eg.Go(func() error {
			results[i], errs[i] = p.Process(ctx, input)
			return nil
		})
	}
	_ = eg.Wait()

	for i, err := range errs {
		if err != nil {
			return results, fmt.Errorf("input %d: %w", i, err)
		}
	}
	return results, nil
}

func (p *Processor) wrap(res *processor.Result, err error) (*ExtractionResult, error) {
	if err != nil {
		return nil, err
	}
	expenses := p.categorizer.BuildSuggestedExpenses(res.Data)

	review := len(res.Warnings) > 0
	for _, e := range expenses {
		if e.ConfidenceScore < p.options.ReviewThreshold {
			review = true
		}
	}

	return &ExtractionResult{
		Invoice:     res.Data,
		Expenses:    expenses,
		Method:      string(res.Info.Method),
		Pages:       res.Info.PagesProcessed,
		Warnings:    res.Warnings,
		NeedsReview: review,
	}, nil
}
