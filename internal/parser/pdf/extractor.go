// Package pdf pulls plain text out of invoice PDFs.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"github.com/rezonia/cufe-expenses/internal/model"
)

const method = "pdf"

// Magic is the header every PDF document starts with
var Magic = []byte("%PDF-")

// ErrNotPDF is returned for payloads without a PDF header
var ErrNotPDF = errors.New("not a PDF document")

// Document is the text content of a PDF
type Document struct {
	Text  string
	Pages int
}

// Extractor reads text from PDF documents
type Extractor struct {
	conf     *pdfmodel.Configuration
	maxPages int
	logger   zerolog.Logger
}

// Option configures the extractor
type Option func(*Extractor)

// WithMaxPages limits how many pages are read. Zero reads all pages.
func WithMaxPages(n int) Option {
	return func(e *Extractor) {
		e.maxPages = n
	}
}

// WithLogger sets the extractor logger
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// NewExtractor creates a PDF text extractor
func NewExtractor(opts ...Option) *Extractor {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed

	e := &Extractor{
		conf:   conf,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsPDF reports whether data starts with the PDF header
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), Magic)
}

// PageCount validates the document structure and returns its page count.
func (e *Extractor) PageCount(data []byte) (int, error) {
	if !IsPDF(data) {
		return 0, model.NewExtractionError(method, "page count", ErrNotPDF)
	}
	n, err := api.PageCount(bytes.NewReader(data), e.conf)
	if err != nil {
		return 0, model.NewExtractionError(method, "page count", err)
	}
	return n, nil
}

// Extract returns the text of every page, one line per text row.
func (e *Extractor) Extract(data []byte) (doc *Document, err error) {
	if !IsPDF(data) {
		return nil, model.NewExtractionError(method, "read document", ErrNotPDF)
	}

	// the reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = model.NewExtractionError(method, "read document", fmt.Errorf("malformed PDF: %v", r))
		}
	}()

	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, model.NewExtractionError(method, "open document", err)
	}

	pages := reader.NumPage()
	limit := pages
	if e.maxPages > 0 && e.maxPages < limit {
		limit = e.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			e.logger.Warn().Err(err).Int("page", i).Msg("skipping unreadable page")
			continue
		}
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, word := range row.Content {
				if s := strings.TrimSpace(word.S); s != "" {
					words = append(words, s)
				}
			}
			if len(words) > 0 {
				sb.WriteString(strings.Join(words, " "))
				sb.WriteByte('\n')
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	e.logger.Debug().Int("pages", pages).Int("chars", len(text)).Msg("extracted PDF text")

	return &Document{Text: text, Pages: pages}, nil
}
