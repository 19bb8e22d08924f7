package processor_test

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/processor"
)

const testCUFE = "f5693bff411776a0c3536bba5df32491df2ffc101a8ff4810cdfc04368b8a9286dc0d5c578fa2344e119d118947a0c4c"

const invoiceText = `FERRETERIA EL TORNILLO S.A.S
NIT: 900123456-7
FACTURA ELECTRÓNICA DE VENTA No. FE-1234
Fecha de emisión: 5/3/2024
Descripción Cantidad Valor Unitario Valor Total
Servicio X 1 100,000 100,000
IVA: $19,000
TOTAL: $119,000`

const unreadableText = "documento escaneado sin texto legible"

type fakeLLM struct {
	data  *model.ExtractedInvoiceData
	err   error
	calls int
}

func (f *fakeLLM) ExtractFromText(_ context.Context, _ string) (*model.ExtractedInvoiceData, error) {
	f.calls++
	return f.data, f.err
}

type recordingFetcher struct {
	mu   sync.Mutex
	urls []string
	body []byte
	err  error
}

func (f *recordingFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.body, f.err
}

func TestNewPipeline(t *testing.T) {
	p := processor.NewPipeline()
	require.NotNil(t, p)
	assert.False(t, p.HasLLM())
}

func TestNewPipeline_WithOptions(t *testing.T) {
	p := processor.NewPipeline(
		processor.WithLLMExtractor(&fakeLLM{}),
		processor.WithDocumentURLTemplate("https://docs.example.com/{cufe}.pdf"),
	)
	require.NotNil(t, p)
	assert.True(t, p.HasLLM())
}

func TestProcessText(t *testing.T) {
	llm := &fakeLLM{}
	p := processor.NewPipeline(processor.WithLLMExtractor(llm))

	res, err := p.ProcessText(context.Background(), invoiceText)
	require.NoError(t, err)
	require.NotNil(t, res.Data)

	assert.Equal(t, processor.MethodText, res.Info.Method)
	assert.Equal(t, len(invoiceText), res.Info.TextLength)
	assert.Equal(t, "FERRETERIA EL TORNILLO S.A.S", res.Data.Supplier.Name)
	assert.True(t, res.Data.Totals.TotalAmount.Equal(decimal.NewFromInt(119000)))
	assert.Empty(t, res.Warnings)
	assert.Zero(t, llm.calls)
}

func TestProcessText_LLMFallback(t *testing.T) {
	llmData := model.NewExtractedInvoiceData()
	llmData.Supplier.Name = "TIENDA D1"
	llmData.Totals.TotalAmount = decimal.NewFromInt(45900)
	llm := &fakeLLM{data: llmData}

	p := processor.NewPipeline(processor.WithLLMExtractor(llm))
	res, err := p.ProcessText(context.Background(), unreadableText)
	require.NoError(t, err)
	assert.Equal(t, processor.MethodLLMText, res.Info.Method)
	assert.Equal(t, "TIENDA D1", res.Data.Supplier.Name)
	assert.Contains(t, res.Warnings, "invoice date not found")
	assert.Equal(t, 1, llm.calls)
}

func TestProcessText_ExtractionFailed(t *testing.T) {
	tests := []struct {
		name string
		opts []processor.Option
	}{
		{"no llm", nil},
		{"llm error", []processor.Option{processor.WithLLMExtractor(&fakeLLM{err: errors.New("quota exceeded")})}},
		{"llm finds nothing", []processor.Option{processor.WithLLMExtractor(&fakeLLM{data: model.NewExtractedInvoiceData()})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.NewPipeline(tt.opts...).ProcessText(context.Background(), unreadableText)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrExtractionFailed))
		})
	}
}

func TestProcess_Inputs(t *testing.T) {
	notPDF := base64.StdEncoding.EncodeToString([]byte("hello"))

	tests := []struct {
		name    string
		in      processor.Input
		wantErr error
	}{
		{"empty", processor.Input{}, processor.ErrNoInput},
		{"blank fields", processor.Input{CUFECode: "  ", PDFURL: " "}, processor.ErrNoInput},
		{"not a pdf", processor.Input{PDFBase64: notPDF}, model.ErrExtractionFailed},
		{"data url not a pdf", processor.Input{PDFBase64: "data:application/pdf;base64," + notPDF}, model.ErrExtractionFailed},
		{"invalid cufe", processor.Input{CUFECode: "xyz"}, model.ErrInvalidCUFE},
		{"no url template", processor.Input{CUFECode: testCUFE}, model.ErrProcessingFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := processor.NewPipeline().Process(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestProcess_InvalidBase64(t *testing.T) {
	_, err := processor.NewPipeline().Process(context.Background(), processor.Input{PDFBase64: "%%%not-base64"})
	require.Error(t, err)
	var perr *model.ParseError
	assert.True(t, errors.As(err, &perr))
}

func TestProcess_CUFEUsesTemplate(t *testing.T) {
	f := &recordingFetcher{body: []byte("<html>captcha</html>")}
	p := processor.NewPipeline(
		processor.WithFetcher(f),
		processor.WithDocumentURLTemplate("https://docs.example.com/invoices/{cufe}/pdf"),
	)

	_, err := p.Process(context.Background(), processor.Input{CUFECode: strings.ToUpper(testCUFE)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExtractionFailed))
	require.Len(t, f.urls, 1)
	assert.Equal(t, "https://docs.example.com/invoices/"+testCUFE+"/pdf", f.urls[0])
}

func TestProcess_PDFURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4\nbroken"))
	}))
	defer srv.Close()

	p := processor.NewPipeline()

	_, err := p.Process(context.Background(), processor.Input{PDFURL: srv.URL + "/missing.pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNetwork))

	_, err = p.Process(context.Background(), processor.Input{PDFURL: srv.URL + "/broken.pdf"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrExtractionFailed))
}

func TestHTTPFetcher_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	f := processor.NewHTTPFetcher(0)
	f.MaxBytes = 32
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	var exErr *model.ExtractionError
	assert.True(t, errors.As(err, &exErr))

	f.MaxBytes = 64
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, body, 64)
}

func TestProcessBatch(t *testing.T) {
	f := &recordingFetcher{err: model.NewProcessingError(model.KindNetwork, "offline", nil)}
	p := processor.NewPipeline(processor.WithFetcher(f))

	inputs := []processor.Input{
		{PDFURL: "https://a.example.com/1.pdf"},
		{},
		{PDFURL: "https://a.example.com/2.pdf"},
	}
	out, err := p.ProcessBatch(context.Background(), inputs, 2)
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.True(t, errors.Is(out[0].Err, model.ErrNetwork))
	assert.ErrorIs(t, out[1].Err, processor.ErrNoInput)
	assert.True(t, errors.Is(out[2].Err, model.ErrNetwork))
	assert.Equal(t, inputs[2], out[2].Input)
	assert.Len(t, f.urls, 2)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.NewPipeline().ProcessBatch(ctx, []processor.Input{{PDFBase64: "eA=="}}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected processor.Format
	}{
		{"PDF", []byte("%PDF-1.4\n%some content"), processor.FormatPDF},
		{"PDF with leading whitespace", []byte("\n %PDF-1.7"), processor.FormatPDF},
		{"text", []byte("FACTURA ELECTRÓNICA DE VENTA"), processor.FormatText},
		{"binary", []byte{0x89, 0x50, 0x4E, 0x47, 0x00, 0x0A}, processor.FormatUnknown},
		{"empty", []byte{}, processor.FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, processor.DetectFormat(tt.data))
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "pdf", processor.FormatPDF.String())
	assert.Equal(t, "text", processor.FormatText.String())
	assert.Equal(t, "unknown", processor.FormatUnknown.String())
}

func BenchmarkProcessText(b *testing.B) {
	ctx := context.Background()
	p := processor.NewPipeline()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.ProcessText(ctx, invoiceText)
	}
}
