package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/parser/text"
)

// MaxInputChars caps the invoice text sent to the model
const MaxInputChars = 24000

// Chatter is the subset of Client the extractor needs
type Chatter interface {
	ChatText(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Extractor turns raw invoice text into ExtractedInvoiceData through an LLM
type Extractor struct {
	client Chatter
	model  string
	logger zerolog.Logger
}

// ExtractorOption configures an Extractor
type ExtractorOption func(*Extractor)

// WithModel selects the model; empty uses the client default.
func WithModel(model string) ExtractorOption {
	return func(e *Extractor) {
		e.model = model
	}
}

func WithLogger(l zerolog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = l
	}
}

// NewExtractor creates an extractor backed by client
func NewExtractor(client Chatter, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client: client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LLMResponse is the JSON document the model is asked to produce
type LLMResponse struct {
	InvoiceNumber string          `json:"invoice_number"`
	Date          string          `json:"date"`
	DueDate       string          `json:"due_date"`
	CUFE          string          `json:"cufe"`
	Supplier      LLMParty        `json:"supplier"`
	Customer      *LLMParty       `json:"customer"`
	Items         []LLMItem       `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	TotalIVA      decimal.Decimal `json:"total_iva"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
}

type LLMParty struct {
	Name    string `json:"name"`
	NIT     string `json:"nit"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type LLMItem struct {
	Code        string           `json:"code"`
	Description string           `json:"description"`
	Unit        string           `json:"unit"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Total       decimal.Decimal  `json:"total"`
	IVARate     *decimal.Decimal `json:"iva_rate"`
	IVAAmount   *decimal.Decimal `json:"iva_amount"`
}

// ExtractFromText asks the model for the invoice fields found in raw.
func (e *Extractor) ExtractFromText(ctx context.Context, raw string) (*model.ExtractedInvoiceData, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, model.NewExtractionError("llm", "no text to extract from", nil)
	}
	raw = truncate(raw, MaxInputChars)

	resp, err := e.client.ChatText(ctx, e.model, SystemPromptInvoiceExtractor, fmt.Sprintf(UserPromptTextExtraction, raw))
	if err != nil {
		return nil, model.NewExtractionError("llm", "model request failed", err)
	}

	var out LLMResponse
	if err := json.Unmarshal([]byte(ExtractJSON(resp)), &out); err != nil {
		e.logger.Debug().Str("response", truncate(resp, 500)).Msg("unparseable model response")
		return nil, model.NewExtractionError("llm", "model returned invalid JSON", err)
	}

	data := out.ToInvoiceData()
	e.logger.Info().Str("supplier", data.Supplier.Name).Int("items", len(data.Items)).Msg("llm extraction done")
	return data, nil
}

// ToInvoiceData maps the model output onto the shared invoice model.
func (r LLMResponse) ToInvoiceData() *model.ExtractedInvoiceData {
	data := model.NewExtractedInvoiceData()
	data.Supplier = model.Supplier{
		Name:    strings.TrimSpace(r.Supplier.Name),
		NIT:     digits(r.Supplier.NIT),
		Address: r.Supplier.Address,
		Phone:   r.Supplier.Phone,
		Email:   r.Supplier.Email,
	}
	if r.Customer != nil && r.Customer.Name != "" {
		data.Customer = &model.Customer{Name: r.Customer.Name, NIT: digits(r.Customer.NIT), Address: r.Customer.Address}
	}
	data.InvoiceDetails.Number = r.InvoiceNumber
	data.InvoiceDetails.Date = isoDate(r.Date)
	data.InvoiceDetails.DueDate = isoDate(r.DueDate)
	if c := strings.ToUpper(strings.TrimSpace(r.Currency)); len(c) == 3 {
		data.InvoiceDetails.Currency = c
	}

	for _, it := range r.Items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		item := model.InvoiceItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.Total,
			TaxRate:     it.IVARate,
			TaxAmount:   it.IVAAmount,
			Unit:        it.Unit,
			ProductCode: it.Code,
		}
		if item.Quantity.IsZero() {
			item.Quantity = decimal.NewFromInt(1)
		}
		item.Calculate()
		data.Items = append(data.Items, item)
	}

	data.Totals.TotalAmount = r.TotalAmount
	data.Totals.TaxAmount = r.TotalIVA
	data.Totals.DiscountAmount = r.Discount
	data.Totals.Subtotal = r.Subtotal
	if data.Totals.Subtotal.IsZero() && !r.TotalAmount.IsZero() {
		data.Totals.Subtotal = r.TotalAmount.Sub(r.TotalIVA)
	}
	if data.Totals.TotalAmount.IsZero() {
		data.Totals.TotalAmount = data.ItemsTotal()
	}

	if r.TotalIVA.IsPositive() {
		rate := decimal.NewFromInt(model.StandardIVARate)
		for _, it := range data.Items {
			if it.TaxRate != nil && it.TaxRate.IsPositive() {
				rate = *it.TaxRate
				break
			}
		}
		data.Taxes = append(data.Taxes, model.InvoiceTax{
			Type:       "IVA",
			Rate:       rate,
			BaseAmount: data.Totals.Subtotal,
			TaxAmount:  r.TotalIVA,
		})
	}

	data.AdditionalInfo = map[string]string{"source": "llm"}
	if r.CUFE != "" {
		data.AdditionalInfo[text.InfoCUFE] = strings.ToLower(r.CUFE)
	}
	if r.PaymentMethod != "" {
		data.AdditionalInfo[text.InfoPaymentMethod] = r.PaymentMethod
	}
	return data
}

func isoDate(v string) string {
	if iso, ok := text.NormalizeDate(v); ok {
		return iso
	}
	return strings.TrimSpace(v)
}

// digits keeps the NIT base and its check digit
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
