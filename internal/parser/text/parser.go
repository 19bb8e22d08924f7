// Package text turns raw invoice text into ExtractedInvoiceData using
// independent pattern extractors. Parsing never fails; fields that are not
// recognized are left empty.
package text

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
	"github.com/rezonia/cufe-expenses/internal/model"
)

// Additional info keys
const (
	InfoCUFE          = "cufe"
	InfoPaymentMethod = "paymentMethod"
	InfoNITCheck      = "nitCheckDigit"
)

// Parser extracts invoice fields from text
type Parser struct {
	logger zerolog.Logger
}

// Option configures the parser
type Option func(*Parser)

// WithLogger sets the parser logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *Parser) {
		p.logger = l
	}
}

// NewParser creates a text parser
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse always returns a structurally valid document.
func (p *Parser) Parse(text string) *model.ExtractedInvoiceData {
	data := model.NewExtractedInvoiceData()

	data.Supplier = model.Supplier{
		Name:    OrDefault(SupplierName, text, ""),
		NIT:     OrDefault(SupplierNIT, text, ""),
		Address: OrDefault(Address, text, ""),
		Phone:   OrDefault(Phone, text, ""),
		Email:   OrDefault(Email, text, ""),
	}

	if name, ok := CustomerName(text); ok {
		data.Customer = &model.Customer{
			Name: name,
			NIT:  OrDefault(CustomerNIT, text, ""),
		}
	}

	data.InvoiceDetails = model.InvoiceDetails{
		Number:   OrDefault(InvoiceNumber, text, ""),
		Date:     OrDefault(IssueDate, text, ""),
		DueDate:  OrDefault(DueDate, text, ""),
		Currency: OrDefault(Currency, text, model.DefaultCurrency),
	}

	totals := model.Totals{
		Subtotal:       OrDefault(Subtotal, text, decimal.Zero),
		TaxAmount:      OrDefault(TaxAmount, text, decimal.Zero),
		DiscountAmount: OrDefault(Discount, text, decimal.Zero),
		TotalAmount:    OrDefault(TotalAmount, text, decimal.Zero),
	}
	if totals.Subtotal.IsZero() && totals.TaxAmount.IsPositive() && totals.TotalAmount.GreaterThan(totals.TaxAmount) {
		totals.Subtotal = totals.TotalAmount.Sub(totals.TaxAmount)
	}
	data.Totals = totals

	var rate *decimal.Decimal
	if totals.Subtotal.IsPositive() {
		r := money.EffectiveRate(totals.TaxAmount, totals.Subtotal)
		rate = &r
	}
	if items := ParseItems(text, rate); len(items) > 0 {
		data.Items = items
	} else if totals.TotalAmount.IsPositive() {
		data.Items = []model.InvoiceItem{fallbackItem(data)}
	}

	if totals.TaxAmount.IsPositive() {
		taxRate := decimal.NewFromInt(model.StandardIVARate)
		if explicit, ok := TaxRate(text); ok {
			taxRate = explicit
		}
		data.Taxes = append(data.Taxes, model.InvoiceTax{
			Type:       "IVA",
			Rate:       taxRate,
			BaseAmount: totals.Subtotal,
			TaxAmount:  totals.TaxAmount,
		})
	}

	p.fillAdditionalInfo(text, data)

	p.logger.Debug().
		Str("supplier", data.Supplier.Name).
		Str("nit", data.Supplier.NIT).
		Str("number", data.InvoiceDetails.Number).
		Str("total", data.Totals.TotalAmount.String()).
		Int("items", len(data.Items)).
		Msg("parsed invoice text")

	return data
}

func (p *Parser) fillAdditionalInfo(text string, data *model.ExtractedInvoiceData) {
	info := map[string]string{}
	if code, ok := EmbeddedCUFE(text); ok {
		info[InfoCUFE] = code
	}
	if method, ok := PaymentMethod(text); ok {
		info[InfoPaymentMethod] = method
	}
	if valid, checked := CheckNIT(data.Supplier.NIT); checked {
		if valid {
			info[InfoNITCheck] = "valid"
		} else {
			info[InfoNITCheck] = "invalid"
			p.logger.Warn().Str("nit", data.Supplier.NIT).Msg("supplier NIT check digit mismatch")
		}
	}
	if len(info) > 0 {
		data.AdditionalInfo = info
	}
}

func fallbackItem(data *model.ExtractedInvoiceData) model.InvoiceItem {
	description := "Compra"
	if data.Supplier.Name != "" {
		description = "Compra en " + data.Supplier.Name
	}
	price := data.Totals.Subtotal
	if !price.IsPositive() {
		price = data.Totals.TotalAmount
	}
	return model.InvoiceItem{
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   price,
		TotalPrice:  price,
	}
}

// Usable reports whether anything at all was recognized. Partial data is usable.
func Usable(data *model.ExtractedInvoiceData) bool {
	if data == nil {
		return false
	}
	return data.Supplier.Name != "" ||
		data.Supplier.NIT != "" ||
		data.InvoiceDetails.Number != "" ||
		data.Totals.TotalAmount.IsPositive() ||
		len(data.Items) > 0
}
