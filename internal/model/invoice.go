package model

import (
	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
)

// DefaultCurrency is used when the document does not state one.
const DefaultCurrency = "COP"

// StandardIVARate is the Colombian general VAT rate, used as the display default.
const StandardIVARate = 19

// ExtractedInvoiceData is the structured form of a DIAN electronic invoice.
// Totals.TotalAmount is authoritative; item totals are not reconciled against it.
type ExtractedInvoiceData struct {
	Supplier       Supplier          `json:"supplier"`
	Customer       *Customer         `json:"customer,omitempty"`
	InvoiceDetails InvoiceDetails    `json:"invoiceDetails"`
	Items          []InvoiceItem     `json:"items"`
	Totals         Totals            `json:"totals"`
	Taxes          []InvoiceTax      `json:"taxes"`
	AdditionalInfo map[string]string `json:"additionalInfo,omitempty"`
}

// Supplier is the issuing party
type Supplier struct {
	Name    string `json:"name"`
	NIT     string `json:"nit"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Customer is the acquiring party
type Customer struct {
	Name    string `json:"name"`
	NIT     string `json:"nit,omitempty"`
	Address string `json:"address,omitempty"`
}

// InvoiceDetails holds document identification. Dates are ISO YYYY-MM-DD.
type InvoiceDetails struct {
	Number   string `json:"number"`
	Date     string `json:"date"`
	DueDate  string `json:"dueDate,omitempty"`
	Currency string `json:"currency"`
}

// Totals holds document-level amounts
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

// InvoiceItem represents a single line on the invoice
type InvoiceItem struct {
	Description string           `json:"description"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unitPrice"`
	TotalPrice  decimal.Decimal  `json:"totalPrice"`
	TaxRate     *decimal.Decimal `json:"taxRate,omitempty"`
	TaxAmount   *decimal.Decimal `json:"taxAmount,omitempty"`
	Unit        string           `json:"unit,omitempty"`
	ProductCode string           `json:"productCode,omitempty"`
}

// Calculate fills TotalPrice from quantity and unit price when the source omitted it.
func (i *InvoiceItem) Calculate() {
	if i.TotalPrice.IsZero() && !i.UnitPrice.IsZero() {
		qty := i.Quantity
		if qty.IsZero() {
			qty = money.FromInt(1)
		}
		i.TotalPrice = money.Mul(qty, i.UnitPrice)
	}
	if i.TaxRate != nil && i.TaxAmount == nil {
		amt := money.CalculateIVA(i.TotalPrice, *i.TaxRate)
		i.TaxAmount = &amt
	}
}

// InvoiceTax is a tax line (IVA, INC, ICA...)
type InvoiceTax struct {
	Type       string          `json:"type"`
	Rate       decimal.Decimal `json:"rate"`
	BaseAmount decimal.Decimal `json:"baseAmount"`
	TaxAmount  decimal.Decimal `json:"taxAmount"`
}

// ItemsTotal sums TotalPrice over all items
func (d *ExtractedInvoiceData) ItemsTotal() decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(d.Items))
	for _, it := range d.Items {
		totals = append(totals, it.TotalPrice)
	}
	return money.Sum(totals)
}

// NewExtractedInvoiceData returns an empty, structurally valid document.
func NewExtractedInvoiceData() *ExtractedInvoiceData {
	return &ExtractedInvoiceData{
		InvoiceDetails: InvoiceDetails{Currency: DefaultCurrency},
		Items:          []InvoiceItem{},
		Taxes:          []InvoiceTax{},
	}
}
