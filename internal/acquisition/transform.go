package acquisition

import (
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/parser/text"
)

// InfoSource marks invoices built from a service result
const InfoSource = "source"

// ToInvoiceData converts the service result into ExtractedInvoiceData.
// Taxes are summed from item IVA amounts; the subtotal falls back to the item sum.
// Totals are rounded to whole pesos.
func (r ServerResult) ToInvoiceData() *model.ExtractedInvoiceData {
	data := model.NewExtractedInvoiceData()
	d := r.InvoiceDetails

	data.Supplier = model.Supplier{
		Name: strings.TrimSpace(d.StoreName),
		NIT:  digits(d.NIT),
	}

	data.InvoiceDetails.Number = strings.TrimSpace(d.InvoiceNumber)
	data.InvoiceDetails.Date = strings.TrimSpace(d.Date)
	if iso, ok := text.NormalizeDate(d.Date); ok {
		data.InvoiceDetails.Date = iso
	}
	if c := strings.TrimSpace(d.Currency); c != "" {
		data.InvoiceDetails.Currency = strings.ToUpper(c)
	}

	var (
		taxes []decimal.Decimal
		rate  *decimal.Decimal
	)
	for _, it := range r.Items {
		item := model.InvoiceItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity.Decimal,
			UnitPrice:   it.UnitPrice.Decimal,
			TotalPrice:  it.TotalPrice.Decimal,
			Unit:        it.UnitMeasure,
			ProductCode: it.Code,
		}
		if it.IVAPercent != nil {
			p := it.IVAPercent.Decimal
			item.TaxRate = &p
			if money.IsPositive(p) && rate == nil {
				rate = &p
			}
		}
		if it.IVAAmount != nil {
			a := it.IVAAmount.Decimal
			item.TaxAmount = &a
			taxes = append(taxes, a)
		}
		item.Calculate()
		data.Items = append(data.Items, item)
	}

	tax := money.RoundCOP(money.Sum(taxes))
	subtotal := data.ItemsTotal()
	if d.Subtotal != nil {
		subtotal = d.Subtotal.Decimal
	}
	data.Totals = model.Totals{
		Subtotal:    money.RoundCOP(subtotal),
		TaxAmount:   tax,
		TotalAmount: money.RoundCOP(d.TotalAmount.Decimal),
	}

	if money.IsPositive(tax) {
		taxRate := decimal.NewFromInt(model.StandardIVARate)
		if rate != nil {
			taxRate = *rate
		}
		data.Taxes = append(data.Taxes, model.InvoiceTax{
			Type:       "IVA",
			Rate:       taxRate,
			BaseAmount: data.Totals.Subtotal,
			TaxAmount:  tax,
		})
	}

	data.AdditionalInfo = map[string]string{InfoSource: "acquisition"}
	return data
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
