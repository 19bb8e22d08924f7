package text

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/textutil"
)

// (description) (quantity) (unit price) (total price)
var itemLinePattern = regexp.MustCompile(`^(.+?)[ \t]+(\d+(?:[.,]\d+)?)[ \t]+\$?[ \t]*(\d(?:[\d.,]*\d)?)[ \t]+\$?[ \t]*(\d(?:[\d.,]*\d)?)$`)

var productCodePattern = regexp.MustCompile(`^([A-Za-z]{0,4}\d[\w\-]*)[ \t]+(\S.*)$`)

var headingKeywords = []string{
	"descripcion", "description",
	"producto", "product",
	"servicio", "service",
	"articulo", "concepto",
}

var regionTerminators = []string{"subtotal", "total"}

// ItemRegion returns the lines strictly between the item heading and the first
// later line mentioning a subtotal or total. ok is false when no heading exists.
func ItemRegion(text string) (lines []string, ok bool) {
	all := textutil.NonEmptyLines(text)

	start := -1
	for i, line := range all {
		if itemLinePattern.MatchString(line) {
			continue
		}
		if textutil.ContainsAnyFolded(line, headingKeywords...) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	end := len(all)
	for i := start + 1; i < len(all); i++ {
		folded := textutil.Fold(all[i])
		for _, term := range regionTerminators {
			if strings.Contains(folded, term) {
				end = i
				break
			}
		}
		if end != len(all) {
			break
		}
	}

	return all[start+1 : end], true
}

// ParseItemLine matches one positional item line.
func ParseItemLine(line string) (model.InvoiceItem, bool) {
	m := itemLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return model.InvoiceItem{}, false
	}

	qty, err := money.ParseQuantity(m[2])
	if err != nil {
		return model.InvoiceItem{}, false
	}
	unit, err := money.ParseAmount(m[3])
	if err != nil {
		return model.InvoiceItem{}, false
	}
	total, err := money.ParseAmount(m[4])
	if err != nil {
		return model.InvoiceItem{}, false
	}

	item := model.InvoiceItem{
		Description: textutil.CollapseSpaces(m[1]),
		Quantity:    qty,
		UnitPrice:   unit,
		TotalPrice:  total,
	}
	if cm := productCodePattern.FindStringSubmatch(item.Description); cm != nil {
		item.ProductCode = cm[1]
		item.Description = cm[2]
	}
	return item, true
}

// ParseItems parses every item line in the item region. Lines that do not
// match are skipped. rate, when not nil, is applied to every item.
func ParseItems(text string, rate *decimal.Decimal) []model.InvoiceItem {
	region, ok := ItemRegion(text)
	if !ok {
		return nil
	}

	var items []model.InvoiceItem
	for _, line := range region {
		item, ok := ParseItemLine(line)
		if !ok {
			continue
		}
		if rate != nil {
			r := *rate
			amt := money.CalculateIVA(item.TotalPrice, r)
			item.TaxRate = &r
			item.TaxAmount = &amt
		}
		items = append(items, item)
	}
	return items
}
