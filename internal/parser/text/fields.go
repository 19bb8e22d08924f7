package text

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
)

const (
	amountRE = `(\d(?:[\d.,]*\d)?)`
	dateRE   = `(\d{1,2}[/\-]\d{1,2}[/\-]\d{4}|\d{4}-\d{1,2}-\d{1,2})`
	nitRE    = `(\d[\d. ]*\d(?:[ \t]*-[ \t]*\d)?)`
	sepRE    = `[ \t]*[:.#]{0,2}[ \t]*`
	moneyRE  = `[ \t]*[:.]?[ \t]*(?:cop[ \t]*)?\$?[ \t]*`
)

// A captured value ends at the next known label on the same line.
var nextLabel = regexp.MustCompile(`(?i)[ \t]+(?:nit|tel[eé]fonos?|tel|cel(?:ular)?|direcci[oó]n|dir|e-?mail|correo|fecha|factura|ciudad)[ \t]*[:.]`)

var (
	supplierNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*(?:raz[oó]n[ \t]+social|nombre[ \t]+(?:del[ \t]+)?(?:emisor|vendedor|proveedor|facturador)|emisor|vendedor|proveedor|facturador|supplier|seller)` + sepRE + `(\S[^\n]*)$`),
		// Receipts usually print the business name on the line right above the NIT.
		regexp.MustCompile(`(?im)^[ \t]*([^\n:\d][^\n:]{2,79}?)[ \t]*\n[ \t]*nit\b`),
	}

	supplierNITPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bnit(?:[ \t]+(?:no\.?|n[°º]))?` + sepRE + nitRE),
	}

	customerNamePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*(?:nombre[ \t]+(?:del[ \t]+)?)?(?:cliente|adquiri?ente|comprador|se[ñn]or(?:es)?|customer|buyer)` + sepRE + `([^\n\d][^\n]*)$`),
	}

	customerNITPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:nit|c\.?[ \t]?c\.?|c[eé]dula|documento)[ \t]*(?:del[ \t]+)?(?:cliente|adquiri?ente|comprador)` + sepRE + nitRE),
		regexp.MustCompile(`(?i)\b(?:cliente|adquiri?ente|comprador)[ \t]+(?:nit|c\.?[ \t]?c\.?|documento)` + sepRE + nitRE),
		regexp.MustCompile(`(?i)\b(?:c\.?c\.?|nit)[ \t]*/[ \t]*(?:c\.?c\.?|nit)` + sepRE + nitRE),
	}

	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)^[ \t]*(?:direcci[oó]n|dir\.|domicilio|address)` + sepRE + `(\S[^\n]*)$`),
		regexp.MustCompile(`(?i)\b(?:direcci[oó]n|address)[ \t]*:[ \t]*([^\n]+)`),
	}

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:tel[eé]fonos?|tel|cel(?:ular)?|m[oó]vil|phone)\.?[ \t]*[:.]?[ \t]*(\+?[\d(][\d \-()]{5,}\d)`),
	}

	emailPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:e-?mail|correo(?:[ \t]+electr[oó]nico)?)[ \t]*[:.]?[ \t]*([\w.%+\-]+@[\w.\-]+\.[a-z]{2,})`),
		regexp.MustCompile(`(?i)\b([\w.%+\-]+@[\w\-]+(?:\.[\w\-]+)*\.[a-z]{2,})\b`),
	}

	invoiceNumberPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)factura[ \t]+(?:electr[oó]nica[ \t]+)?(?:de[ \t]+venta[ \t]+)?(?:no\b\.?|n[°º.]|n[uú]mero|nro\b\.?|#)[ \t]*[:.]?[ \t]*([a-z0-9][a-z0-9\-]*)`),
		regexp.MustCompile(`(?i)(?:n[uú]mero[ \t]+(?:de[ \t]+)?factura|no\.?[ \t]+(?:de[ \t]+)?factura|invoice[ \t]+(?:no\.?|number|#))` + sepRE + `([a-z0-9][a-z0-9\-]*)`),
		regexp.MustCompile(`(?im)^[ \t]*factura[ \t]*[:#][ \t]*([a-z0-9][a-z0-9\-]*)`),
	}

	issueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)fecha[ \t]+(?:de[ \t]+)?(?:emisi[oó]n|expedici[oó]n|generaci[oó]n|factura(?:ci[oó]n)?)\s*[:.]?\s*` + dateRE),
		regexp.MustCompile(`(?i)\b(?:issue|invoice)[ \t]+date\s*[:.]?\s*` + dateRE),
		regexp.MustCompile(`(?i)\bfecha[ \t]*:[ \t]*` + dateRE),
		regexp.MustCompile(`(?i)\bfecha[ \t]+` + dateRE),
	}

	dueDatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:fecha[ \t]+(?:de[ \t]+)?vencimiento|vencimiento|vence|due[ \t]+date)\s*[:.]?\s*` + dateRE),
	}

	currencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:moneda|divisa|currency)` + sepRE + `([a-z]{3})\b`),
	}

	subtotalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bsub[ \t\-]?total(?:[ \t]+(?:bruto|neto))?` + moneyRE + amountRE),
		regexp.MustCompile(`(?i)\b(?:total[ \t]+bruto|valor[ \t]+bruto|base[ \t]+gravable)` + moneyRE + amountRE),
	}

	taxAmountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:total[ \t]+)?iva(?:[ \t]*\(?[ \t]*\d{1,2}(?:[.,]\d+)?[ \t]*%[ \t]*\)?)?` + moneyRE + amountRE),
		regexp.MustCompile(`(?i)\b(?:total[ \t]+)?impuestos?` + moneyRE + amountRE),
	}

	taxRatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\biva[ \t]*\(?[ \t]*(\d{1,2}(?:[.,]\d+)?)[ \t]*%`),
	}

	discountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:descuentos?|discount)[ \t]*[:.]?[ \t]*-?[ \t]*\$?[ \t]*` + amountRE),
	}

	totalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:valor[ \t]+)?(?:total|neto|valor)[ \t]+a[ \t]+pagar` + moneyRE + amountRE),
		regexp.MustCompile(`(?i)\b(?:total[ \t]+factura|gran[ \t]+total|valor[ \t]+total)` + moneyRE + amountRE),
		regexp.MustCompile(`(?i)\btotal` + moneyRE + amountRE),
	}

	embeddedCUFEPattern   = regexp.MustCompile(`(?i)\bcu[fd]e[ \t]*[:.]?\s*([0-9a-f]{96})\b`)
	paymentMethodPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(?:forma|medio|m[eé]todo)[ \t]+de[ \t]+pago` + sepRE + `(\S[^\n]*)$`),
	}
)

// Field extractors. Each one is independent and can be run on any text.
var (
	SupplierName  = MappedPatterns(cleanLabelValue, supplierNamePatterns...)
	SupplierNIT   = MappedPatterns(digitsOnly, supplierNITPatterns...)
	CustomerName  = MappedPatterns(cleanLabelValue, customerNamePatterns...)
	CustomerNIT   = MappedPatterns(digitsOnly, customerNITPatterns...)
	Address       = MappedPatterns(cleanLabelValue, addressPatterns...)
	Phone         = MappedPatterns(cleanPhone, phonePatterns...)
	Email         = MappedPatterns(lowerValue, emailPatterns...)
	InvoiceNumber = MappedPatterns(documentNumber, invoiceNumberPatterns...)
	IssueDate     = MappedPatterns(NormalizeDate, issueDatePatterns...)
	DueDate       = MappedPatterns(NormalizeDate, dueDatePatterns...)
	Currency      = MappedPatterns(upperValue, currencyPatterns...)
	Subtotal      = MappedPatterns(parseAmount, subtotalPatterns...)
	TaxAmount     = MappedPatterns(parseAmount, taxAmountPatterns...)
	TaxRate       = MappedPatterns(parseRate, taxRatePatterns...)
	Discount      = MappedPatterns(parseAmount, discountPatterns...)
	TotalAmount   = MappedPatterns(parseAmount, totalPatterns...)
	EmbeddedCUFE  = Map(Pattern(embeddedCUFEPattern), lowerValue)
	PaymentMethod = MappedPatterns(cleanLabelValue, paymentMethodPatterns...)
)

func cleanLabelValue(v string) (string, bool) {
	v = " " + v
	if loc := nextLabel.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	v = strings.Join(strings.Fields(v), " ")
	v = strings.Trim(v, " :-,;")
	return v, v != ""
}

func digitsOnly(v string) (string, bool) {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	return out, len(out) >= 5
}

func cleanPhone(v string) (string, bool) {
	v = strings.Join(strings.Fields(v), " ")
	return v, len(v) >= 7
}

func lowerValue(v string) (string, bool) {
	return strings.ToLower(v), v != ""
}

func upperValue(v string) (string, bool) {
	return strings.ToUpper(v), v != ""
}

func documentNumber(v string) (string, bool) {
	if !strings.ContainsAny(v, "0123456789") {
		return "", false
	}
	return strings.ToUpper(v), true
}

func parseAmount(v string) (decimal.Decimal, bool) {
	d, err := money.ParseAmount(v)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func parseRate(v string) (decimal.Decimal, bool) {
	d, err := money.ParseRate(v)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

var dmyPattern = regexp.MustCompile(`^(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})$`)
var ymdPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)

// NormalizeDate converts D/M/Y, D-M-Y or Y-M-D into YYYY-MM-DD.
// A first component above 12 paired with a second at most 12 is read as M/D/Y.
func NormalizeDate(v string) (string, bool) {
	v = strings.TrimSpace(v)
	var year, month, day int
	if m := dmyPattern.FindStringSubmatch(v); m != nil {
		day, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
		if month > 12 && day <= 12 {
			day, month = month, day
		}
	} else if m := ymdPattern.FindStringSubmatch(v); m != nil {
		year, _ = strconv.Atoi(m[1])
		month, _ = strconv.Atoi(m[2])
		day, _ = strconv.Atoi(m[3])
	} else {
		return "", false
	}

	iso := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	// rejects 31/02 and friends
	if _, err := time.Parse("2006-01-02", iso); err != nil {
		return "", false
	}
	return iso, true
}
