package decimal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// FromInt creates decimal from int (common for COP)
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// ParseAmount parses a money amount as printed on an invoice.
// Currency symbols and spaces are dropped. Commas are thousands separators unless
// they follow the last dot ("1.234,56"). A dot followed by exactly three digits, or
// repeated dots, is also a thousands separator ("119.000").
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := cleanNumber(s)
	if clean == "" {
		return Zero, fmt.Errorf("empty amount %q", s)
	}

	lastDot := strings.LastIndex(clean, ".")
	lastComma := strings.LastIndex(clean, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 || len(clean)-lastDot-1 == 3 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ParseQuantity parses an item quantity; a comma followed by one or two digits is decimal.
func ParseQuantity(s string) (decimal.Decimal, error) {
	clean := cleanNumber(s)
	if i := strings.LastIndex(clean, ","); i >= 0 && !strings.Contains(clean, ".") {
		if n := len(clean) - i - 1; n > 0 && n < 3 {
			clean = clean[:i] + "." + clean[i+1:]
		}
	}
	return ParseAmount(clean)
}

// ParseRate parses a percentage such as "19", "19%" or "5,5".
func ParseRate(s string) (decimal.Decimal, error) {
	clean := strings.TrimSuffix(cleanNumber(s), "%")
	clean = strings.ReplaceAll(clean, ",", ".")
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return Zero, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	return d, nil
}

func cleanNumber(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-', r == '%':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Mul multiplies two decimals, rounds to 2 places
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(2)
}

// CalculateIVA computes amount * (rate/100), rounded to whole pesos
func CalculateIVA(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	return amount.Mul(ratePercent).Div(hundred).Round(0)
}

// EffectiveRate returns round(tax/base*100), or zero when base is zero
func EffectiveRate(tax, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return Zero
	}
	return tax.Div(base).Mul(hundred).Round(0)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// RoundCOP rounds to whole pesos
func RoundCOP(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
