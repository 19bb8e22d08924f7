package text

import (
	"fmt"
)

// DIAN weights for the first nine NIT digits, left to right.
var nitWeights = [9]int{41, 37, 29, 23, 19, 17, 13, 7, 3}

// VerificationDigit computes the DIAN modulo-11 check digit for a nine-digit NIT base.
func VerificationDigit(base string) (int, error) {
	digits, _ := digitsOnly(base)
	if len(digits) < 9 {
		return 0, fmt.Errorf("NIT needs 9 digits, got %d", len(digits))
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(digits[i]-'0') * nitWeights[i]
	}
	rem := sum % 11
	if rem == 0 || rem == 1 {
		return rem, nil
	}
	return 11 - rem, nil
}

// CheckNIT reports whether a ten-digit NIT (base + check digit) is consistent.
// The second value is false when nit does not have exactly ten digits.
func CheckNIT(nit string) (valid bool, checked bool) {
	digits, _ := digitsOnly(nit)
	if len(digits) != 10 {
		return false, false
	}
	dv, err := VerificationDigit(digits[:9])
	if err != nil {
		return false, false
	}
	return int(digits[9]-'0') == dv, true
}
