// Package cufe normalizes, validates and locates CUFE codes, the SHA-384 hex
// identifiers printed on DIAN electronic invoices.
package cufe

import (
	"context"
	"regexp"
	"strings"

	"github.com/rezonia/cufe-expenses/internal/model"
)

// Length is the number of hex characters in a canonical CUFE (SHA-384 digest).
const Length = 96

// PortalURL is the DIAN public lookup page; the CUFE goes in the documentkey parameter.
const PortalURL = "https://catalogo-vpfe.dian.gov.co/document/searchqr"

var canonicalPattern = regexp.MustCompile(`^[0-9a-f]{96}$`)

// Messages returned by Validate
const (
	MessageInvalidFormat = "invalid CUFE format: expected 96 hexadecimal characters"
	MessageAlreadyExists = "an invoice with this CUFE already exists"
	MessageCheckFailed   = "could not verify whether the CUFE was already registered"
)

// ExistsChecker reports whether a normalized CUFE was already processed.
type ExistsChecker func(ctx context.Context, code string) (bool, error)

// ValidationResult is the outcome of Validate
type ValidationResult struct {
	IsValid bool            `json:"isValid"`
	Code    string          `json:"code"`
	Error   string          `json:"error,omitempty"`
	Kind    model.ErrorKind `json:"kind,omitempty"`
}

// Err converts a failed result into a *model.ProcessingError; nil when valid.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return model.NewProcessingError(r.Kind, r.Error, nil)
}

// Normalize trims, lower-cases and drops every character outside [0-9a-f].
func Normalize(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	b.Grow(len(lower))
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsFormatValid reports whether code already has the canonical CUFE shape.
func IsFormatValid(code string) bool {
	return canonicalPattern.MatchString(code)
}

// Validate normalizes code, checks its shape and, when exists is not nil,
// whether it was already registered. Format and duplicate failures carry
// different kinds and messages.
func Validate(ctx context.Context, code string, exists ExistsChecker) ValidationResult {
	normalized := Normalize(code)
	if !IsFormatValid(normalized) {
		return ValidationResult{
			Code:  normalized,
			Error: MessageInvalidFormat,
			Kind:  model.KindInvalidCUFE,
		}
	}

	if exists != nil {
		found, err := exists(ctx, normalized)
		if err != nil {
			return ValidationResult{
				Code:  normalized,
				Error: MessageCheckFailed + ": " + err.Error(),
				Kind:  model.KindNetwork,
			}
		}
		if found {
			return ValidationResult{
				Code:  normalized,
				Error: MessageAlreadyExists,
				Kind:  model.KindDuplicateCUFE,
			}
		}
	}

	return ValidationResult{IsValid: true, Code: normalized}
}

// DocumentURL returns the DIAN portal lookup URL for code.
func DocumentURL(code string) string {
	return PortalURL + "?documentkey=" + Normalize(code)
}
