package cufe_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/cufe"
)

func TestExtractFromQRPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		source  cufe.Source
	}{
		{
			name:    "DIAN portal URL",
			payload: "https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=" + validCUFE,
			source:  cufe.SourceURL,
		},
		{
			name:    "mixed case parameter and value",
			payload: "https://catalogo-vpfe.dian.gov.co/User/SearchDocument?DocumentKey=" + strings.ToUpper(validCUFE),
			source:  cufe.SourceURL,
		},
		{
			name:    "cufe parameter",
			payload: "https://example.com/verify?id=1&cufe=" + validCUFE,
			source:  cufe.SourceURL,
		},
		{
			name: "multi-line DIAN QR text with URL",
			payload: "NumFac: SETP990000002\nFecFac: 2024-03-01\nValFac: 100000.00\n" +
				"QRCode: https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=" + validCUFE,
			source: cufe.SourceURL,
		},
		{
			name:    "JSON blob",
			payload: `{"numFac":"FE-12","cufe":"` + validCUFE + `"}`,
			source:  cufe.SourceJSON,
		},
		{
			name:    "nested JSON with upper-case key",
			payload: `{"invoice":{"CUFE":"` + strings.ToUpper(validCUFE) + `"}}`,
			source:  cufe.SourceJSON,
		},
		{
			name:    "JSON carrying portal URL",
			payload: `{"qr":"https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=` + validCUFE + `"}`,
			source:  cufe.SourceURL,
		},
		{
			name:    "raw code",
			payload: "  " + validCUFE + "  ",
			source:  cufe.SourceRaw,
		},
		{
			name:    "quoted raw code",
			payload: `"` + strings.ToUpper(validCUFE) + `"`,
			source:  cufe.SourceRaw,
		},
		{
			name:    "key value line",
			payload: "NumFac: SETP990000002\nNitFac: 900123456\nCUFE: " + validCUFE + "\nValTolFac: 119000.00",
			source:  cufe.SourceKeyValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := cufe.ExtractFromQRPayload(tt.payload)
			require.True(t, ok)
			assert.Equal(t, validCUFE, code)

			ext, ok := cufe.Extract(tt.payload)
			require.True(t, ok)
			assert.Equal(t, tt.source, ext.Source)
		})
	}
}

func TestExtractFromQRPayload_NotFound(t *testing.T) {
	payloads := []string{
		"",
		"   ",
		"hello world",
		"https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=abc",
		`{"cufe": "too-short"}`,
		`{"broken json`,
		"https://example.com/?q=" + validCUFE[:50],
	}

	for _, p := range payloads {
		code, ok := cufe.ExtractFromQRPayload(p)
		assert.False(t, ok, "payload %q", p)
		assert.Empty(t, code)
	}
}

func TestExtractFromQRPayload_URLRoundTrip(t *testing.T) {
	codes := []string{
		validCUFE,
		strings.Repeat("0123456789abcdef", 6),
		strings.Repeat("a", 96),
	}
	templates := []string{
		"https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=%s",
		"https://catalogo-vpfe-hab.dian.gov.co/document/searchqr?foo=bar&documentkey=%s",
		"Consulte en https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=%s gracias",
	}

	for _, code := range codes {
		for _, tmpl := range templates {
			payload := strings.Replace(tmpl, "%s", strings.ToUpper(code), 1)
			got, ok := cufe.ExtractFromQRPayload(payload)
			require.True(t, ok, payload)
			assert.Equal(t, code, got)
		}
	}
}

func TestLooksLikeInvoiceQR(t *testing.T) {
	assert.True(t, cufe.LooksLikeInvoiceQR("https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=1"))
	assert.True(t, cufe.LooksLikeInvoiceQR("NumFac: 1\nFecFac: 2024-01-01"))
	assert.True(t, cufe.LooksLikeInvoiceQR(`{"CUFE":"x"}`))
	assert.False(t, cufe.LooksLikeInvoiceQR("https://example.com/menu"))
}

func TestExtract_Confidence(t *testing.T) {
	ext, ok := cufe.Extract("https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=" + validCUFE)
	require.True(t, ok)
	assert.Equal(t, cufe.ConfidenceInvoiceQR, ext.Confidence)

	ext, ok = cufe.Extract(validCUFE)
	require.True(t, ok)
	assert.Equal(t, cufe.ConfidenceGeneric, ext.Confidence)
}
