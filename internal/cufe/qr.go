package cufe

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// Source tells where in a QR payload the code was found
type Source string

const (
	SourceURL      Source = "url"
	SourceJSON     Source = "json"
	SourceRaw      Source = "raw"
	SourceKeyValue Source = "keyvalue"
)

// Confidence values attached to an Extraction
const (
	ConfidenceInvoiceQR = 0.95
	ConfidenceGeneric   = 0.7
)

// Extraction is a CUFE located inside a QR payload
type Extraction struct {
	Code       string  `json:"code"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Query parameters and JSON keys that carry the document key, in preference order.
var documentKeys = []string{"documentkey", "cufe", "cude", "uuid", "key"}

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s"'<>]+`)
	keyValuePattern = regexp.MustCompile(`(?i)\bcu[fd]e\s*[:=]\s*([0-9a-f]{96})\b`)
)

var invoiceQRMarkers = []string{
	"dian.gov.co",
	"catalogo-vpfe",
	"documentkey",
	"cufe",
	"numfac",
	"fecfac",
	"valfac",
}

// ExtractFromQRPayload returns the CUFE embedded in text. The boolean is false
// when nothing could be extracted, which is not a validation failure.
func ExtractFromQRPayload(text string) (string, bool) {
	ext, ok := Extract(text)
	return ext.Code, ok
}

// Extract tries, in order: a URL query parameter, a JSON key, the text itself,
// and finally the "CUFE: <code>" line of the multi-line DIAN QR format.
func Extract(text string) (Extraction, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Extraction{}, false
	}

	confidence := ConfidenceGeneric
	if LooksLikeInvoiceQR(trimmed) {
		confidence = ConfidenceInvoiceQR
	}

	if code, ok := fromURL(trimmed); ok {
		return Extraction{Code: code, Source: SourceURL, Confidence: confidence}, true
	}
	if code, ok := fromJSON(trimmed); ok {
		return Extraction{Code: code, Source: SourceJSON, Confidence: confidence}, true
	}
	if code := Normalize(trimmed); IsFormatValid(code) {
		return Extraction{Code: code, Source: SourceRaw, Confidence: confidence}, true
	}
	if m := keyValuePattern.FindStringSubmatch(trimmed); m != nil {
		return Extraction{Code: Normalize(m[1]), Source: SourceKeyValue, Confidence: confidence}, true
	}

	return Extraction{}, false
}

// LooksLikeInvoiceQR is a heuristic over known hosts and DIAN QR field names.
// It only influences confidence.
func LooksLikeInvoiceQR(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range invoiceQRMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func fromURL(text string) (string, bool) {
	var candidates []string
	if u, err := url.Parse(text); err == nil && u.Scheme != "" && u.Host != "" {
		candidates = append(candidates, text)
	}
	candidates = append(candidates, urlPattern.FindAllString(text, -1)...)

	for _, candidate := range candidates {
		u, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if code, ok := fromQuery(u.Query()); ok {
			return code, true
		}
	}
	return "", false
}

func fromQuery(values url.Values) (string, bool) {
	lowered := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			lowered[strings.ToLower(k)] = v[0]
		}
	}
	for _, key := range documentKeys {
		if v, ok := lowered[key]; ok {
			if code := Normalize(v); IsFormatValid(code) {
				return code, true
			}
		}
	}
	return "", false
}

func fromJSON(text string) (string, bool) {
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		return "", false
	}
	var payload interface{}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", false
	}
	return findInJSON(payload, 0)
}

func findInJSON(v interface{}, depth int) (string, bool) {
	if depth > 4 {
		return "", false
	}
	switch node := v.(type) {
	case map[string]interface{}:
		lowered := make(map[string]interface{}, len(node))
		for k, val := range node {
			lowered[strings.ToLower(k)] = val
		}
		for _, key := range documentKeys {
			s, ok := lowered[key].(string)
			if !ok {
				continue
			}
			if code := Normalize(s); IsFormatValid(code) {
				return code, true
			}
			if code, ok := fromURL(s); ok {
				return code, true
			}
		}
		for _, val := range node {
			if code, ok := findInJSON(val, depth+1); ok {
				return code, true
			}
		}
	case []interface{}:
		for _, val := range node {
			if code, ok := findInJSON(val, depth+1); ok {
				return code, true
			}
		}
	case string:
		if code, ok := fromURL(node); ok {
			return code, true
		}
	}
	return "", false
}
