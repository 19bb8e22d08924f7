package server

import (
	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/processor"
)

// ExtractResponse is the response of the synchronous extraction endpoint
type ExtractResponse struct {
	Success        bool                        `json:"success"`
	Data           *model.ExtractedInvoiceData `json:"data,omitempty"`
	ProcessingInfo *processor.Info             `json:"processing_info,omitempty"`
	Warnings       []string                    `json:"warnings,omitempty"`
	Error          string                      `json:"error,omitempty"`
	ErrorKind      model.ErrorKind             `json:"error_kind,omitempty"`
}

// ValidateRequest is the body of the CUFE validation endpoint
type ValidateRequest struct {
	CUFE   string `json:"cufe"`
	UserID string `json:"userId,omitempty"`
}

// QRRequest carries a decoded QR payload
type QRRequest struct {
	Content string `json:"content"`
}

// QRResponse is the CUFE found in a QR payload
type QRResponse struct {
	Found      bool                   `json:"found"`
	Extraction *cufe.Extraction       `json:"extraction,omitempty"`
	Validation *cufe.ValidationResult `json:"validation,omitempty"`
	InvoiceQR  bool                   `json:"invoiceQr"`
}

// CategorizeResponse lists the expenses suggested for an invoice
type CategorizeResponse struct {
	Expenses []model.SuggestedExpense `json:"expenses"`
}

// AcquireRequest starts a streamed acquisition
type AcquireRequest struct {
	CUFE          string `json:"cufe"`
	UserID        string `json:"userId,omitempty"`
	MaxRetries    int    `json:"maxRetries,omitempty"`
	CaptchaAPIKey string `json:"captchaApiKey,omitempty"`
	Save          bool   `json:"save,omitempty"`
}

// SaveRequest persists an invoice reviewed by the client
type SaveRequest struct {
	UserID   string                      `json:"userId,omitempty"`
	CUFE     string                      `json:"cufe"`
	Data     *model.ExtractedInvoiceData `json:"data"`
	Expenses []model.SuggestedExpense    `json:"expenses"`
}

// SaveResponse returns the stored invoice id
type SaveResponse struct {
	InvoiceID string `json:"invoiceId"`
	Expenses  int    `json:"expenses"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string          `json:"error"`
	Kind    model.ErrorKind `json:"kind,omitempty"`
	Details string          `json:"details,omitempty"`
}
