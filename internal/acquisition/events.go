package acquisition

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
)

// Event names on the acquisition stream
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is one of ProgressEvent, CompleteEvent or ErrorEvent.
type Event interface {
	Name() string
	isEvent()
}

// FlexString accepts a JSON string or any other JSON value, kept as its raw text.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FlexString(raw)
	return nil
}

// Amount is a money value sent either as a JSON number or as a printed string
// such as "$119,000" or "119.000".
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return unmarshalLoose(data, &a.Decimal, money.ParseAmount)
}

// Quantity is an item quantity; "1,5" in a string is one and a half.
type Quantity struct {
	decimal.Decimal
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	return unmarshalLoose(data, &q.Decimal, money.ParseQuantity)
}

// Rate is a percentage such as 19, "19" or "19%".
type Rate struct {
	decimal.Decimal
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	return unmarshalLoose(data, &r.Decimal, money.ParseRate)
}

// unmarshalLoose reads JSON numbers as-is and hands strings to parse.
// null and blank strings leave zero.
func unmarshalLoose(data []byte, dst *decimal.Decimal, parse func(string) (decimal.Decimal, error)) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*dst = decimal.Zero
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*dst = decimal.Zero
			return nil
		}
		d, err := parse(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*dst = d
	return nil
}

// CaptchaInfo describes a challenge the acquisition service is solving
type CaptchaInfo struct {
	Number      FlexString `json:"number"`
	Status      string     `json:"status"`
	TaskID      FlexString `json:"taskId,omitempty"`
	Attempt     *int       `json:"attempt,omitempty"`
	MaxAttempts *int       `json:"maxAttempts,omitempty"`
	SolveTime   *float64   `json:"solveTime,omitempty"`
}

// ProgressEvent reports an intermediate acquisition step
type ProgressEvent struct {
	Step           string       `json:"step"`
	Progress       float64      `json:"progress"`
	Message        string       `json:"message"`
	Details        FlexString   `json:"details,omitempty"`
	Captcha        *CaptchaInfo `json:"captcha,omitempty"`
	ProcessingTime *float64     `json:"processing_time,omitempty"`
}

// CompleteEvent carries the final extraction result
type CompleteEvent struct {
	Result ServerResult `json:"result"`
}

// ErrorEvent is a failure reported by the service
type ErrorEvent struct {
	Message string `json:"error"`
}

func (ProgressEvent) Name() string { return EventProgress }
func (CompleteEvent) Name() string { return EventComplete }
func (ErrorEvent) Name() string    { return EventError }

func (ProgressEvent) isEvent() {}
func (CompleteEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}

// ServerResult is the invoice as extracted by the acquisition service
type ServerResult struct {
	InvoiceDetails ServerInvoiceDetails `json:"invoice_details"`
	Items          []ServerItem         `json:"items"`
	ProcessingInfo ServerProcessingInfo `json:"processing_info"`
}

// ServerInvoiceDetails is the header block of a ServerResult
type ServerInvoiceDetails struct {
	StoreName     string  `json:"storeName"`
	NIT           string  `json:"nit"`
	Date          string  `json:"date"`
	TotalAmount   Amount  `json:"total_amount"`
	Subtotal      *Amount `json:"subtotal,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	Currency      string  `json:"currency,omitempty"`
}

// ServerItem is one line item of a ServerResult
type ServerItem struct {
	Idx         int      `json:"idx"`
	Description string   `json:"description"`
	Quantity    Quantity `json:"quantity"`
	UnitPrice   Amount   `json:"unit_price"`
	TotalPrice  Amount   `json:"total_price"`
	IVAPercent  *Rate    `json:"iva_percent,omitempty"`
	IVAAmount   *Amount  `json:"iva_amount,omitempty"`
	UnitMeasure string   `json:"unit_measure,omitempty"`
	Code        string   `json:"code,omitempty"`
}

// ServerProcessingInfo reports how the service produced the result
type ServerProcessingInfo struct {
	TotalTime  float64 `json:"total_time"`
	PDFSize    int64   `json:"pdf_size"`
	ItemsFound int     `json:"items_found"`
}

// decodeEvent maps a named SSE payload to its typed event.
// ok is false for unknown event names. A complete payload that cannot be
// decoded becomes an ErrorEvent so the run still ends.
func decodeEvent(name string, data []byte) (ev Event, ok bool, err error) {
	switch name {
	case EventProgress:
		var p ProgressEvent
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, true, err
		}
		return p, true, nil
	case EventComplete:
		var c CompleteEvent
		if err := json.Unmarshal(data, &c); err != nil {
			return ErrorEvent{Message: fmt.Sprintf("invalid acquisition result: %v", err)}, true, nil
		}
		return c, true, nil
	case EventError:
		var e ErrorEvent
		if err := json.Unmarshal(data, &e); err != nil {
			// some failures are sent as plain text
			e.Message = string(bytes.TrimSpace(data))
		}
		if e.Message == "" {
			e.Message = "acquisition failed"
		}
		return e, true, nil
	default:
		return nil, false, nil
	}
}
