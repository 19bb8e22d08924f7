// Package session drives one CUFE from validation to categorized expenses.
package session

import (
	"errors"
	"strings"

	"github.com/rezonia/cufe-expenses/internal/acquisition"
	"github.com/rezonia/cufe-expenses/internal/model"
)

// Status is the user-facing stage of a session
type Status string

const (
	StatusIdle        Status = "idle"
	StatusValidating  Status = "validating"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusReviewing   Status = "reviewing"
	StatusSaving      Status = "saving"
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
)

var (
	ErrAlreadyProcessing = errors.New("processing already in progress")
	ErrCancelled         = errors.New("session cancelled")
	ErrNothingToPersist  = errors.New("no extracted invoice to persist")
	ErrInvalidState      = errors.New("operation not allowed in current state")
)

// Busy reports whether a run or a save is in flight.
func (s Status) Busy() bool {
	switch s {
	case StatusValidating, StatusDownloading, StatusExtracting, StatusSaving:
		return true
	}
	return false
}

// Session is a point-in-time copy of the orchestrator state.
type Session struct {
	Status            Status                      `json:"status"`
	CUFE              string                      `json:"cufe,omitempty"`
	Progress          int                         `json:"progress"`
	Message           string                      `json:"message"`
	Details           string                      `json:"details,omitempty"`
	CaptchaInfo       *acquisition.CaptchaInfo    `json:"captchaInfo,omitempty"`
	CurrentInvoice    *model.ExtractedInvoiceData `json:"currentInvoice,omitempty"`
	SuggestedExpenses []model.SuggestedExpense    `json:"suggestedExpenses"`
	InvoiceID         string                      `json:"invoiceId,omitempty"`
	Error             string                      `json:"error,omitempty"`
	ErrorKind         model.ErrorKind             `json:"errorKind,omitempty"`
}

// Err returns the session failure as a ProcessingError, or nil.
func (s Session) Err() error {
	if s.Status != StatusError {
		return nil
	}
	return model.NewProcessingError(s.ErrorKind, s.Error, nil)
}

func (s Session) clone() Session {
	out := s
	out.SuggestedExpenses = append([]model.SuggestedExpense{}, s.SuggestedExpenses...)
	if s.CaptchaInfo != nil {
		c := *s.CaptchaInfo
		out.CaptchaInfo = &c
	}
	return out
}

func newIdle() Session {
	return Session{Status: StatusIdle, SuggestedExpenses: []model.SuggestedExpense{}}
}

var stepKeywords = []struct {
	status   Status
	keywords []string
}{
	{StatusExtracting, []string{"extract", "pars", "process", "analy", "ocr", "item", "read"}},
	{StatusDownloading, []string{"download", "descarg", "captcha", "connect", "conect", "navig", "search", "busc", "fetch", "init", "start", "inici", "pdf"}},
}

// StatusForStep maps a service step name to a session status; unknown steps keep prev.
func StatusForStep(step string, prev Status) Status {
	s := strings.ToLower(step)
	if s == "" {
		return prev
	}
	for _, group := range stepKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(s, kw) {
				return group.status
			}
		}
	}
	return prev
}
