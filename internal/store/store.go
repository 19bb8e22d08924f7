// Package store defines the duplicate check and persistence contracts used
// after an invoice has been acquired.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rezonia/cufe-expenses/internal/cufe"
	"github.com/rezonia/cufe-expenses/internal/model"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("invoice already registered for this user")
)

// DuplicateGate reports whether a user already registered a CUFE.
// Implementations must not have side effects.
type DuplicateGate interface {
	Exists(ctx context.Context, userID, cufe string) (bool, error)
}

// InvoiceRecord is a saved invoice
type InvoiceRecord struct {
	ID        string                      `json:"id"`
	UserID    string                      `json:"userId"`
	CUFE      string                      `json:"cufe"`
	Data      *model.ExtractedInvoiceData `json:"data"`
	CreatedAt time.Time                   `json:"createdAt"`
}

// InvoiceStore persists invoices and the expenses derived from them
type InvoiceStore interface {
	SaveInvoice(ctx context.Context, rec InvoiceRecord) (string, error)
	CreateExpenses(ctx context.Context, invoiceID, userID string, expenses []model.SuggestedExpense) error
}

// Repository is a full store backend
type Repository interface {
	DuplicateGate
	InvoiceStore
	GetInvoice(ctx context.Context, id string) (*InvoiceRecord, error)
	ListExpenses(ctx context.Context, invoiceID string) ([]model.SuggestedExpense, error)
}

// Checker binds gate to one user for cufe.Validate. A nil gate gives a nil checker.
func Checker(gate DuplicateGate, userID string) cufe.ExistsChecker {
	if gate == nil {
		return nil
	}
	return func(ctx context.Context, code string) (bool, error) {
		return gate.Exists(ctx, userID, code)
	}
}
