// Package memory is an in-process store backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/store"
)

var _ store.Repository = (*Store)(nil)

type userCUFE struct {
	userID string
	cufe   string
}

// Store keeps invoices and expenses in maps guarded by a mutex
type Store struct {
	mu       sync.RWMutex
	invoices map[string]store.InvoiceRecord
	byCUFE   map[userCUFE]string
	expenses map[string][]model.SuggestedExpense
	now      func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{
		invoices: make(map[string]store.InvoiceRecord),
		byCUFE:   make(map[userCUFE]string),
		expenses: make(map[string][]model.SuggestedExpense),
		now:      time.Now,
	}
}

func (s *Store) Exists(ctx context.Context, userID, cufe string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCUFE[userCUFE{userID, cufe}]
	return ok, nil
}

func (s *Store) SaveInvoice(ctx context.Context, rec store.InvoiceRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userCUFE{rec.UserID, rec.CUFE}
	if _, ok := s.byCUFE[key]; ok {
		return "", fmt.Errorf("save invoice %s: %w", rec.CUFE, store.ErrDuplicate)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	s.invoices[rec.ID] = rec
	s.byCUFE[key] = rec.ID
	return rec.ID, nil
}

func (s *Store) CreateExpenses(ctx context.Context, invoiceID, userID string, expenses []model.SuggestedExpense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.invoices[invoiceID]
	if !ok || rec.UserID != userID {
		return fmt.Errorf("invoice %s: %w", invoiceID, store.ErrNotFound)
	}
	for _, e := range expenses {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.expenses[invoiceID] = append(s.expenses[invoiceID], e)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*store.InvoiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	return &rec, nil
}

func (s *Store) ListExpenses(ctx context.Context, invoiceID string) ([]model.SuggestedExpense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.invoices[invoiceID]; !ok {
		return nil, fmt.Errorf("invoice %s: %w", invoiceID, store.ErrNotFound)
	}
	out := make([]model.SuggestedExpense, len(s.expenses[invoiceID]))
	copy(out, s.expenses[invoiceID])
	return out, nil
}
