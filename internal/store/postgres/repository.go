package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/store"
)

var _ store.Repository = (*Repository)(nil)

// Repository stores invoices and expenses in PostgreSQL
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a repository on pool
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Exists checks the (user_id, cufe) unique key.
func (r *Repository) Exists(ctx context.Context, userID, cufe string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE user_id = $1 AND cufe = $2)`,
		userID, cufe,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invoice exists: %w", err)
	}
	return exists, nil
}

// SaveInvoice inserts the invoice header and its full JSON document.
func (r *Repository) SaveInvoice(ctx context.Context, rec store.InvoiceRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	data := rec.Data
	if data == nil {
		data = model.NewExtractedInvoiceData()
	}
	doc, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode invoice data: %w", err)
	}

	query := `
		INSERT INTO invoices (id, user_id, cufe, supplier_name, supplier_nit, invoice_number, invoice_date,
			currency, subtotal, tax_amount, total_amount, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.CUFE,
		data.Supplier.Name, data.Supplier.NIT, data.InvoiceDetails.Number, nullDate(data.InvoiceDetails.Date),
		currency(data.InvoiceDetails.Currency), data.Totals.Subtotal, data.Totals.TaxAmount, data.Totals.TotalAmount,
		doc, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("save invoice %s: %w", rec.CUFE, store.ErrDuplicate)
		}
		return "", fmt.Errorf("insert invoice: %w", err)
	}
	return rec.ID, nil
}

// CreateExpenses inserts all expenses in one transaction.
func (r *Repository) CreateExpenses(ctx context.Context, invoiceID, userID string, expenses []model.SuggestedExpense) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owner string
	err = tx.QueryRow(ctx, `SELECT user_id FROM invoices WHERE id = $1`, invoiceID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("invoice %s: %w", invoiceID, store.ErrNotFound)
		}
		return fmt.Errorf("get invoice owner: %w", err)
	}
	if owner != userID {
		return fmt.Errorf("invoice %s: %w", invoiceID, store.ErrNotFound)
	}

	if err := insertExpenses(ctx, tx, invoiceID, userID, expenses); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertExpenses(ctx context.Context, q Querier, invoiceID, userID string, expenses []model.SuggestedExpense) error {
	query := `
		INSERT INTO expenses (id, invoice_id, user_id, position, description, amount, transaction_date,
			category, place, confidence, original_item)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for i, e := range expenses {
		id := e.ID
		if id == "" {
			id = uuid.New().String()
		}
		var item []byte
		if e.OriginalItem != nil {
			b, err := json.Marshal(e.OriginalItem)
			if err != nil {
				return fmt.Errorf("encode original item: %w", err)
			}
			item = b
		}
		_, err := q.Exec(ctx, query,
			id, invoiceID, userID, i, e.Description, e.Amount, nullDate(e.TransactionDate),
			string(e.SuggestedCategory), e.Place, e.ConfidenceScore, item,
		)
		if err != nil {
			return fmt.Errorf("insert expense %d: %w", i, err)
		}
	}
	return nil
}

func (r *Repository) GetInvoice(ctx context.Context, id string) (*store.InvoiceRecord, error) {
	// ids are uuid columns; anything else cannot exist
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
	}
	var (
		rec store.InvoiceRecord
		doc []byte
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, cufe, data, created_at FROM invoices WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.UserID, &rec.CUFE, &doc, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("invoice %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	rec.Data = model.NewExtractedInvoiceData()
	if err := json.Unmarshal(doc, rec.Data); err != nil {
		return nil, fmt.Errorf("decode invoice data: %w", err)
	}
	return &rec, nil
}

func (r *Repository) ListExpenses(ctx context.Context, invoiceID string) ([]model.SuggestedExpense, error) {
	if _, err := uuid.Parse(invoiceID); err != nil {
		return []model.SuggestedExpense{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, amount, transaction_date, category, place, confidence, original_item
		FROM expenses WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	list := []model.SuggestedExpense{}
	for rows.Next() {
		var (
			e        model.SuggestedExpense
			amount   decimal.Decimal
			date     *time.Time
			category string
			item     []byte
		)
		if err := rows.Scan(&e.ID, &e.Description, &amount, &date, &category, &e.Place, &e.ConfidenceScore, &item); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Amount = amount
		e.SuggestedCategory = model.ExpenseCategory(category)
		if date != nil {
			e.TransactionDate = date.Format("2006-01-02")
		}
		if len(item) > 0 {
			var it model.InvoiceItem
			if err := json.Unmarshal(item, &it); err != nil {
				return nil, fmt.Errorf("decode original item: %w", err)
			}
			e.OriginalItem = &it
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// isUniqueViolation reports a unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}

func nullDate(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func currency(c string) string {
	if len(c) != 3 {
		return model.DefaultCurrency
	}
	return strings.ToUpper(c)
}
