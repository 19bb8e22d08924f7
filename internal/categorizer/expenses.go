package categorizer

import (
	"fmt"

	"github.com/google/uuid"

	money "github.com/rezonia/cufe-expenses/internal/decimal"
	"github.com/rezonia/cufe-expenses/internal/model"
)

// GroupThreshold is the item count above which an invoice becomes one expense
const GroupThreshold = 10

// Confidence scores attached to suggested expenses
const (
	ConfidenceInvoice    = 0.6
	ConfidencePerItem    = 0.7
	ConfidenceAggregated = 0.8
)

// BuildSuggestedExpenses turns an extracted invoice into expenses for review:
// one for the whole invoice when it has no items, one aggregated expense when
// it has more than GroupThreshold items, and one per positive item otherwise.
func (c *Categorizer) BuildSuggestedExpenses(data *model.ExtractedInvoiceData) []model.SuggestedExpense {
	if data == nil {
		return []model.SuggestedExpense{}
	}

	supplier := data.Supplier.Name
	date := data.InvoiceDetails.Date
	if date == "" {
		date = c.now().Format("2006-01-02")
	}

	var expenses []model.SuggestedExpense
	switch n := len(data.Items); {
	case n == 0:
		description := purchaseLabel(supplier)
		expenses = []model.SuggestedExpense{{
			ID:                uuid.NewString(),
			Description:       description,
			Amount:            data.Totals.TotalAmount,
			TransactionDate:   date,
			SuggestedCategory: c.Match(description, supplier).Category,
			Place:             supplier,
			ConfidenceScore:   ConfidenceInvoice,
		}}

	case n > GroupThreshold:
		amount := data.Totals.TotalAmount
		if !money.IsPositive(amount) {
			amount = data.ItemsTotal()
		}
		expenses = []model.SuggestedExpense{{
			ID:                uuid.NewString(),
			Description:       fmt.Sprintf("%s (%d artículos)", purchaseLabel(supplier), n),
			Amount:            amount,
			TransactionDate:   date,
			SuggestedCategory: c.aggregateCategory(data.Items, supplier),
			Place:             supplier,
			ConfidenceScore:   ConfidenceAggregated,
		}}

	default:
		expenses = make([]model.SuggestedExpense, 0, n)
		for i := range data.Items {
			item := data.Items[i]
			if !money.IsPositive(item.TotalPrice) {
				continue
			}
			expenses = append(expenses, model.SuggestedExpense{
				ID:                uuid.NewString(),
				Description:       item.Description,
				Amount:            item.TotalPrice,
				TransactionDate:   date,
				SuggestedCategory: c.Categorize(item, supplier),
				Place:             supplier,
				OriginalItem:      &item,
				ConfidenceScore:   ConfidencePerItem,
			})
		}
	}

	c.logger.Debug().
		Str("supplier", supplier).
		Int("items", len(data.Items)).
		Int("expenses", len(expenses)).
		Msg("built suggested expenses")

	return expenses
}

// The supplier rule decides when it matches; otherwise the most frequent item category.
func (c *Categorizer) aggregateCategory(items []model.InvoiceItem, supplier string) model.ExpenseCategory {
	if m := c.Match("", supplier); m.Source == SourceRule {
		return m.Category
	}

	counts := map[model.ExpenseCategory]int{}
	best, bestCount := model.CategoryOther, 0
	for _, item := range items {
		cat := c.Match(item.Description, "").Category
		if cat == model.CategoryOther {
			continue
		}
		counts[cat]++
		if counts[cat] > bestCount {
			best, bestCount = cat, counts[cat]
		}
	}
	return best
}

func purchaseLabel(supplier string) string {
	if supplier == "" {
		return "Compra"
	}
	return "Compra en " + supplier
}
