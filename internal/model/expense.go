package model

import (
	"github.com/shopspring/decimal"
)

// ExpenseCategory is a budget category suggested for an expense
type ExpenseCategory string

const (
	CategoryFood          ExpenseCategory = "FOOD"
	CategoryGroceries     ExpenseCategory = "GROCERIES"
	CategoryTransport     ExpenseCategory = "TRANSPORT"
	CategoryHealth        ExpenseCategory = "HEALTH"
	CategoryEntertainment ExpenseCategory = "ENTERTAINMENT"
	CategoryClothing      ExpenseCategory = "CLOTHING"
	CategoryHome          ExpenseCategory = "HOME"
	CategoryUtilities     ExpenseCategory = "UTILITIES"
	CategoryEducation     ExpenseCategory = "EDUCATION"
	CategoryTechnology    ExpenseCategory = "TECHNOLOGY"
	CategoryServices      ExpenseCategory = "SERVICES"
	CategoryOther         ExpenseCategory = "OTHER"
)

// Categories lists every known category
var Categories = []ExpenseCategory{
	CategoryFood, CategoryGroceries, CategoryTransport, CategoryHealth,
	CategoryEntertainment, CategoryClothing, CategoryHome, CategoryUtilities,
	CategoryEducation, CategoryTechnology, CategoryServices, CategoryOther,
}

// IsValid reports whether c is one of the known categories
func (c ExpenseCategory) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// SuggestedExpense is derived from an invoice and handed to persistence after review.
type SuggestedExpense struct {
	ID                string          `json:"id" csv:"id"`
	Description       string          `json:"description" csv:"description"`
	Amount            decimal.Decimal `json:"amount" csv:"amount"`
	TransactionDate   string          `json:"transactionDate" csv:"transaction_date"`
	SuggestedCategory ExpenseCategory `json:"suggestedCategory" csv:"category"`
	Place             string          `json:"place,omitempty" csv:"place"`
	OriginalItem      *InvoiceItem    `json:"originalItem,omitempty" csv:"-"`
	ConfidenceScore   float64         `json:"confidenceScore" csv:"confidence"`
}

// CategoryMappingRule maps a supplier name to a category.
// SupplierPattern is a regular expression; Keywords are plain substrings.
type CategoryMappingRule struct {
	SupplierPattern   string          `json:"supplierPattern" yaml:"supplierPattern"`
	SuggestedCategory ExpenseCategory `json:"suggestedCategory" yaml:"suggestedCategory"`
	Confidence        float64         `json:"confidence" yaml:"confidence"`
	Keywords          []string        `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}
