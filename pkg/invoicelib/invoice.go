// Package invoicelib provides a public API for turning Colombian electronic
// invoices into categorized expenses.
//
// Example usage:
//
//	proc := invoicelib.NewDefaultProcessor()
//	result, err := proc.Process(ctx, reader)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Expenses {
//	    fmt.Println(e.Description, e.SuggestedCategory, e.Amount)
//	}
package invoicelib

import "github.com/rezonia/cufe-expenses/internal/model"

// Re-export core types for public API
type (
	ExtractedInvoiceData = model.ExtractedInvoiceData
	Supplier             = model.Supplier
	Customer             = model.Customer
	InvoiceDetails       = model.InvoiceDetails
	Totals               = model.Totals
	InvoiceItem          = model.InvoiceItem
	InvoiceTax           = model.InvoiceTax
	SuggestedExpense     = model.SuggestedExpense
	ExpenseCategory      = model.ExpenseCategory
	CategoryMappingRule  = model.CategoryMappingRule
)

// Re-export expense categories
const (
	CategoryFood          = model.CategoryFood
	CategoryGroceries     = model.CategoryGroceries
	CategoryTransport     = model.CategoryTransport
	CategoryHealth        = model.CategoryHealth
	CategoryEntertainment = model.CategoryEntertainment
	CategoryClothing      = model.CategoryClothing
	CategoryHome          = model.CategoryHome
	CategoryUtilities     = model.CategoryUtilities
	CategoryEducation     = model.CategoryEducation
	CategoryTechnology    = model.CategoryTechnology
	CategoryServices      = model.CategoryServices
	CategoryOther         = model.CategoryOther
)

// Re-export error kinds
type ErrorKind = model.ErrorKind

const (
	KindInvalidCUFE      = model.KindInvalidCUFE
	KindDuplicateCUFE    = model.KindDuplicateCUFE
	KindNetwork          = model.KindNetwork
	KindProcessingFailed = model.KindProcessingFailed
	KindExtractionFailed = model.KindExtractionFailed
	KindSaveFailed       = model.KindSaveFailed
)

// Re-export error types
type (
	ProcessingError = model.ProcessingError
	ParseError      = model.ParseError
	ValidationError = model.ValidationError
	ExtractionError = model.ExtractionError
)

// KindOf returns the kind of a processing error, or "" for other errors.
func KindOf(err error) ErrorKind {
	return model.KindOf(err)
}
