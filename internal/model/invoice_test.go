package model_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/model"
)

func TestNewExtractedInvoiceData(t *testing.T) {
	data := model.NewExtractedInvoiceData()

	require.NotNil(t, data)
	assert.Equal(t, "COP", data.InvoiceDetails.Currency)
	assert.NotNil(t, data.Items)
	assert.NotNil(t, data.Taxes)
	assert.True(t, data.Totals.TotalAmount.IsZero())
	assert.Nil(t, data.Customer)
}

func TestInvoiceItem_Calculate(t *testing.T) {
	rate := decimal.NewFromInt(19)
	item := model.InvoiceItem{
		Description: "Almuerzo ejecutivo",
		Quantity:    decimal.NewFromInt(2),
		UnitPrice:   decimal.NewFromInt(25000),
		TaxRate:     &rate,
	}

	item.Calculate()

	assert.True(t, item.TotalPrice.Equal(decimal.NewFromInt(50000)), "got %s", item.TotalPrice)
	require.NotNil(t, item.TaxAmount)
	assert.True(t, item.TaxAmount.Equal(decimal.NewFromInt(9500)), "got %s", item.TaxAmount)
}

func TestInvoiceItem_CalculateKeepsExplicitTotal(t *testing.T) {
	item := model.InvoiceItem{
		Quantity:   decimal.NewFromInt(3),
		UnitPrice:  decimal.NewFromInt(1000),
		TotalPrice: decimal.NewFromInt(2500),
	}

	item.Calculate()

	assert.True(t, item.TotalPrice.Equal(decimal.NewFromInt(2500)))
	assert.Nil(t, item.TaxAmount)
}

func TestExtractedInvoiceData_ItemsTotal(t *testing.T) {
	data := model.NewExtractedInvoiceData()
	data.Items = append(data.Items,
		model.InvoiceItem{TotalPrice: decimal.NewFromInt(100000)},
		model.InvoiceItem{TotalPrice: decimal.NewFromInt(19000)},
	)

	assert.True(t, data.ItemsTotal().Equal(decimal.NewFromInt(119000)))
}

func TestExtractedInvoiceData_JSONShape(t *testing.T) {
	data := model.NewExtractedInvoiceData()
	data.Supplier = model.Supplier{Name: "Tienda", NIT: "9001234567"}
	data.Totals.TotalAmount = decimal.NewFromInt(119000)

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Contains(t, decoded, "invoiceDetails")
	assert.Contains(t, decoded, "totals")
	assert.NotContains(t, decoded, "customer")
	totals := decoded["totals"].(map[string]interface{})
	assert.Equal(t, "119000", totals["totalAmount"])
}

func TestExpenseCategory_IsValid(t *testing.T) {
	assert.True(t, model.CategoryFood.IsValid())
	assert.True(t, model.CategoryOther.IsValid())
	assert.False(t, model.ExpenseCategory("PETS").IsValid())
}

func TestProcessingError_Is(t *testing.T) {
	err := model.NewProcessingError(model.KindDuplicateCUFE, "invoice already exists", nil)
	wrapped := fmt.Errorf("start session: %w", err)

	assert.True(t, errors.Is(wrapped, model.ErrDuplicateCUFE))
	assert.False(t, errors.Is(wrapped, model.ErrInvalidCUFE))
	assert.Equal(t, model.KindDuplicateCUFE, model.KindOf(wrapped))
	assert.Equal(t, model.ErrorKind(""), model.KindOf(errors.New("plain")))
}

func TestProcessingError_Message(t *testing.T) {
	cause := errors.New("connection refused")
	err := model.NewProcessingError(model.KindNetwork, "could not open stream", cause)

	assert.Equal(t, "[NETWORK_ERROR] could not open stream: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("no text")
	err := model.NewExtractionError("regex", "nothing recognized", cause)

	assert.Contains(t, err.Error(), "extraction failed [regex]")
	assert.ErrorIs(t, err, cause)
}

func TestValidationError(t *testing.T) {
	err := model.NewValidationError("pdfBase64", nil, "required", "one input is required")
	assert.Equal(t, "validation failed on pdfBase64: one input is required (rule=required)", err.Error())
}
