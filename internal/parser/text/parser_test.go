package text_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/parser/text"
)

const ferreteriaInvoice = `FERRETERIA EL TORNILLO S.A.S
NIT: 900123456-7
Dirección: Calle 10 # 20-30, Bogotá
Teléfono: 601 2345678
Email: ventas@tornillo.com.co
FACTURA ELECTRÓNICA DE VENTA No. FE-1234
Fecha de emisión: 5/3/2024
Fecha de vencimiento: 04-04-2024
Cliente: Juan Pérez
Descripción Cantidad Valor Unitario Valor Total
Servicio X 1 100,000 100,000
IVA: $19,000
TOTAL: $119,000
Forma de pago: Contado`

func TestParse_HappyPath(t *testing.T) {
	input := strings.Join([]string{
		"NIT: 900123456-7",
		"Descripción Cantidad Precio Total",
		"Servicio X 1 100,000 100,000",
		"TOTAL: $119,000",
		"IVA: $19,000",
	}, "\n")

	data := text.NewParser().Parse(input)

	require.NotNil(t, data)
	assert.Equal(t, "9001234567", data.Supplier.NIT)
	assert.True(t, data.Totals.TotalAmount.Equal(decimal.NewFromInt(119000)), "total %s", data.Totals.TotalAmount)
	require.Len(t, data.Items, 1)
	item := data.Items[0]
	assert.Equal(t, "Servicio X", item.Description)
	assert.True(t, item.TotalPrice.Equal(decimal.NewFromInt(100000)))
	require.NotNil(t, item.TaxRate)
	assert.True(t, item.TaxRate.Equal(decimal.NewFromInt(19)), "rate %s", item.TaxRate)
}

func TestParse_FullInvoice(t *testing.T) {
	data := text.NewParser().Parse(ferreteriaInvoice)

	assert.Equal(t, "FERRETERIA EL TORNILLO S.A.S", data.Supplier.Name)
	assert.Equal(t, "9001234567", data.Supplier.NIT)
	assert.Equal(t, "Calle 10 # 20-30, Bogotá", data.Supplier.Address)
	assert.Equal(t, "601 2345678", data.Supplier.Phone)
	assert.Equal(t, "ventas@tornillo.com.co", data.Supplier.Email)

	require.NotNil(t, data.Customer)
	assert.Equal(t, "Juan Pérez", data.Customer.Name)

	assert.Equal(t, "FE-1234", data.InvoiceDetails.Number)
	assert.Equal(t, "2024-03-05", data.InvoiceDetails.Date)
	assert.Equal(t, "2024-04-04", data.InvoiceDetails.DueDate)
	assert.Equal(t, "COP", data.InvoiceDetails.Currency)

	assert.True(t, data.Totals.Subtotal.Equal(decimal.NewFromInt(100000)), "subtotal %s", data.Totals.Subtotal)
	assert.True(t, data.Totals.TaxAmount.Equal(decimal.NewFromInt(19000)))
	assert.True(t, data.Totals.TotalAmount.Equal(decimal.NewFromInt(119000)))

	require.Len(t, data.Taxes, 1)
	assert.Equal(t, "IVA", data.Taxes[0].Type)
	assert.True(t, data.Taxes[0].Rate.Equal(decimal.NewFromInt(19)))
	assert.True(t, data.Taxes[0].BaseAmount.Equal(decimal.NewFromInt(100000)))

	require.Len(t, data.Items, 1)
	require.NotNil(t, data.Items[0].TaxAmount)
	assert.True(t, data.Items[0].TaxAmount.Equal(decimal.NewFromInt(19000)))

	assert.Equal(t, "Contado", data.AdditionalInfo[text.InfoPaymentMethod])
	assert.Equal(t, "invalid", data.AdditionalInfo[text.InfoNITCheck])
	assert.True(t, text.Usable(data))
}

func TestParse_AccentsAndMixedCase(t *testing.T) {
	input := `razón social: Droguería La Salud
nit.: 800.197.268-4
Fecha: 2024-1-9
Subtotal: 10.000
Iva 5%: 500
Total a pagar: 10.500`

	data := text.NewParser().Parse(input)

	assert.Equal(t, "Droguería La Salud", data.Supplier.Name)
	assert.Equal(t, "8001972684", data.Supplier.NIT)
	assert.Equal(t, "valid", data.AdditionalInfo[text.InfoNITCheck])
	assert.Equal(t, "2024-01-09", data.InvoiceDetails.Date)
	assert.True(t, data.Totals.Subtotal.Equal(decimal.NewFromInt(10000)))
	assert.True(t, data.Totals.TaxAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, data.Totals.TotalAmount.Equal(decimal.NewFromInt(10500)))

	require.Len(t, data.Taxes, 1)
	assert.True(t, data.Taxes[0].Rate.Equal(decimal.NewFromInt(5)), "explicit rate wins over default")
}

func TestParse_FallbackItem(t *testing.T) {
	input := "TIENDA D1\nNIT 900.123.456-8\nTOTAL A PAGAR $ 45.900"

	data := text.NewParser().Parse(input)

	assert.Equal(t, "TIENDA D1", data.Supplier.Name)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Compra en TIENDA D1", data.Items[0].Description)
	assert.True(t, data.Items[0].Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, data.Items[0].TotalPrice.Equal(decimal.NewFromInt(45900)))
	assert.Empty(t, data.Taxes)
}

func TestParse_FallbackItemGenericLabel(t *testing.T) {
	data := text.NewParser().Parse("Gracias por su compra\nTotal: 12,500")

	require.Len(t, data.Items, 1)
	assert.Equal(t, "Compra", data.Items[0].Description)
	assert.True(t, data.Items[0].TotalPrice.Equal(decimal.NewFromInt(12500)))
}

func TestParse_FallbackUsesSubtotal(t *testing.T) {
	data := text.NewParser().Parse("Subtotal: 50,000\nIVA: 9,500\nTotal: 59,500")

	require.Len(t, data.Items, 1)
	assert.True(t, data.Items[0].TotalPrice.Equal(decimal.NewFromInt(50000)))
}

func TestParse_FallbackItemInvariant(t *testing.T) {
	inputs := []string{
		"Total: 1",
		"TOTAL A PAGAR 99.000",
		"Proveedor: X\nValor total: 3,000,000",
		"Descripción\nsin líneas reconocibles\nTotal: 5,000",
	}

	for _, in := range inputs {
		data := text.NewParser().Parse(in)
		require.True(t, data.Totals.TotalAmount.IsPositive(), in)
		assert.Len(t, data.Items, 1, in)
	}
}

func TestParse_Resilience(t *testing.T) {
	inputs := []string{
		"",
		"lorem ipsum dolor sit amet",
		"12345 67890\n\n\n",
		"::::\n$$$\n%%%",
		strings.Repeat("x", 10000),
		"Descripción\nTotal",
	}

	for _, in := range inputs {
		data := text.NewParser().Parse(in)
		require.NotNil(t, data)
		assert.NotNil(t, data.Items)
		assert.NotNil(t, data.Taxes)
		assert.Empty(t, data.Items)
		assert.Empty(t, data.Supplier.Name)
		assert.True(t, data.Totals.TotalAmount.IsZero())
		assert.Equal(t, "COP", data.InvoiceDetails.Currency)
		assert.False(t, text.Usable(data))
	}
}

func TestParse_MultipleItems(t *testing.T) {
	input := `SUPERMERCADO LA 14
NIT: 890300279-4
Producto Cant V.Unit Total
001 Leche entera 2 4,500 9,000
Pan tajado 1 6,200 6,200
linea que no es item
Huevos AA x30 1 18,900 18,900
Subtotal: 34,100
IVA: 0
Total: 34,100`

	data := text.NewParser().Parse(input)

	require.Len(t, data.Items, 3)
	assert.Equal(t, "Leche entera", data.Items[0].Description)
	assert.Equal(t, "001", data.Items[0].ProductCode)
	assert.True(t, data.Items[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, data.Items[0].UnitPrice.Equal(decimal.NewFromInt(4500)))
	assert.Equal(t, "Huevos AA x30", data.Items[2].Description)
	for _, it := range data.Items {
		require.NotNil(t, it.TaxRate)
		assert.True(t, it.TaxRate.IsZero())
	}
	assert.Empty(t, data.Taxes)
}

func TestParse_ItemRegionStopsAtFirstTotal(t *testing.T) {
	input := `Descripción Cant Unit Total
Arroz 1 3,000 3,000
Subtotal 3,000
Azucar 1 2,000 2,000
Total: 5,000`

	data := text.NewParser().Parse(input)

	require.Len(t, data.Items, 1)
	assert.Equal(t, "Arroz", data.Items[0].Description)
}

func TestParse_EmbeddedCUFE(t *testing.T) {
	code := "f5693bff411776a0c3536bba5df32491df2ffc101a8ff4810cdfc04368b8a9286dc0d5c578fa2344e119d118947a0c4c"
	data := text.NewParser().Parse("Total: 1,000\nCUFE: " + strings.ToUpper(code))

	assert.Equal(t, code, data.AdditionalInfo[text.InfoCUFE])
}
