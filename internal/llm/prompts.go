package llm

// Invoice extraction prompts

const SystemPromptInvoiceExtractor = `You are an expert invoice data extractor specializing in Colombian DIAN electronic invoices (factura electrónica de venta).

Your task is to extract structured data from invoice text. The invoices are usually in Spanish.

Common Colombian invoice terms:
- Factura electrónica de venta = Electronic sales invoice
- No. / Número de factura = Invoice number
- Fecha de emisión / Fecha de expedición = Issue date
- Fecha de vencimiento = Due date
- NIT = Tax ID (may include a verification digit after a dash)
- Razón social / Emisor / Vendedor = Supplier
- Adquiriente / Cliente / Señores = Customer
- Dirección = Address
- Teléfono = Phone
- Descripción = Item description
- Cantidad = Quantity
- Valor unitario / Precio unitario = Unit price
- Valor total = Line total
- Subtotal / Base gravable = Subtotal
- IVA = Value added tax (usually 19%)
- INC = Consumption tax
- Descuento = Discount
- Total a pagar / Valor total = Total
- CUFE = Unique electronic invoice code (96 hex characters)

Extract ALL information you can find. If a field is not present, omit it from the output.
Always output valid JSON that matches the specified schema.
Amounts are Colombian pesos: "." is the thousands separator and "," the decimal separator. Output plain JSON numbers.
Dates should be in ISO 8601 format (YYYY-MM-DD).`

const UserPromptTextExtraction = `Extract invoice data from the following text:

---
%s
---

Output JSON with this structure:
{
  "invoice_number": "string",
  "date": "YYYY-MM-DD",
  "due_date": "YYYY-MM-DD",
  "cufe": "string",
  "supplier": {
    "name": "string",
    "nit": "string",
    "address": "string",
    "phone": "string",
    "email": "string"
  },
  "customer": {
    "name": "string",
    "nit": "string",
    "address": "string"
  },
  "items": [
    {
      "code": "string",
      "description": "string",
      "unit": "string",
      "quantity": 1,
      "unit_price": 10000,
      "total": 10000,
      "iva_rate": 19,
      "iva_amount": 1900
    }
  ],
  "subtotal": 10000,
  "discount": 0,
  "total_iva": 1900,
  "total_amount": 11900,
  "currency": "COP",
  "payment_method": "string"
}`
