package server_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sse"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/cufe-expenses/internal/acquisition"
	"github.com/rezonia/cufe-expenses/internal/model"
	"github.com/rezonia/cufe-expenses/internal/server"
	"github.com/rezonia/cufe-expenses/internal/store"
	"github.com/rezonia/cufe-expenses/internal/store/memory"
)

const testCUFE = "f5693bff411776a0c3536bba5df32491df2ffc101a8ff4810cdfc04368b8a9286dc0d5c578fa2344e119d118947a0c4c"

func newTestServer(opts ...server.Option) *server.Server {
	config := &server.Config{
		Address:       ":8080",
		Debug:         true,
		DefaultUserID: "local",
	}
	return server.NewServer(config, opts...)
}

func do(t *testing.T, srv *server.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, newTestServer(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	response := decode[map[string]any](t, w)
	assert.Equal(t, "ok", response["status"])
	assert.NotEmpty(t, response["time"])
	assert.Equal(t, false, response["llm"])
}

func TestExtractEndpoint_MethodNotAllowed(t *testing.T) {
	w := do(t, newTestServer(), http.MethodGet, "/api/v1/invoices/extract", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	resp := decode[server.ExtractResponse](t, w)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestExtractEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"empty body", nil},
		{"empty object", map[string]string{}},
		{"invalid json", "{not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(), http.MethodPost, "/api/v1/invoices/extract", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, decode[server.ExtractResponse](t, w).Success)
		})
	}
}

func TestExtractEndpoint_Failures(t *testing.T) {
	tests := []struct {
		name     string
		body     map[string]string
		wantCode int
		wantKind model.ErrorKind
	}{
		{"not a pdf", map[string]string{"pdfBase64": base64.StdEncoding.EncodeToString([]byte("hola"))}, http.StatusUnprocessableEntity, model.KindExtractionFailed},
		{"invalid cufe", map[string]string{"cufeCode": "123"}, http.StatusBadRequest, model.KindInvalidCUFE},
		{"bad base64", map[string]string{"pdfBase64": "%%%"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, newTestServer(), http.MethodPost, "/api/v1/invoices/extract", tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			resp := decode[server.ExtractResponse](t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantKind, resp.ErrorKind)
			assert.Nil(t, resp.Data)
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	repo := memory.New()
	_, err := repo.SaveInvoice(context.Background(), store.InvoiceRecord{UserID: "ana", CUFE: testCUFE, Data: model.NewExtractedInvoiceData()})
	require.NoError(t, err)
	srv := newTestServer(server.WithRepository(repo))

	tests := []struct {
		name  string
		req   server.ValidateRequest
		valid bool
		kind  model.ErrorKind
	}{
		{"valid for other user", server.ValidateRequest{CUFE: testCUFE, UserID: "luis"}, true, ""},
		{"uppercase with spaces", server.ValidateRequest{CUFE: " " + strings.ToUpper(testCUFE) + " "}, true, ""},
		{"duplicate", server.ValidateRequest{CUFE: testCUFE, UserID: "ana"}, false, model.KindDuplicateCUFE},
		{"bad format", server.ValidateRequest{CUFE: "abc"}, false, model.KindInvalidCUFE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/cufe/validate", tt.req)
			require.Equal(t, http.StatusOK, w.Code)
			var resp struct {
				IsValid bool            `json:"isValid"`
				Code    string          `json:"code"`
				Kind    model.ErrorKind `json:"kind"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.valid, resp.IsValid)
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestQREndpoint(t *testing.T) {
	srv := newTestServer()

	w := do(t, srv, http.MethodPost, "/api/v1/qr/extract", server.QRRequest{
		Content: "https://catalogo-vpfe.dian.gov.co/document/searchqr?documentkey=" + testCUFE,
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[server.QRResponse](t, w)
	assert.True(t, resp.Found)
	assert.True(t, resp.InvoiceQR)
	require.NotNil(t, resp.Extraction)
	assert.Equal(t, testCUFE, resp.Extraction.Code)
	require.NotNil(t, resp.Validation)
	assert.True(t, resp.Validation.IsValid)

	w = do(t, srv, http.MethodPost, "/api/v1/qr/extract", server.QRRequest{Content: "https://example.com/menu"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[server.QRResponse](t, w).Found)

	w = do(t, srv, http.MethodPost, "/api/v1/qr/extract", server.QRRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func sampleInvoice() *model.ExtractedInvoiceData {
	data := model.NewExtractedInvoiceData()
	data.Supplier.Name = "ALMACENES EXITO S.A."
	data.InvoiceDetails.Date = "2024-03-05"
	data.Totals.TotalAmount = decimal.NewFromInt(13500)
	data.Items = []model.InvoiceItem{
		{Description: "Arroz Diana 1kg", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(4500), TotalPrice: decimal.NewFromInt(9000)},
		{Description: "Leche entera", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(4500), TotalPrice: decimal.NewFromInt(4500)},
	}
	return data
}

func TestCategorizeEndpoint(t *testing.T) {
	w := do(t, newTestServer(), http.MethodPost, "/api/v1/expenses/categorize", sampleInvoice())
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[server.CategorizeResponse](t, w)
	require.Len(t, resp.Expenses, 2)
	for _, e := range resp.Expenses {
		assert.Equal(t, model.CategoryGroceries, e.SuggestedCategory)
		assert.Equal(t, "2024-03-05", e.TransactionDate)
	}

	w = do(t, newTestServer(), http.MethodPost, "/api/v1/expenses/categorize", "[1,2]")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSaveAndLookup(t *testing.T) {
	repo := memory.New()
	srv := newTestServer(server.WithRepository(repo))

	w := do(t, srv, http.MethodPost, "/api/v1/invoices", server.SaveRequest{CUFE: testCUFE, Data: sampleInvoice()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	saved := decode[server.SaveResponse](t, w)
	assert.NotEmpty(t, saved.InvoiceID)
	assert.Equal(t, 2, saved.Expenses)

	exists, err := repo.Exists(context.Background(), "local", testCUFE)
	require.NoError(t, err)
	assert.True(t, exists)

	w = do(t, srv, http.MethodGet, "/api/v1/saved/"+saved.InvoiceID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec := decode[store.InvoiceRecord](t, w)
	assert.Equal(t, "ALMACENES EXITO S.A.", rec.Data.Supplier.Name)

	w = do(t, srv, http.MethodGet, "/api/v1/saved/"+saved.InvoiceID+"/expenses", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[server.CategorizeResponse](t, w).Expenses, 2)

	w = do(t, srv, http.MethodPost, "/api/v1/invoices", server.SaveRequest{CUFE: testCUFE, Data: sampleInvoice()})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodGet, "/api/v1/saved/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStorageNotConfigured(t *testing.T) {
	srv := newTestServer()
	w := do(t, srv, http.MethodPost, "/api/v1/invoices", server.SaveRequest{CUFE: testCUFE, Data: sampleInvoice()})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = do(t, srv, http.MethodPost, "/api/v1/invoices/acquire", server.AcquireRequest{CUFE: testCUFE})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func acquisitionService(t *testing.T, events func(w http.ResponseWriter)) *acquisition.Client {
	t.Helper()
	svc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		events(w)
	}))
	t.Cleanup(svc.Close)
	return acquisition.NewClient(svc.URL)
}

func emit(w http.ResponseWriter, name string, data any) {
	_ = sse.Encode(w, sse.Event{Event: name, Data: data})
	w.(http.Flusher).Flush()
}

func completeEvent() map[string]any {
	return map[string]any{"result": map[string]any{
		"invoice_details": map[string]any{"storeName": "CINE COLOMBIA", "nit": "890.900.608-9", "date": "2024-03-05", "total_amount": 36000},
		"items": []map[string]any{
			{"description": "Boleta 2D", "quantity": 2, "unit_price": 18000, "total_price": 36000},
		},
	}}
}

func acquire(t *testing.T, handler http.Handler, req server.AcquireRequest) (int, string) {
	t.Helper()
	api := httptest.NewServer(handler)
	defer api.Close()

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(api.URL+"/api/v1/invoices/acquire", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAcquireEndpoint_Relay(t *testing.T) {
	client := acquisitionService(t, func(w http.ResponseWriter) {
		emit(w, "progress", map[string]any{"step": "download", "progress": 30, "message": "Descargando PDF"})
		emit(w, "complete", completeEvent())
	})
	repo := memory.New()
	srv := newTestServer(server.WithAcquirer(client), server.WithRepository(repo))

	code, body := acquire(t, srv.Handler(), server.AcquireRequest{CUFE: testCUFE, Save: true})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "event:complete")
	assert.Contains(t, body, "CINE COLOMBIA")
	assert.NotContains(t, body, "event:error")

	exists, err := repo.Exists(context.Background(), "local", testCUFE)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAcquireEndpoint_ErrorEvent(t *testing.T) {
	client := acquisitionService(t, func(w http.ResponseWriter) {
		emit(w, "error", map[string]any{"error": "CUFE no encontrado en la DIAN"})
	})
	srv := newTestServer(server.WithAcquirer(client))

	code, body := acquire(t, srv.Handler(), server.AcquireRequest{CUFE: testCUFE})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "event:error")
	assert.Contains(t, body, "PROCESSING_FAILED")
}

func TestAcquireEndpoint_Rejections(t *testing.T) {
	client := acquisitionService(t, func(w http.ResponseWriter) {
		t.Error("acquisition service must not be called")
	})
	repo := memory.New()
	_, err := repo.SaveInvoice(context.Background(), store.InvoiceRecord{UserID: "local", CUFE: testCUFE, Data: model.NewExtractedInvoiceData()})
	require.NoError(t, err)
	srv := newTestServer(server.WithAcquirer(client), server.WithRepository(repo))

	code, body := acquire(t, srv.Handler(), server.AcquireRequest{CUFE: "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, string(model.KindInvalidCUFE))

	code, body = acquire(t, srv.Handler(), server.AcquireRequest{CUFE: testCUFE})
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, string(model.KindDuplicateCUFE))
}

func BenchmarkHealth(b *testing.B) {
	srv := newTestServer()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
	}
}
