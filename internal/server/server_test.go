package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/vetbilling/internal/audit/domain"
	"github.com/smallbiznis/vetbilling/internal/auth"
	"github.com/smallbiznis/vetbilling/internal/authorization"
	"github.com/smallbiznis/vetbilling/internal/config"
	"github.com/smallbiznis/vetbilling/internal/invoice/calculator"
	invoicedomain "github.com/smallbiznis/vetbilling/internal/invoice/domain"
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	"github.com/smallbiznis/vetbilling/internal/observability"
	obsmetrics "github.com/smallbiznis/vetbilling/internal/observability/metrics"
	"github.com/smallbiznis/vetbilling/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeInvoiceService struct {
	invoicedomain.Service

	getErr    error
	createErr error
	listReq   invoicedomain.ListInvoiceRequest
	pdf       []byte
}

func (f *fakeInvoiceService) List(_ context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	f.listReq = req
	return invoicedomain.ListInvoiceResponse{Invoices: []invoicedomain.InvoiceResponse{}, Limit: 20}, nil
}

func (f *fakeInvoiceService) GetByID(_ context.Context, id string) (invoicedomain.InvoiceResponse, error) {
	if f.getErr != nil {
		return invoicedomain.InvoiceResponse{}, f.getErr
	}
	return invoicedomain.InvoiceResponse{ID: id}, nil
}

func (f *fakeInvoiceService) Create(_ context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.InvoiceResponse, error) {
	if f.createErr != nil {
		return invoicedomain.InvoiceResponse{}, f.createErr
	}
	return invoicedomain.InvoiceResponse{ID: "1", PatientID: req.PatientID}, nil
}

func (f *fakeInvoiceService) Delete(context.Context, string) error { return nil }

func (f *fakeInvoiceService) CalculateTotals(_ context.Context, items []invoicedomain.LineItem) (invoicedomain.Totals, error) {
	return calculator.CalculateTotals(items)
}

func (f *fakeInvoiceService) RenderDocument(_ context.Context, doc invoicedomain.Document) ([]byte, error) {
	if _, err := document.Validate(doc); err != nil {
		return nil, err
	}
	return f.pdf, nil
}

type recordingAudit struct {
	entries []auditdomain.Entry
	err     error
}

func (r *recordingAudit) Record(_ context.Context, entry auditdomain.Entry) error {
	r.entries = append(r.entries, entry)
	return r.err
}

func (r *recordingAudit) List(context.Context, auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{AuditLogs: []auditdomain.AuditLog{}, Limit: 50}, nil
}

type testServer struct {
	engine   *gin.Engine
	verifier *auth.Verifier
	invoices *fakeInvoiceService
	audit    *recordingAudit
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(config.Config{AuthJWTSecret: "test-secret"})
	require.NoError(t, err)

	cfg := config.Config{CORSOrigins: []string{"*"}}
	engine := NewEngine(EngineParams{
		Config:      cfg,
		ObsConfig:   observability.Config{},
		Log:         zap.NewNop(),
		HTTPMetrics: obsmetrics.NewHTTPMetrics(obsmetrics.Config{}),
	})

	invoices := &fakeInvoiceService{pdf: []byte("%PDF-1.3 test")}
	audit := &recordingAudit{}
	NewServer(ServerParams{
		Gin:        engine,
		Cfg:        cfg,
		Log:        zap.NewNop(),
		Verifier:   verifier,
		AuthzSvc:   authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc:   audit,
		InvoiceSvc: invoices,
		Limiter:    limiter,
	})

	return testServer{engine: engine, verifier: verifier, invoices: invoices, audit: audit}
}

func (ts testServer) token(t *testing.T, role string) string {
	t.Helper()
	token, err := ts.verifier.Sign("user-"+role, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (ts testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func validDocument() map[string]any {
	addr := map[string]any{"line1": "1 Main St", "city": "Salem", "state": "OR", "postal_code": "97301", "country": "USA"}
	return map[string]any{
		"clinic":         map[string]any{"name": "Riverside Animal Clinic", "address": addr},
		"client":         map[string]any{"name": "Dana Brooks", "address": addr},
		"invoice_number": "INV-7",
		"date":           "2024-03-05",
		"items": []map[string]any{
			{"description": "Exam", "quantity": 1, "unit_price": 50, "currency": "USD"},
		},
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/invoices", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = ts.do(t, http.MethodGet, "/api/invoices", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoleGuard(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/invoices", ts.token(t, authorization.RoleViewer), map[string]any{"patient_id": "p"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Type)

	rec = ts.do(t, http.MethodDelete, "/api/invoices/1", ts.token(t, authorization.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/invoices/1", ts.token(t, authorization.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/audit-logs", ts.token(t, authorization.RoleStaff), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/audit-logs", ts.token(t, authorization.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalculateInvoiceTotals(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.token(t, authorization.RoleViewer)

	rec := ts.do(t, http.MethodPost, "/api/invoices/totals", token, map[string]any{
		"items": []map[string]any{
			{"description": "Exam", "quantity": 2, "unit_price": 10.005, "tax_rate": 0.1},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data invoicedomain.Totals `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 20.02, resp.Data.Subtotal, 1e-9)
	assert.InDelta(t, 2.0, resp.Data.Tax, 1e-9)
	assert.InDelta(t, 22.02, resp.Data.Total, 1e-9)

	rec = ts.do(t, http.MethodPost, "/api/invoices/totals", token, map[string]any{
		"items": []map[string]any{{"description": "Exam", "quantity": -1, "unit_price": 5}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "items[0].quantity", payload.Errors[0].Field)

	rec = ts.do(t, http.MethodPost, "/api/invoices/totals", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRenderInvoicePDF(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.token(t, authorization.RoleStaff)

	rec := ts.do(t, http.MethodPost, "/api/invoices/pdf", token, validDocument())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoice-INV-7.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3 test", rec.Body.String())

	doc := validDocument()
	doc["items"] = []map[string]any{
		{"description": "Exam", "quantity": 1, "unit_price": 50, "currency": "USD"},
		{"description": "Boarding", "quantity": 1, "unit_price": 30, "currency": "EUR"},
	}
	rec = ts.do(t, http.MethodPost, "/api/invoices/pdf", token, doc)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "mixed_currency", payload.Errors[0].Code)

	doc = validDocument()
	delete(doc, "client")
	rec = ts.do(t, http.MethodPost, "/api/invoices/pdf", token, doc)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_document", decodeError(t, rec).Errors[0].Code)
}

func TestInvoiceErrorsMapping(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.token(t, authorization.RoleAdmin)

	ts.invoices.getErr = invoicedomain.ErrNotFound
	rec := ts.do(t, http.MethodGet, "/api/invoices/42", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.invoices.createErr = invoicedomain.ErrInvalidPatientID
	rec = ts.do(t, http.MethodPost, "/api/invoices", token, map[string]any{"patient_id": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "patient_id", payload.Errors[0].Field)

	rec = ts.do(t, http.MethodGet, "/api/invoices?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invoices?status=paid&start_date=2024-03-01&end_date=2024-03-31&limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", ts.invoices.listReq.Status)
	assert.Equal(t, 5, ts.invoices.listReq.Limit)
	require.NotNil(t, ts.invoices.listReq.EndDate)
	assert.Equal(t, 23, ts.invoices.listReq.EndDate.Hour())
}

func TestAuditWrites(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.token(t, authorization.RoleStaff)

	rec := ts.do(t, http.MethodPost, "/api/invoices", token, map[string]any{"patient_id": "p-1", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invoices", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/invoices", "", "{not json")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Len(t, ts.audit.entries, 2)

	first := ts.audit.entries[0]
	assert.Equal(t, http.MethodPost, first.Method)
	assert.Equal(t, "/api/invoices", first.Route)
	require.NotNil(t, first.ActorID)
	assert.Equal(t, "user-staff", *first.ActorID)
	body, ok := first.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p-1", body["patient_id"])

	second := ts.audit.entries[1]
	assert.Nil(t, second.ActorID)
	assert.IsType(t, json.RawMessage{}, second.Body)
	assert.Equal(t, "unauthorized", second.Metadata["error_type"])
}

func TestAuditFailureDoesNotFailRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.audit.err = assert.AnError

	rec := ts.do(t, http.MethodPost, "/api/invoices", ts.token(t, authorization.RoleStaff), map[string]any{"patient_id": "p-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Policy{Requests: 2, Window: time.Minute}, nil)
	ts := newTestServer(t, limiter)
	token := ts.token(t, authorization.RoleViewer)

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodGet, "/api/invoices", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/invoices", token, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	rec = ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDecodeBody(t *testing.T) {
	assert.Nil(t, decodeBody(nil))
	assert.Nil(t, decodeBody([]byte("  ")))
	assert.Equal(t, map[string]any{"a": 1.0}, decodeBody([]byte(`{"a":1}`)))
	assert.Equal(t, json.RawMessage(`{bad`), decodeBody([]byte(`{bad`)))
}
