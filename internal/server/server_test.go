package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careops/billing-service/internal/correlation"
	"github.com/careops/billing-service/internal/events"
	"github.com/careops/billing-service/internal/interfaces"
	"github.com/careops/billing-service/internal/ledger"
	"github.com/careops/billing-service/internal/models"
	"github.com/careops/billing-service/internal/server"
	"github.com/careops/billing-service/internal/storage/memory"
)

type billDTO struct {
	BillID        int64           `json:"bill_id"`
	PatientID     int64           `json:"patient_id"`
	AppointmentID int64           `json:"appointment_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type listDTO struct {
	Bills      []billDTO `json:"bills"`
	TotalCount int       `json:"total_count"`
	Skip       int       `json:"skip"`
	Limit      int       `json:"limit"`
}

type errorDTO struct {
	Detail string `json:"detail"`
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	l := ledger.NewLedger(memory.NewStore(), events.NopPublisher{}, ledger.DefaultTaxPolicy(), zerolog.Nop())
	return server.New(l, zerolog.Nop()).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echoContentType, "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func decodeBill(t *testing.T, rec *httptest.ResponseRecorder) billDTO {
	t.Helper()
	var bill billDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bill))
	return bill
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDTO {
	t.Helper()
	var e errorDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "billing-service", body["service"])
}

func TestBillLifecycleScenario(t *testing.T) {
	h := newTestServer(t)

	// Create: base 500.00 becomes a 525.00 OPEN bill.
	rec := doJSON(t, h, http.MethodPost, "/v1/bills",
		`{"patient_id":1,"appointment_id":100,"amount":500.00}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	bill := decodeBill(t, rec)
	assert.Equal(t, "OPEN", bill.Status)
	assert.True(t, decimal.RequireFromString("525.00").Equal(bill.Amount), "got %s", bill.Amount)

	// Identical create is rejected, not silently satisfied.
	rec = doJSON(t, h, http.MethodPost, "/v1/bills",
		`{"patient_id":1,"appointment_id":100,"amount":500.00}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Detail, "already exists")

	// Void succeeds.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/bills/%d/void", bill.BillID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "VOID", decodeBill(t, rec).Status)

	// Re-void is accepted and leaves the bill VOID.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/bills/%d/void", bill.BillID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "VOID", decodeBill(t, rec).Status)

	// A void bill cannot be marked paid.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/bills/%d/pay", bill.BillID), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Detail, "void")
}

func TestVoidPaidBillRejected(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/bills",
		`{"patient_id":2,"appointment_id":200,"amount":80.00}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	bill := decodeBill(t, rec)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/bills/%d/pay", bill.BillID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decodeBill(t, rec).Status)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/v1/bills/%d/void", bill.BillID), "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Detail, "paid")

	// Status unchanged after the rejected void.
	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/v1/bills/%d", bill.BillID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decodeBill(t, rec).Status)
}

func TestGetBill(t *testing.T) {
	h := newTestServer(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/bills",
		`{"patient_id":1,"appointment_id":300,"amount":10.00}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBill(t, rec)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/v1/bills/%d", created.BillID), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.BillID, decodeBill(t, rec).BillID)

	rec = doJSON(t, h, http.MethodGet, "/v1/bills/99999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/v1/bills/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBillValidation(t *testing.T) {
	h := newTestServer(t)

	testCases := []struct {
		name string
		body string
	}{
		{name: "missing_patient_id", body: `{"appointment_id":100,"amount":10.00}`},
		{name: "missing_appointment_id", body: `{"patient_id":1,"amount":10.00}`},
		{name: "missing_amount", body: `{"patient_id":1,"appointment_id":100}`},
		{name: "negative_amount", body: `{"patient_id":1,"appointment_id":100,"amount":-5.00}`},
		{name: "malformed_json", body: `{"patient_id":`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/v1/bills", tc.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	// None of the rejected requests left a bill behind.
	rec := doJSON(t, h, http.MethodGet, "/v1/bills", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.TotalCount)
}

func TestListBills(t *testing.T) {
	h := newTestServer(t)

	for i := 1; i <= 3; i++ {
		body := fmt.Sprintf(`{"patient_id":%d,"appointment_id":%d,"amount":100.00}`, i%2+1, 400+i)
		rec := doJSON(t, h, http.MethodPost, "/v1/bills", body, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/bills", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list listDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.TotalCount)
	require.Len(t, list.Bills, 3)
	assert.Equal(t, int64(403), list.Bills[0].AppointmentID) // newest first
	assert.Equal(t, 100, list.Limit)
	assert.Equal(t, 0, list.Skip)

	rec = doJSON(t, h, http.MethodGet, "/v1/bills?patient_id=2&status=OPEN", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.TotalCount)
	for _, b := range list.Bills {
		assert.Equal(t, int64(2), b.PatientID)
		assert.Equal(t, "OPEN", b.Status)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/bills?skip=1&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 3, list.TotalCount)
	require.Len(t, list.Bills, 1)
	assert.Equal(t, int64(402), list.Bills[0].AppointmentID)

	// Out-of-range paging params are rejected.
	for _, target := range []string{"/v1/bills?skip=-1", "/v1/bills?limit=0", "/v1/bills?limit=101", "/v1/bills?limit=abc"} {
		rec = doJSON(t, h, http.MethodGet, target, "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

// failingStore refuses every operation, standing in for an unreachable
// database.
type failingStore struct{}

var _ interfaces.BillStore = failingStore{}

func (failingStore) CreateBill(context.Context, models.Bill) (models.Bill, error) {
	return models.Bill{}, fmt.Errorf("%w: connection refused", models.ErrStorage)
}

func (failingStore) GetBill(context.Context, int64) (models.Bill, error) {
	return models.Bill{}, fmt.Errorf("%w: connection refused", models.ErrStorage)
}

func (failingStore) UpdateStatus(context.Context, int64, func(models.Bill) (models.BillStatus, error)) (models.Bill, error) {
	return models.Bill{}, fmt.Errorf("%w: connection refused", models.ErrStorage)
}

func (failingStore) ListBills(context.Context, models.BillFilter) ([]models.Bill, int, error) {
	return nil, 0, fmt.Errorf("%w: connection refused", models.ErrStorage)
}

func TestStorageFailureReturns500(t *testing.T) {
	l := ledger.NewLedger(failingStore{}, events.NopPublisher{}, ledger.DefaultTaxPolicy(), zerolog.Nop())
	h := server.New(l, zerolog.Nop()).Handler()

	requests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "create", method: http.MethodPost, target: "/v1/bills", body: `{"patient_id":1,"appointment_id":700,"amount":10.00}`},
		{name: "get", method: http.MethodGet, target: "/v1/bills/1"},
		{name: "void", method: http.MethodPost, target: "/v1/bills/1/void"},
		{name: "pay", method: http.MethodPost, target: "/v1/bills/1/pay"},
		{name: "list", method: http.MethodGet, target: "/v1/bills"},
	}

	for _, tc := range requests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, tc.method, tc.target, tc.body, nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			// Storage details stay out of the response body.
			assert.Equal(t, "internal server error", decodeError(t, rec).Detail)
		})
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	h := newTestServer(t)

	// Supplied ids are echoed back.
	rec := doJSON(t, h, http.MethodPost, "/v1/bills",
		`{"patient_id":1,"appointment_id":500,"amount":10.00}`,
		map[string]string{correlation.Header: "corr-abc"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "corr-abc", rec.Header().Get(correlation.Header))

	// Absent ids are generated.
	rec = doJSON(t, h, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get(correlation.Header))
}
