package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/middleware"
	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/internal/service"
)

type fakeStudentReader struct {
	student *models.Student
}

func (f *fakeStudentReader) FindByID(_ context.Context, _ models.TenantScope, id string) (*models.Student, error) {
	if f.student != nil && f.student.ID == id {
		return f.student, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentReader) ListActiveByClass(_ context.Context, _ models.TenantScope, _ string) ([]models.Student, error) {
	if f.student == nil {
		return nil, nil
	}
	return []models.Student{*f.student}, nil
}

type fakeFeeReader struct {
	fee *models.ClassFee
}

func (f *fakeFeeReader) FindByClass(_ context.Context, _ models.TenantScope, classID string) (*models.ClassFee, error) {
	if f.fee != nil && f.fee.ClassID == classID {
		return f.fee, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeFeeReader) ActiveChargesByClass(_ context.Context, _ models.TenantScope, _ string) ([]models.ExtraCharge, error) {
	return nil, nil
}

func (f *fakeFeeReader) OptInChargeIDs(_ context.Context, _ string) (map[string]struct{}, error) {
	return nil, nil
}

func (f *fakeFeeReader) OutstandingFines(_ context.Context, _ string) ([]models.FineCharge, error) {
	return nil, nil
}

type fakeBillingStore struct {
	master       *models.BillingMaster
	paid         float64
	transactions []models.BillingTransaction
}

func (f *fakeBillingStore) FindMaster(_ context.Context, studentID string, period models.Period) (*models.BillingMaster, error) {
	if f.master != nil && f.master.StudentID == studentID && f.master.Period() == period {
		return f.master, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBillingStore) LatestMasterBefore(_ context.Context, _ string, _ models.Period) (*models.BillingMaster, error) {
	return nil, nil
}

func (f *fakeBillingStore) CreateMaster(_ context.Context, master *models.BillingMaster) error {
	master.ID = "master-1"
	f.master = master
	return nil
}

func (f *fakeBillingStore) PaidTotal(_ context.Context, _ string) (float64, error) {
	return f.paid, nil
}

func (f *fakeBillingStore) CreateTransaction(_ context.Context, txn *models.BillingTransaction) error {
	f.transactions = append(f.transactions, *txn)
	f.paid += txn.AmountPaid
	return nil
}

func (f *fakeBillingStore) ListTransactions(_ context.Context, _ string) ([]models.BillingTransaction, error) {
	return f.transactions, nil
}

func newBillingHandlerFixture() (*BillingHandler, *fakeBillingStore) {
	students := &fakeStudentReader{student: &models.Student{
		ID:       "student-1",
		CampusID: "campus-1",
		FullName: "Hamza Ali",
		ClassID:  "class-5",
	}}
	fees := &fakeFeeReader{fee: &models.ClassFee{ClassID: "class-5", TuitionFee: 1000, AdmissionFee: 500}}
	store := &fakeBillingStore{}
	svc := service.NewBillingService(students, fees, store, nil, nil, nil)
	return NewBillingHandler(svc), store
}

func billingTestContext(t *testing.T, method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{
		UserID:   "user-1",
		CampusID: "campus-1",
		Role:     models.RoleAccountant,
	})
	c.Set(middleware.ContextScopeKey, models.ScopeForCampus("campus-1"))
	return c, rec
}

type billingEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestBillingHandlerStatement(t *testing.T) {
	handler, _ := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodGet, "/billing/students/student-1/statement?month=6&year=2026", "")
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	handler.Statement(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope billingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "student-1", envelope.Data["student_id"])
	assert.InDelta(t, 1500, envelope.Data["total_payable"].(float64), 0.001)
	assert.Equal(t, false, envelope.Data["from_master"])
}

func TestBillingHandlerStatementRejectsBadMonth(t *testing.T) {
	handler, _ := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodGet, "/billing/students/student-1/statement?month=13&year=2026", "")
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	handler.Statement(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingHandlerRecordPayment(t *testing.T) {
	handler, store := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodPost, "/billing/payments",
		`{"student_id":"student-1","month":6,"year":2026,"amount":700}`)

	handler.RecordPayment(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.transactions, 1)
	assert.InDelta(t, 700, store.transactions[0].AmountPaid, 0.001)
	require.NotNil(t, store.transactions[0].ReceivedBy)
	assert.Equal(t, "user-1", *store.transactions[0].ReceivedBy)

	var envelope billingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Data["from_master"])
	assert.InDelta(t, 800, envelope.Data["remaining_dues"].(float64), 0.001)
}

func TestBillingHandlerRecordPaymentOverpayment(t *testing.T) {
	handler, store := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodPost, "/billing/payments",
		`{"student_id":"student-1","month":6,"year":2026,"amount":9000}`)

	handler.RecordPayment(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.transactions)

	var envelope billingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "OVERPAYMENT", envelope.Error.Code)
}

func TestBillingHandlerTransactionsEmptyWithoutInvoice(t *testing.T) {
	handler, _ := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodGet, "/billing/students/student-1/transactions?month=6&year=2026", "")
	c.Params = gin.Params{{Key: "id", Value: "student-1"}}

	handler.Transactions(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBillingHandlerProjectRevenueRequiresClass(t *testing.T) {
	handler, _ := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodGet, "/billing/revenue-projection?from_month=1&from_year=2026&to_month=3&to_year=2026", "")

	handler.ProjectRevenue(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingHandlerProjectRevenue(t *testing.T) {
	handler, _ := newBillingHandlerFixture()
	c, rec := billingTestContext(t, http.MethodGet, "/billing/revenue-projection?class_id=class-5&from_month=1&from_year=2026&to_month=3&to_year=2026", "")

	handler.ProjectRevenue(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope billingEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(3), envelope.Data["months"])
	assert.Equal(t, float64(1), envelope.Data["students"])
}
