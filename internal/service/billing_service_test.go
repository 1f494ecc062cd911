package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type mockBillingStudents struct {
	students map[string]models.Student
}

func (m *mockBillingStudents) FindByID(_ context.Context, _ models.TenantScope, id string) (*models.Student, error) {
	if student, ok := m.students[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBillingStudents) ListActiveByClass(_ context.Context, _ models.TenantScope, classID string) ([]models.Student, error) {
	var result []models.Student
	for _, student := range m.students {
		if classID != "" && student.ClassID != classID {
			continue
		}
		if !student.HasLeft {
			result = append(result, student)
		}
	}
	return result, nil
}

type mockFeeSchedule struct {
	fees    map[string]models.ClassFee
	charges map[string][]models.ExtraCharge
	optIns  map[string]map[string]struct{}
	fines   map[string][]models.FineCharge
}

func (m *mockFeeSchedule) FindByClass(_ context.Context, _ models.TenantScope, classID string) (*models.ClassFee, error) {
	if fee, ok := m.fees[classID]; ok {
		return &fee, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeSchedule) ActiveChargesByClass(_ context.Context, _ models.TenantScope, classID string) ([]models.ExtraCharge, error) {
	return m.charges[classID], nil
}

func (m *mockFeeSchedule) OptInChargeIDs(_ context.Context, studentID string) (map[string]struct{}, error) {
	if m.optIns == nil {
		return map[string]struct{}{}, nil
	}
	return m.optIns[studentID], nil
}

func (m *mockFeeSchedule) OutstandingFines(_ context.Context, studentID string) ([]models.FineCharge, error) {
	return m.fines[studentID], nil
}

type mockBillingStore struct {
	masters      map[string]models.BillingMaster
	paid         map[string]float64
	transactions []models.BillingTransaction
}

func (m *mockBillingStore) FindMaster(_ context.Context, studentID string, period models.Period) (*models.BillingMaster, error) {
	for _, master := range m.masters {
		if master.StudentID == studentID && master.Period() == period {
			found := master
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockBillingStore) LatestMasterBefore(_ context.Context, studentID string, period models.Period) (*models.BillingMaster, error) {
	var latest *models.BillingMaster
	for _, master := range m.masters {
		if master.StudentID != studentID || !master.Period().Before(period) {
			continue
		}
		if latest == nil || latest.Period().Before(master.Period()) {
			found := master
			latest = &found
		}
	}
	return latest, nil
}

func (m *mockBillingStore) CreateMaster(_ context.Context, master *models.BillingMaster) error {
	if m.masters == nil {
		m.masters = make(map[string]models.BillingMaster)
	}
	if master.ID == "" {
		master.ID = "master-" + time.Now().Format("150405.000000000")
	}
	m.masters[master.ID] = *master
	return nil
}

func (m *mockBillingStore) PaidTotal(_ context.Context, masterID string) (float64, error) {
	return m.paid[masterID], nil
}

func (m *mockBillingStore) CreateTransaction(_ context.Context, txn *models.BillingTransaction) error {
	m.transactions = append(m.transactions, *txn)
	if m.paid == nil {
		m.paid = make(map[string]float64)
	}
	m.paid[txn.MasterID] += txn.AmountPaid
	return nil
}

func (m *mockBillingStore) ListTransactions(_ context.Context, masterID string) ([]models.BillingTransaction, error) {
	var result []models.BillingTransaction
	for _, txn := range m.transactions {
		if txn.MasterID == masterID {
			result = append(result, txn)
		}
	}
	return result, nil
}

type recordedNotification struct {
	studentID string
	amount    float64
}

type mockNotifier struct {
	payments []recordedNotification
}

func (m *mockNotifier) NotifyPayment(_ models.TenantScope, studentID string, amount float64, _ models.Period) {
	m.payments = append(m.payments, recordedNotification{studentID: studentID, amount: amount})
}

func newBillingFixture() (*BillingService, *mockBillingStore, *mockNotifier) {
	students := &mockBillingStudents{students: map[string]models.Student{
		"student-1": {
			ID:                 "student-1",
			CampusID:           "campus-1",
			FullName:           "Hamza Ali",
			ClassID:            "class-5",
			TuitionDiscountPct: 10,
		},
	}}
	fees := &mockFeeSchedule{
		fees: map[string]models.ClassFee{
			"class-5": {ClassID: "class-5", TuitionFee: 1000, AdmissionFee: 500},
		},
		charges: map[string][]models.ExtraCharge{
			"class-5": {
				{ID: "charge-lab", ClassID: "class-5", Category: models.ChargeMonthly, Amount: 100},
				{ID: "charge-bus", ClassID: "class-5", Category: models.ChargeOptional, Amount: 50},
			},
		},
		optIns: map[string]map[string]struct{}{
			"student-1": {"charge-bus": {}},
		},
		fines: map[string][]models.FineCharge{
			"student-1": {{ID: "fine-1", StudentID: "student-1", Amount: 25}},
		},
	}
	store := &mockBillingStore{}
	notifier := &mockNotifier{}
	svc := NewBillingService(students, fees, store, notifier, nil, nil)
	return svc, store, notifier
}

func TestBillingStatementProjection(t *testing.T) {
	svc, _, _ := newBillingFixture()
	scope := models.ScopeForCampus("campus-1")
	period := models.Period{Month: time.March, Year: 2026}

	statement, err := svc.Statement(context.Background(), scope, "student-1", period)
	require.NoError(t, err)

	assert.False(t, statement.FromMaster)
	assert.InDelta(t, 900, statement.TuitionFee, 0.001)
	assert.InDelta(t, 500, statement.AdmissionFee, 0.001)
	assert.InDelta(t, 150, statement.MiscCharges, 0.001)
	assert.InDelta(t, 25, statement.FineCharges, 0.001)
	assert.InDelta(t, 1575, statement.TotalPayable, 0.001)
	assert.InDelta(t, statement.TotalPayable, statement.RemainingDues, 0.001)
}

func TestBillingStatementSkipsAdmissionWhenPaid(t *testing.T) {
	svc, _, _ := newBillingFixture()
	students := svc.students.(*mockBillingStudents)
	student := students.students["student-1"]
	student.AdmissionFeePaid = true
	students.students["student-1"] = student

	statement, err := svc.Statement(context.Background(), models.ScopeForCampus("campus-1"), "student-1", models.Period{Month: time.March, Year: 2026})
	require.NoError(t, err)
	assert.Zero(t, statement.AdmissionFee)
}

func TestBillingStatementAdmissionNeverNegative(t *testing.T) {
	svc, _, _ := newBillingFixture()
	students := svc.students.(*mockBillingStudents)
	student := students.students["student-1"]
	student.AdmissionDiscountPct = 150
	students.students["student-1"] = student

	statement, err := svc.Statement(context.Background(), models.ScopeForCampus("campus-1"), "student-1", models.Period{Month: time.March, Year: 2026})
	require.NoError(t, err)
	assert.Zero(t, statement.AdmissionFee)
}

func TestBillingPreviousDuesAccrueSkippedMonths(t *testing.T) {
	svc, store, _ := newBillingFixture()
	store.masters = map[string]models.BillingMaster{
		"master-jan": {
			ID:         "master-jan",
			StudentID:  "student-1",
			Month:      1,
			Year:       2026,
			TuitionFee: 900,
			// January carried admission and fines already settled
			MiscCharges: 150,
		},
	}
	store.paid = map[string]float64{"master-jan": 400}

	// January owed 1050, 400 paid. February and March were never billed,
	// so they accrue at the current rate of 1050 each.
	statement, err := svc.Statement(context.Background(), models.ScopeForCampus("campus-1"), "student-1", models.Period{Month: time.April, Year: 2026})
	require.NoError(t, err)
	assert.InDelta(t, 650+2*1050, statement.PreviousDues, 0.001)
}

func TestBillingStatementMissingFeeSchedule(t *testing.T) {
	svc, _, _ := newBillingFixture()
	fees := svc.fees.(*mockFeeSchedule)
	delete(fees.fees, "class-5")

	_, err := svc.Statement(context.Background(), models.ScopeForCampus("campus-1"), "student-1", models.Period{Month: time.March, Year: 2026})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConfigMissing.Code, appErr.Code)
}

func TestBillingRecordPaymentCreatesMasterLazily(t *testing.T) {
	svc, store, notifier := newBillingFixture()

	statement, err := svc.RecordPayment(context.Background(), models.ScopeForCampus("campus-1"), RecordFeePaymentRequest{
		StudentID: "student-1",
		Month:     3,
		Year:      2026,
		Amount:    500,
	}, "user-1")
	require.NoError(t, err)

	assert.Len(t, store.masters, 1)
	assert.Len(t, store.transactions, 1)
	assert.True(t, statement.FromMaster)
	assert.InDelta(t, 500, statement.TotalPaid, 0.001)
	assert.InDelta(t, 1075, statement.RemainingDues, 0.001)
	require.Len(t, notifier.payments, 1)
	assert.Equal(t, "student-1", notifier.payments[0].studentID)
}

func TestBillingRecordPaymentRejectsOverpayment(t *testing.T) {
	svc, store, notifier := newBillingFixture()

	_, err := svc.RecordPayment(context.Background(), models.ScopeForCampus("campus-1"), RecordFeePaymentRequest{
		StudentID: "student-1",
		Month:     3,
		Year:      2026,
		Amount:    2000,
	}, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErr.Code)
	assert.Empty(t, store.transactions)
	assert.Empty(t, notifier.payments)
}

func TestBillingSecondPaymentChecksRemainingDues(t *testing.T) {
	svc, _, _ := newBillingFixture()
	scope := models.ScopeForCampus("campus-1")

	_, err := svc.RecordPayment(context.Background(), scope, RecordFeePaymentRequest{
		StudentID: "student-1", Month: 3, Year: 2026, Amount: 1000,
	}, "user-1")
	require.NoError(t, err)

	_, err = svc.RecordPayment(context.Background(), scope, RecordFeePaymentRequest{
		StudentID: "student-1", Month: 3, Year: 2026, Amount: 600,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErrors.FromError(err).Code)

	statement, err := svc.RecordPayment(context.Background(), scope, RecordFeePaymentRequest{
		StudentID: "student-1", Month: 3, Year: 2026, Amount: 575,
	}, "user-1")
	require.NoError(t, err)
	assert.Zero(t, statement.RemainingDues)
}

func TestBillingProjectRevenueSkipsUnconfiguredClasses(t *testing.T) {
	svc, _, _ := newBillingFixture()
	students := svc.students.(*mockBillingStudents)
	students.students["student-2"] = models.Student{
		ID:       "student-2",
		CampusID: "campus-1",
		FullName: "Sara Khan",
		ClassID:  "class-9",
	}

	projection, err := svc.ProjectRevenue(context.Background(), models.ScopeForCampus("campus-1"), "",
		models.Period{Month: time.January, Year: 2026}, models.Period{Month: time.February, Year: 2026})
	require.NoError(t, err)

	assert.Equal(t, 2, projection.Months)
	assert.Equal(t, 1, projection.Students)
	assert.Equal(t, 1, projection.Skipped)

	var skipped *models.BillingOutcome
	for i := range projection.Outcomes {
		if projection.Outcomes[i].Skipped() {
			skipped = &projection.Outcomes[i]
		}
	}
	require.NotNil(t, skipped)
	assert.Equal(t, "student-2", skipped.StudentID)
	assert.Equal(t, models.SkipNoClassFee, skipped.SkipReason)

	// Two months of tuition and misc, admission and fine counted once.
	var billed *models.BillingStatement
	for i := range projection.Outcomes {
		if !projection.Outcomes[i].Skipped() {
			billed = projection.Outcomes[i].Statement
		}
	}
	require.NotNil(t, billed)
	assert.InDelta(t, 2*(900+150)+500+25, billed.TotalPayable, 0.001)
}

func TestBillingProjectRevenueReflectsStoredPayments(t *testing.T) {
	svc, store, _ := newBillingFixture()
	students := svc.students.(*mockBillingStudents)
	students.students["student-2"] = models.Student{
		ID:       "student-2",
		CampusID: "campus-1",
		FullName: "Sara Khan",
		ClassID:  "class-5",
	}
	store.masters = map[string]models.BillingMaster{
		"master-1": {
			ID: "master-1", StudentID: "student-1", Month: 3, Year: 2026,
			TuitionFee: 900, AdmissionFee: 500, MiscCharges: 150, FineCharges: 25,
		},
		"master-2": {
			ID: "master-2", StudentID: "student-2", Month: 3, Year: 2026,
			TuitionFee: 1000, MiscCharges: 100,
		},
	}
	store.paid = map[string]float64{"master-1": 1575, "master-2": 400}

	period := models.Period{Month: time.March, Year: 2026}
	projection, err := svc.ProjectRevenue(context.Background(), models.ScopeForCampus("campus-1"), "class-5", period, period)
	require.NoError(t, err)
	require.Len(t, projection.Outcomes, 2)

	byStudent := make(map[string]*models.BillingStatement)
	for _, outcome := range projection.Outcomes {
		require.NotNil(t, outcome.Statement)
		byStudent[outcome.StudentID] = outcome.Statement
	}

	settled := byStudent["student-1"]
	assert.True(t, settled.FromMaster)
	assert.InDelta(t, 1575, settled.TotalPaid, 0.001)
	assert.Zero(t, settled.RemainingDues)

	partial := byStudent["student-2"]
	assert.True(t, partial.FromMaster)
	assert.InDelta(t, 400, partial.TotalPaid, 0.001)
	assert.InDelta(t, 700, partial.RemainingDues, 0.001)
}

func TestBillingProjectRevenueFallsBackToProjection(t *testing.T) {
	svc, _, _ := newBillingFixture()

	// No stored invoice for the period, so the single-month range projects.
	period := models.Period{Month: time.March, Year: 2026}
	projection, err := svc.ProjectRevenue(context.Background(), models.ScopeForCampus("campus-1"), "class-5", period, period)
	require.NoError(t, err)
	require.Len(t, projection.Outcomes, 1)

	statement := projection.Outcomes[0].Statement
	require.NotNil(t, statement)
	assert.False(t, statement.FromMaster)
	assert.InDelta(t, 1575, statement.TotalPayable, 0.001)
	assert.InDelta(t, statement.TotalPayable, statement.RemainingDues, 0.001)
}
