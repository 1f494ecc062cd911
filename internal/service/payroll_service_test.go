package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type mockPayrollEmployees struct {
	employees  map[string]models.Employee
	salaries   map[string]models.SalaryDefinition
	attendance map[string]map[string]models.EmployeeAttendance
}

func (m *mockPayrollEmployees) FindByID(_ context.Context, _ models.TenantScope, id string) (*models.Employee, error) {
	if employee, ok := m.employees[id]; ok {
		return &employee, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPayrollEmployees) ListActive(_ context.Context, _ models.TenantScope) ([]models.Employee, error) {
	var result []models.Employee
	for _, employee := range m.employees {
		if employee.Active {
			result = append(result, employee)
		}
	}
	return result, nil
}

func (m *mockPayrollEmployees) ActiveSalaryDefinition(_ context.Context, employeeID string) (*models.SalaryDefinition, error) {
	if def, ok := m.salaries[employeeID]; ok {
		return &def, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPayrollEmployees) AttendanceForMonth(_ context.Context, employeeID string, _ models.Period) (map[string]models.EmployeeAttendance, error) {
	if records, ok := m.attendance[employeeID]; ok {
		return records, nil
	}
	return map[string]models.EmployeeAttendance{}, nil
}

type mockPayrollStore struct {
	masters      map[string]models.PayrollMaster
	transactions []models.PayrollTransaction
	nextID       int
}

func (m *mockPayrollStore) FindMaster(_ context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error) {
	for _, master := range m.masters {
		if master.EmployeeID == employeeID && master.Period() == period {
			found := master
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPayrollStore) LatestUnsettledBefore(_ context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error) {
	var latest *models.PayrollMaster
	for _, master := range m.masters {
		if master.EmployeeID != employeeID || !master.Period().Before(period) || master.Balance() == 0 {
			continue
		}
		if latest == nil || latest.Period().Before(master.Period()) {
			found := master
			latest = &found
		}
	}
	return latest, nil
}

func (m *mockPayrollStore) CreateMaster(_ context.Context, master *models.PayrollMaster) error {
	if m.masters == nil {
		m.masters = make(map[string]models.PayrollMaster)
	}
	m.nextID++
	master.ID = fmt.Sprintf("payroll-master-%d", m.nextID)
	m.masters[master.ID] = *master
	return nil
}

func (m *mockPayrollStore) UpdateSettlement(_ context.Context, master *models.PayrollMaster) error {
	m.masters[master.ID] = *master
	return nil
}

func (m *mockPayrollStore) CreateTransaction(_ context.Context, txn *models.PayrollTransaction) error {
	m.transactions = append(m.transactions, *txn)
	return nil
}

func (m *mockPayrollStore) ListTransactions(_ context.Context, masterID string) ([]models.PayrollTransaction, error) {
	var result []models.PayrollTransaction
	for _, txn := range m.transactions {
		if txn.MasterID == masterID {
			result = append(result, txn)
		}
	}
	return result, nil
}

type mockHolidayReader struct {
	events []models.CalendarEvent
}

func (m *mockHolidayReader) HolidaysForMonth(_ context.Context, _ models.TenantScope, _ models.Period) ([]models.CalendarEvent, error) {
	return m.events, nil
}

type mockSalaryNotifier struct {
	payments []recordedNotification
}

func (m *mockSalaryNotifier) NotifySalaryPayment(_ models.TenantScope, employeeID string, amount float64, _ models.Period) {
	m.payments = append(m.payments, recordedNotification{studentID: employeeID, amount: amount})
}

// newPayrollFixture sets up June 2026 (30 days, daily rate 1000) with the
// first two days a holiday, day 5 absent, day 12 a short leave, day 20
// unrecorded, everything else present.
func newPayrollFixture() (*PayrollService, *mockPayrollStore, *mockSalaryNotifier) {
	june := models.Period{Month: time.June, Year: 2026}
	records := make(map[string]models.EmployeeAttendance)
	for day := 3; day <= 30; day++ {
		if day == 20 {
			continue
		}
		status := models.AttendancePresent
		switch day {
		case 5:
			status = models.AttendanceAbsent
		case 12:
			status = models.AttendanceShortLeave
		}
		date := time.Date(june.Year, june.Month, day, 0, 0, 0, 0, time.UTC)
		records[date.Format("2006-01-02")] = models.EmployeeAttendance{
			EmployeeID: "emp-1",
			Date:       date,
			Status:     status,
		}
	}

	employees := &mockPayrollEmployees{
		employees: map[string]models.Employee{
			"emp-1": {ID: "emp-1", CampusID: "campus-1", FullName: "Bilal Ahmed", Designation: "Teacher", Active: true},
		},
		salaries: map[string]models.SalaryDefinition{
			"emp-1": {ID: "def-1", EmployeeID: "emp-1", BasicSalary: 30000, Allowances: 3000, Deductions: 1000, Active: true},
		},
		attendance: map[string]map[string]models.EmployeeAttendance{"emp-1": records},
	}
	calendar := &mockHolidayReader{events: []models.CalendarEvent{{
		ID:        "event-eid",
		CampusID:  "campus-1",
		Title:     "Eid holidays",
		StartDate: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC),
		IsHoliday: true,
	}}}
	store := &mockPayrollStore{}
	notifier := &mockSalaryNotifier{}
	svc := NewPayrollService(employees, store, calendar, notifier, 0.5, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, time.July, 15, 10, 0, 0, 0, time.UTC) }
	return svc, store, notifier
}

func TestPayrollComputeAttendanceWalk(t *testing.T) {
	svc, _, _ := newPayrollFixture()
	scope := models.ScopeForCampus("campus-1")
	june := models.Period{Month: time.June, Year: 2026}

	computation, err := svc.Compute(context.Background(), scope, "emp-1", june)
	require.NoError(t, err)

	// One absence, one unrecorded day and one short leave at half rate.
	assert.InDelta(t, 2500, computation.AttendanceDeduction, 0.001)
	assert.InDelta(t, 30000+3000-1000-2500, computation.TotalPayable, 0.001)
	assert.Equal(t, models.PayrollUnsettled, computation.State)
	assert.False(t, computation.FromMaster)
	require.Len(t, computation.Days, 30)

	first := computation.Days[0]
	assert.True(t, first.IsHoliday)
	assert.Zero(t, first.Deduction)

	unrecorded := computation.Days[19]
	assert.Equal(t, models.AttendanceAbsent, unrecorded.Status)
	assert.InDelta(t, 1000, unrecorded.Deduction, 0.001)

	shortLeave := computation.Days[11]
	assert.Equal(t, models.AttendanceShortLeave, shortLeave.Status)
	assert.InDelta(t, 500, shortLeave.Deduction, 0.001)
}

func TestPayrollComputeMissingSalaryDefinition(t *testing.T) {
	svc, _, _ := newPayrollFixture()
	employees := svc.employees.(*mockPayrollEmployees)
	delete(employees.salaries, "emp-1")

	_, err := svc.Compute(context.Background(), models.ScopeForCampus("campus-1"), "emp-1", models.Period{Month: time.June, Year: 2026})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfigMissing.Code, appErrors.FromError(err).Code)
}

func TestPayrollSettleRejectsOpenPeriod(t *testing.T) {
	svc, store, _ := newPayrollFixture()

	_, err := svc.Settle(context.Background(), models.ScopeForCampus("campus-1"), SettlePayrollRequest{
		EmployeeID: "emp-1",
		Month:      7,
		Year:       2026,
		Payment:    1000,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPeriodNotClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.masters)
}

func TestPayrollSettleFullPayment(t *testing.T) {
	svc, store, notifier := newPayrollFixture()
	scope := models.ScopeForCampus("campus-1")

	computation, err := svc.Settle(context.Background(), scope, SettlePayrollRequest{
		EmployeeID: "emp-1",
		Month:      6,
		Year:       2026,
		Payment:    29500,
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.PayrollSettled, computation.State)
	assert.Zero(t, computation.Balance)
	assert.True(t, computation.FromMaster)
	assert.Len(t, store.masters, 1)
	assert.Len(t, store.transactions, 1)
	require.Len(t, notifier.payments, 1)
	assert.InDelta(t, 29500, notifier.payments[0].amount, 0.001)
}

func TestPayrollSettleIncrementalPayments(t *testing.T) {
	svc, store, _ := newPayrollFixture()
	scope := models.ScopeForCampus("campus-1")
	req := SettlePayrollRequest{EmployeeID: "emp-1", Month: 6, Year: 2026, Payment: 20000}

	computation, err := svc.Settle(context.Background(), scope, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PayrollPartial, computation.State)
	assert.InDelta(t, 9500, computation.Balance, 0.001)

	req.Payment = 10000
	_, err = svc.Settle(context.Background(), scope, req, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrOverpayment.Code, appErrors.FromError(err).Code)

	req.Payment = 9500
	computation, err = svc.Settle(context.Background(), scope, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PayrollSettled, computation.State)
	assert.Len(t, store.transactions, 2)
}

func TestPayrollSettleAlreadySettled(t *testing.T) {
	svc, _, _ := newPayrollFixture()
	scope := models.ScopeForCampus("campus-1")
	req := SettlePayrollRequest{EmployeeID: "emp-1", Month: 6, Year: 2026, Payment: 29500}

	_, err := svc.Settle(context.Background(), scope, req, "user-1")
	require.NoError(t, err)

	// A zero-payment rerun is an idempotent read of the settled period.
	req.Payment = 0
	computation, err := svc.Settle(context.Background(), scope, req, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.PayrollSettled, computation.State)

	req.Payment = 100
	_, err = svc.Settle(context.Background(), scope, req, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadySettled.Code, appErrors.FromError(err).Code)
}

func TestPayrollSettleOverridesOnlyWhenNonZero(t *testing.T) {
	svc, store, _ := newPayrollFixture()
	scope := models.ScopeForCampus("campus-1")

	computation, err := svc.Settle(context.Background(), scope, SettlePayrollRequest{
		EmployeeID:          "emp-1",
		Month:               6,
		Year:                2026,
		Bonus:               2000,
		AttendanceDeduction: 500,
	}, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 2000, computation.Bonus, 0.001)
	assert.InDelta(t, 500, computation.AttendanceDeduction, 0.001)
	assert.InDelta(t, 30000+3000-1000-500+2000, computation.TotalPayable, 0.001)
	assert.Empty(t, store.transactions)

	// Zero overrides leave the stored values untouched.
	computation, err = svc.Settle(context.Background(), scope, SettlePayrollRequest{
		EmployeeID: "emp-1",
		Month:      6,
		Year:       2026,
		Payment:    1000,
	}, "user-1")
	require.NoError(t, err)
	assert.InDelta(t, 2000, computation.Bonus, 0.001)
	assert.InDelta(t, 500, computation.AttendanceDeduction, 0.001)
}

func TestPayrollPreviousBalanceCarriesForward(t *testing.T) {
	svc, store, _ := newPayrollFixture()
	store.masters = map[string]models.PayrollMaster{
		"payroll-master-may": {
			ID:          "payroll-master-may",
			EmployeeID:  "emp-1",
			Month:       5,
			Year:        2026,
			BasicSalary: 30000,
			Allowances:  3000,
			Deductions:  1000,
			AmountPaid:  25000,
		},
	}

	computation, err := svc.Compute(context.Background(), models.ScopeForCampus("campus-1"), "emp-1", models.Period{Month: time.June, Year: 2026})
	require.NoError(t, err)
	assert.InDelta(t, 7000, computation.PreviousBalance, 0.001)
	assert.InDelta(t, 30000+3000-1000-2500+7000, computation.TotalPayable, 0.001)
}

func TestPayrollSheetSkipsEmployeesWithoutSalary(t *testing.T) {
	svc, _, _ := newPayrollFixture()
	employees := svc.employees.(*mockPayrollEmployees)
	employees.employees["emp-2"] = models.Employee{ID: "emp-2", CampusID: "campus-1", FullName: "Nadia Iqbal", Active: true}

	outcomes, err := svc.Sheet(context.Background(), models.ScopeForCampus("campus-1"), models.Period{Month: time.June, Year: 2026})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	byID := make(map[string]models.PayrollOutcome, len(outcomes))
	for _, outcome := range outcomes {
		byID[outcome.EmployeeID] = outcome
	}
	assert.False(t, byID["emp-1"].Skipped())
	assert.True(t, byID["emp-2"].Skipped())
	assert.Equal(t, models.SkipNoSalaryDefinition, byID["emp-2"].SkipReason)
}
