package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type payrollEmployeeReader interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Employee, error)
	ListActive(ctx context.Context, scope models.TenantScope) ([]models.Employee, error)
	ActiveSalaryDefinition(ctx context.Context, employeeID string) (*models.SalaryDefinition, error)
	AttendanceForMonth(ctx context.Context, employeeID string, period models.Period) (map[string]models.EmployeeAttendance, error)
}

type payrollStore interface {
	FindMaster(ctx context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error)
	LatestUnsettledBefore(ctx context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error)
	CreateMaster(ctx context.Context, master *models.PayrollMaster) error
	UpdateSettlement(ctx context.Context, master *models.PayrollMaster) error
	CreateTransaction(ctx context.Context, txn *models.PayrollTransaction) error
	ListTransactions(ctx context.Context, masterID string) ([]models.PayrollTransaction, error)
}

type holidayReader interface {
	HolidaysForMonth(ctx context.Context, scope models.TenantScope, period models.Period) ([]models.CalendarEvent, error)
}

type salaryNotifier interface {
	NotifySalaryPayment(scope models.TenantScope, employeeID string, amount float64, period models.Period)
}

// SettlePayrollRequest is the payload for running a payroll settlement.
type SettlePayrollRequest struct {
	EmployeeID string  `json:"employee_id" validate:"required"`
	Month      int     `json:"month" validate:"required,min=1,max=12"`
	Year       int     `json:"year" validate:"required,min=2000"`
	Payment    float64 `json:"payment" validate:"min=0"`
	// Bonus and AttendanceDeduction override the computed values only when
	// non-zero; zero means keep what is stored or computed.
	Bonus               float64 `json:"bonus" validate:"min=0"`
	AttendanceDeduction float64 `json:"attendance_deduction" validate:"min=0"`
	Remarks             string  `json:"remarks"`
}

// PayrollService computes monthly salary sheets and runs settlements against
// the running per-period ledger.
type PayrollService struct {
	employees        payrollEmployeeReader
	payroll          payrollStore
	calendar         holidayReader
	notifier         salaryNotifier
	validator        *validator.Validate
	logger           *zap.Logger
	shortLeaveFactor float64
	now              func() time.Time
}

// NewPayrollService constructs a PayrollService. shortLeaveFactor is the
// fraction of a daily rate deducted for a short leave day.
func NewPayrollService(employees payrollEmployeeReader, payroll payrollStore, calendar holidayReader, notifier salaryNotifier, shortLeaveFactor float64, validate *validator.Validate, logger *zap.Logger) *PayrollService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if shortLeaveFactor <= 0 {
		shortLeaveFactor = 0.5
	}
	return &PayrollService{
		employees:        employees,
		payroll:          payroll,
		calendar:         calendar,
		notifier:         notifier,
		validator:        validate,
		logger:           logger,
		shortLeaveFactor: shortLeaveFactor,
		now:              time.Now,
	}
}

// attendanceWalk visits every calendar day of the period and prices it.
// Holidays cost nothing regardless of any recorded status. A day with no
// record counts as a full absence.
func (s *PayrollService) attendanceWalk(period models.Period, dailyRate float64, records map[string]models.EmployeeAttendance, holidays models.HolidaySet) (float64, []models.DayDeduction) {
	days := make([]models.DayDeduction, 0, period.Days())
	var total float64
	for day := 1; day <= period.Days(); day++ {
		date := time.Date(period.Year, period.Month, day, 0, 0, 0, 0, time.UTC)
		entry := models.DayDeduction{Date: date}
		record, recorded := records[date.Format("2006-01-02")]
		if recorded {
			entry.Status = record.Status
		}
		switch {
		case holidays.Contains(date):
			entry.IsHoliday = true
		case !recorded:
			entry.Status = models.AttendanceAbsent
			entry.Deduction = dailyRate
		case record.Status == models.AttendanceAbsent:
			entry.Deduction = dailyRate
		case record.Status == models.AttendanceShortLeave:
			entry.Deduction = dailyRate * s.shortLeaveFactor
		}
		total += entry.Deduction
		days = append(days, entry)
	}
	return total, days
}

// Compute builds the salary breakdown for one employee and period without
// touching the ledger. A stored master is authoritative for its overridable
// fields; otherwise the attendance walk prices the period.
func (s *PayrollService) Compute(ctx context.Context, scope models.TenantScope, employeeID string, period models.Period) (*models.PayrollComputation, error) {
	employee, err := s.employees.FindByID(ctx, scope, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return s.computeFor(ctx, scope, employee, period)
}

func (s *PayrollService) computeFor(ctx context.Context, scope models.TenantScope, employee *models.Employee, period models.Period) (*models.PayrollComputation, error) {
	master, err := s.payroll.FindMaster(ctx, employee.ID, period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll master")
	}
	if master != nil && err == nil {
		return computationFromMaster(employee, master), nil
	}

	def, err := s.employees.ActiveSalaryDefinition(ctx, employee.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigMissing, fmt.Sprintf("no salary definition for employee %s", employee.ID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load salary definition")
	}

	records, err := s.employees.AttendanceForMonth(ctx, employee.ID, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	events, err := s.calendar.HolidaysForMonth(ctx, scope, period)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}

	dailyRate := def.BasicSalary / float64(period.Days())
	attendanceDeduction, days := s.attendanceWalk(period, dailyRate, records, models.NewHolidaySet(events))

	previousBalance := 0.0
	if prior, err := s.payroll.LatestUnsettledBefore(ctx, employee.ID, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior balance")
	} else if prior != nil {
		previousBalance = prior.Balance()
	}

	computation := &models.PayrollComputation{
		EmployeeID:          employee.ID,
		EmployeeName:        employee.FullName,
		Month:               int(period.Month),
		Year:                period.Year,
		BasicSalary:         def.BasicSalary,
		Allowances:          def.Allowances,
		Deductions:          def.Deductions,
		AttendanceDeduction: attendanceDeduction,
		PreviousBalance:     previousBalance,
		Days:                days,
		State:               models.PayrollUnsettled,
	}
	computation.TotalPayable = computation.BasicSalary + computation.Allowances - computation.Deductions -
		computation.AttendanceDeduction + computation.Bonus + computation.PreviousBalance
	computation.Balance = computation.TotalPayable
	return computation, nil
}

func computationFromMaster(employee *models.Employee, master *models.PayrollMaster) *models.PayrollComputation {
	computation := &models.PayrollComputation{
		EmployeeID:          master.EmployeeID,
		Month:               master.Month,
		Year:                master.Year,
		BasicSalary:         master.BasicSalary,
		Allowances:          master.Allowances,
		Deductions:          master.Deductions,
		AttendanceDeduction: master.AttendanceDeduction,
		Bonus:               master.Bonus,
		PreviousBalance:     master.PreviousBalance,
		TotalPayable:        master.TotalPayable(),
		AmountPaid:          master.AmountPaid,
		Balance:             master.Balance(),
		State:               master.State(),
		FromMaster:          true,
	}
	if employee != nil {
		computation.EmployeeName = employee.FullName
	}
	return computation
}

// Settle runs a payroll settlement for a closed period. The ledger row is
// created on first contact; later runs add the payment cumulatively and
// overwrite bonus and attendance deduction only when the caller supplies a
// non-zero override. A payment may never exceed the remaining balance, and a
// fully settled period rejects further payments.
func (s *PayrollService) Settle(ctx context.Context, scope models.TenantScope, req SettlePayrollRequest, paidBy string) (*models.PayrollComputation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settlement payload")
	}
	period, err := models.NewPeriod(req.Month, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if current := models.PeriodOf(s.now()); !period.Before(current) {
		return nil, appErrors.Clone(appErrors.ErrPeriodNotClosed, fmt.Sprintf("period %s is not closed yet", period))
	}

	employee, err := s.employees.FindByID(ctx, scope, req.EmployeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}

	master, err := s.payroll.FindMaster(ctx, employee.ID, period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll master")
	}

	if master == nil || errors.Is(err, sql.ErrNoRows) {
		computation, err := s.computeFor(ctx, scope, employee, period)
		if err != nil {
			return nil, err
		}
		master = &models.PayrollMaster{
			CampusID:            employee.CampusID,
			EmployeeID:          employee.ID,
			Month:               int(period.Month),
			Year:                period.Year,
			BasicSalary:         computation.BasicSalary,
			Allowances:          computation.Allowances,
			Deductions:          computation.Deductions,
			AttendanceDeduction: computation.AttendanceDeduction,
			PreviousBalance:     computation.PreviousBalance,
		}
		if req.AttendanceDeduction != 0 {
			master.AttendanceDeduction = req.AttendanceDeduction
		}
		if req.Bonus != 0 {
			master.Bonus = req.Bonus
		}
		if req.Payment > master.TotalPayable() {
			return nil, appErrors.Clone(appErrors.ErrOverpayment, fmt.Sprintf("payment %.2f exceeds payable %.2f", req.Payment, master.TotalPayable()))
		}
		master.AmountPaid = req.Payment
		if err := s.payroll.CreateMaster(ctx, master); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payroll master")
		}
	} else {
		remaining := master.Balance()
		if remaining == 0 {
			if req.Payment == 0 {
				return computationFromMaster(employee, master), nil
			}
			return nil, appErrors.Clone(appErrors.ErrAlreadySettled, fmt.Sprintf("period %s is already settled", period))
		}
		if req.Payment > remaining {
			return nil, appErrors.Clone(appErrors.ErrOverpayment, fmt.Sprintf("payment %.2f exceeds balance %.2f", req.Payment, remaining))
		}
		if req.AttendanceDeduction != 0 {
			master.AttendanceDeduction = req.AttendanceDeduction
		}
		if req.Bonus != 0 {
			master.Bonus = req.Bonus
		}
		master.AmountPaid += req.Payment
		if err := s.payroll.UpdateSettlement(ctx, master); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settlement")
		}
	}

	if req.Payment > 0 {
		txn := &models.PayrollTransaction{
			MasterID:   master.ID,
			AmountPaid: req.Payment,
			PaidAt:     s.now().UTC(),
		}
		if paidBy != "" {
			txn.PaidBy = &paidBy
		}
		if req.Remarks != "" {
			txn.Remarks = &req.Remarks
		}
		if err := s.payroll.CreateTransaction(ctx, txn); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record salary payment")
		}
		if s.notifier != nil {
			s.notifier.NotifySalaryPayment(scope, employee.ID, req.Payment, period)
		}
	}

	return computationFromMaster(employee, master), nil
}

// Sheet computes the payroll for every active employee in scope. Employees
// without a salary definition are reported as skipped rather than failing
// the whole sheet.
func (s *PayrollService) Sheet(ctx context.Context, scope models.TenantScope, period models.Period) ([]models.PayrollOutcome, error) {
	employees, err := s.employees.ListActive(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	outcomes := make([]models.PayrollOutcome, 0, len(employees))
	for i := range employees {
		employee := &employees[i]
		computation, err := s.computeFor(ctx, scope, employee, period)
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConfigMissing.Code {
				outcomes = append(outcomes, models.PayrollOutcome{
					EmployeeID: employee.ID,
					SkipReason: models.SkipNoSalaryDefinition,
				})
				continue
			}
			return nil, err
		}
		outcomes = append(outcomes, models.PayrollOutcome{EmployeeID: employee.ID, Computation: computation})
	}
	return outcomes, nil
}

// Transactions lists the settlement payment history for an employee's period.
func (s *PayrollService) Transactions(ctx context.Context, scope models.TenantScope, employeeID string, period models.Period) ([]models.PayrollTransaction, error) {
	if _, err := s.employees.FindByID(ctx, scope, employeeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	master, err := s.payroll.FindMaster(ctx, employeeID, period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.PayrollTransaction{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payroll master")
	}
	txns, err := s.payroll.ListTransactions(ctx, master.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txns, nil
}
