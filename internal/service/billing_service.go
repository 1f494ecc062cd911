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

type billingStudentReader interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error)
	ListActiveByClass(ctx context.Context, scope models.TenantScope, classID string) ([]models.Student, error)
}

type feeScheduleReader interface {
	FindByClass(ctx context.Context, scope models.TenantScope, classID string) (*models.ClassFee, error)
	ActiveChargesByClass(ctx context.Context, scope models.TenantScope, classID string) ([]models.ExtraCharge, error)
	OptInChargeIDs(ctx context.Context, studentID string) (map[string]struct{}, error)
	OutstandingFines(ctx context.Context, studentID string) ([]models.FineCharge, error)
}

type billingStore interface {
	FindMaster(ctx context.Context, studentID string, period models.Period) (*models.BillingMaster, error)
	LatestMasterBefore(ctx context.Context, studentID string, period models.Period) (*models.BillingMaster, error)
	CreateMaster(ctx context.Context, master *models.BillingMaster) error
	PaidTotal(ctx context.Context, masterID string) (float64, error)
	CreateTransaction(ctx context.Context, txn *models.BillingTransaction) error
	ListTransactions(ctx context.Context, masterID string) ([]models.BillingTransaction, error)
}

type paymentNotifier interface {
	NotifyPayment(scope models.TenantScope, studentID string, amount float64, period models.Period)
}

// RecordFeePaymentRequest is the payload for posting a fee payment.
type RecordFeePaymentRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Month     int     `json:"month" validate:"required,min=1,max=12"`
	Year      int     `json:"year" validate:"required,min=2000"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Remarks   string  `json:"remarks"`
}

// BillingService computes per-student fee statements and reconciles
// payments against them.
type BillingService struct {
	students  billingStudentReader
	fees      feeScheduleReader
	billing   billingStore
	notifier  paymentNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs a BillingService.
func NewBillingService(students billingStudentReader, fees feeScheduleReader, billing billingStore, notifier paymentNotifier, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		students:  students,
		fees:      fees,
		billing:   billing,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Statement returns the payable amount and payment state for one student and
// period. A stored invoice is authoritative; otherwise the statement is a
// projection of what would be owed.
func (s *BillingService) Statement(ctx context.Context, scope models.TenantScope, studentID string, period models.Period) (*models.BillingStatement, error) {
	student, err := s.students.FindByID(ctx, scope, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.statementFor(ctx, scope, student, period)
}

func (s *BillingService) statementFor(ctx context.Context, scope models.TenantScope, student *models.Student, period models.Period) (*models.BillingStatement, error) {
	master, err := s.billing.FindMaster(ctx, student.ID, period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing master")
	}
	if master != nil && err == nil {
		paid, err := s.billing.PaidTotal(ctx, master.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
		}
		return statementFromMaster(student, master, paid), nil
	}

	projected, err := s.project(ctx, scope, student, period, 1)
	if err != nil {
		return nil, err
	}
	return projected, nil
}

// project computes the would-be invoice for a period with no stored master.
// months > 1 multiplies the recurring components for range projections;
// admission fee and previous dues are counted once.
func (s *BillingService) project(ctx context.Context, scope models.TenantScope, student *models.Student, period models.Period, months int) (*models.BillingStatement, error) {
	fee, err := s.fees.FindByClass(ctx, scope, student.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigMissing, fmt.Sprintf("no fee schedule for class %s", student.ClassID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}

	tuition := fee.TuitionFee * (1 - student.TuitionDiscountPct/100)

	admission := 0.0
	if !student.AdmissionFeePaid {
		admission = fee.AdmissionFee * (1 - student.AdmissionDiscountPct/100)
		if admission < 0 {
			admission = 0
		}
	}

	misc, err := s.miscCharges(ctx, scope, student)
	if err != nil {
		return nil, err
	}

	fines, err := s.fees.OutstandingFines(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fines")
	}
	var fineTotal float64
	for _, fine := range fines {
		fineTotal += fine.Amount
	}

	previousDues, err := s.previousDues(ctx, student.ID, period, tuition, misc)
	if err != nil {
		return nil, err
	}

	if months < 1 {
		months = 1
	}
	statement := &models.BillingStatement{
		StudentID:    student.ID,
		StudentName:  student.FullName,
		ClassID:      student.ClassID,
		Month:        int(period.Month),
		Year:         period.Year,
		TuitionFee:   tuition * float64(months),
		AdmissionFee: admission,
		MiscCharges:  misc * float64(months),
		FineCharges:  fineTotal,
		PreviousDues: previousDues,
		FromMaster:   false,
	}
	statement.TotalPayable = statement.TuitionFee + statement.AdmissionFee + statement.MiscCharges + statement.FineCharges + statement.PreviousDues
	statement.RemainingDues = statement.TotalPayable
	return statement, nil
}

func (s *BillingService) miscCharges(ctx context.Context, scope models.TenantScope, student *models.Student) (float64, error) {
	charges, err := s.fees.ActiveChargesByClass(ctx, scope, student.ClassID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extra charges")
	}
	var optIns map[string]struct{}
	var total float64
	for _, charge := range charges {
		switch charge.Category {
		case models.ChargeMonthly:
			total += charge.Amount
		case models.ChargeOptional:
			if optIns == nil {
				optIns, err = s.fees.OptInChargeIDs(ctx, student.ID)
				if err != nil {
					return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load charge opt-ins")
				}
			}
			if _, ok := optIns[charge.ID]; ok {
				total += charge.Amount
			}
		}
	}
	return total, nil
}

// previousDues carries forward the unpaid remainder of the last invoice
// before the target period. Months never billed between the two accrue at
// the current tuition+misc rate, not the rate in effect at the time.
func (s *BillingService) previousDues(ctx context.Context, studentID string, period models.Period, tuition, misc float64) (float64, error) {
	last, err := s.billing.LatestMasterBefore(ctx, studentID, period)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prior billing master")
	}
	if last == nil {
		return 0, nil
	}
	paid, err := s.billing.PaidTotal(ctx, last.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum prior payments")
	}
	dues := last.TotalPayable() - paid
	if gap := last.Period().MonthsUntil(period); gap > 1 {
		dues += float64(gap-1) * (tuition + misc)
	}
	return dues, nil
}

func statementFromMaster(student *models.Student, master *models.BillingMaster, paid float64) *models.BillingStatement {
	statement := &models.BillingStatement{
		StudentID:    master.StudentID,
		Month:        master.Month,
		Year:         master.Year,
		TuitionFee:   master.TuitionFee,
		AdmissionFee: master.AdmissionFee,
		MiscCharges:  master.MiscCharges,
		FineCharges:  master.FineCharges,
		PreviousDues: master.PreviousDues,
		TotalPaid:    paid,
		FromMaster:   true,
	}
	if student != nil {
		statement.StudentName = student.FullName
		statement.ClassID = student.ClassID
	}
	statement.TotalPayable = master.TotalPayable()
	statement.RemainingDues = statement.TotalPayable - paid
	return statement
}

// ProjectRevenue estimates collectable fees over an inclusive month range
// for every active student (optionally one class). A single-month range
// consults the stored invoice and its payments first, so already settled
// students carry their true remaining dues; longer ranges are pure
// projection. Students whose class has no fee schedule are skipped with an
// explicit reason rather than silently dropped from the total.
func (s *BillingService) ProjectRevenue(ctx context.Context, scope models.TenantScope, classID string, from, to models.Period) (*models.RevenueProjection, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes start")
	}
	students, err := s.students.ListActiveByClass(ctx, scope, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	months := from.MonthsUntil(to) + 1
	projection := &models.RevenueProjection{
		FromMonth: int(from.Month),
		FromYear:  from.Year,
		ToMonth:   int(to.Month),
		ToYear:    to.Year,
		Months:    months,
	}
	for i := range students {
		student := &students[i]
		var statement *models.BillingStatement
		var err error
		if months == 1 {
			statement, err = s.statementFor(ctx, scope, student, from)
		} else {
			statement, err = s.project(ctx, scope, student, from, months)
		}
		if err != nil {
			var appErr *appErrors.Error
			if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConfigMissing.Code {
				projection.Skipped++
				projection.Outcomes = append(projection.Outcomes, models.BillingOutcome{
					StudentID:  student.ID,
					SkipReason: models.SkipNoClassFee,
				})
				continue
			}
			return nil, err
		}
		projection.Students++
		projection.TotalPayable += statement.TotalPayable
		projection.Outcomes = append(projection.Outcomes, models.BillingOutcome{StudentID: student.ID, Statement: statement})
	}
	return projection, nil
}

// RecordPayment posts a fee payment. The invoice for the period is created
// lazily from the projection on first contact; the payment must not exceed
// the remaining dues. Each payment is an immutable transaction row.
func (s *BillingService) RecordPayment(ctx context.Context, scope models.TenantScope, req RecordFeePaymentRequest, receivedBy string) (*models.BillingStatement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	period, err := models.NewPeriod(req.Month, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	master, err := s.billing.FindMaster(ctx, student.ID, period)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing master")
		}
		projected, err := s.project(ctx, scope, student, period, 1)
		if err != nil {
			return nil, err
		}
		master = &models.BillingMaster{
			CampusID:     student.CampusID,
			StudentID:    student.ID,
			Month:        int(period.Month),
			Year:         period.Year,
			TuitionFee:   projected.TuitionFee,
			AdmissionFee: projected.AdmissionFee,
			MiscCharges:  projected.MiscCharges,
			FineCharges:  projected.FineCharges,
			PreviousDues: projected.PreviousDues,
		}
		if err := s.billing.CreateMaster(ctx, master); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create billing master")
		}
	}

	paid, err := s.billing.PaidTotal(ctx, master.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	remaining := master.TotalPayable() - paid
	if req.Amount > remaining {
		return nil, appErrors.Clone(appErrors.ErrOverpayment, fmt.Sprintf("payment %.2f exceeds remaining dues %.2f", req.Amount, remaining))
	}

	txn := &models.BillingTransaction{
		MasterID:   master.ID,
		AmountPaid: req.Amount,
		PaidAt:     time.Now().UTC(),
	}
	if receivedBy != "" {
		txn.ReceivedBy = &receivedBy
	}
	if req.Remarks != "" {
		txn.Remarks = &req.Remarks
	}
	if err := s.billing.CreateTransaction(ctx, txn); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if s.notifier != nil {
		s.notifier.NotifyPayment(scope, student.ID, req.Amount, period)
	}

	return statementFromMaster(student, master, paid+req.Amount), nil
}

// Transactions lists the payment history for a student's period.
func (s *BillingService) Transactions(ctx context.Context, scope models.TenantScope, studentID string, period models.Period) ([]models.BillingTransaction, error) {
	if _, err := s.students.FindByID(ctx, scope, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	master, err := s.billing.FindMaster(ctx, studentID, period)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.BillingTransaction{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load billing master")
	}
	txns, err := s.billing.ListTransactions(ctx, master.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txns, nil
}
