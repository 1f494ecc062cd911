package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type classFeeStore interface {
	FindByClass(ctx context.Context, scope models.TenantScope, classID string) (*models.ClassFee, error)
	Upsert(ctx context.Context, fee *models.ClassFee) error
	ActiveChargesByClass(ctx context.Context, scope models.TenantScope, classID string) ([]models.ExtraCharge, error)
	CreateCharge(ctx context.Context, charge *models.ExtraCharge) error
	DeactivateCharge(ctx context.Context, scope models.TenantScope, id string) error
	SetOptIn(ctx context.Context, studentID, chargeID string, optedIn bool) error
	OutstandingFines(ctx context.Context, studentID string) ([]models.FineCharge, error)
	CreateFine(ctx context.Context, fine *models.FineCharge) error
	MarkFinePaid(ctx context.Context, scope models.TenantScope, id string, paidAt time.Time) error
	DeactivateFine(ctx context.Context, scope models.TenantScope, id string) error
}

type classFeeStudentReader interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error)
}

// SetClassFeeRequest is the payload for the per-class fee schedule.
type SetClassFeeRequest struct {
	ClassID      string  `json:"class_id" validate:"required"`
	TuitionFee   float64 `json:"tuition_fee" validate:"required,gt=0"`
	AdmissionFee float64 `json:"admission_fee" validate:"min=0"`
}

// CreateChargeRequest adds an extra charge to a class.
type CreateChargeRequest struct {
	ClassID  string                `json:"class_id" validate:"required"`
	Name     string                `json:"name" validate:"required,max=100"`
	Category models.ChargeCategory `json:"category" validate:"required"`
	Amount   float64               `json:"amount" validate:"required,gt=0"`
}

// IssueFineRequest levies a one-off fine against a student.
type IssueFineRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Reason    string  `json:"reason" validate:"required,max=300"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
}

// ClassFeeService manages the fee reference data the billing calculator
// reads: per-class schedules, extra charges, opt-ins and fines.
type ClassFeeService struct {
	repo      classFeeStore
	students  classFeeStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassFeeService constructs a ClassFeeService.
func NewClassFeeService(repo classFeeStore, students classFeeStudentReader, validate *validator.Validate, logger *zap.Logger) *ClassFeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassFeeService{repo: repo, students: students, validator: validate, logger: logger}
}

// Schedule returns the fee schedule for a class.
func (s *ClassFeeService) Schedule(ctx context.Context, scope models.TenantScope, classID string) (*models.ClassFee, error) {
	fee, err := s.repo.FindByClass(ctx, scope, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigMissing, "no fee schedule for class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee schedule")
	}
	return fee, nil
}

// SetSchedule installs or replaces the fee schedule for a class. Changing
// the schedule only affects invoices generated afterwards; stored invoices
// keep the rates they were written with.
func (s *ClassFeeService) SetSchedule(ctx context.Context, scope models.TenantScope, req SetClassFeeRequest) (*models.ClassFee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a fee schedule belongs to a single campus")
	}
	fee := &models.ClassFee{
		CampusID:     scope.CampusID,
		ClassID:      req.ClassID,
		TuitionFee:   req.TuitionFee,
		AdmissionFee: req.AdmissionFee,
	}
	if err := s.repo.Upsert(ctx, fee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save fee schedule")
	}
	return fee, nil
}

// Charges lists the active extra charges for a class.
func (s *ClassFeeService) Charges(ctx context.Context, scope models.TenantScope, classID string) ([]models.ExtraCharge, error) {
	charges, err := s.repo.ActiveChargesByClass(ctx, scope, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list charges")
	}
	return charges, nil
}

// CreateCharge adds an extra charge to a class.
func (s *ClassFeeService) CreateCharge(ctx context.Context, scope models.TenantScope, req CreateChargeRequest) (*models.ExtraCharge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported charge category")
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a charge belongs to a single campus")
	}
	charge := &models.ExtraCharge{
		CampusID: scope.CampusID,
		ClassID:  req.ClassID,
		Name:     req.Name,
		Category: req.Category,
		Amount:   req.Amount,
		Active:   true,
	}
	if err := s.repo.CreateCharge(ctx, charge); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create charge")
	}
	return charge, nil
}

// DeactivateCharge retires a charge from future invoices.
func (s *ClassFeeService) DeactivateCharge(ctx context.Context, scope models.TenantScope, id string) error {
	if err := s.repo.DeactivateCharge(ctx, scope, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "charge not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate charge")
	}
	return nil
}

// SetOptIn subscribes or unsubscribes a student from an optional charge.
func (s *ClassFeeService) SetOptIn(ctx context.Context, scope models.TenantScope, studentID, chargeID string, optedIn bool) error {
	if _, err := s.students.FindByID(ctx, scope, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.SetOptIn(ctx, studentID, chargeID, optedIn); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update opt-in")
	}
	return nil
}

// Fines lists a student's outstanding fines.
func (s *ClassFeeService) Fines(ctx context.Context, scope models.TenantScope, studentID string) ([]models.FineCharge, error) {
	if _, err := s.students.FindByID(ctx, scope, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	fines, err := s.repo.OutstandingFines(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fines")
	}
	return fines, nil
}

// IssueFine levies a fine against a student. The fine counts toward the
// payable amount while it stays unpaid and active.
func (s *ClassFeeService) IssueFine(ctx context.Context, scope models.TenantScope, req IssueFineRequest) (*models.FineCharge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	fine := &models.FineCharge{
		CampusID:  student.CampusID,
		StudentID: student.ID,
		Reason:    req.Reason,
		Amount:    req.Amount,
		IsActive:  true,
		IssuedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateFine(ctx, fine); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create fine")
	}
	return fine, nil
}

// SettleFine marks a fine paid so it drops out of future calculations.
func (s *ClassFeeService) SettleFine(ctx context.Context, scope models.TenantScope, id string) error {
	if err := s.repo.MarkFinePaid(ctx, scope, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "fine not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle fine")
	}
	return nil
}

// WaiveFine deactivates a fine without payment.
func (s *ClassFeeService) WaiveFine(ctx context.Context, scope models.TenantScope, id string) error {
	if err := s.repo.DeactivateFine(ctx, scope, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "fine not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waive fine")
	}
	return nil
}
