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

type studentStore interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error)
	List(ctx context.Context, scope models.TenantScope, filter models.StudentFilter) ([]models.Student, int, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	MarkLeft(ctx context.Context, scope models.TenantScope, id string, leftAt time.Time) error
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	RegistrationNo       string  `json:"registration_no" validate:"required,max=50"`
	FullName             string  `json:"full_name" validate:"required,max=200"`
	GuardianName         *string `json:"guardian_name"`
	GuardianPhone        *string `json:"guardian_phone"`
	ClassID              string  `json:"class_id" validate:"required"`
	SectionID            *string `json:"section_id"`
	AdmissionFeePaid     bool    `json:"admission_fee_paid"`
	TuitionDiscountPct   float64 `json:"tuition_discount_pct" validate:"min=0,max=100"`
	AdmissionDiscountPct float64 `json:"admission_discount_pct" validate:"min=0,max=100"`
}

// UpdateStudentRequest carries mutable student fields.
type UpdateStudentRequest struct {
	FullName             string  `json:"full_name" validate:"required,max=200"`
	GuardianName         *string `json:"guardian_name"`
	GuardianPhone        *string `json:"guardian_phone"`
	ClassID              string  `json:"class_id" validate:"required"`
	SectionID            *string `json:"section_id"`
	AdmissionFeePaid     bool    `json:"admission_fee_paid"`
	TuitionDiscountPct   float64 `json:"tuition_discount_pct" validate:"min=0,max=100"`
	AdmissionDiscountPct float64 `json:"admission_discount_pct" validate:"min=0,max=100"`
}

// StudentService manages student records. Students are never hard-deleted;
// leaving school flips the has-left flag so billing history stays intact.
type StudentService struct {
	repo      studentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs a StudentService.
func NewStudentService(repo studentStore, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Get loads one student.
func (s *StudentService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter with pagination.
func (s *StudentService) List(ctx context.Context, scope models.TenantScope, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Create registers a new student at the scoped campus.
func (s *StudentService) Create(ctx context.Context, scope models.TenantScope, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a student must be registered at a single campus")
	}
	student := &models.Student{
		CampusID:             scope.CampusID,
		RegistrationNo:       req.RegistrationNo,
		FullName:             req.FullName,
		GuardianName:         req.GuardianName,
		GuardianPhone:        req.GuardianPhone,
		ClassID:              req.ClassID,
		SectionID:            req.SectionID,
		AdmissionFeePaid:     req.AdmissionFeePaid,
		TuitionDiscountPct:   req.TuitionDiscountPct,
		AdmissionDiscountPct: req.AdmissionDiscountPct,
		RegisteredAt:         time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update rewrites the mutable fields of a student record.
func (s *StudentService) Update(ctx context.Context, scope models.TenantScope, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	student, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	student.FullName = req.FullName
	student.GuardianName = req.GuardianName
	student.GuardianPhone = req.GuardianPhone
	student.ClassID = req.ClassID
	student.SectionID = req.SectionID
	student.AdmissionFeePaid = req.AdmissionFeePaid
	student.TuitionDiscountPct = req.TuitionDiscountPct
	student.AdmissionDiscountPct = req.AdmissionDiscountPct
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// MarkLeft flags a student as having left school. Billing projections stop;
// stored invoices and history remain queryable.
func (s *StudentService) MarkLeft(ctx context.Context, scope models.TenantScope, id string) error {
	if err := s.repo.MarkLeft(ctx, scope, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark student left")
	}
	return nil
}
