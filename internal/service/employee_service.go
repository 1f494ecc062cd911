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

type employeeStore interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Employee, error)
	List(ctx context.Context, scope models.TenantScope, filter models.EmployeeFilter) ([]models.Employee, int, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	ActiveSalaryDefinition(ctx context.Context, employeeID string) (*models.SalaryDefinition, error)
	SupersedeSalaryDefinition(ctx context.Context, def *models.SalaryDefinition) error
	UpsertAttendance(ctx context.Context, record *models.EmployeeAttendance) error
}

// CreateEmployeeRequest is the payload for hiring an employee.
type CreateEmployeeRequest struct {
	FullName    string    `json:"full_name" validate:"required,max=200"`
	Phone       *string   `json:"phone"`
	Email       *string   `json:"email" validate:"omitempty,email"`
	Designation string    `json:"designation" validate:"required,max=100"`
	JoinedAt    time.Time `json:"joined_at" validate:"required"`
}

// UpdateEmployeeRequest carries mutable employee fields.
type UpdateEmployeeRequest struct {
	FullName    string  `json:"full_name" validate:"required,max=200"`
	Phone       *string `json:"phone"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Designation string  `json:"designation" validate:"required,max=100"`
	Active      bool    `json:"active"`
}

// SetSalaryRequest installs a new salary contract for an employee.
type SetSalaryRequest struct {
	BasicSalary   float64   `json:"basic_salary" validate:"required,gt=0"`
	Allowances    float64   `json:"allowances" validate:"min=0"`
	Deductions    float64   `json:"deductions" validate:"min=0"`
	EffectiveFrom time.Time `json:"effective_from" validate:"required"`
}

// AttendanceEntry is one employee's status for the marked day.
type AttendanceEntry struct {
	EmployeeID string                  `json:"employee_id" validate:"required"`
	Status     models.AttendanceStatus `json:"status" validate:"required"`
	Notes      *string                 `json:"notes"`
}

// MarkAttendanceRequest records attendance for a set of employees on one day.
type MarkAttendanceRequest struct {
	Date    time.Time         `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// EmployeeService manages staff records, salary contracts and daily
// attendance.
type EmployeeService struct {
	repo      employeeStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs an EmployeeService.
func NewEmployeeService(repo employeeStore, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, validator: validate, logger: logger}
}

// Get loads one employee.
func (s *EmployeeService) Get(ctx context.Context, scope models.TenantScope, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	return employee, nil
}

// List returns employees matching the filter with pagination.
func (s *EmployeeService) List(ctx context.Context, scope models.TenantScope, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	employees, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	return employees, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Create hires a new employee at the scoped campus.
func (s *EmployeeService) Create(ctx context.Context, scope models.TenantScope, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an employee must be hired at a single campus")
	}
	employee := &models.Employee{
		CampusID:    scope.CampusID,
		FullName:    req.FullName,
		Phone:       req.Phone,
		Email:       req.Email,
		Designation: req.Designation,
		JoinedAt:    req.JoinedAt,
		Active:      true,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}
	return employee, nil
}

// Update rewrites the mutable fields of an employee record. Deactivating an
// employee stamps the leaving date.
func (s *EmployeeService) Update(ctx context.Context, scope models.TenantScope, id string, req UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	employee, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	employee.FullName = req.FullName
	employee.Phone = req.Phone
	employee.Email = req.Email
	employee.Designation = req.Designation
	if employee.Active && !req.Active {
		now := time.Now().UTC()
		employee.LeftAt = &now
	}
	employee.Active = req.Active
	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	return employee, nil
}

// Salary returns the active salary contract for an employee.
func (s *EmployeeService) Salary(ctx context.Context, scope models.TenantScope, employeeID string) (*models.SalaryDefinition, error) {
	if _, err := s.Get(ctx, scope, employeeID); err != nil {
		return nil, err
	}
	def, err := s.repo.ActiveSalaryDefinition(ctx, employeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConfigMissing, "no active salary definition")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load salary definition")
	}
	return def, nil
}

// SetSalary installs a new salary contract. The previous active contract is
// superseded, never mutated, so historical payroll stays reproducible.
func (s *EmployeeService) SetSalary(ctx context.Context, scope models.TenantScope, employeeID string, req SetSalaryRequest) (*models.SalaryDefinition, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if _, err := s.Get(ctx, scope, employeeID); err != nil {
		return nil, err
	}
	def := &models.SalaryDefinition{
		EmployeeID:    employeeID,
		BasicSalary:   req.BasicSalary,
		Allowances:    req.Allowances,
		Deductions:    req.Deductions,
		Active:        true,
		EffectiveFrom: req.EffectiveFrom,
	}
	if err := s.repo.SupersedeSalaryDefinition(ctx, def); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set salary definition")
	}
	return def, nil
}

// MarkAttendance records attendance for several employees on one day. Each
// entry upserts, so re-marking a day overwrites the earlier status. Entries
// referencing employees outside the scope are rejected before any write.
func (s *EmployeeService) MarkAttendance(ctx context.Context, scope models.TenantScope, req MarkAttendanceRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	for _, entry := range req.Entries {
		if !entry.Status.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
		}
		if _, err := s.Get(ctx, scope, entry.EmployeeID); err != nil {
			return err
		}
	}
	day := time.Date(req.Date.Year(), req.Date.Month(), req.Date.Day(), 0, 0, 0, 0, time.UTC)
	for _, entry := range req.Entries {
		record := &models.EmployeeAttendance{
			EmployeeID: entry.EmployeeID,
			Date:       day,
			Status:     entry.Status,
			Notes:      entry.Notes,
		}
		if err := s.repo.UpsertAttendance(ctx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
		}
	}
	return nil
}
