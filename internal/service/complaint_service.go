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

type complaintStore interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Complaint, error)
	List(ctx context.Context, scope models.TenantScope, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	Create(ctx context.Context, complaint *models.Complaint) error
	UpdateStatus(ctx context.Context, complaint *models.Complaint) error
}

type dashboardInvalidator interface {
	Invalidate(ctx context.Context, scope models.TenantScope)
}

// FileComplaintRequest is the payload for filing a complaint.
type FileComplaintRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required"`
}

// UpdateComplaintRequest moves a complaint through its workflow.
type UpdateComplaintRequest struct {
	Status     models.ComplaintStatus `json:"status" validate:"required"`
	Resolution string                 `json:"resolution"`
}

// ComplaintService manages the grievance workflow.
type ComplaintService struct {
	repo       complaintStore
	dashboards dashboardInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewComplaintService constructs a ComplaintService.
func NewComplaintService(repo complaintStore, dashboards dashboardInvalidator, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplaintService{repo: repo, dashboards: dashboards, validator: validate, logger: logger}
}

// File registers a new complaint in the open state.
func (s *ComplaintService) File(ctx context.Context, scope models.TenantScope, filedByID string, req FileComplaintRequest) (*models.Complaint, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a complaint must be filed against a single campus")
	}
	complaint := &models.Complaint{
		CampusID:  scope.CampusID,
		FiledByID: filedByID,
		Subject:   req.Subject,
		Body:      req.Body,
		Status:    models.ComplaintOpen,
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}
	s.invalidate(ctx, scope)
	return complaint, nil
}

// Get loads one complaint. Non-staff callers only see their own.
func (s *ComplaintService) Get(ctx context.Context, scope models.TenantScope, id, actorID string, role models.UserRole) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !role.Staff() && complaint.FiledByID != actorID {
		return nil, appErrors.ErrForbidden
	}
	return complaint, nil
}

// List returns campus-scoped complaints. Non-staff callers are restricted to
// complaints they filed themselves.
func (s *ComplaintService) List(ctx context.Context, scope models.TenantScope, filter models.ComplaintFilter, actorID string, role models.UserRole) ([]models.Complaint, *models.Pagination, error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unsupported complaint status")
	}
	if !role.Staff() {
		filter.FiledByID = actorID
	}
	complaints, total, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	return complaints, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// UpdateStatus advances a complaint through the workflow. Terminal states
// stamp the resolution and are final.
func (s *ComplaintService) UpdateStatus(ctx context.Context, scope models.TenantScope, id string, req UpdateComplaintRequest) (*models.Complaint, error) {
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported complaint status")
	}
	complaint, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !complaint.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invalid status transition")
	}

	complaint.Status = req.Status
	if req.Status == models.ComplaintResolved || req.Status == models.ComplaintRejected {
		if req.Resolution == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a resolution note is required to close a complaint")
		}
		now := time.Now().UTC()
		complaint.Resolution = &req.Resolution
		complaint.ResolvedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint")
	}
	s.invalidate(ctx, scope)
	return complaint, nil
}

func (s *ComplaintService) invalidate(ctx context.Context, scope models.TenantScope) {
	if s.dashboards != nil {
		s.dashboards.Invalidate(ctx, scope)
	}
}
