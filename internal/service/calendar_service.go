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

type calendarStore interface {
	ListBetween(ctx context.Context, scope models.TenantScope, from, to time.Time) ([]models.CalendarEvent, error)
	Create(ctx context.Context, event *models.CalendarEvent) error
	Delete(ctx context.Context, scope models.TenantScope, id string) error
}

// CreateEventRequest is the payload for adding a calendar event.
type CreateEventRequest struct {
	Title     string    `json:"title" validate:"required,max=200"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	IsHoliday bool      `json:"is_holiday"`
}

// CalendarService manages campus calendar events. Holiday events feed the
// payroll attendance calculation.
type CalendarService struct {
	repo      calendarStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(repo calendarStore, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, validator: validate, logger: logger}
}

// List returns events overlapping the requested window.
func (s *CalendarService) List(ctx context.Context, scope models.TenantScope, from, to time.Time) ([]models.CalendarEvent, error) {
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window end precedes its start")
	}
	events, err := s.repo.ListBetween(ctx, scope, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

// Create adds an event to the campus calendar.
func (s *CalendarService) Create(ctx context.Context, scope models.TenantScope, req CreateEventRequest) (*models.CalendarEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "event end precedes its start")
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "an event belongs to a single campus")
	}
	event := &models.CalendarEvent{
		CampusID:  scope.CampusID,
		Title:     req.Title,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		IsHoliday: req.IsHoliday,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create event")
	}
	return event, nil
}

// Delete removes an event.
func (s *CalendarService) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "event not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete event")
	}
	return nil
}
