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

type todoStore interface {
	ListByUser(ctx context.Context, userID string, includeDone bool) ([]models.Todo, error)
	Create(ctx context.Context, todo *models.Todo) error
	SetDone(ctx context.Context, userID, id string, done bool) error
	Delete(ctx context.Context, userID, id string) error
}

// CreateTodoRequest is the payload for adding a task.
type CreateTodoRequest struct {
	Title string     `json:"title" validate:"required,max=300"`
	DueAt *time.Time `json:"due_at"`
}

// TodoService manages per-user task lists. Todos are private to their owner;
// every operation is keyed by the caller's user ID.
type TodoService struct {
	repo      todoStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTodoService constructs a TodoService.
func NewTodoService(repo todoStore, validate *validator.Validate, logger *zap.Logger) *TodoService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoService{repo: repo, validator: validate, logger: logger}
}

// List returns the caller's todos, optionally including completed ones.
func (s *TodoService) List(ctx context.Context, userID string, includeDone bool) ([]models.Todo, error) {
	todos, err := s.repo.ListByUser(ctx, userID, includeDone)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todos")
	}
	return todos, nil
}

// Create adds a task for the caller.
func (s *TodoService) Create(ctx context.Context, userID string, req CreateTodoRequest) (*models.Todo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	todo := &models.Todo{
		UserID: userID,
		Title:  req.Title,
		DueAt:  req.DueAt,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create todo")
	}
	return todo, nil
}

// SetDone flips the completion flag on the caller's task.
func (s *TodoService) SetDone(ctx context.Context, userID, id string, done bool) error {
	if err := s.repo.SetDone(ctx, userID, id, done); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update todo")
	}
	return nil
}

// Delete removes the caller's task.
func (s *TodoService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "todo not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete todo")
	}
	return nil
}
