package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// TodoRepository handles personal task persistence.
type TodoRepository struct {
	db *sqlx.DB
}

// NewTodoRepository creates a new todo repository.
func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// ListByUser returns a user's todos, pending first.
func (r *TodoRepository) ListByUser(ctx context.Context, userID string, includeDone bool) ([]models.Todo, error) {
	query := `SELECT id, user_id, title, done, due_at, created_at, updated_at FROM todos WHERE user_id = $1`
	args := []interface{}{userID}
	if !includeDone {
		query += " AND done = FALSE"
	}
	query += " ORDER BY done, due_at NULLS LAST, created_at"
	var todos []models.Todo
	if err := r.db.SelectContext(ctx, &todos, query, args...); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// Create inserts a todo row.
func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	const query = `INSERT INTO todos (id, user_id, title, done, due_at, created_at, updated_at)
VALUES (:id, :user_id, :title, :done, :due_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, todo); err != nil {
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// SetDone flips the completion flag for a user's own todo.
func (r *TodoRepository) SetDone(ctx context.Context, userID, id string, done bool) error {
	const query = `UPDATE todos SET done = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`
	result, err := r.db.ExecContext(ctx, query, done, time.Now().UTC(), id, userID)
	if err != nil {
		return fmt.Errorf("set todo done: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("set todo done: no row for %s", id)
	}
	return nil
}

// Delete removes a user's own todo.
func (r *TodoRepository) Delete(ctx context.Context, userID, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM todos WHERE id = $1 AND user_id = $2", id, userID); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}
