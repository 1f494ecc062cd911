package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// CalendarRepository handles campus calendar persistence.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository creates a new calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const calendarColumns = `id, campus_id, title, start_date, end_date, is_holiday, created_at, updated_at`

// ListBetween returns events overlapping the window.
func (r *CalendarRepository) ListBetween(ctx context.Context, scope models.TenantScope, from, to time.Time) ([]models.CalendarEvent, error) {
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE start_date <= $1 AND end_date >= $2`, calendarColumns)
	args := []interface{}{to, from}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " ORDER BY start_date"
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

// HolidaysForMonth returns the holiday events overlapping a payroll period.
func (r *CalendarRepository) HolidaysForMonth(ctx context.Context, scope models.TenantScope, period models.Period) ([]models.CalendarEvent, error) {
	start := period.Start()
	end := start.AddDate(0, 1, -1)
	query := fmt.Sprintf(`SELECT %s FROM calendar_events WHERE is_holiday = TRUE AND start_date <= $1 AND end_date >= $2`, calendarColumns)
	args := []interface{}{end, start}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return events, nil
}

// Create inserts a calendar event.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, campus_id, title, start_date, end_date, is_holiday, created_at, updated_at)
VALUES (:id, :campus_id, :title, :start_date, :end_date, :is_holiday, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Delete removes a calendar event within the tenant scope.
func (r *CalendarRepository) Delete(ctx context.Context, scope models.TenantScope, id string) error {
	query := "DELETE FROM calendar_events WHERE id = $1"
	args := []interface{}{id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
