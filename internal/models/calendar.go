package models

import "time"

// CalendarEvent is a campus calendar entry.
type CalendarEvent struct {
	ID        string    `db:"id" json:"id"`
	CampusID  string    `db:"campus_id" json:"campus_id"`
	Title     string    `db:"title" json:"title"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	// IsHoliday events suppress payroll attendance deductions for the
	// days they cover.
	IsHoliday bool      `db:"is_holiday" json:"is_holiday"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CoversDate reports whether the event spans the given calendar day.
func (e *CalendarEvent) CoversDate(day time.Time) bool {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	start := time.Date(e.StartDate.Year(), e.StartDate.Month(), e.StartDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(e.EndDate.Year(), e.EndDate.Month(), e.EndDate.Day(), 0, 0, 0, 0, time.UTC)
	return !d.Before(start) && !d.After(end)
}

// HolidaySet answers holiday lookups for a payroll month.
type HolidaySet map[string]struct{}

// NewHolidaySet flattens holiday events into per-day membership.
func NewHolidaySet(events []CalendarEvent) HolidaySet {
	set := make(HolidaySet)
	for _, e := range events {
		if !e.IsHoliday {
			continue
		}
		for d := e.StartDate; !d.After(e.EndDate); d = d.AddDate(0, 0, 1) {
			set[d.Format("2006-01-02")] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the day is a holiday.
func (s HolidaySet) Contains(day time.Time) bool {
	_, ok := s[day.Format("2006-01-02")]
	return ok
}
