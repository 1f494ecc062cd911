package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPeriodBounds(t *testing.T) {
	_, err := NewPeriod(0, 2026)
	assert.Error(t, err)
	_, err = NewPeriod(13, 2026)
	assert.Error(t, err)
	_, err = NewPeriod(6, 1999)
	assert.Error(t, err)

	period, err := NewPeriod(6, 2026)
	require.NoError(t, err)
	assert.Equal(t, time.June, period.Month)
	assert.Equal(t, 2026, period.Year)
}

func TestPeriodDays(t *testing.T) {
	assert.Equal(t, 30, Period{Month: time.June, Year: 2026}.Days())
	assert.Equal(t, 31, Period{Month: time.July, Year: 2026}.Days())
	assert.Equal(t, 28, Period{Month: time.February, Year: 2026}.Days())
	// 2028 is a leap year.
	assert.Equal(t, 29, Period{Month: time.February, Year: 2028}.Days())
}

func TestPeriodOrderingAndArithmetic(t *testing.T) {
	jan := Period{Month: time.January, Year: 2026}
	apr := Period{Month: time.April, Year: 2026}
	nextYear := Period{Month: time.January, Year: 2027}

	assert.True(t, jan.Before(apr))
	assert.False(t, apr.Before(jan))
	assert.False(t, jan.Before(jan))

	assert.Equal(t, 3, jan.MonthsUntil(apr))
	assert.Equal(t, 0, jan.MonthsUntil(jan))
	assert.Equal(t, 12, jan.MonthsUntil(nextYear))
	assert.Equal(t, -3, apr.MonthsUntil(jan))

	dec := Period{Month: time.December, Year: 2026}
	assert.Equal(t, nextYear, dec.Next())
	assert.Equal(t, "January 2026", jan.String())
}

func TestParseAcademicYear(t *testing.T) {
	year, err := ParseAcademicYear("2025-2026")
	require.NoError(t, err)
	assert.Equal(t, 2025, year.Start)
	assert.Equal(t, 2026, year.End)
	assert.Equal(t, "2025-2026", year.String())

	_, err = ParseAcademicYear("2025-2027")
	assert.Error(t, err)
	_, err = ParseAcademicYear("2025")
	assert.Error(t, err)
	_, err = ParseAcademicYear("25-26")
	assert.Error(t, err)
}

func TestTenantScopeNarrow(t *testing.T) {
	all := ScopeAllCampuses()
	pinned := all.Narrow("campus-2")
	assert.False(t, pinned.AllCampuses)
	assert.Equal(t, "campus-2", pinned.CampusID)

	unchanged := all.Narrow("")
	assert.True(t, unchanged.AllCampuses)

	single := ScopeForCampus("campus-1")
	assert.Equal(t, "campus-1", single.CampusID)
	assert.False(t, single.AllCampuses)
}

func TestComplaintStatusTransitions(t *testing.T) {
	assert.True(t, ComplaintOpen.CanTransitionTo(ComplaintInProgress))
	assert.True(t, ComplaintOpen.CanTransitionTo(ComplaintResolved))
	assert.True(t, ComplaintInProgress.CanTransitionTo(ComplaintRejected))
	assert.False(t, ComplaintInProgress.CanTransitionTo(ComplaintOpen))
	assert.False(t, ComplaintResolved.CanTransitionTo(ComplaintInProgress))
	assert.False(t, ComplaintRejected.CanTransitionTo(ComplaintResolved))
}

func TestHolidaySetSpansEvents(t *testing.T) {
	set := NewHolidaySet([]CalendarEvent{
		{
			Title:     "Winter break",
			StartDate: time.Date(2026, time.December, 24, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, time.December, 26, 0, 0, 0, 0, time.UTC),
			IsHoliday: true,
		},
		{
			Title:     "Sports day",
			StartDate: time.Date(2026, time.December, 10, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, time.December, 10, 0, 0, 0, 0, time.UTC),
		},
	})

	assert.True(t, set.Contains(time.Date(2026, time.December, 25, 0, 0, 0, 0, time.UTC)))
	assert.True(t, set.Contains(time.Date(2026, time.December, 26, 0, 0, 0, 0, time.UTC)))
	assert.False(t, set.Contains(time.Date(2026, time.December, 27, 0, 0, 0, 0, time.UTC)))
	// Non-holiday events never suppress deductions.
	assert.False(t, set.Contains(time.Date(2026, time.December, 10, 0, 0, 0, 0, time.UTC)))
}

func TestPayrollMasterState(t *testing.T) {
	master := PayrollMaster{BasicSalary: 30000, Allowances: 3000, Deductions: 1000, AttendanceDeduction: 2500}
	assert.InDelta(t, 29500, master.TotalPayable(), 0.001)
	assert.Equal(t, PayrollUnsettled, master.State())

	master.AmountPaid = 20000
	assert.Equal(t, PayrollPartial, master.State())
	assert.InDelta(t, 9500, master.Balance(), 0.001)

	master.AmountPaid = 29500
	assert.Equal(t, PayrollSettled, master.State())
}
