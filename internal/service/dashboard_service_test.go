package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type mockDashboardStudents struct {
	active int
}

func (m *mockDashboardStudents) CountActive(_ context.Context, _ models.TenantScope) (int, error) {
	return m.active, nil
}

type mockDashboardEmployees struct {
	active int
	counts map[models.AttendanceStatus]int
}

func (m *mockDashboardEmployees) CountActive(_ context.Context, _ models.TenantScope) (int, error) {
	return m.active, nil
}

func (m *mockDashboardEmployees) AttendanceCounts(_ context.Context, _ models.TenantScope, _ time.Time) (map[models.AttendanceStatus]int, error) {
	return m.counts, nil
}

type mockDashboardBilling struct {
	dues    float64
	revenue []models.MonthlyRevenuePoint
}

func (m *mockDashboardBilling) OutstandingDues(_ context.Context, _ models.TenantScope) (float64, error) {
	return m.dues, nil
}

func (m *mockDashboardBilling) MonthlyRevenue(_ context.Context, _ models.TenantScope, _ time.Time) ([]models.MonthlyRevenuePoint, error) {
	return m.revenue, nil
}

type mockDashboardPayroll struct {
	expenditure []models.MonthlyRevenuePoint
}

func (m *mockDashboardPayroll) MonthlyExpenditure(_ context.Context, _ models.TenantScope, _ time.Time) ([]models.MonthlyRevenuePoint, error) {
	return m.expenditure, nil
}

type mockDashboardComplaints struct {
	counts map[models.ComplaintStatus]int
}

func (m *mockDashboardComplaints) CountByStatus(_ context.Context, _ models.TenantScope) (map[models.ComplaintStatus]int, error) {
	return m.counts, nil
}

type mockDashboardTodos struct {
	todos []models.Todo
}

func (m *mockDashboardTodos) ListByUser(_ context.Context, userID string, includeDone bool) ([]models.Todo, error) {
	var result []models.Todo
	for _, todo := range m.todos {
		if todo.UserID != userID {
			continue
		}
		if !includeDone && todo.Done {
			continue
		}
		result = append(result, todo)
	}
	return result, nil
}

type mockDashboardCalendar struct {
	events []models.CalendarEvent
}

func (m *mockDashboardCalendar) ListBetween(_ context.Context, _ models.TenantScope, _, _ time.Time) ([]models.CalendarEvent, error) {
	return m.events, nil
}

type stubStatements struct {
	statement *models.BillingStatement
	err       error
	calls     int
}

func (s *stubStatements) Statement(_ context.Context, _ models.TenantScope, _ string, _ models.Period) (*models.BillingStatement, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.statement, nil
}

type stubMarks struct {
	rows         []models.ExamMarkRow
	enteredToday int
}

func (s *stubMarks) Marks(_ context.Context, _ models.TenantScope, _ models.ExamMarkFilter) ([]models.ExamMarkRow, error) {
	return s.rows, nil
}

func (s *stubMarks) CountEnteredOn(_ context.Context, _ models.TenantScope, _ time.Time) (int, error) {
	return s.enteredToday, nil
}

func newDashboardFixture(cache *mockViewCache) (*DashboardService, *mockDashboardComplaints, *stubStatements) {
	complaints := &mockDashboardComplaints{counts: map[models.ComplaintStatus]int{
		models.ComplaintOpen:       3,
		models.ComplaintInProgress: 2,
		models.ComplaintResolved:   8,
	}}
	statements := &stubStatements{statement: &models.BillingStatement{StudentID: "student-1", TotalPayable: 1575}}
	svc := NewDashboardService(
		&mockDashboardStudents{active: 240},
		&mockDashboardEmployees{active: 18, counts: map[models.AttendanceStatus]int{
			models.AttendancePresent:    12,
			models.AttendanceLate:       2,
			models.AttendanceShortLeave: 1,
			models.AttendanceAbsent:     3,
			models.AttendanceLeave:      2,
		}},
		&mockDashboardBilling{dues: 84000, revenue: []models.MonthlyRevenuePoint{{Month: 8, Year: 2026, Collected: 120000}}},
		&mockDashboardPayroll{expenditure: []models.MonthlyRevenuePoint{{Month: 8, Year: 2026, Collected: 95000}}},
		complaints,
		&mockDashboardTodos{todos: []models.Todo{
			{ID: "todo-1", UserID: "user-1", Title: "Prepare mark sheets"},
			{ID: "todo-2", UserID: "user-1", Title: "Collect diaries", Done: true},
		}},
		&mockDashboardCalendar{events: []models.CalendarEvent{{ID: "event-1", Title: "Sports day"}}},
		statements,
		&stubMarks{enteredToday: 34},
		cache,
		time.Minute,
		nil,
	)
	return svc, complaints, statements
}

func TestAdminDashboardAggregation(t *testing.T) {
	svc, _, _ := newDashboardFixture(&mockViewCache{})
	scope := models.ScopeForCampus("campus-1")

	board, cached, err := svc.Admin(context.Background(), scope)
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 240, board.ActiveStudents)
	assert.Equal(t, 18, board.ActiveEmployees)
	assert.InDelta(t, 84000, board.OutstandingDues, 0.001)
	// Present, late and short leave all count as attending: 15 of 20.
	assert.InDelta(t, 75.0, board.AttendanceToday, 0.001)
	assert.Equal(t, 3, board.OpenComplaints)
	assert.Equal(t, 2, board.InProgressComplaints)
	require.Len(t, board.RevenueTrend, 1)
	require.Len(t, board.ExpenditureTrend, 1)
}

func TestAdminDashboardCached(t *testing.T) {
	cache := &mockViewCache{}
	svc, _, _ := newDashboardFixture(cache)
	scope := models.ScopeForCampus("campus-1")

	_, cached, err := svc.Admin(context.Background(), scope)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 1, cache.sets)

	_, cached, err = svc.Admin(context.Background(), scope)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)
}

func TestDashboardInvalidateDropsScopeAndAggregate(t *testing.T) {
	cache := &mockViewCache{}
	svc, _, _ := newDashboardFixture(cache)

	svc.Invalidate(context.Background(), models.ScopeForCampus("campus-1"))
	assert.Equal(t, []string{"dashboard:admin:campus-1", "dashboard:admin:all"}, cache.invalidated)

	cache.invalidated = nil
	svc.Invalidate(context.Background(), models.ScopeAllCampuses())
	assert.Equal(t, []string{"dashboard:admin:*"}, cache.invalidated)
}

func TestTeacherDashboardFiltersDoneTodos(t *testing.T) {
	svc, _, _ := newDashboardFixture(&mockViewCache{})

	board, err := svc.Teacher(context.Background(), models.ScopeForCampus("campus-1"), "user-1")
	require.NoError(t, err)

	require.Len(t, board.PendingTodos, 1)
	assert.Equal(t, "todo-1", board.PendingTodos[0].ID)
	require.Len(t, board.UpcomingEvents, 1)
	assert.Equal(t, 3, board.OpenComplaints)
	assert.InDelta(t, 75.0, board.AttendanceToday, 0.001)
	assert.Equal(t, 34, board.MarksEnteredToday)
}

func TestStudentDashboardToleratesMissingFeeSchedule(t *testing.T) {
	svc, _, statements := newDashboardFixture(&mockViewCache{})
	statements.err = appErrors.Clone(appErrors.ErrConfigMissing, "no fee schedule for class class-5")

	board, err := svc.Student(context.Background(), models.ScopeForCampus("campus-1"), "student-1")
	require.NoError(t, err)
	assert.Nil(t, board.Statement)
	require.Len(t, board.UpcomingEvents, 1)
}

func TestStudentDashboardWithStatement(t *testing.T) {
	svc, _, _ := newDashboardFixture(&mockViewCache{})

	board, err := svc.Student(context.Background(), models.ScopeForCampus("campus-1"), "student-1")
	require.NoError(t, err)
	require.NotNil(t, board.Statement)
	assert.InDelta(t, 1575, board.Statement.TotalPayable, 0.001)
}
