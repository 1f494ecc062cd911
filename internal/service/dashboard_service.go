package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/dto"
	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type dashboardStudentReader interface {
	CountActive(ctx context.Context, scope models.TenantScope) (int, error)
}

type dashboardEmployeeReader interface {
	CountActive(ctx context.Context, scope models.TenantScope) (int, error)
	AttendanceCounts(ctx context.Context, scope models.TenantScope, date time.Time) (map[models.AttendanceStatus]int, error)
}

type dashboardBillingReader interface {
	OutstandingDues(ctx context.Context, scope models.TenantScope) (float64, error)
	MonthlyRevenue(ctx context.Context, scope models.TenantScope, from time.Time) ([]models.MonthlyRevenuePoint, error)
}

type dashboardPayrollReader interface {
	MonthlyExpenditure(ctx context.Context, scope models.TenantScope, from time.Time) ([]models.MonthlyRevenuePoint, error)
}

type dashboardComplaintReader interface {
	CountByStatus(ctx context.Context, scope models.TenantScope) (map[models.ComplaintStatus]int, error)
}

type dashboardTodoReader interface {
	ListByUser(ctx context.Context, userID string, includeDone bool) ([]models.Todo, error)
}

type dashboardCalendarReader interface {
	ListBetween(ctx context.Context, scope models.TenantScope, from, to time.Time) ([]models.CalendarEvent, error)
}

type statementProvider interface {
	Statement(ctx context.Context, scope models.TenantScope, studentID string, period models.Period) (*models.BillingStatement, error)
}

type marksProvider interface {
	Marks(ctx context.Context, scope models.TenantScope, filter models.ExamMarkFilter) ([]models.ExamMarkRow, error)
	CountEnteredOn(ctx context.Context, scope models.TenantScope, day time.Time) (int, error)
}

// DashboardService assembles role-specific landing views. Admin dashboards
// are cached per scope; a cache failure degrades to a direct read.
type DashboardService struct {
	students   dashboardStudentReader
	employees  dashboardEmployeeReader
	billing    dashboardBillingReader
	payroll    dashboardPayrollReader
	complaints dashboardComplaintReader
	todos      dashboardTodoReader
	calendar   dashboardCalendarReader
	statements statementProvider
	marks      marksProvider
	cache      viewCache
	cacheTTL   time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(
	students dashboardStudentReader,
	employees dashboardEmployeeReader,
	billing dashboardBillingReader,
	payroll dashboardPayrollReader,
	complaints dashboardComplaintReader,
	todos dashboardTodoReader,
	calendar dashboardCalendarReader,
	statements statementProvider,
	marks marksProvider,
	cache viewCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students:   students,
		employees:  employees,
		billing:    billing,
		payroll:    payroll,
		complaints: complaints,
		todos:      todos,
		calendar:   calendar,
		statements: statements,
		marks:      marks,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
		now:        time.Now,
	}
}

func dashboardCacheKey(scope models.TenantScope) string {
	if scope.AllCampuses {
		return "dashboard:admin:all"
	}
	return fmt.Sprintf("dashboard:admin:%s", scope.CampusID)
}

// Admin builds the management overview: headcounts, dues, today's staff
// attendance percentage, complaint counts and twelve-month money trends.
// The boolean reports whether the view was served from cache.
func (s *DashboardService) Admin(ctx context.Context, scope models.TenantScope) (*dto.AdminDashboard, bool, error) {
	key := dashboardCacheKey(scope)
	if s.cache != nil {
		var cached dto.AdminDashboard
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	board := &dto.AdminDashboard{}
	var err error
	if board.ActiveStudents, err = s.students.CountActive(ctx, scope); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if board.ActiveEmployees, err = s.employees.CountActive(ctx, scope); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count employees")
	}
	if board.OutstandingDues, err = s.billing.OutstandingDues(ctx, scope); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum outstanding dues")
	}

	counts, err := s.employees.AttendanceCounts(ctx, scope, s.now().UTC())
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	board.AttendanceToday = attendancePct(counts)

	complaintCounts, err := s.complaints.CountByStatus(ctx, scope)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	board.OpenComplaints = complaintCounts[models.ComplaintOpen]
	board.InProgressComplaints = complaintCounts[models.ComplaintInProgress]

	from := models.PeriodOf(s.now()).Start().AddDate(0, -11, 0)
	if board.RevenueTrend, err = s.billing.MonthlyRevenue(ctx, scope, from); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load revenue trend")
	}
	if board.ExpenditureTrend, err = s.payroll.MonthlyExpenditure(ctx, scope, from); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load expenditure trend")
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, key, board, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache admin dashboard", zap.Error(err))
		}
	}
	return board, false, nil
}

// attendancePct folds status counts into the attending percentage. Present,
// late and short-leave staff all count as attending.
func attendancePct(counts map[models.AttendanceStatus]int) float64 {
	var present, total int
	for status, count := range counts {
		total += count
		switch status {
		case models.AttendancePresent, models.AttendanceLate, models.AttendanceShortLeave:
			present += count
		}
	}
	if total == 0 {
		return 0
	}
	return round1(float64(present) / float64(total) * 100)
}

// Teacher builds the landing view for teaching staff.
func (s *DashboardService) Teacher(ctx context.Context, scope models.TenantScope, userID string) (*dto.TeacherDashboard, error) {
	board := &dto.TeacherDashboard{}
	todos, err := s.todos.ListByUser(ctx, userID, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todos")
	}
	board.PendingTodos = todos

	now := s.now().UTC()
	events, err := s.calendar.ListBetween(ctx, scope, now, now.AddDate(0, 1, 0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	board.UpcomingEvents = events

	complaintCounts, err := s.complaints.CountByStatus(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	board.OpenComplaints = complaintCounts[models.ComplaintOpen]

	counts, err := s.employees.AttendanceCounts(ctx, scope, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}
	board.AttendanceToday = attendancePct(counts)

	if board.MarksEnteredToday, err = s.marks.CountEnteredOn(ctx, scope, now); err != nil {
		return nil, err
	}
	return board, nil
}

// Student builds the landing view for a student account: the current fee
// statement, recent marks and upcoming events. A missing fee schedule leaves
// the statement empty instead of failing the whole view.
func (s *DashboardService) Student(ctx context.Context, scope models.TenantScope, studentID string) (*dto.StudentDashboard, error) {
	board := &dto.StudentDashboard{}

	statement, err := s.statements.Statement(ctx, scope, studentID, models.PeriodOf(s.now()))
	if err != nil {
		if appErr := appErrors.FromError(err); appErr == nil || appErr.Code != appErrors.ErrConfigMissing.Code {
			return nil, err
		}
		s.logger.Debug("student dashboard without statement", zap.String("student_id", studentID), zap.Error(err))
	} else {
		board.Statement = statement
	}

	marks, err := s.marks.Marks(ctx, scope, models.ExamMarkFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	if len(marks) > 10 {
		marks = marks[len(marks)-10:]
	}
	board.RecentMarks = marks

	now := s.now().UTC()
	events, err := s.calendar.ListBetween(ctx, scope, now, now.AddDate(0, 1, 0))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	board.UpcomingEvents = events
	return board, nil
}

// Invalidate drops cached dashboards after a mutating operation. The
// all-campuses view aggregates every campus, so it goes too.
func (s *DashboardService) Invalidate(ctx context.Context, scope models.TenantScope) {
	if s.cache == nil {
		return
	}
	patterns := []string{dashboardCacheKey(scope), "dashboard:admin:all"}
	if scope.AllCampuses {
		patterns = []string{"dashboard:admin:*"}
	}
	for _, pattern := range patterns {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}
