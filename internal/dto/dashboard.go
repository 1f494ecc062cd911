package dto

import "github.com/maktab-hq/maktab-api/internal/models"

// AdminDashboard is the management overview for owners and campus admins.
type AdminDashboard struct {
	ActiveStudents       int     `json:"active_students"`
	ActiveEmployees      int     `json:"active_employees"`
	OutstandingDues      float64 `json:"outstanding_dues"`
	AttendanceToday      float64 `json:"attendance_today_pct"`
	OpenComplaints       int     `json:"open_complaints"`
	InProgressComplaints int     `json:"in_progress_complaints"`

	RevenueTrend     []models.MonthlyRevenuePoint `json:"revenue_trend"`
	ExpenditureTrend []models.MonthlyRevenuePoint `json:"expenditure_trend"`
}

// TeacherDashboard is the landing view for teaching staff.
type TeacherDashboard struct {
	PendingTodos      []models.Todo          `json:"pending_todos"`
	UpcomingEvents    []models.CalendarEvent `json:"upcoming_events"`
	OpenComplaints    int                    `json:"open_complaints"`
	AttendanceToday   float64                `json:"attendance_today"`
	MarksEnteredToday int                    `json:"marks_entered_today"`
}

// StudentDashboard is the landing view for a student account.
type StudentDashboard struct {
	Statement      *models.BillingStatement `json:"statement,omitempty"`
	RecentMarks    []models.ExamMarkRow     `json:"recent_marks,omitempty"`
	UpcomingEvents []models.CalendarEvent   `json:"upcoming_events"`
}
