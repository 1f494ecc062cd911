package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/middleware"
	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/internal/repository"
	"github.com/maktab-hq/maktab-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth       *AuthHandler
	Students   *StudentHandler
	Employees  *EmployeeHandler
	Billing    *BillingHandler
	Payroll    *PayrollHandler
	Exams      *ExamHandler
	Dashboards *DashboardHandler
	Complaints *ComplaintHandler
	Todos      *TodoHandler
	Calendar   *CalendarHandler
	ClassFees  *ClassFeeHandler
	Reports    *ReportHandler
	Metrics    *MetricsHandler
}

// Register wires every route group under the API prefix. The export download
// route is token-authenticated and stays outside the JWT group.
func Register(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, users *repository.UserRepository) {
	staff := middleware.RequireRoles(models.RoleOwner, models.RoleAdmin, models.RoleAccountant, models.RoleTeacher)
	admins := middleware.RequireRoles(models.RoleOwner, models.RoleAdmin)
	finance := middleware.RequireRoles(models.RoleOwner, models.RoleAdmin, models.RoleAccountant)
	markers := middleware.RequireRoles(models.RoleOwner, models.RoleAdmin, models.RoleTeacher)

	api := r.Group(prefix)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/export/:token", h.Reports.Download)

	authed := api.Group("")
	authed.Use(middleware.JWT(auth), middleware.Tenant())

	authed.POST("/auth/logout", h.Auth.Logout)
	authed.POST("/auth/change-password", middleware.Audit(users, models.AuditActionPasswordChange, "user"), h.Auth.ChangePassword)
	authed.GET("/auth/me", h.Auth.Me)

	students := authed.Group("/students")
	{
		students.GET("", staff, h.Students.List)
		students.GET("/:id", staff, h.Students.Get)
		students.POST("", admins, h.Students.Create)
		students.PUT("/:id", admins, h.Students.Update)
		students.POST("/:id/leave", admins, h.Students.MarkLeft)
		students.GET("/:id/fines", finance, h.ClassFees.Fines)
	}

	employees := authed.Group("/employees")
	{
		employees.GET("", finance, h.Employees.List)
		employees.GET("/:id", finance, h.Employees.Get)
		employees.POST("", admins, h.Employees.Create)
		employees.PUT("/:id", admins, h.Employees.Update)
		employees.GET("/:id/salary", finance, h.Employees.Salary)
		employees.POST("/:id/salary", admins, h.Employees.SetSalary)
		employees.POST("/attendance", markers, h.Employees.MarkAttendance)
	}

	billing := authed.Group("/billing", finance)
	{
		billing.GET("/students/:id/statement", h.Billing.Statement)
		billing.GET("/students/:id/transactions", h.Billing.Transactions)
		billing.POST("/payments", middleware.Audit(users, models.AuditActionFeePayment, "billing"), h.Billing.RecordPayment)
		billing.GET("/revenue-projection", h.Billing.ProjectRevenue)
	}

	payroll := authed.Group("/payroll", finance)
	{
		payroll.GET("/employees/:id", h.Payroll.Compute)
		payroll.GET("/employees/:id/transactions", h.Payroll.Transactions)
		payroll.POST("/settlements", middleware.Audit(users, models.AuditActionPayrollSettle, "payroll"), h.Payroll.Settle)
		payroll.GET("/sheet", h.Payroll.Sheet)
	}

	exams := authed.Group("/exams")
	{
		exams.GET("", h.Exams.List)
		exams.POST("", markers, h.Exams.Create)
		exams.GET("/subjects", h.Exams.Subjects)
		exams.GET("/marks", h.Exams.Marks)
		exams.POST("/marks", markers, middleware.Audit(users, models.AuditActionMarksEntry, "exam"), h.Exams.EnterMark)
		exams.GET("/analysis", h.Exams.Analysis)
		exams.GET("/rankings", h.Exams.Rankings)
	}

	dashboards := authed.Group("/dashboards")
	{
		dashboards.GET("/admin", admins, h.Dashboards.Admin)
		dashboards.GET("/teacher", middleware.RequireRoles(models.RoleTeacher), h.Dashboards.Teacher)
		dashboards.GET("/student", middleware.RequireRoles(models.RoleStudent), h.Dashboards.Student)
	}

	complaints := authed.Group("/complaints")
	{
		complaints.POST("", h.Complaints.File)
		complaints.GET("", h.Complaints.List)
		complaints.GET("/:id", h.Complaints.Get)
		complaints.PUT("/:id/status", admins, h.Complaints.UpdateStatus)
	}

	todos := authed.Group("/todos")
	{
		todos.GET("", h.Todos.List)
		todos.POST("", h.Todos.Create)
		todos.PUT("/:id/done", h.Todos.SetDone)
		todos.DELETE("/:id", h.Todos.Delete)
	}

	calendar := authed.Group("/calendar")
	{
		calendar.GET("/events", h.Calendar.List)
		calendar.POST("/events", admins, h.Calendar.Create)
		calendar.DELETE("/events/:id", admins, h.Calendar.Delete)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("/:id/fees", staff, h.ClassFees.Schedule)
		classes.PUT("/fees", admins, h.ClassFees.SetSchedule)
		classes.GET("/:id/charges", staff, h.ClassFees.Charges)
		classes.POST("/charges", admins, h.ClassFees.CreateCharge)
		classes.DELETE("/charges/:id", admins, h.ClassFees.DeactivateCharge)
		classes.POST("/charges/opt-in", finance, h.ClassFees.SetOptIn)
	}

	fines := authed.Group("/fines", finance)
	{
		fines.POST("", h.ClassFees.IssueFine)
		fines.POST("/:id/settle", h.ClassFees.SettleFine)
		fines.POST("/:id/waive", h.ClassFees.WaiveFine)
	}

	reports := authed.Group("/reports", staff)
	{
		reports.POST("", h.Reports.Create)
		reports.GET("/:id", h.Reports.Status)
	}

	authed.GET("/metrics/snapshot", admins, h.Metrics.Snapshot)
}
