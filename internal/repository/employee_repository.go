package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// EmployeeRepository handles employee, salary definition and attendance
// persistence.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository creates a new employee repository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = `id, campus_id, full_name, phone, email, designation, joined_at, active, left_at, created_at, updated_at`

// FindByID returns a single employee within the tenant scope.
func (r *EmployeeRepository) FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	var args []interface{}
	args = append(args, id)
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, args...); err != nil {
		return nil, err
	}
	return &employee, nil
}

// List returns employees matching the filter with a total count.
func (r *EmployeeRepository) List(ctx context.Context, scope models.TenantScope, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	where += clause
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where += fmt.Sprintf(" AND LOWER(full_name) LIKE $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM employees"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM employees%s ORDER BY full_name %s", employeeColumns, where, sortOrder(filter.SortOrder))
	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		args = append(args, filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		args = append(args, (page-1)*filter.PageSize)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	return employees, total, nil
}

// ListActive returns every active employee in scope.
func (r *EmployeeRepository) ListActive(ctx context.Context, scope models.TenantScope) ([]models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE active = TRUE", employeeColumns)
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " ORDER BY full_name"
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	return employees, nil
}

// Create inserts a new employee row.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	employee.CreatedAt = now
	employee.UpdatedAt = now
	if employee.JoinedAt.IsZero() {
		employee.JoinedAt = now
	}
	const query = `INSERT INTO employees (id, campus_id, full_name, phone, email, designation, joined_at, active, left_at, created_at, updated_at)
VALUES (:id, :campus_id, :full_name, :phone, :email, :designation, :joined_at, :active, :left_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update rewrites mutable employee fields.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET full_name = :full_name, phone = :phone, email = :email, designation = :designation,
active = :active, left_at = :left_at, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, employee)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update employee: no row for %s", employee.ID)
	}
	return nil
}

// CountActive returns the number of active employees in scope.
func (r *EmployeeRepository) CountActive(ctx context.Context, scope models.TenantScope) (int, error) {
	query := "SELECT COUNT(*) FROM employees WHERE active = TRUE"
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active employees: %w", err)
	}
	return count, nil
}

// ActiveSalaryDefinition returns the employee's current salary contract.
// sql.ErrNoRows signals missing required configuration.
func (r *EmployeeRepository) ActiveSalaryDefinition(ctx context.Context, employeeID string) (*models.SalaryDefinition, error) {
	const query = `SELECT id, employee_id, basic_salary, allowances, deductions, active, effective_from, superseded_at, created_at
FROM salary_definitions WHERE employee_id = $1 AND active = TRUE
ORDER BY effective_from DESC LIMIT 1`
	var def models.SalaryDefinition
	if err := r.db.GetContext(ctx, &def, query, employeeID); err != nil {
		return nil, err
	}
	return &def, nil
}

// SupersedeSalaryDefinition deactivates the active contract and inserts the
// replacement inside one transaction. Active rows are never mutated in place.
func (r *EmployeeRepository) SupersedeSalaryDefinition(ctx context.Context, def *models.SalaryDefinition) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		"UPDATE salary_definitions SET active = FALSE, superseded_at = $1 WHERE employee_id = $2 AND active = TRUE",
		now, def.EmployeeID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("supersede salary definition: %w", err)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	def.Active = true
	def.CreatedAt = now
	if def.EffectiveFrom.IsZero() {
		def.EffectiveFrom = now
	}
	const insert = `INSERT INTO salary_definitions (id, employee_id, basic_salary, allowances, deductions, active, effective_from, superseded_at, created_at)
VALUES (:id, :employee_id, :basic_salary, :allowances, :deductions, :active, :effective_from, :superseded_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, def); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert salary definition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit salary definition: %w", err)
	}
	return nil
}

// AttendanceForMonth returns every attendance record for the employee within
// the period, keyed by day for the payroll walk.
func (r *EmployeeRepository) AttendanceForMonth(ctx context.Context, employeeID string, period models.Period) (map[string]models.EmployeeAttendance, error) {
	start := period.Start()
	end := start.AddDate(0, 1, 0)
	const query = `SELECT id, employee_id, date, status, notes, created_at, updated_at
FROM employee_attendance WHERE employee_id = $1 AND date >= $2 AND date < $3`
	var rows []models.EmployeeAttendance
	if err := r.db.SelectContext(ctx, &rows, query, employeeID, start, end); err != nil {
		return nil, fmt.Errorf("load attendance: %w", err)
	}
	byDay := make(map[string]models.EmployeeAttendance, len(rows))
	for _, row := range rows {
		byDay[row.Date.Format("2006-01-02")] = row
	}
	return byDay, nil
}

// UpsertAttendance records or corrects one day's attendance.
func (r *EmployeeRepository) UpsertAttendance(ctx context.Context, record *models.EmployeeAttendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO employee_attendance (id, employee_id, date, status, notes, created_at, updated_at)
VALUES (:id, :employee_id, :date, :status, :notes, :created_at, :updated_at)
ON CONFLICT (employee_id, date)
DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// AttendanceCounts returns per-status counts for a date within scope,
// feeding the dashboard attendance percentage.
func (r *EmployeeRepository) AttendanceCounts(ctx context.Context, scope models.TenantScope, date time.Time) (map[models.AttendanceStatus]int, error) {
	query := `SELECT a.status AS status, COUNT(*) AS count
FROM employee_attendance a JOIN employees e ON e.id = a.employee_id
WHERE a.date = $1`
	args := []interface{}{time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)}
	clause, args := scopeClause(scope, "e.campus_id", args)
	query += clause
	query += " GROUP BY a.status"
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("attendance counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.AttendanceStatus]int)
	for rows.Next() {
		var row struct {
			Status models.AttendanceStatus `db:"status"`
			Count  int                     `db:"count"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan attendance count: %w", err)
		}
		counts[row.Status] = row.Count
	}
	return counts, nil
}
