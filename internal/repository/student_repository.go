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

// StudentRepository handles student persistence.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, campus_id, registration_no, full_name, guardian_name, guardian_phone, class_id, section_id,
admission_fee_paid, tuition_discount_pct, admission_discount_pct, registered_at, has_left, left_at, created_at, updated_at`

// FindByID returns a single student within the tenant scope.
func (r *StudentRepository) FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	var args []interface{}
	args = append(args, id)
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, args...); err != nil {
		return nil, err
	}
	return &student, nil
}

// List returns students matching the filter, campus scoped, with total count.
func (r *StudentRepository) List(ctx context.Context, scope models.TenantScope, filter models.StudentFilter) ([]models.Student, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	where += clause
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		where += fmt.Sprintf(" AND class_id = $%d", len(args))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		where += fmt.Sprintf(" AND section_id = $%d", len(args))
	}
	if filter.HasLeft != nil {
		args = append(args, *filter.HasLeft)
		where += fmt.Sprintf(" AND has_left = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		where += fmt.Sprintf(" AND (LOWER(full_name) LIKE $%d OR LOWER(registration_no) LIKE $%d)", len(args), len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM students%s ORDER BY %s %s", studentColumns, where, sortColumn(filter.SortBy), sortOrder(filter.SortOrder))
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

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	return students, total, nil
}

// ListActiveByClass returns students of a class that have not left.
func (r *StudentRepository) ListActiveByClass(ctx context.Context, scope models.TenantScope, classID string) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE has_left = FALSE", studentColumns)
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	if classID != "" {
		args = append(args, classID)
		query += fmt.Sprintf(" AND class_id = $%d", len(args))
	}
	query += " ORDER BY registration_no"
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// Create inserts a new student row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.RegisteredAt.IsZero() {
		student.RegisteredAt = now
	}
	const query = `INSERT INTO students (id, campus_id, registration_no, full_name, guardian_name, guardian_phone, class_id, section_id,
admission_fee_paid, tuition_discount_pct, admission_discount_pct, registered_at, has_left, left_at, created_at, updated_at)
VALUES (:id, :campus_id, :registration_no, :full_name, :guardian_name, :guardian_phone, :class_id, :section_id,
:admission_fee_paid, :tuition_discount_pct, :admission_discount_pct, :registered_at, :has_left, :left_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a student row.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, guardian_name = :guardian_name, guardian_phone = :guardian_phone,
class_id = :class_id, section_id = :section_id, admission_fee_paid = :admission_fee_paid,
tuition_discount_pct = :tuition_discount_pct, admission_discount_pct = :admission_discount_pct, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update student: no row for %s", student.ID)
	}
	return nil
}

// MarkLeft soft-deletes a student by flipping the has_left flag.
func (r *StudentRepository) MarkLeft(ctx context.Context, scope models.TenantScope, id string, leftAt time.Time) error {
	query := "UPDATE students SET has_left = TRUE, left_at = $1, updated_at = $2 WHERE id = $3"
	args := []interface{}{leftAt, time.Now().UTC(), id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark student left: %w", err)
	}
	return nil
}

// CountActive returns the number of enrolled students in scope.
func (r *StudentRepository) CountActive(ctx context.Context, scope models.TenantScope) (int, error) {
	query := "SELECT COUNT(*) FROM students WHERE has_left = FALSE"
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count active students: %w", err)
	}
	return count, nil
}

func sortColumn(requested string) string {
	switch requested {
	case "name":
		return "full_name"
	case "registered_at":
		return "registered_at"
	default:
		return "registration_no"
	}
}

func sortOrder(requested string) string {
	if strings.EqualFold(requested, "desc") {
		return "DESC"
	}
	return "ASC"
}
