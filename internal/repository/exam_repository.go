package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// ExamRepository handles exam and mark persistence.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository creates a new exam repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// FindExam returns an exam by ID within the tenant scope.
func (r *ExamRepository) FindExam(ctx context.Context, scope models.TenantScope, id string) (*models.Exam, error) {
	query := `SELECT id, campus_id, name, year_start, held_at, created_at FROM exams WHERE id = $1`
	args := []interface{}{id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, args...); err != nil {
		return nil, err
	}
	return &exam, nil
}

// CreateExam inserts an exam row.
func (r *ExamRepository) CreateExam(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	exam.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO exams (id, campus_id, name, year_start, held_at, created_at)
VALUES (:id, :campus_id, :name, :year_start, :held_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// ListExams returns the exams of an academic year.
func (r *ExamRepository) ListExams(ctx context.Context, scope models.TenantScope, yearStart int) ([]models.Exam, error) {
	query := `SELECT id, campus_id, name, year_start, held_at, created_at FROM exams WHERE year_start = $1`
	args := []interface{}{yearStart}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " ORDER BY held_at"
	var exams []models.Exam
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	return exams, nil
}

// UpsertMark writes a mark entry. Re-entry for the same
// (student, exam, subject, year) updates the existing row.
func (r *ExamRepository) UpsertMark(ctx context.Context, mark *models.ExamMark) error {
	if mark.ID == "" {
		mark.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if mark.CreatedAt.IsZero() {
		mark.CreatedAt = now
	}
	mark.UpdatedAt = now
	const query = `INSERT INTO exam_marks (id, campus_id, student_id, exam_id, subject_id, year_start,
obtained_marks, total_marks, passing_marks, status, grade, percentage, created_at, updated_at)
VALUES (:id, :campus_id, :student_id, :exam_id, :subject_id, :year_start,
:obtained_marks, :total_marks, :passing_marks, :status, :grade, :percentage, :created_at, :updated_at)
ON CONFLICT (student_id, exam_id, subject_id, year_start)
DO UPDATE SET obtained_marks = EXCLUDED.obtained_marks, total_marks = EXCLUDED.total_marks,
passing_marks = EXCLUDED.passing_marks, status = EXCLUDED.status, grade = EXCLUDED.grade,
percentage = EXCLUDED.percentage, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, mark); err != nil {
		return fmt.Errorf("upsert exam mark: %w", err)
	}
	return nil
}

// ListMarks returns mark rows matching the filter with display metadata,
// ordered by insertion for stable ranking tie-breaks.
func (r *ExamRepository) ListMarks(ctx context.Context, scope models.TenantScope, filter models.ExamMarkFilter) ([]models.ExamMarkRow, error) {
	query := `SELECT m.id, m.campus_id, m.student_id, m.exam_id, m.subject_id, m.year_start,
m.obtained_marks, m.total_marks, m.passing_marks, m.status, m.grade, m.percentage, m.created_at, m.updated_at,
s.full_name AS student_name, sub.name AS subject_name, s.class_id AS class_id, s.section_id AS section_id
FROM exam_marks m
JOIN students s ON s.id = m.student_id
JOIN subjects sub ON sub.id = m.subject_id
WHERE 1=1`
	var args []interface{}
	clause, args := scopeClause(scope, "m.campus_id", args)
	query += clause
	if filter.ExamID != "" {
		args = append(args, filter.ExamID)
		query += fmt.Sprintf(" AND m.exam_id = $%d", len(args))
	}
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		query += fmt.Sprintf(" AND m.subject_id = $%d", len(args))
	}
	if filter.ClassID != "" {
		args = append(args, filter.ClassID)
		query += fmt.Sprintf(" AND s.class_id = $%d", len(args))
	}
	if filter.SectionID != "" {
		args = append(args, filter.SectionID)
		query += fmt.Sprintf(" AND s.section_id = $%d", len(args))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		query += fmt.Sprintf(" AND m.student_id = $%d", len(args))
	}
	if filter.YearStart != 0 {
		args = append(args, filter.YearStart)
		query += fmt.Sprintf(" AND m.year_start = $%d", len(args))
	}
	query += " ORDER BY m.created_at, m.id"
	var rows []models.ExamMarkRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list exam marks: %w", err)
	}
	return rows, nil
}

// CountEnteredOn counts mark rows created or re-entered during the given
// calendar day.
func (r *ExamRepository) CountEnteredOn(ctx context.Context, scope models.TenantScope, day time.Time) (int, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	args := []interface{}{start, start.AddDate(0, 0, 1)}
	query := `SELECT COUNT(*) FROM exam_marks WHERE updated_at >= $1 AND updated_at < $2`
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count marks entered: %w", err)
	}
	return count, nil
}

// ListSubjects returns the subject catalogue in scope.
func (r *ExamRepository) ListSubjects(ctx context.Context, scope models.TenantScope) ([]models.Subject, error) {
	query := `SELECT id, campus_id, name, created_at FROM subjects WHERE 1=1`
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " ORDER BY name"
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}
