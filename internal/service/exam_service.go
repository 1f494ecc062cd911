package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type examStore interface {
	FindExam(ctx context.Context, scope models.TenantScope, id string) (*models.Exam, error)
	CreateExam(ctx context.Context, exam *models.Exam) error
	ListExams(ctx context.Context, scope models.TenantScope, yearStart int) ([]models.Exam, error)
	UpsertMark(ctx context.Context, mark *models.ExamMark) error
	ListMarks(ctx context.Context, scope models.TenantScope, filter models.ExamMarkFilter) ([]models.ExamMarkRow, error)
	CountEnteredOn(ctx context.Context, scope models.TenantScope, day time.Time) (int, error)
	ListSubjects(ctx context.Context, scope models.TenantScope) ([]models.Subject, error)
}

type examStudentReader interface {
	FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Student, error)
}

type viewCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// EnterMarkRequest is the payload for recording one mark entry.
type EnterMarkRequest struct {
	StudentID     string  `json:"student_id" validate:"required"`
	ExamID        string  `json:"exam_id" validate:"required"`
	SubjectID     string  `json:"subject_id" validate:"required"`
	AcademicYear  string  `json:"academic_year" validate:"required"`
	ObtainedMarks float64 `json:"obtained_marks" validate:"min=0"`
	TotalMarks    float64 `json:"total_marks" validate:"required,gt=0"`
	PassingMarks  float64 `json:"passing_marks" validate:"min=0"`
}

// CreateExamRequest is the payload for declaring an exam.
type CreateExamRequest struct {
	Name         string    `json:"name" validate:"required"`
	AcademicYear string    `json:"academic_year" validate:"required"`
	HeldAt       time.Time `json:"held_at"`
}

// ExamService records marks and aggregates exam analysis and rankings.
type ExamService struct {
	exams     examStore
	students  examStudentReader
	cache     viewCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs an ExamService.
func NewExamService(exams examStore, students examStudentReader, cache viewCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{
		exams:     exams,
		students:  students,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// GradeFor maps a percentage to its letter grade. A failed entry is always
// graded F regardless of percentage.
func GradeFor(percentage float64, failed bool) string {
	if failed {
		return "F"
	}
	switch {
	case percentage >= 90:
		return "A+"
	case percentage >= 80:
		return "A"
	case percentage >= 70:
		return "B"
	case percentage >= 60:
		return "C"
	case percentage >= 50:
		return "D"
	default:
		return "F"
	}
}

// CreateExam declares a named exam in an academic year.
func (s *ExamService) CreateExam(ctx context.Context, scope models.TenantScope, req CreateExamRequest) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	year, err := models.ParseAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if scope.AllCampuses {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exam requires a campus scope")
	}
	exam := &models.Exam{
		CampusID:  scope.CampusID,
		Name:      req.Name,
		YearStart: year.Start,
		HeldAt:    req.HeldAt,
	}
	if exam.HeldAt.IsZero() {
		exam.HeldAt = time.Now().UTC()
	}
	if err := s.exams.CreateExam(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// ListExams returns the exams of an academic year.
func (s *ExamService) ListExams(ctx context.Context, scope models.TenantScope, academicYear string) ([]models.Exam, error) {
	year, err := models.ParseAcademicYear(academicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	exams, err := s.exams.ListExams(ctx, scope, year.Start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	return exams, nil
}

// EnterMark records a mark entry, deriving status, grade and percentage.
// Re-entry for the same (student, exam, subject, year) replaces the earlier
// values. Aggregates cached for the exam are invalidated.
func (s *ExamService) EnterMark(ctx context.Context, scope models.TenantScope, req EnterMarkRequest) (*models.ExamMark, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}
	if req.ObtainedMarks > req.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "obtained marks exceed total marks")
	}
	if req.PassingMarks > req.TotalMarks {
		return nil, appErrors.Clone(appErrors.ErrValidation, "passing marks exceed total marks")
	}
	year, err := models.ParseAcademicYear(req.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	student, err := s.students.FindByID(ctx, scope, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	exam, err := s.exams.FindExam(ctx, scope, req.ExamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	status := models.MarkPass
	if req.ObtainedMarks < req.PassingMarks {
		status = models.MarkFail
	}
	percentage := req.ObtainedMarks / req.TotalMarks * 100

	mark := &models.ExamMark{
		CampusID:      student.CampusID,
		StudentID:     student.ID,
		ExamID:        exam.ID,
		SubjectID:     req.SubjectID,
		YearStart:     year.Start,
		ObtainedMarks: req.ObtainedMarks,
		TotalMarks:    req.TotalMarks,
		PassingMarks:  req.PassingMarks,
		Status:        status,
		Grade:         GradeFor(percentage, status == models.MarkFail),
		Percentage:    percentage,
	}
	if err := s.exams.UpsertMark(ctx, mark); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, fmt.Sprintf("exams:analysis:%s:*", exam.ID)); err != nil {
			s.logger.Warn("failed to invalidate exam analysis cache", zap.String("exam_id", exam.ID), zap.Error(err))
		}
	}
	return mark, nil
}

// round1 rounds to one decimal place for reported rates.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Analysis aggregates the marks matching the filter. Breakdown dimensions
// are computed only for dimensions the filter leaves unpinned; pinning a
// dimension collapses its breakdown into the headline numbers.
func (s *ExamService) Analysis(ctx context.Context, scope models.TenantScope, filter models.ExamMarkFilter) (*models.ExamAnalysis, error) {
	cacheKey := analysisCacheKey(scope, filter)
	if s.cache != nil {
		var cached models.ExamAnalysis
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	rows, err := s.exams.ListMarks(ctx, scope, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}

	analysis := aggregateMarks(rows)
	if filter.SubjectID == "" {
		analysis.BySubject = groupMarks(rows, func(r models.ExamMarkRow) (string, string) { return r.SubjectID, r.SubjectName })
	}
	if filter.SectionID == "" && filter.StudentID == "" {
		analysis.BySection = groupMarks(rows, func(r models.ExamMarkRow) (string, string) {
			if r.SectionID == nil {
				return "", ""
			}
			return *r.SectionID, *r.SectionID
		})
	}
	if filter.ClassID == "" && filter.StudentID == "" {
		analysis.ByClass = groupMarks(rows, func(r models.ExamMarkRow) (string, string) { return r.ClassID, r.ClassID })
	}
	if scope.AllCampuses {
		analysis.ByCampus = groupMarks(rows, func(r models.ExamMarkRow) (string, string) { return r.CampusID, r.CampusID })
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := s.cache.Set(ctx, cacheKey, analysis, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache exam analysis", zap.Error(err))
		}
	}
	return analysis, nil
}

func analysisCacheKey(scope models.TenantScope, filter models.ExamMarkFilter) string {
	campus := scope.CampusID
	if scope.AllCampuses {
		campus = "all"
	}
	return fmt.Sprintf("exams:analysis:%s:%s:%s:%s:%s:%s:%d",
		filter.ExamID, campus, filter.SubjectID, filter.ClassID, filter.SectionID, filter.StudentID, filter.YearStart)
}

func aggregateMarks(rows []models.ExamMarkRow) *models.ExamAnalysis {
	analysis := &models.ExamAnalysis{Count: len(rows)}
	if len(rows) == 0 {
		return analysis
	}
	var obtained, pct float64
	var passes int
	for _, row := range rows {
		obtained += row.ObtainedMarks
		pct += row.Percentage
		if row.Status == models.MarkPass {
			passes++
		}
	}
	n := float64(len(rows))
	analysis.AverageObtained = obtained / n
	analysis.AveragePct = round1(pct / n)
	analysis.PassRate = round1(float64(passes) / n * 100)
	return analysis
}

// groupMarks buckets rows by a key and aggregates each bucket, keeping the
// first-seen order of keys. Rows with an empty key are skipped.
func groupMarks(rows []models.ExamMarkRow, keyFn func(models.ExamMarkRow) (string, string)) []models.GroupStat {
	type bucket struct {
		label    string
		count    int
		obtained float64
		pct      float64
		passes   int
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)
	for _, row := range rows {
		key, label := keyFn(row)
		if key == "" {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{label: label}
			buckets[key] = b
			order = append(order, key)
		}
		b.count++
		b.obtained += row.ObtainedMarks
		b.pct += row.Percentage
		if row.Status == models.MarkPass {
			b.passes++
		}
	}
	if len(order) == 0 {
		return nil
	}
	stats := make([]models.GroupStat, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		n := float64(b.count)
		stats = append(stats, models.GroupStat{
			Key:           key,
			Label:         b.label,
			Count:         b.count,
			AveragePct:    round1(b.pct / n),
			PassRate:      round1(float64(b.passes) / n * 100),
			TotalObtained: b.obtained,
		})
	}
	return stats
}

// Rankings orders the students of an exam by aggregate percentage, breaking
// ties by total obtained marks and then by mark insertion order. Students
// sharing identical percentage and total share adjacent ranks, never the
// same rank.
func (s *ExamService) Rankings(ctx context.Context, scope models.TenantScope, examID, classID string) ([]models.StudentRanking, error) {
	exam, err := s.exams.FindExam(ctx, scope, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	rows, err := s.exams.ListMarks(ctx, scope, models.ExamMarkFilter{ExamID: exam.ID, ClassID: classID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}

	order := make([]string, 0)
	byStudent := make(map[string]*models.StudentRanking)
	for _, row := range rows {
		agg, ok := byStudent[row.StudentID]
		if !ok {
			agg = &models.StudentRanking{StudentID: row.StudentID, StudentName: row.StudentName}
			byStudent[row.StudentID] = agg
			order = append(order, row.StudentID)
		}
		agg.TotalObtained += row.ObtainedMarks
		agg.TotalMarks += row.TotalMarks
		agg.Subjects++
		if row.Status == models.MarkFail {
			agg.Fails++
		}
	}

	rankings := make([]models.StudentRanking, 0, len(order))
	for _, id := range order {
		agg := byStudent[id]
		if agg.TotalMarks > 0 {
			agg.Percentage = round1(agg.TotalObtained / agg.TotalMarks * 100)
		}
		rankings = append(rankings, *agg)
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		if rankings[i].Percentage != rankings[j].Percentage {
			return rankings[i].Percentage > rankings[j].Percentage
		}
		return rankings[i].TotalObtained > rankings[j].TotalObtained
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	return rankings, nil
}

// Marks returns the raw mark rows matching the filter.
func (s *ExamService) Marks(ctx context.Context, scope models.TenantScope, filter models.ExamMarkFilter) ([]models.ExamMarkRow, error) {
	rows, err := s.exams.ListMarks(ctx, scope, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marks")
	}
	return rows, nil
}

// CountEnteredOn reports how many marks were entered or corrected on the
// given day.
func (s *ExamService) CountEnteredOn(ctx context.Context, scope models.TenantScope, day time.Time) (int, error) {
	count, err := s.exams.CountEnteredOn(ctx, scope, day)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count entered marks")
	}
	return count, nil
}

// Subjects returns the subject catalogue in scope.
func (s *ExamService) Subjects(ctx context.Context, scope models.TenantScope) ([]models.Subject, error) {
	subjects, err := s.exams.ListSubjects(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}
