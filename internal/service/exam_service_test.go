package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/dto"
	"github.com/maktab-hq/maktab-api/internal/models"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
)

type mockExamStore struct {
	exams    map[string]models.Exam
	marks    []models.ExamMark
	rows     []models.ExamMarkRow
	subjects []models.Subject
}

func (m *mockExamStore) FindExam(_ context.Context, _ models.TenantScope, id string) (*models.Exam, error) {
	if exam, ok := m.exams[id]; ok {
		return &exam, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExamStore) CreateExam(_ context.Context, exam *models.Exam) error {
	if m.exams == nil {
		m.exams = make(map[string]models.Exam)
	}
	exam.ID = "exam-new"
	m.exams[exam.ID] = *exam
	return nil
}

func (m *mockExamStore) ListExams(_ context.Context, _ models.TenantScope, yearStart int) ([]models.Exam, error) {
	var result []models.Exam
	for _, exam := range m.exams {
		if exam.YearStart == yearStart {
			result = append(result, exam)
		}
	}
	return result, nil
}

func (m *mockExamStore) UpsertMark(_ context.Context, mark *models.ExamMark) error {
	m.marks = append(m.marks, *mark)
	return nil
}

func (m *mockExamStore) ListMarks(_ context.Context, _ models.TenantScope, filter models.ExamMarkFilter) ([]models.ExamMarkRow, error) {
	var result []models.ExamMarkRow
	for _, row := range m.rows {
		if filter.ExamID != "" && row.ExamID != filter.ExamID {
			continue
		}
		if filter.SubjectID != "" && row.SubjectID != filter.SubjectID {
			continue
		}
		if filter.ClassID != "" && row.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && row.StudentID != filter.StudentID {
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

func (m *mockExamStore) CountEnteredOn(_ context.Context, _ models.TenantScope, day time.Time) (int, error) {
	count := 0
	for _, row := range m.rows {
		if row.UpdatedAt.Year() == day.Year() && row.UpdatedAt.YearDay() == day.YearDay() {
			count++
		}
	}
	return count, nil
}

func (m *mockExamStore) ListSubjects(_ context.Context, _ models.TenantScope) ([]models.Subject, error) {
	return m.subjects, nil
}

type mockViewCache struct {
	entries     map[string]interface{}
	sets        int
	hits        int
	invalidated []string
}

func (m *mockViewCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	value, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	switch target := dest.(type) {
	case *models.ExamAnalysis:
		if cached, ok := value.(*models.ExamAnalysis); ok {
			*target = *cached
			m.hits++
			return true, nil
		}
	case *dto.AdminDashboard:
		if cached, ok := value.(*dto.AdminDashboard); ok {
			*target = *cached
			m.hits++
			return true, nil
		}
	}
	return false, nil
}

func (m *mockViewCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string]interface{})
	}
	m.entries[key] = value
	m.sets++
	return nil
}

func (m *mockViewCache) Invalidate(_ context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

func markRow(studentID, studentName, subjectID, classID string, obtained, total, passing float64) models.ExamMarkRow {
	status := models.MarkPass
	if obtained < passing {
		status = models.MarkFail
	}
	pct := obtained / total * 100
	return models.ExamMarkRow{
		ExamMark: models.ExamMark{
			StudentID:     studentID,
			ExamID:        "exam-1",
			SubjectID:     subjectID,
			ObtainedMarks: obtained,
			TotalMarks:    total,
			PassingMarks:  passing,
			Status:        status,
			Percentage:    pct,
		},
		StudentName: studentName,
		SubjectName: subjectID,
		ClassID:     classID,
	}
}

func newExamFixture() (*ExamService, *mockExamStore, *mockViewCache) {
	store := &mockExamStore{
		exams: map[string]models.Exam{
			"exam-1": {ID: "exam-1", CampusID: "campus-1", Name: "Mid Term", YearStart: 2025},
		},
	}
	students := &mockBillingStudents{students: map[string]models.Student{
		"student-1": {ID: "student-1", CampusID: "campus-1", FullName: "Hamza Ali", ClassID: "class-5"},
	}}
	cache := &mockViewCache{}
	svc := NewExamService(store, students, cache, time.Minute, nil, nil)
	return svc, store, cache
}

func TestGradeFor(t *testing.T) {
	cases := []struct {
		pct    float64
		failed bool
		want   string
	}{
		{95, false, "A+"},
		{90, false, "A+"},
		{85, false, "A"},
		{72, false, "B"},
		{65, false, "C"},
		{50, false, "D"},
		{40, false, "F"},
		{92, true, "F"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, GradeFor(tc.pct, tc.failed), "pct=%.0f failed=%v", tc.pct, tc.failed)
	}
}

func TestEnterMarkDerivesStatusAndGrade(t *testing.T) {
	svc, store, cache := newExamFixture()
	scope := models.ScopeForCampus("campus-1")

	mark, err := svc.EnterMark(context.Background(), scope, EnterMarkRequest{
		StudentID:     "student-1",
		ExamID:        "exam-1",
		SubjectID:     "subject-math",
		AcademicYear:  "2025-2026",
		ObtainedMarks: 85,
		TotalMarks:    100,
		PassingMarks:  40,
	})
	require.NoError(t, err)

	assert.Equal(t, models.MarkPass, mark.Status)
	assert.Equal(t, "A", mark.Grade)
	assert.InDelta(t, 85, mark.Percentage, 0.001)
	assert.Equal(t, 2025, mark.YearStart)
	assert.Len(t, store.marks, 1)
	require.Len(t, cache.invalidated, 1)
	assert.Equal(t, "exams:analysis:exam-1:*", cache.invalidated[0])
}

func TestEnterMarkFailBelowPassing(t *testing.T) {
	svc, _, _ := newExamFixture()

	mark, err := svc.EnterMark(context.Background(), models.ScopeForCampus("campus-1"), EnterMarkRequest{
		StudentID:     "student-1",
		ExamID:        "exam-1",
		SubjectID:     "subject-math",
		AcademicYear:  "2025-2026",
		ObtainedMarks: 35,
		TotalMarks:    100,
		PassingMarks:  40,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MarkFail, mark.Status)
	assert.Equal(t, "F", mark.Grade)
}

func TestEnterMarkRejectsObtainedAboveTotal(t *testing.T) {
	svc, _, _ := newExamFixture()

	_, err := svc.EnterMark(context.Background(), models.ScopeForCampus("campus-1"), EnterMarkRequest{
		StudentID:     "student-1",
		ExamID:        "exam-1",
		SubjectID:     "subject-math",
		AcademicYear:  "2025-2026",
		ObtainedMarks: 110,
		TotalMarks:    100,
		PassingMarks:  40,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnterMarkRejectsMalformedAcademicYear(t *testing.T) {
	svc, _, _ := newExamFixture()

	_, err := svc.EnterMark(context.Background(), models.ScopeForCampus("campus-1"), EnterMarkRequest{
		StudentID:     "student-1",
		ExamID:        "exam-1",
		SubjectID:     "subject-math",
		AcademicYear:  "2025-2027",
		ObtainedMarks: 50,
		TotalMarks:    100,
		PassingMarks:  40,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAnalysisAggregatesAndBreakdowns(t *testing.T) {
	svc, store, cache := newExamFixture()
	store.rows = []models.ExamMarkRow{
		markRow("student-1", "Hamza Ali", "subject-math", "class-5", 80, 100, 40),
		markRow("student-1", "Hamza Ali", "subject-urdu", "class-5", 60, 100, 40),
		markRow("student-2", "Sara Khan", "subject-math", "class-5", 90, 100, 40),
		markRow("student-2", "Sara Khan", "subject-urdu", "class-6", 30, 100, 40),
	}
	scope := models.ScopeForCampus("campus-1")

	analysis, err := svc.Analysis(context.Background(), scope, models.ExamMarkFilter{ExamID: "exam-1"})
	require.NoError(t, err)

	assert.Equal(t, 4, analysis.Count)
	assert.InDelta(t, 65, analysis.AverageObtained, 0.001)
	assert.InDelta(t, 65, analysis.AveragePct, 0.001)
	assert.InDelta(t, 75.0, analysis.PassRate, 0.001)

	require.Len(t, analysis.BySubject, 2)
	assert.Equal(t, "subject-math", analysis.BySubject[0].Key)
	assert.InDelta(t, 100, analysis.BySubject[0].PassRate, 0.001)
	assert.InDelta(t, 50, analysis.BySubject[1].PassRate, 0.001)
	require.Len(t, analysis.ByClass, 2)
	assert.Nil(t, analysis.ByCampus)

	assert.Equal(t, 1, cache.sets)
}

func TestAnalysisPinnedDimensionCollapsesBreakdown(t *testing.T) {
	svc, store, _ := newExamFixture()
	store.rows = []models.ExamMarkRow{
		markRow("student-1", "Hamza Ali", "subject-math", "class-5", 80, 100, 40),
		markRow("student-2", "Sara Khan", "subject-math", "class-5", 90, 100, 40),
	}

	analysis, err := svc.Analysis(context.Background(), models.ScopeForCampus("campus-1"), models.ExamMarkFilter{
		ExamID:    "exam-1",
		SubjectID: "subject-math",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.Count)
	assert.Nil(t, analysis.BySubject)
	require.Len(t, analysis.ByClass, 1)
}

func TestAnalysisServedFromCache(t *testing.T) {
	svc, store, cache := newExamFixture()
	store.rows = []models.ExamMarkRow{
		markRow("student-1", "Hamza Ali", "subject-math", "class-5", 80, 100, 40),
	}
	scope := models.ScopeForCampus("campus-1")
	filter := models.ExamMarkFilter{ExamID: "exam-1"}

	first, err := svc.Analysis(context.Background(), scope, filter)
	require.NoError(t, err)

	// Mutate the store; the cached aggregate must still be returned.
	store.rows = nil
	second, err := svc.Analysis(context.Background(), scope, filter)
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, 1, cache.hits)
}

func TestRankingsOrderAndTieBreaks(t *testing.T) {
	svc, store, _ := newExamFixture()
	store.rows = []models.ExamMarkRow{
		// student-1: 140/200 = 70%
		markRow("student-1", "Hamza Ali", "subject-math", "class-5", 80, 100, 40),
		markRow("student-1", "Hamza Ali", "subject-urdu", "class-5", 60, 100, 40),
		// student-2: 180/200 = 90%
		markRow("student-2", "Sara Khan", "subject-math", "class-5", 90, 100, 40),
		markRow("student-2", "Sara Khan", "subject-urdu", "class-5", 90, 100, 40),
		// student-3: 70/100 = 70%, same percentage as student-1 but a
		// lower total, so student-1 ranks ahead.
		markRow("student-3", "Omar Farooq", "subject-math", "class-5", 70, 100, 40),
	}

	rankings, err := svc.Rankings(context.Background(), models.ScopeForCampus("campus-1"), "exam-1", "class-5")
	require.NoError(t, err)
	require.Len(t, rankings, 3)

	assert.Equal(t, []string{"student-2", "student-1", "student-3"}, []string{
		rankings[0].StudentID, rankings[1].StudentID, rankings[2].StudentID,
	})
	assert.Equal(t, 1, rankings[0].Rank)
	assert.Equal(t, 2, rankings[1].Rank)
	assert.Equal(t, 3, rankings[2].Rank)
	assert.InDelta(t, 90, rankings[0].Percentage, 0.001)
	assert.Equal(t, 2, rankings[1].Subjects)
}

func TestRankingsUnknownExam(t *testing.T) {
	svc, _, _ := newExamFixture()

	_, err := svc.Rankings(context.Background(), models.ScopeForCampus("campus-1"), "exam-missing", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCreateExamRequiresCampusScope(t *testing.T) {
	svc, _, _ := newExamFixture()

	_, err := svc.CreateExam(context.Background(), models.ScopeAllCampuses(), CreateExamRequest{
		Name:         "Final Term",
		AcademicYear: "2025-2026",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
