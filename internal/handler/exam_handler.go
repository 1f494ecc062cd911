package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/internal/service"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/response"
)

// ExamHandler exposes exam, marks and analysis endpoints.
type ExamHandler struct {
	exams *service.ExamService
}

// NewExamHandler constructs ExamHandler.
func NewExamHandler(exams *service.ExamService) *ExamHandler {
	return &ExamHandler{exams: exams}
}

// Create godoc
// @Summary Create exam
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.CreateExamRequest true "Exam payload"
// @Success 201 {object} response.Envelope
// @Router /exams [post]
func (h *ExamHandler) Create(c *gin.Context) {
	var req service.CreateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exam, err := h.exams.CreateExam(c.Request.Context(), requestScope(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, exam)
}

// List godoc
// @Summary List exams
// @Tags Exams
// @Produce json
// @Param academic_year query string false "Academic year, e.g. 2025-2026"
// @Success 200 {object} response.Envelope
// @Router /exams [get]
func (h *ExamHandler) List(c *gin.Context) {
	exams, err := h.exams.ListExams(c.Request.Context(), requestScope(c), c.Query("academic_year"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exams, nil)
}

// EnterMark godoc
// @Summary Enter or correct a mark
// @Description Upserts the mark for one student, exam and subject; status and grade are derived
// @Tags Exams
// @Accept json
// @Produce json
// @Param payload body service.EnterMarkRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /exams/marks [post]
func (h *ExamHandler) EnterMark(c *gin.Context) {
	var req service.EnterMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	mark, err := h.exams.EnterMark(c.Request.Context(), requestScope(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mark, nil)
}

// Marks godoc
// @Summary List mark entries
// @Tags Exams
// @Produce json
// @Param exam_id query string false "Exam ID"
// @Param subject_id query string false "Subject ID"
// @Param class_id query string false "Class ID"
// @Param section_id query string false "Section ID"
// @Param student_id query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Router /exams/marks [get]
func (h *ExamHandler) Marks(c *gin.Context) {
	filter := markFilterFromQuery(c)
	marks, err := h.exams.Marks(c.Request.Context(), requestScope(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, marks, nil)
}

// Analysis godoc
// @Summary Aggregate result analysis
// @Description Averages, pass rate and breakdowns along every unpinned dimension
// @Tags Exams
// @Produce json
// @Param exam_id query string true "Exam ID"
// @Param subject_id query string false "Pin to one subject"
// @Param class_id query string false "Pin to one class"
// @Param section_id query string false "Pin to one section"
// @Param student_id query string false "Pin to one student"
// @Success 200 {object} response.Envelope
// @Router /exams/analysis [get]
func (h *ExamHandler) Analysis(c *gin.Context) {
	filter := markFilterFromQuery(c)
	if filter.ExamID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_id is required"))
		return
	}
	analysis, err := h.exams.Analysis(c.Request.Context(), requestScope(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, analysis, nil)
}

// Rankings godoc
// @Summary Class rankings for an exam
// @Tags Exams
// @Produce json
// @Param exam_id query string true "Exam ID"
// @Param class_id query string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /exams/rankings [get]
func (h *ExamHandler) Rankings(c *gin.Context) {
	examID := c.Query("exam_id")
	classID := c.Query("class_id")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "exam_id and class_id are required"))
		return
	}
	rankings, err := h.exams.Rankings(c.Request.Context(), requestScope(c), examID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, nil)
}

// Subjects godoc
// @Summary List subjects
// @Tags Exams
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /exams/subjects [get]
func (h *ExamHandler) Subjects(c *gin.Context) {
	subjects, err := h.exams.Subjects(c.Request.Context(), requestScope(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, nil)
}

func markFilterFromQuery(c *gin.Context) models.ExamMarkFilter {
	return models.ExamMarkFilter{
		ExamID:    c.Query("exam_id"),
		SubjectID: c.Query("subject_id"),
		ClassID:   c.Query("class_id"),
		SectionID: c.Query("section_id"),
		StudentID: c.Query("student_id"),
	}
}
