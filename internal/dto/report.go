package dto

import "github.com/maktab-hq/maktab-api/internal/models"

// ReportRequest is the payload for creating an asynchronous report job.
type ReportRequest struct {
	Type       models.ReportType   `json:"type"`
	Format     models.ReportFormat `json:"format"`
	StudentID  *string             `json:"student_id,omitempty"`
	EmployeeID *string             `json:"employee_id,omitempty"`
	ClassID    *string             `json:"class_id,omitempty"`
	ExamID     *string             `json:"exam_id,omitempty"`
	Month      int                 `json:"month,omitempty"`
	Year       int                 `json:"year,omitempty"`
}

// ReportJobResponse acknowledges an accepted report job.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress to pollers.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
