package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-hq/maktab-api/internal/dto"
	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/internal/repository"
	appErrors "github.com/maktab-hq/maktab-api/pkg/errors"
	"github.com/maktab-hq/maktab-api/pkg/jobs"
)

type mockReportJobStore struct {
	jobs   map[string]models.ReportJob
	nextID int
}

func (m *mockReportJobStore) Create(_ context.Context, job *models.ReportJob) error {
	if m.jobs == nil {
		m.jobs = make(map[string]models.ReportJob)
	}
	m.nextID++
	job.ID = fmt.Sprintf("job-%d", m.nextID)
	job.CreatedAt = time.Now().UTC()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockReportJobStore) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		return &job, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportJobStore) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	m.jobs[id] = job
	return nil
}

func (m *mockReportJobStore) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	var result []models.ReportJob
	for _, job := range m.jobs {
		if job.Status == models.ReportStatusQueued {
			result = append(result, job)
		}
	}
	return result, nil
}

func (m *mockReportJobStore) ListFinishedBefore(_ context.Context, _ time.Time, _ int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type stubExporter struct {
	result *ExportResult
	err    error
}

func (s *stubExporter) Generate(_ context.Context, _ *models.ReportJob) (*ExportResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func strPtr(v string) *string { return &v }

func TestCreateReportJobQueues(t *testing.T) {
	store := &mockReportJobStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	resp, err := svc.CreateJob(context.Background(), models.ScopeForCampus("campus-1"), dto.ReportRequest{
		Type:      models.ReportTypeFeeVoucher,
		Format:    models.ReportFormatPDF,
		StudentID: strPtr("student-1"),
		Month:     6,
		Year:      2026,
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	assert.Zero(t, resp.Progress)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)

	stored := store.jobs[resp.ID]
	assert.Equal(t, "campus-1", stored.CampusID)
	assert.Equal(t, "user-1", stored.CreatedBy)
	assert.Equal(t, models.ReportFormatPDF, stored.Params.Format)
}

func TestCreateReportJobValidation(t *testing.T) {
	store := &mockReportJobStore{}
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, ReportServiceConfig{})
	ctx := context.Background()
	scope := models.ScopeForCampus("campus-1")

	cases := []struct {
		name string
		req  dto.ReportRequest
	}{
		{"unknown type", dto.ReportRequest{Type: "ledger", Format: models.ReportFormatCSV, Month: 6, Year: 2026}},
		{"unknown format", dto.ReportRequest{Type: models.ReportTypeDefaulters, Format: "xlsx", Month: 6, Year: 2026}},
		{"voucher without student", dto.ReportRequest{Type: models.ReportTypeFeeVoucher, Format: models.ReportFormatCSV, Month: 6, Year: 2026}},
		{"slip without employee", dto.ReportRequest{Type: models.ReportTypeSalarySlip, Format: models.ReportFormatCSV, Month: 6, Year: 2026}},
		{"mark sheet without exam", dto.ReportRequest{Type: models.ReportTypeClassMarkSheet, Format: models.ReportFormatCSV}},
		{"bad period", dto.ReportRequest{Type: models.ReportTypeDefaulters, Format: models.ReportFormatCSV, Month: 13, Year: 2026}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(ctx, scope, tc.req, "user-1")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, store.jobs)
}

func TestCreateReportJobMarkSheetSkipsPeriod(t *testing.T) {
	store := &mockReportJobStore{}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), models.ScopeForCampus("campus-1"), dto.ReportRequest{
		Type:   models.ReportTypeClassMarkSheet,
		Format: models.ReportFormatCSV,
		ExamID: strPtr("exam-1"),
	}, "user-1")
	require.NoError(t, err)
	assert.Len(t, queue.enqueued, 1)
}

func TestCreateReportJobEnqueueFailureMarksFailed(t *testing.T) {
	store := &mockReportJobStore{}
	queue := &mockDispatcher{err: errors.New("queue stopped")}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), models.ScopeForCampus("campus-1"), dto.ReportRequest{
		Type:   models.ReportTypeDefaulters,
		Format: models.ReportFormatCSV,
		Month:  6,
		Year:   2026,
	}, "user-1")
	require.Error(t, err)

	require.Len(t, store.jobs, 1)
	for _, job := range store.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		assert.Equal(t, 100, job.Progress)
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestGetReportStatusOwnership(t *testing.T) {
	store := &mockReportJobStore{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeDefaulters, Status: models.ReportStatusProcessing, Progress: 10, CreatedBy: "user-1"},
	}}
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, ReportServiceConfig{})
	ctx := context.Background()

	status, err := svc.GetStatus(ctx, "job-1", "user-1", models.RoleAccountant)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, status.Status)

	_, err = svc.GetStatus(ctx, "job-1", "user-2", models.RoleAccountant)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(ctx, "job-1", "user-2", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(ctx, "job-missing", "user-1", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportWorkerFinishesJob(t *testing.T) {
	store := &mockReportJobStore{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeDefaulters, Status: models.ReportStatusQueued, CreatedBy: "user-1"},
	}}
	exporter := &stubExporter{result: &ExportResult{URL: "/api/v1/export/token-abc"}}
	worker := NewReportWorker(store, exporter, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/v1/export/token-abc", *job.ResultURL)
	assert.NotNil(t, job.FinishedAt)
}

func TestReportWorkerRequeuesOnTransientFailure(t *testing.T) {
	store := &mockReportJobStore{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeDefaulters, Status: models.ReportStatusQueued, CreatedBy: "user-1"},
	}}
	exporter := &stubExporter{err: errors.New("storage unavailable")}
	worker := NewReportWorker(store, exporter, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Zero(t, job.Progress)
	require.NotNil(t, job.ErrorMessage)
}

func TestReportWorkerFailsAfterMaxRetries(t *testing.T) {
	store := &mockReportJobStore{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeDefaulters, Status: models.ReportStatusQueued, CreatedBy: "user-1"},
	}}
	exporter := &stubExporter{err: errors.New("storage unavailable")}
	worker := NewReportWorker(store, exporter, nil, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 3})
	require.Error(t, err)

	job := store.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFailed, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.FinishedAt)
}

func TestRecoverPendingJobsReenqueues(t *testing.T) {
	store := &mockReportJobStore{jobs: map[string]models.ReportJob{
		"job-1": {ID: "job-1", Type: models.ReportTypeDefaulters, Status: models.ReportStatusQueued},
		"job-2": {ID: "job-2", Type: models.ReportTypeFeeVoucher, Status: models.ReportStatusFinished},
	}}
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "job-1", queue.enqueued[0].ID)
}
