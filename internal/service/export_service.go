package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/maktab-hq/maktab-api/internal/models"
	"github.com/maktab-hq/maktab-api/pkg/export"
	"github.com/maktab-hq/maktab-api/pkg/storage"
)

type exportStatementProvider interface {
	Statement(ctx context.Context, scope models.TenantScope, studentID string, period models.Period) (*models.BillingStatement, error)
	ProjectRevenue(ctx context.Context, scope models.TenantScope, classID string, from, to models.Period) (*models.RevenueProjection, error)
}

type exportPayrollProvider interface {
	Compute(ctx context.Context, scope models.TenantScope, employeeID string, period models.Period) (*models.PayrollComputation, error)
}

type exportExamProvider interface {
	Rankings(ctx context.Context, scope models.TenantScope, examID, classID string) ([]models.StudentRanking, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets from the fee, payroll and exam
// calculators and persists the rendered files.
type ExportService struct {
	statements exportStatementProvider
	payroll    exportPayrollProvider
	exams      exportExamProvider
	storage    fileStorage
	csv        datasetRenderer
	pdf        datasetRenderer
	signer     *storage.TokenSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(statements exportStatementProvider, payroll exportPayrollProvider, exams exportExamProvider, store fileStorage, signer *storage.TokenSigner, cfg ExportConfig, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		statements: statements,
		payroll:    payroll,
		exams:      exams,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Sign(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Verify(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	kind := strings.ToLower(string(job.Type))
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s.%s", kind, kind, timestamp, job.Params.Format)
}

func jobScope(job *models.ReportJob) models.TenantScope {
	if job.CampusID == "" {
		return models.ScopeAllCampuses()
	}
	return models.ScopeForCampus(job.CampusID)
}

func jobPeriod(params models.ReportJobParams) (models.Period, error) {
	return models.NewPeriod(params.Month, params.Year)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	switch job.Type {
	case models.ReportTypeFeeVoucher:
		return s.buildFeeVoucher(ctx, job)
	case models.ReportTypeSalarySlip:
		return s.buildSalarySlip(ctx, job)
	case models.ReportTypeClassMarkSheet:
		return s.buildMarkSheet(ctx, job)
	case models.ReportTypeDefaulters:
		return s.buildDefaulters(ctx, job)
	default:
		return export.Dataset{}, fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func (s *ExportService) buildFeeVoucher(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	if job.Params.StudentID == nil || *job.Params.StudentID == "" {
		return export.Dataset{}, fmt.Errorf("fee voucher requires a student")
	}
	period, err := jobPeriod(job.Params)
	if err != nil {
		return export.Dataset{}, err
	}
	statement, err := s.statements.Statement(ctx, jobScope(job), *job.Params.StudentID, period)
	if err != nil {
		return export.Dataset{}, err
	}
	return export.Dataset{
		Title:    "Fee Voucher",
		Subtitle: fmt.Sprintf("%s, %s", statement.StudentName, period),
		Headers:  []string{"Item", "Amount"},
		Rows: []map[string]string{
			{"Item": "Tuition Fee", "Amount": money(statement.TuitionFee)},
			{"Item": "Admission Fee", "Amount": money(statement.AdmissionFee)},
			{"Item": "Misc Charges", "Amount": money(statement.MiscCharges)},
			{"Item": "Fine Charges", "Amount": money(statement.FineCharges)},
			{"Item": "Previous Dues", "Amount": money(statement.PreviousDues)},
		},
		Footer: []export.FooterLine{
			{Label: "Total Payable", Value: money(statement.TotalPayable)},
			{Label: "Paid", Value: money(statement.TotalPaid)},
			{Label: "Remaining", Value: money(statement.RemainingDues)},
		},
	}, nil
}

func (s *ExportService) buildSalarySlip(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	if job.Params.EmployeeID == nil || *job.Params.EmployeeID == "" {
		return export.Dataset{}, fmt.Errorf("salary slip requires an employee")
	}
	period, err := jobPeriod(job.Params)
	if err != nil {
		return export.Dataset{}, err
	}
	computation, err := s.payroll.Compute(ctx, jobScope(job), *job.Params.EmployeeID, period)
	if err != nil {
		return export.Dataset{}, err
	}
	return export.Dataset{
		Title:    "Salary Slip",
		Subtitle: fmt.Sprintf("%s, %s", computation.EmployeeName, period),
		Headers:  []string{"Item", "Amount"},
		Rows: []map[string]string{
			{"Item": "Basic Salary", "Amount": money(computation.BasicSalary)},
			{"Item": "Allowances", "Amount": money(computation.Allowances)},
			{"Item": "Deductions", "Amount": "-" + money(computation.Deductions)},
			{"Item": "Attendance Deduction", "Amount": "-" + money(computation.AttendanceDeduction)},
			{"Item": "Bonus", "Amount": money(computation.Bonus)},
			{"Item": "Previous Balance", "Amount": money(computation.PreviousBalance)},
		},
		Footer: []export.FooterLine{
			{Label: "Total Payable", Value: money(computation.TotalPayable)},
			{Label: "Paid", Value: money(computation.AmountPaid)},
			{Label: "Balance", Value: money(computation.Balance)},
		},
	}, nil
}

func (s *ExportService) buildMarkSheet(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	if job.Params.ExamID == nil || *job.Params.ExamID == "" {
		return export.Dataset{}, fmt.Errorf("mark sheet requires an exam")
	}
	rankings, err := s.exams.Rankings(ctx, jobScope(job), *job.Params.ExamID, deref(job.Params.ClassID))
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(rankings))
	for _, ranking := range rankings {
		rows = append(rows, map[string]string{
			"Rank":           fmt.Sprintf("%d", ranking.Rank),
			"Student":        ranking.StudentName,
			"Total Obtained": fmt.Sprintf("%.1f", ranking.TotalObtained),
			"Total Marks":    fmt.Sprintf("%.1f", ranking.TotalMarks),
			"Percentage":     fmt.Sprintf("%.1f", ranking.Percentage),
			"Fails":          fmt.Sprintf("%d", ranking.Fails),
		})
	}
	return export.Dataset{
		Title:   "Class Mark Sheet",
		Headers: []string{"Rank", "Student", "Total Obtained", "Total Marks", "Percentage", "Fails"},
		Rows:    rows,
	}, nil
}

func (s *ExportService) buildDefaulters(ctx context.Context, job *models.ReportJob) (export.Dataset, error) {
	period, err := jobPeriod(job.Params)
	if err != nil {
		return export.Dataset{}, err
	}
	projection, err := s.statements.ProjectRevenue(ctx, jobScope(job), deref(job.Params.ClassID), period, period)
	if err != nil {
		return export.Dataset{}, err
	}
	rows := make([]map[string]string, 0, len(projection.Outcomes))
	var outstanding float64
	for _, outcome := range projection.Outcomes {
		if outcome.Skipped() || outcome.Statement.RemainingDues <= 0 {
			continue
		}
		outstanding += outcome.Statement.RemainingDues
		rows = append(rows, map[string]string{
			"Student":       outcome.Statement.StudentName,
			"Class":         outcome.Statement.ClassID,
			"Total Payable": money(outcome.Statement.TotalPayable),
			"Previous Dues": money(outcome.Statement.PreviousDues),
			"Remaining":     money(outcome.Statement.RemainingDues),
		})
	}
	return export.Dataset{
		Title:    "Fee Defaulters",
		Subtitle: period.String(),
		Headers:  []string{"Student", "Class", "Total Payable", "Previous Dues", "Remaining"},
		Rows:     rows,
		Footer:   []export.FooterLine{{Label: "Total Outstanding", Value: money(outstanding)}},
	}, nil
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
