package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// ComplaintRepository handles complaint persistence.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository creates a new complaint repository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintColumns = `id, campus_id, filed_by_id, subject, body, status, resolution, resolved_at, created_at, updated_at`

// FindByID returns a complaint within the tenant scope.
func (r *ComplaintRepository) FindByID(ctx context.Context, scope models.TenantScope, id string) (*models.Complaint, error) {
	query := fmt.Sprintf("SELECT %s FROM complaints WHERE id = $1", complaintColumns)
	args := []interface{}{id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, args...); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints matching the filter with a total count.
func (r *ComplaintRepository) List(ctx context.Context, scope models.TenantScope, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	where += clause
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.FiledByID != "" {
		args = append(args, filter.FiledByID)
		where += fmt.Sprintf(" AND filed_by_id = $%d", len(args))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM complaints"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM complaints%s ORDER BY created_at DESC", complaintColumns, where)
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

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}
	return complaints, total, nil
}

// Create inserts a new complaint in the open state.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	if complaint.Status == "" {
		complaint.Status = models.ComplaintOpen
	}
	const query = `INSERT INTO complaints (id, campus_id, filed_by_id, subject, body, status, resolution, resolved_at, created_at, updated_at)
VALUES (:id, :campus_id, :filed_by_id, :subject, :body, :status, :resolution, :resolved_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// UpdateStatus moves a complaint to its next workflow state.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, complaint *models.Complaint) error {
	complaint.UpdatedAt = time.Now().UTC()
	const query = `UPDATE complaints SET status = :status, resolution = :resolution, resolved_at = :resolved_at, updated_at = :updated_at
WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, complaint)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update complaint: no row for %s", complaint.ID)
	}
	return nil
}

// CountByStatus groups complaint counts for dashboards.
func (r *ComplaintRepository) CountByStatus(ctx context.Context, scope models.TenantScope) (map[models.ComplaintStatus]int, error) {
	query := `SELECT status, COUNT(*) AS count FROM complaints WHERE 1=1`
	var args []interface{}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " GROUP BY status"
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count complaints by status: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.ComplaintStatus]int)
	for rows.Next() {
		var row struct {
			Status models.ComplaintStatus `db:"status"`
			Count  int                    `db:"count"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan complaint count: %w", err)
		}
		counts[row.Status] = row.Count
	}
	return counts, nil
}
