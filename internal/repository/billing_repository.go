package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// BillingRepository persists billing masters and their payment transactions.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository creates a new billing repository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

const billingMasterColumns = `id, campus_id, student_id, month, year, tuition_fee, admission_fee, misc_charges, fine_charges, previous_dues, created_at, updated_at`

// FindMaster returns the invoice for (student, period), or sql.ErrNoRows.
func (r *BillingRepository) FindMaster(ctx context.Context, studentID string, period models.Period) (*models.BillingMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_masters WHERE student_id = $1 AND month = $2 AND year = $3`, billingMasterColumns)
	var master models.BillingMaster
	if err := r.db.GetContext(ctx, &master, query, studentID, int(period.Month), period.Year); err != nil {
		return nil, err
	}
	return &master, nil
}

// LatestMasterBefore returns the most recent invoice strictly earlier than
// the period, or nil when the student has never been billed.
func (r *BillingRepository) LatestMasterBefore(ctx context.Context, studentID string, period models.Period) (*models.BillingMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM billing_masters
WHERE student_id = $1 AND (year < $2 OR (year = $2 AND month < $3))
ORDER BY year DESC, month DESC LIMIT 1`, billingMasterColumns)
	var master models.BillingMaster
	if err := r.db.GetContext(ctx, &master, query, studentID, period.Year, int(period.Month)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest billing master: %w", err)
	}
	return &master, nil
}

// CreateMaster inserts the invoice row for a period. The unique key on
// (student_id, month, year) upholds the one-invoice-per-period invariant.
func (r *BillingRepository) CreateMaster(ctx context.Context, master *models.BillingMaster) error {
	if master.ID == "" {
		master.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	master.CreatedAt = now
	master.UpdatedAt = now
	const query = `INSERT INTO billing_masters (id, campus_id, student_id, month, year, tuition_fee, admission_fee, misc_charges, fine_charges, previous_dues, created_at, updated_at)
VALUES (:id, :campus_id, :student_id, :month, :year, :tuition_fee, :admission_fee, :misc_charges, :fine_charges, :previous_dues, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, master); err != nil {
		return fmt.Errorf("create billing master: %w", err)
	}
	return nil
}

// PaidTotal sums the immutable payment events of a master.
func (r *BillingRepository) PaidTotal(ctx context.Context, masterID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount_paid), 0) FROM billing_transactions WHERE master_id = $1`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, masterID); err != nil {
		return 0, fmt.Errorf("sum billing payments: %w", err)
	}
	return total, nil
}

// CreateTransaction appends an immutable payment event.
func (r *BillingRepository) CreateTransaction(ctx context.Context, txn *models.BillingTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.CreatedAt = time.Now().UTC()
	if txn.PaidAt.IsZero() {
		txn.PaidAt = txn.CreatedAt
	}
	const query = `INSERT INTO billing_transactions (id, master_id, amount_paid, paid_at, received_by, remarks, created_at)
VALUES (:id, :master_id, :amount_paid, :paid_at, :received_by, :remarks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("create billing transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the payment history of a master, oldest first.
func (r *BillingRepository) ListTransactions(ctx context.Context, masterID string) ([]models.BillingTransaction, error) {
	const query = `SELECT id, master_id, amount_paid, paid_at, received_by, remarks, created_at
FROM billing_transactions WHERE master_id = $1 ORDER BY paid_at, created_at`
	var txns []models.BillingTransaction
	if err := r.db.SelectContext(ctx, &txns, query, masterID); err != nil {
		return nil, fmt.Errorf("list billing transactions: %w", err)
	}
	return txns, nil
}

// MonthlyRevenue aggregates collected payments per month over the trailing
// window, scoped by campus, for the dashboard revenue trend.
func (r *BillingRepository) MonthlyRevenue(ctx context.Context, scope models.TenantScope, from time.Time) ([]models.MonthlyRevenuePoint, error) {
	query := `SELECT EXTRACT(MONTH FROM t.paid_at)::int AS month, EXTRACT(YEAR FROM t.paid_at)::int AS year,
COALESCE(SUM(t.amount_paid), 0) AS collected
FROM billing_transactions t JOIN billing_masters m ON m.id = t.master_id
WHERE t.paid_at >= $1`
	args := []interface{}{from}
	clause, args := scopeClause(scope, "m.campus_id", args)
	query += clause
	query += " GROUP BY 1, 2 ORDER BY year, month"
	var points []models.MonthlyRevenuePoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("monthly revenue: %w", err)
	}
	return points, nil
}

// OutstandingDues sums (payable − paid) over every invoice in scope.
func (r *BillingRepository) OutstandingDues(ctx context.Context, scope models.TenantScope) (float64, error) {
	query := `SELECT COALESCE(SUM(m.tuition_fee + m.admission_fee + m.misc_charges + m.fine_charges + m.previous_dues), 0)
- COALESCE((SELECT SUM(t.amount_paid) FROM billing_transactions t JOIN billing_masters bm ON bm.id = t.master_id WHERE 1=1`
	var args []interface{}
	innerClause, args := scopeClause(scope, "bm.campus_id", args)
	query += innerClause + "), 0) FROM billing_masters m WHERE 1=1"
	outerClause, args := scopeClause(scope, "m.campus_id", args)
	query += outerClause
	var dues float64
	if err := r.db.GetContext(ctx, &dues, query, args...); err != nil {
		return 0, fmt.Errorf("outstanding dues: %w", err)
	}
	return dues, nil
}
