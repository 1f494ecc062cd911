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

// PayrollRepository persists payroll masters and their payment transactions.
type PayrollRepository struct {
	db *sqlx.DB
}

// NewPayrollRepository creates a new payroll repository.
func NewPayrollRepository(db *sqlx.DB) *PayrollRepository {
	return &PayrollRepository{db: db}
}

const payrollMasterColumns = `id, campus_id, employee_id, month, year, basic_salary, allowances, deductions,
attendance_deduction, bonus, previous_balance, amount_paid, created_at, updated_at`

// FindMaster returns the ledger row for (employee, period), or sql.ErrNoRows.
func (r *PayrollRepository) FindMaster(ctx context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_masters WHERE employee_id = $1 AND month = $2 AND year = $3`, payrollMasterColumns)
	var master models.PayrollMaster
	if err := r.db.GetContext(ctx, &master, query, employeeID, int(period.Month), period.Year); err != nil {
		return nil, err
	}
	return &master, nil
}

// LatestUnsettledBefore returns the most recent prior ledger row whose
// balance is non-zero, or nil when every earlier period is settled.
func (r *PayrollRepository) LatestUnsettledBefore(ctx context.Context, employeeID string, period models.Period) (*models.PayrollMaster, error) {
	query := fmt.Sprintf(`SELECT %s FROM payroll_masters
WHERE employee_id = $1 AND (year < $2 OR (year = $2 AND month < $3))
AND (basic_salary + allowances - deductions - attendance_deduction + bonus + previous_balance - amount_paid) <> 0
ORDER BY year DESC, month DESC LIMIT 1`, payrollMasterColumns)
	var master models.PayrollMaster
	if err := r.db.GetContext(ctx, &master, query, employeeID, period.Year, int(period.Month)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest unsettled payroll: %w", err)
	}
	return &master, nil
}

// CreateMaster inserts the ledger row for a period. The unique key on
// (employee_id, month, year) upholds the one-row-per-period invariant.
func (r *PayrollRepository) CreateMaster(ctx context.Context, master *models.PayrollMaster) error {
	if master.ID == "" {
		master.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	master.CreatedAt = now
	master.UpdatedAt = now
	const query = `INSERT INTO payroll_masters (id, campus_id, employee_id, month, year, basic_salary, allowances, deductions,
attendance_deduction, bonus, previous_balance, amount_paid, created_at, updated_at)
VALUES (:id, :campus_id, :employee_id, :month, :year, :basic_salary, :allowances, :deductions,
:attendance_deduction, :bonus, :previous_balance, :amount_paid, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, master); err != nil {
		return fmt.Errorf("create payroll master: %w", err)
	}
	return nil
}

// UpdateSettlement rewrites the running settlement fields. Plain last-write-
// wins: there is deliberately no version token on the ledger row.
func (r *PayrollRepository) UpdateSettlement(ctx context.Context, master *models.PayrollMaster) error {
	master.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payroll_masters SET attendance_deduction = :attendance_deduction, bonus = :bonus,
amount_paid = :amount_paid, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, master)
	if err != nil {
		return fmt.Errorf("update payroll settlement: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update payroll settlement: no row for %s", master.ID)
	}
	return nil
}

// CreateTransaction appends an immutable payment event.
func (r *PayrollRepository) CreateTransaction(ctx context.Context, txn *models.PayrollTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.CreatedAt = time.Now().UTC()
	if txn.PaidAt.IsZero() {
		txn.PaidAt = txn.CreatedAt
	}
	const query = `INSERT INTO payroll_transactions (id, master_id, amount_paid, paid_at, paid_by, remarks, created_at)
VALUES (:id, :master_id, :amount_paid, :paid_at, :paid_by, :remarks, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("create payroll transaction: %w", err)
	}
	return nil
}

// ListTransactions returns the payment history of a ledger row, oldest first.
func (r *PayrollRepository) ListTransactions(ctx context.Context, masterID string) ([]models.PayrollTransaction, error) {
	const query = `SELECT id, master_id, amount_paid, paid_at, paid_by, remarks, created_at
FROM payroll_transactions WHERE master_id = $1 ORDER BY paid_at, created_at`
	var txns []models.PayrollTransaction
	if err := r.db.SelectContext(ctx, &txns, query, masterID); err != nil {
		return nil, fmt.Errorf("list payroll transactions: %w", err)
	}
	return txns, nil
}

// MonthlyExpenditure sums salary payments per month over the trailing
// window for the dashboard payroll trend.
func (r *PayrollRepository) MonthlyExpenditure(ctx context.Context, scope models.TenantScope, from time.Time) ([]models.MonthlyRevenuePoint, error) {
	query := `SELECT EXTRACT(MONTH FROM t.paid_at)::int AS month, EXTRACT(YEAR FROM t.paid_at)::int AS year,
COALESCE(SUM(t.amount_paid), 0) AS collected
FROM payroll_transactions t JOIN payroll_masters m ON m.id = t.master_id
WHERE t.paid_at >= $1`
	args := []interface{}{from}
	clause, args := scopeClause(scope, "m.campus_id", args)
	query += clause
	query += " GROUP BY 1, 2 ORDER BY year, month"
	var points []models.MonthlyRevenuePoint
	if err := r.db.SelectContext(ctx, &points, query, args...); err != nil {
		return nil, fmt.Errorf("monthly expenditure: %w", err)
	}
	return points, nil
}
