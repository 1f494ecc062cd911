package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/maktab-hq/maktab-api/internal/models"
)

// ClassFeeRepository handles fee schedules, extra charges, opt-ins and fines.
type ClassFeeRepository struct {
	db *sqlx.DB
}

// NewClassFeeRepository creates a new class fee repository.
func NewClassFeeRepository(db *sqlx.DB) *ClassFeeRepository {
	return &ClassFeeRepository{db: db}
}

// FindByClass returns the fee schedule for a class. sql.ErrNoRows means the
// class cannot be billed.
func (r *ClassFeeRepository) FindByClass(ctx context.Context, scope models.TenantScope, classID string) (*models.ClassFee, error) {
	query := `SELECT id, campus_id, class_id, tuition_fee, admission_fee, created_at, updated_at
FROM class_fees WHERE class_id = $1`
	args := []interface{}{classID}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	var fee models.ClassFee
	if err := r.db.GetContext(ctx, &fee, query, args...); err != nil {
		return nil, err
	}
	return &fee, nil
}

// Upsert writes the fee schedule for a class.
func (r *ClassFeeRepository) Upsert(ctx context.Context, fee *models.ClassFee) error {
	if fee.ID == "" {
		fee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if fee.CreatedAt.IsZero() {
		fee.CreatedAt = now
	}
	fee.UpdatedAt = now
	const query = `INSERT INTO class_fees (id, campus_id, class_id, tuition_fee, admission_fee, created_at, updated_at)
VALUES (:id, :campus_id, :class_id, :tuition_fee, :admission_fee, :created_at, :updated_at)
ON CONFLICT (campus_id, class_id)
DO UPDATE SET tuition_fee = EXCLUDED.tuition_fee, admission_fee = EXCLUDED.admission_fee, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, fee); err != nil {
		return fmt.Errorf("upsert class fee: %w", err)
	}
	return nil
}

// ActiveChargesByClass returns the active extra charges configured for a class.
func (r *ClassFeeRepository) ActiveChargesByClass(ctx context.Context, scope models.TenantScope, classID string) ([]models.ExtraCharge, error) {
	query := `SELECT id, campus_id, class_id, name, category, amount, active, created_at
FROM extra_charges WHERE class_id = $1 AND active = TRUE`
	args := []interface{}{classID}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	query += " ORDER BY name"
	var charges []models.ExtraCharge
	if err := r.db.SelectContext(ctx, &charges, query, args...); err != nil {
		return nil, fmt.Errorf("list extra charges: %w", err)
	}
	return charges, nil
}

// CreateCharge inserts an extra charge row.
func (r *ClassFeeRepository) CreateCharge(ctx context.Context, charge *models.ExtraCharge) error {
	if charge.ID == "" {
		charge.ID = uuid.NewString()
	}
	charge.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO extra_charges (id, campus_id, class_id, name, category, amount, active, created_at)
VALUES (:id, :campus_id, :class_id, :name, :category, :amount, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, charge); err != nil {
		return fmt.Errorf("create extra charge: %w", err)
	}
	return nil
}

// DeactivateCharge retires an extra charge from future billing.
func (r *ClassFeeRepository) DeactivateCharge(ctx context.Context, scope models.TenantScope, id string) error {
	query := "UPDATE extra_charges SET active = FALSE WHERE id = $1"
	args := []interface{}{id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate extra charge: %w", err)
	}
	return nil
}

// OptInChargeIDs returns the optional charge IDs a student subscribes to.
func (r *ClassFeeRepository) OptInChargeIDs(ctx context.Context, studentID string) (map[string]struct{}, error) {
	const query = `SELECT charge_id FROM charge_opt_ins WHERE student_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list charge opt-ins: %w", err)
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// SetOptIn subscribes or unsubscribes a student from an optional charge.
func (r *ClassFeeRepository) SetOptIn(ctx context.Context, studentID, chargeID string, optedIn bool) error {
	if optedIn {
		const query = `INSERT INTO charge_opt_ins (id, student_id, charge_id, created_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (student_id, charge_id) DO NOTHING`
		if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), studentID, chargeID, time.Now().UTC()); err != nil {
			return fmt.Errorf("create charge opt-in: %w", err)
		}
		return nil
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM charge_opt_ins WHERE student_id = $1 AND charge_id = $2", studentID, chargeID); err != nil {
		return fmt.Errorf("delete charge opt-in: %w", err)
	}
	return nil
}

// OutstandingFines returns the student's unpaid, active fine charges.
func (r *ClassFeeRepository) OutstandingFines(ctx context.Context, studentID string) ([]models.FineCharge, error) {
	const query = `SELECT id, campus_id, student_id, reason, amount, is_paid, is_active, issued_at, paid_at, created_at
FROM fine_charges WHERE student_id = $1 AND is_paid = FALSE AND is_active = TRUE ORDER BY issued_at`
	var fines []models.FineCharge
	if err := r.db.SelectContext(ctx, &fines, query, studentID); err != nil {
		return nil, fmt.Errorf("list outstanding fines: %w", err)
	}
	return fines, nil
}

// CreateFine issues a fine against a student.
func (r *ClassFeeRepository) CreateFine(ctx context.Context, fine *models.FineCharge) error {
	if fine.ID == "" {
		fine.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	fine.CreatedAt = now
	if fine.IssuedAt.IsZero() {
		fine.IssuedAt = now
	}
	fine.IsActive = true
	const query = `INSERT INTO fine_charges (id, campus_id, student_id, reason, amount, is_paid, is_active, issued_at, paid_at, created_at)
VALUES (:id, :campus_id, :student_id, :reason, :amount, :is_paid, :is_active, :issued_at, :paid_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, fine); err != nil {
		return fmt.Errorf("create fine: %w", err)
	}
	return nil
}

// MarkFinePaid settles a fine; it drops out of future payable calculations.
func (r *ClassFeeRepository) MarkFinePaid(ctx context.Context, scope models.TenantScope, id string, paidAt time.Time) error {
	query := "UPDATE fine_charges SET is_paid = TRUE, paid_at = $1 WHERE id = $2 AND is_paid = FALSE"
	args := []interface{}{paidAt, id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark fine paid: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("mark fine paid: no unpaid fine %s", id)
	}
	return nil
}

// DeactivateFine waives a fine without marking it paid.
func (r *ClassFeeRepository) DeactivateFine(ctx context.Context, scope models.TenantScope, id string) error {
	query := "UPDATE fine_charges SET is_active = FALSE WHERE id = $1"
	args := []interface{}{id}
	clause, args := scopeClause(scope, "campus_id", args)
	query += clause
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deactivate fine: %w", err)
	}
	return nil
}
