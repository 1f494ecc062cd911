package models

import "time"

// ClassFee is the per-class fee schedule: base tuition plus a one-time
// admission fee. One row per class; reference data.
type ClassFee struct {
	ID           string    `db:"id" json:"id"`
	CampusID     string    `db:"campus_id" json:"campus_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	TuitionFee   float64   `db:"tuition_fee" json:"tuition_fee"`
	AdmissionFee float64   `db:"admission_fee" json:"admission_fee"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ChargeCategory distinguishes recurring from opt-in class charges.
type ChargeCategory string

const (
	// ChargeMonthly is always included in a student's expected fees.
	ChargeMonthly ChargeCategory = "MONTHLY"
	// ChargeOptional applies only to students individually opted in.
	ChargeOptional ChargeCategory = "OPTIONAL"
)

// Valid reports whether the category is a supported value.
func (c ChargeCategory) Valid() bool {
	return c == ChargeMonthly || c == ChargeOptional
}

// ExtraCharge is a class-scoped fee component beyond base tuition.
type ExtraCharge struct {
	ID        string         `db:"id" json:"id"`
	CampusID  string         `db:"campus_id" json:"campus_id"`
	ClassID   string         `db:"class_id" json:"class_id"`
	Name      string         `db:"name" json:"name"`
	Category  ChargeCategory `db:"category" json:"category"`
	Amount    float64        `db:"amount" json:"amount"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// ChargeOptIn records a student's subscription to an optional charge.
type ChargeOptIn struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	ChargeID  string    `db:"charge_id" json:"charge_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FineCharge is a one-off penalty against a student. It is counted in the
// payable amount only while unpaid and active; once paid or deactivated it
// permanently drops out of future calculations.
type FineCharge struct {
	ID        string     `db:"id" json:"id"`
	CampusID  string     `db:"campus_id" json:"campus_id"`
	StudentID string     `db:"student_id" json:"student_id"`
	Reason    string     `db:"reason" json:"reason"`
	Amount    float64    `db:"amount" json:"amount"`
	IsPaid    bool       `db:"is_paid" json:"is_paid"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	IssuedAt  time.Time  `db:"issued_at" json:"issued_at"`
	PaidAt    *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
