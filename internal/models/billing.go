package models

import "time"

// BillingMaster is the per-period invoice for a student: the amounts owed
// for one (student, month, year). Created lazily on first payment or report
// for the period; at most one row per key.
type BillingMaster struct {
	ID           string     `db:"id" json:"id"`
	CampusID     string     `db:"campus_id" json:"campus_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Month        int        `db:"month" json:"month"`
	Year         int        `db:"year" json:"year"`
	TuitionFee   float64    `db:"tuition_fee" json:"tuition_fee"`
	AdmissionFee float64    `db:"admission_fee" json:"admission_fee"`
	MiscCharges  float64    `db:"misc_charges" json:"misc_charges"`
	FineCharges  float64    `db:"fine_charges" json:"fine_charges"`
	PreviousDues float64    `db:"previous_dues" json:"previous_dues"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Period returns the billing period of the master row.
func (m *BillingMaster) Period() Period {
	return Period{Month: time.Month(m.Month), Year: m.Year}
}

// TotalPayable sums the owed components stored on the master.
func (m *BillingMaster) TotalPayable() float64 {
	return m.TuitionFee + m.AdmissionFee + m.MiscCharges + m.FineCharges + m.PreviousDues
}

// BillingTransaction is an immutable payment event against a master.
type BillingTransaction struct {
	ID         string    `db:"id" json:"id"`
	MasterID   string    `db:"master_id" json:"master_id"`
	AmountPaid float64   `db:"amount_paid" json:"amount_paid"`
	PaidAt     time.Time `db:"paid_at" json:"paid_at"`
	ReceivedBy *string   `db:"received_by" json:"received_by,omitempty"`
	Remarks    *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// BillingStatement is the computed view of what a student owes for a period
// and how much of it has been paid.
type BillingStatement struct {
	StudentID     string  `json:"student_id"`
	StudentName   string  `json:"student_name,omitempty"`
	ClassID       string  `json:"class_id,omitempty"`
	Month         int     `json:"month"`
	Year          int     `json:"year"`
	TuitionFee    float64 `json:"tuition_fee"`
	AdmissionFee  float64 `json:"admission_fee"`
	MiscCharges   float64 `json:"misc_charges"`
	FineCharges   float64 `json:"fine_charges"`
	PreviousDues  float64 `json:"previous_dues"`
	TotalPayable  float64 `json:"total_payable"`
	TotalPaid     float64 `json:"total_paid"`
	RemainingDues float64 `json:"remaining_dues"`
	// FromMaster is true when the statement reflects a stored invoice
	// rather than a projection.
	FromMaster bool `json:"from_master"`
}

// BillingSkipReason explains why an aggregate loop could not bill a student.
type BillingSkipReason string

const (
	SkipNoClassFee     BillingSkipReason = "NO_CLASS_FEE"
	SkipStudentLeft    BillingSkipReason = "STUDENT_LEFT"
	SkipStudentMissing BillingSkipReason = "STUDENT_MISSING"
)

// BillingOutcome is the per-student result of an aggregate billing run:
// either a computed statement or an explicit skip with its reason, so
// callers can surface undercounts instead of silently absorbing them.
type BillingOutcome struct {
	StudentID  string            `json:"student_id"`
	Statement  *BillingStatement `json:"statement,omitempty"`
	SkipReason BillingSkipReason `json:"skip_reason,omitempty"`
}

// Skipped reports whether the student was left out of the aggregate.
func (o BillingOutcome) Skipped() bool {
	return o.Statement == nil
}

// RevenueProjection aggregates expected collections over a month range.
type RevenueProjection struct {
	FromMonth    int     `json:"from_month"`
	FromYear     int     `json:"from_year"`
	ToMonth      int     `json:"to_month"`
	ToYear       int     `json:"to_year"`
	Months       int     `json:"months"`
	TotalPayable float64 `json:"total_payable"`
	Students     int     `json:"students"`
	Skipped      int     `json:"skipped"`

	Outcomes []BillingOutcome `json:"outcomes,omitempty"`
}

// MonthlyRevenuePoint is one month of collected revenue for trend charts.
type MonthlyRevenuePoint struct {
	Month     int     `db:"month" json:"month"`
	Year      int     `db:"year" json:"year"`
	Collected float64 `db:"collected" json:"collected"`
}
