package models

import "time"

// PayrollBalanceState classifies a payroll period's settlement status.
type PayrollBalanceState string

const (
	PayrollUnsettled PayrollBalanceState = "UNSETTLED"
	PayrollPartial   PayrollBalanceState = "PARTIAL"
	PayrollSettled   PayrollBalanceState = "SETTLED"
)

// PayrollMaster is the per-period salary ledger for an employee: at most one
// row per (employee, month, year). Unlike billing invoices it is a running
// settlement ledger: repeated runs for the same period increment AmountPaid
// and may overwrite bonus and attendance deduction.
type PayrollMaster struct {
	ID                  string    `db:"id" json:"id"`
	CampusID            string    `db:"campus_id" json:"campus_id"`
	EmployeeID          string    `db:"employee_id" json:"employee_id"`
	Month               int       `db:"month" json:"month"`
	Year                int       `db:"year" json:"year"`
	BasicSalary         float64   `db:"basic_salary" json:"basic_salary"`
	Allowances          float64   `db:"allowances" json:"allowances"`
	Deductions          float64   `db:"deductions" json:"deductions"`
	AttendanceDeduction float64   `db:"attendance_deduction" json:"attendance_deduction"`
	Bonus               float64   `db:"bonus" json:"bonus"`
	PreviousBalance     float64   `db:"previous_balance" json:"previous_balance"`
	AmountPaid          float64   `db:"amount_paid" json:"amount_paid"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Period returns the payroll period of the master row.
func (m *PayrollMaster) Period() Period {
	return Period{Month: time.Month(m.Month), Year: m.Year}
}

// TotalPayable is the net salary owed for the period.
func (m *PayrollMaster) TotalPayable() float64 {
	return m.BasicSalary + m.Allowances - m.Deductions - m.AttendanceDeduction + m.Bonus + m.PreviousBalance
}

// Balance is the unpaid remainder carried into the next period.
func (m *PayrollMaster) Balance() float64 {
	return m.TotalPayable() - m.AmountPaid
}

// State classifies the settlement progress of the period.
func (m *PayrollMaster) State() PayrollBalanceState {
	switch {
	case m.AmountPaid == 0:
		return PayrollUnsettled
	case m.Balance() == 0:
		return PayrollSettled
	default:
		return PayrollPartial
	}
}

// PayrollTransaction is an immutable payment event against a master.
type PayrollTransaction struct {
	ID         string    `db:"id" json:"id"`
	MasterID   string    `db:"master_id" json:"master_id"`
	AmountPaid float64   `db:"amount_paid" json:"amount_paid"`
	PaidAt     time.Time `db:"paid_at" json:"paid_at"`
	PaidBy     *string   `db:"paid_by" json:"paid_by,omitempty"`
	Remarks    *string   `db:"remarks" json:"remarks,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DayDeduction explains the attendance deduction for one calendar day.
type DayDeduction struct {
	Date      time.Time        `json:"date"`
	Status    AttendanceStatus `json:"status"`
	IsHoliday bool             `json:"is_holiday"`
	Deduction float64          `json:"deduction"`
}

// PayrollComputation is the computed salary breakdown for a period before or
// after settlement.
type PayrollComputation struct {
	EmployeeID          string              `json:"employee_id"`
	EmployeeName        string              `json:"employee_name,omitempty"`
	Month               int                 `json:"month"`
	Year                int                 `json:"year"`
	BasicSalary         float64             `json:"basic_salary"`
	Allowances          float64             `json:"allowances"`
	Deductions          float64             `json:"deductions"`
	AttendanceDeduction float64             `json:"attendance_deduction"`
	Bonus               float64             `json:"bonus"`
	PreviousBalance     float64             `json:"previous_balance"`
	TotalPayable        float64             `json:"total_payable"`
	AmountPaid          float64             `json:"amount_paid"`
	Balance             float64             `json:"balance"`
	State               PayrollBalanceState `json:"state"`
	Days                []DayDeduction      `json:"days,omitempty"`
	FromMaster          bool                `json:"from_master"`
}

// PayrollSkipReason explains a skipped employee in sheet aggregation.
type PayrollSkipReason string

const (
	SkipNoSalaryDefinition PayrollSkipReason = "NO_SALARY_DEFINITION"
	SkipEmployeeInactive   PayrollSkipReason = "EMPLOYEE_INACTIVE"
)

// PayrollOutcome is the per-employee result of a payroll sheet run.
type PayrollOutcome struct {
	EmployeeID  string              `json:"employee_id"`
	Computation *PayrollComputation `json:"computation,omitempty"`
	SkipReason  PayrollSkipReason   `json:"skip_reason,omitempty"`
}

// Skipped reports whether the employee was left out of the sheet.
func (o PayrollOutcome) Skipped() bool {
	return o.Computation == nil
}
