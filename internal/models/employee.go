package models

import "time"

// Employee represents a staff member employed at a campus.
type Employee struct {
	ID         string     `db:"id" json:"id"`
	CampusID   string     `db:"campus_id" json:"campus_id"`
	FullName   string     `db:"full_name" json:"full_name"`
	Phone      *string    `db:"phone" json:"phone,omitempty"`
	Email      *string    `db:"email" json:"email,omitempty"`
	Designation string    `db:"designation" json:"designation"`
	JoinedAt   time.Time  `db:"joined_at" json:"joined_at"`
	Active     bool       `db:"active" json:"active"`
	LeftAt     *time.Time `db:"left_at" json:"left_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter captures listing criteria.
type EmployeeFilter struct {
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SalaryDefinition is the active salary contract for an employee. A
// renegotiated salary supersedes the old row (deactivate + insert); active
// rows are never mutated in place.
type SalaryDefinition struct {
	ID            string     `db:"id" json:"id"`
	EmployeeID    string     `db:"employee_id" json:"employee_id"`
	BasicSalary   float64    `db:"basic_salary" json:"basic_salary"`
	Allowances    float64    `db:"allowances" json:"allowances"`
	Deductions    float64    `db:"deductions" json:"deductions"`
	Active        bool       `db:"active" json:"active"`
	EffectiveFrom time.Time  `db:"effective_from" json:"effective_from"`
	SupersededAt  *time.Time `db:"superseded_at" json:"superseded_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// AttendanceStatus is the closed set of employee attendance codes.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "P"
	AttendanceAbsent     AttendanceStatus = "A"
	AttendanceLeave      AttendanceStatus = "L"
	AttendanceLate       AttendanceStatus = "T"
	AttendanceShortLeave AttendanceStatus = "S"
)

// Valid reports whether the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLeave, AttendanceLate, AttendanceShortLeave:
		return true
	default:
		return false
	}
}

// EmployeeAttendance is a single daily attendance row.
type EmployeeAttendance struct {
	ID         string           `db:"id" json:"id"`
	EmployeeID string           `db:"employee_id" json:"employee_id"`
	Date       time.Time        `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Notes      *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}
